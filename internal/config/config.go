// Package config provides Viper-based configuration loading for the combat engine.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. IDLECOMBAT_COMBAT_TICK_INTERVAL.
const EnvPrefix = "IDLECOMBAT"

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
	// Output lists zap sink URLs or file paths; "stderr" and "stdout" name
	// the standard streams.
	Output []string `mapstructure:"output"`
}

// ContentConfig names the directories content is loaded from.
type ContentConfig struct {
	Enemies    string `mapstructure:"enemies"`
	Heroes     string `mapstructure:"heroes"`
	Conditions string `mapstructure:"conditions"`
	Items      string `mapstructure:"items"`
	Scripts    string `mapstructure:"scripts"`
}

// DamageConfig tunes the damage pipeline. Chances are in [0, 1].
type DamageConfig struct {
	MissChance     float64 `mapstructure:"miss_chance"`
	CritChance     float64 `mapstructure:"crit_chance"`
	CritMultiplier float64 `mapstructure:"crit_multiplier"`
	Variance       float64 `mapstructure:"variance"`
}

// ThreatConfig tunes threat generation and decay.
type ThreatConfig struct {
	TankMultiplier   float64 `mapstructure:"tank_multiplier"`
	DPSMultiplier    float64 `mapstructure:"dps_multiplier"`
	HealerMultiplier float64 `mapstructure:"healer_multiplier"`
	// HealRatio is the threat per point healed, split across every enemy.
	HealRatio         float64 `mapstructure:"heal_ratio"`
	DecayPerSecond    float64 `mapstructure:"decay_per_second"`
	TargetSwitchRatio float64 `mapstructure:"target_switch_ratio"`
	TauntBonus        float64 `mapstructure:"taunt_bonus"`
}

// BossConfig tunes phases, enrage and built-in mechanics.
type BossConfig struct {
	Phase2At               float64 `mapstructure:"phase2_at"`
	Phase3At               float64 `mapstructure:"phase3_at"`
	EnrageAt               float64 `mapstructure:"enrage_at"`
	EnrageRound            int     `mapstructure:"enrage_round"`
	EnrageAttackMultiplier float64 `mapstructure:"enrage_attack_multiplier"`
	EnrageSpeedMultiplier  float64 `mapstructure:"enrage_speed_multiplier"`
	AoEMultiplier          float64 `mapstructure:"aoe_multiplier"`
	CleaveTargets          int     `mapstructure:"cleave_targets"`
	ShoutCondition         string  `mapstructure:"shout_condition"`
	ShoutRounds            int     `mapstructure:"shout_rounds"`
	AddsPerSummon          int     `mapstructure:"adds_per_summon"`
	AddStatFraction        float64 `mapstructure:"add_stat_fraction"`
	// InterruptPenalty is added to an interrupted ability's cooldown.
	InterruptPenalty int `mapstructure:"interrupt_penalty"`
}

// AdaptationConfig tunes how enemies grow stronger over long fights.
type AdaptationConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	AttackBonus float64       `mapstructure:"attack_bonus"`
	MaxLevel    int           `mapstructure:"max_level"`
}

// StatsConfig is a stat block used when no other source supplies a stat.
type StatsConfig struct {
	Attack    int `mapstructure:"attack"`
	Defense   int `mapstructure:"defense"`
	MaxHealth int `mapstructure:"max_health"`
	Speed     int `mapstructure:"speed"`
}

// HeroConfig tunes the hero kit.
type HeroConfig struct {
	ShieldFraction    float64     `mapstructure:"shield_fraction"`
	ShieldCooldown    int         `mapstructure:"shield_cooldown"`
	HealFraction      float64     `mapstructure:"heal_fraction"`
	HealThreshold     float64     `mapstructure:"heal_threshold"`
	HealCooldown      int         `mapstructure:"heal_cooldown"`
	InterruptCooldown int         `mapstructure:"interrupt_cooldown"`
	Fallback          StatsConfig `mapstructure:"fallback"`
}

// CombatConfig groups every combat tuning section.
type CombatConfig struct {
	TickInterval time.Duration    `mapstructure:"tick_interval"`
	Damage       DamageConfig     `mapstructure:"damage"`
	Threat       ThreatConfig     `mapstructure:"threat"`
	Boss         BossConfig       `mapstructure:"boss"`
	Adaptation   AdaptationConfig `mapstructure:"adaptation"`
	Hero         HeroConfig       `mapstructure:"hero"`
}

// EncounterConfig is the progression context and the default enemy.
type EncounterConfig struct {
	Enemy      string  `mapstructure:"enemy"`
	Mile       int     `mapstructure:"mile"`
	Difficulty float64 `mapstructure:"difficulty"`
}

// RewardsConfig tunes experience, gold and loot.
type RewardsConfig struct {
	BaseExperience     int       `mapstructure:"base_experience"`
	BaseGold           int       `mapstructure:"base_gold"`
	MileScaling        float64   `mapstructure:"mile_scaling"`
	BossMultiplier     float64   `mapstructure:"boss_multiplier"`
	DefeatFraction     float64   `mapstructure:"defeat_fraction"`
	QualityWeights     []float64 `mapstructure:"quality_weights"`
	QualityMileShift   float64   `mapstructure:"quality_mile_shift"`
	QualityMultipliers []float64 `mapstructure:"quality_multipliers"`
	BossProcedural     int       `mapstructure:"boss_procedural"`
	StashSlots         int       `mapstructure:"stash_slots"`
}

// InspectorConfig holds the HTTP inspector settings.
type InspectorConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// Addr returns the "host:port" listen address.
func (i InspectorConfig) Addr() string {
	return fmt.Sprintf("%s:%d", i.Host, i.Port)
}

// ScriptingConfig holds Lua sandbox settings.
type ScriptingConfig struct {
	// InstructionLimit bounds each mechanic call; 0 uses the sandbox default.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging   LoggingConfig   `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Content   ContentConfig   `mapstructure:"content"`
	Combat    CombatConfig    `mapstructure:"combat"`
	Encounter EncounterConfig `mapstructure:"encounter"`
	Rewards   RewardsConfig   `mapstructure:"rewards"`
	Inspector InspectorConfig `mapstructure:"inspector"`
	Scripting ScriptingConfig `mapstructure:"scripting"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string
	for _, check := range []func() []string{
		func() []string { return validateLogging(c.Logging) },
		func() []string { return validateDatabase(c.Database) },
		func() []string { return validateContent(c.Content) },
		func() []string { return validateCombat(c.Combat) },
		func() []string { return validateEncounter(c.Encounter) },
		func() []string { return validateRewards(c.Rewards) },
		func() []string { return validateInspector(c.Inspector) },
	} {
		errs = append(errs, check()...)
	}
	if c.Scripting.InstructionLimit < 0 {
		errs = append(errs, "scripting.instruction_limit must be >= 0")
	}
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) []string {
	var errs []string
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		errs = append(errs, fmt.Sprintf("logging.level must be one of [debug, info, warn, error], got %q", l.Level))
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		errs = append(errs, fmt.Sprintf("logging.format must be one of [json, console], got %q", l.Format))
	}
	for _, out := range l.Output {
		if out == "" {
			errs = append(errs, "logging.output entries must not be empty")
			break
		}
	}
	return errs
}

func validateDatabase(d DatabaseConfig) []string {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	return errs
}

func validateContent(c ContentConfig) []string {
	var errs []string
	if c.Enemies == "" {
		errs = append(errs, "content.enemies must not be empty")
	}
	if c.Heroes == "" {
		errs = append(errs, "content.heroes must not be empty")
	}
	return errs
}

func inUnit(v float64) bool { return v >= 0 && v <= 1 }

func validateCombat(c CombatConfig) []string {
	var errs []string
	if c.TickInterval <= 0 {
		errs = append(errs, "combat.tick_interval must be > 0")
	}

	d := c.Damage
	if !inUnit(d.MissChance) || !inUnit(d.CritChance) {
		errs = append(errs, "combat.damage.miss_chance and crit_chance must be in [0, 1]")
	}
	if d.CritMultiplier < 1 {
		errs = append(errs, fmt.Sprintf("combat.damage.crit_multiplier must be >= 1, got %v", d.CritMultiplier))
	}
	if !inUnit(d.Variance) {
		errs = append(errs, "combat.damage.variance must be in [0, 1]")
	}

	th := c.Threat
	if th.TankMultiplier < 0 || th.DPSMultiplier < 0 || th.HealerMultiplier < 0 || th.HealRatio < 0 || th.TauntBonus < 0 {
		errs = append(errs, "combat.threat multipliers, heal_ratio and taunt_bonus must be >= 0")
	}
	if th.DecayPerSecond < 0 {
		errs = append(errs, "combat.threat.decay_per_second must be >= 0")
	}
	if th.TargetSwitchRatio < 1 {
		errs = append(errs, fmt.Sprintf("combat.threat.target_switch_ratio must be >= 1, got %v", th.TargetSwitchRatio))
	}

	b := c.Boss
	if !(0 < b.Phase3At && b.Phase3At < b.Phase2At && b.Phase2At < 1) {
		errs = append(errs, "combat.boss thresholds must satisfy 0 < phase3_at < phase2_at < 1")
	}
	if !inUnit(b.EnrageAt) || b.EnrageRound < 0 {
		errs = append(errs, "combat.boss.enrage_at must be in [0, 1] and enrage_round >= 0")
	}
	if b.EnrageAttackMultiplier < 1 || b.EnrageSpeedMultiplier < 1 {
		errs = append(errs, "combat.boss enrage multipliers must be >= 1")
	}
	if b.AoEMultiplier <= 0 || b.CleaveTargets < 0 || b.AddsPerSummon < 0 || b.ShoutRounds < 0 || b.InterruptPenalty < 0 {
		errs = append(errs, "combat.boss mechanic values must be non-negative and aoe_multiplier > 0")
	}
	if b.AddStatFraction <= 0 || b.AddStatFraction > 1 {
		errs = append(errs, "combat.boss.add_stat_fraction must be in (0, 1]")
	}

	a := c.Adaptation
	if a.Interval < 0 || a.AttackBonus < 0 || a.MaxLevel < 0 {
		errs = append(errs, "combat.adaptation values must be >= 0")
	}

	h := c.Hero
	if !inUnit(h.ShieldFraction) || !inUnit(h.HealFraction) || !inUnit(h.HealThreshold) {
		errs = append(errs, "combat.hero fractions and heal_threshold must be in [0, 1]")
	}
	if h.ShieldCooldown < 0 || h.HealCooldown < 0 || h.InterruptCooldown < 0 {
		errs = append(errs, "combat.hero cooldowns must be >= 0")
	}
	f := h.Fallback
	if f.Attack < 1 || f.Defense < 0 || f.MaxHealth < 1 || f.Speed < 1 {
		errs = append(errs, "combat.hero.fallback needs attack, max_health and speed >= 1")
	}
	return errs
}

func validateEncounter(e EncounterConfig) []string {
	var errs []string
	if e.Mile < 1 {
		errs = append(errs, fmt.Sprintf("encounter.mile must be >= 1, got %d", e.Mile))
	}
	if e.Difficulty <= 0 {
		errs = append(errs, "encounter.difficulty must be > 0")
	}
	return errs
}

func validateRewards(r RewardsConfig) []string {
	var errs []string
	if r.BaseExperience < 0 || r.BaseGold < 0 || r.MileScaling < 0 || r.BossMultiplier < 0 || r.QualityMileShift < 0 || r.BossProcedural < 0 {
		errs = append(errs, "rewards values must be >= 0")
	}
	if !inUnit(r.DefeatFraction) {
		errs = append(errs, "rewards.defeat_fraction must be in [0, 1]")
	}
	if len(r.QualityWeights) != 5 || len(r.QualityMultipliers) != 5 {
		errs = append(errs, "rewards.quality_weights and quality_multipliers must list 5 tiers")
	}
	if r.StashSlots < 1 {
		errs = append(errs, "rewards.stash_slots must be >= 1")
	}
	return errs
}

func validateInspector(i InspectorConfig) []string {
	if !i.Enabled {
		return nil
	}
	if i.Port < 1 || i.Port > 65535 {
		return []string{fmt.Sprintf("inspector.port must be 1-65535, got %d", i.Port)}
	}
	return nil
}

// NewViper returns a Viper preloaded with defaults and environment overrides.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	return v
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result. An empty path uses defaults and
// environment only.
//
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}
	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", []string{"stderr"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "idlecombat")
	v.SetDefault("database.password", "idlecombat")
	v.SetDefault("database.name", "idlecombat")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("content.enemies", "content/enemies")
	v.SetDefault("content.heroes", "content/heroes")
	v.SetDefault("content.conditions", "content/conditions")
	v.SetDefault("content.items", "content/items")
	v.SetDefault("content.scripts", "content/scripts")

	v.SetDefault("combat.tick_interval", "500ms")
	v.SetDefault("combat.damage.miss_chance", 0.05)
	v.SetDefault("combat.damage.crit_chance", 0.1)
	v.SetDefault("combat.damage.crit_multiplier", 1.5)
	v.SetDefault("combat.damage.variance", 0.1)

	v.SetDefault("combat.threat.tank_multiplier", 2.0)
	v.SetDefault("combat.threat.dps_multiplier", 1.0)
	v.SetDefault("combat.threat.healer_multiplier", 0.5)
	v.SetDefault("combat.threat.heal_ratio", 0.5)
	v.SetDefault("combat.threat.decay_per_second", 0.01)
	v.SetDefault("combat.threat.target_switch_ratio", 1.1)
	v.SetDefault("combat.threat.taunt_bonus", 50)

	v.SetDefault("combat.boss.phase2_at", 0.5)
	v.SetDefault("combat.boss.phase3_at", 0.25)
	v.SetDefault("combat.boss.enrage_at", 0.1)
	v.SetDefault("combat.boss.enrage_round", 50)
	v.SetDefault("combat.boss.enrage_attack_multiplier", 1.5)
	v.SetDefault("combat.boss.enrage_speed_multiplier", 1.25)
	v.SetDefault("combat.boss.aoe_multiplier", 0.6)
	v.SetDefault("combat.boss.cleave_targets", 2)
	v.SetDefault("combat.boss.shout_condition", "intimidated")
	v.SetDefault("combat.boss.shout_rounds", 2)
	v.SetDefault("combat.boss.adds_per_summon", 2)
	v.SetDefault("combat.boss.add_stat_fraction", 0.25)
	v.SetDefault("combat.boss.interrupt_penalty", 2)

	v.SetDefault("combat.adaptation.interval", "30s")
	v.SetDefault("combat.adaptation.attack_bonus", 0.05)
	v.SetDefault("combat.adaptation.max_level", 5)

	v.SetDefault("combat.hero.shield_fraction", 0.2)
	v.SetDefault("combat.hero.shield_cooldown", 4)
	v.SetDefault("combat.hero.heal_fraction", 0.25)
	v.SetDefault("combat.hero.heal_threshold", 0.6)
	v.SetDefault("combat.hero.heal_cooldown", 2)
	v.SetDefault("combat.hero.interrupt_cooldown", 3)
	v.SetDefault("combat.hero.fallback.attack", 10)
	v.SetDefault("combat.hero.fallback.defense", 5)
	v.SetDefault("combat.hero.fallback.max_health", 100)
	v.SetDefault("combat.hero.fallback.speed", 10)

	v.SetDefault("encounter.enemy", "")
	v.SetDefault("encounter.mile", 1)
	v.SetDefault("encounter.difficulty", 1.0)

	v.SetDefault("rewards.base_experience", 10)
	v.SetDefault("rewards.base_gold", 5)
	v.SetDefault("rewards.mile_scaling", 0.1)
	v.SetDefault("rewards.boss_multiplier", 3.0)
	v.SetDefault("rewards.defeat_fraction", 0.25)
	v.SetDefault("rewards.quality_weights", []float64{60, 25, 10, 4, 1})
	v.SetDefault("rewards.quality_mile_shift", 0.05)
	v.SetDefault("rewards.quality_multipliers", []float64{1, 1.5, 2.25, 3.5, 5})
	v.SetDefault("rewards.boss_procedural", 1)
	v.SetDefault("rewards.stash_slots", 100)

	v.SetDefault("inspector.enabled", false)
	v.SetDefault("inspector.host", "127.0.0.1")
	v.SetDefault("inspector.port", 8089)

	v.SetDefault("scripting.instruction_limit", 100000)
}
