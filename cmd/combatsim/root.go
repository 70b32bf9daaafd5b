package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/cory-johannsen/idlecombat/internal/config"
	"github.com/cory-johannsen/idlecombat/internal/game/dice"
	"github.com/cory-johannsen/idlecombat/internal/observability"
)

// flagKeys maps command line flags onto the configuration keys they override.
var flagKeys = map[string]string{
	"log-level":  "logging.level",
	"enemy":      "encounter.enemy",
	"mile":       "encounter.mile",
	"difficulty": "encounter.difficulty",
}

// app is the state shared by every subcommand once configuration is loaded.
type app struct {
	configPath string
	v          *viper.Viper
	cfg        config.Config
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.NewViper()}
	root := &cobra.Command{
		Use:          "combatsim",
		Short:        "Fight, validate and serve idle party combat",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to configuration file")
	root.PersistentFlags().String("log-level", "", "minimum log level (overrides logging.level)")

	root.AddCommand(newRunCmd(a), newValidateCmd(a), newServeCmd(a), newMigrateCmd(a))
	return root
}

// addEncounterFlags registers the flags that select and scale the enemy.
func addEncounterFlags(cmd *cobra.Command) {
	cmd.Flags().String("enemy", "", "enemy template to fight (overrides encounter.enemy)")
	cmd.Flags().Int("mile", 0, "progression mile rewards scale with (overrides encounter.mile)")
	cmd.Flags().Float64("difficulty", 0, "encounter difficulty (overrides encounter.difficulty)")
}

// load binds the executing command's flags, reads the configuration file
// and builds the logger.
func (a *app) load(cmd *cobra.Command) error {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := a.v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("binding --%s: %w", name, err)
			}
		}
	}
	if a.configPath != "" {
		a.v.SetConfigFile(a.configPath)
		if err := a.v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config file: %w", err)
		}
	}
	cfg, err := config.LoadFromViper(a.v)
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	a.cfg, a.logger = cfg, logger
	return nil
}

// source returns a seeded source for a non-zero seed, otherwise crypto/rand.
func source(seed uint64) dice.Source {
	if seed == 0 {
		return dice.NewCryptoSource()
	}
	return dice.NewSeededSource(seed)
}
