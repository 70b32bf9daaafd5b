package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/idlecombat/internal/engine"
	"github.com/cory-johannsen/idlecombat/internal/game/reward"
	"github.com/cory-johannsen/idlecombat/internal/gameserver"
	"github.com/cory-johannsen/idlecombat/internal/storage/postgres"
)

// reportQueue bounds the ended-combat reports awaiting a database write.
const reportQueue = 16

type runOptions struct {
	seed     uint64
	maxTurns int
	persist  bool
	quiet    bool
}

func newRunCmd(a *app) *cobra.Command {
	var opts runOptions
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Fight one encounter to the end and print its combat log",
		Long: `Run loads the content tree, fights the configured enemy with the whole
party and prints one line per combat event followed by the rewards.

A non-zero --seed makes the fight reproducible.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
	addEncounterFlags(cmd)
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "random seed; 0 draws from crypto/rand")
	cmd.Flags().IntVar(&opts.maxTurns, "max-turns", 2000, "abort the fight after this many turns; 0 is unbounded")
	cmd.Flags().BoolVar(&opts.persist, "persist", false, "record the combat report and hero progress in PostgreSQL")
	cmd.Flags().BoolVar(&opts.quiet, "quiet", false, "print only the summary")
	return cmd
}

func (a *app) run(ctx context.Context, out io.Writer, opts runOptions) error {
	enemy := a.cfg.Encounter.Enemy
	if enemy == "" {
		return errors.New("no enemy: pass --enemy or set encounter.enemy")
	}

	start := time.Now()
	content, err := engine.LoadContent(a.cfg.Content, a.cfg.Encounter, a.cfg.Combat.Boss.ShoutCondition, a.logger)
	if err != nil {
		return err
	}
	eng, err := engine.New(a.cfg, content, source(opts.seed), a.logger)
	if err != nil {
		return err
	}
	defer eng.Close()
	a.logger.Info("engine ready", zap.Duration("elapsed", time.Since(start)))

	if !opts.quiet {
		eng.Bus.Subscribe(func(ev gameserver.Event) { fmt.Fprintln(out, ev) })
	}

	var rec *gameserver.ReportRecorder
	if opts.persist {
		pool, err := postgres.NewPool(ctx, a.cfg.Database)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()
		rec = gameserver.NewReportRecorder(
			postgres.NewCombatReportRepository(pool.DB()),
			postgres.NewHeroProgressRepository(pool.DB()),
			reportQueue, a.logger,
		)
		eng.Bus.Subscribe(rec.Handle)
	}

	res, runErr := eng.Run(ctx, enemy, opts.maxTurns)
	if rec != nil {
		rec.Drain(context.WithoutCancel(ctx))
	}
	if runErr != nil {
		return runErr
	}
	printSummary(out, res, eng)
	return nil
}

func printSummary(out io.Writer, res *reward.Result, eng *engine.Engine) {
	outcome := "defeat"
	if res.Victory {
		outcome = "victory"
	}
	fmt.Fprintf(out, "\n%s: %d xp, %d gold\n", outcome, res.Experience, res.Gold)
	for _, item := range res.Loot {
		fmt.Fprintf(out, "  loot: %s (%s) x%d\n", item.Name, item.Quality, max(item.Quantity, 1))
	}
	for _, m := range eng.Roster.Heroes() {
		fmt.Fprintf(out, "  %-12s %-6s xp=%d gold=%d\n", m.Name, m.Role, m.Experience, m.Gold)
	}
}
