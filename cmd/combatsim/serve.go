package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/idlecombat/internal/engine"
	"github.com/cory-johannsen/idlecombat/internal/gameserver"
	"github.com/cory-johannsen/idlecombat/internal/inspector"
	"github.com/cory-johannsen/idlecombat/internal/observability"
	"github.com/cory-johannsen/idlecombat/internal/server"
	"github.com/cory-johannsen/idlecombat/internal/storage/postgres"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		seed    uint64
		persist bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Fight continuously on the combat tick until interrupted",
		Long: `Serve advances combat once per combat.tick_interval. When an enemy is
configured a new fight starts as soon as the previous one ends. With
inspector.enabled the HTTP inspector exposes the live session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), seed, persist)
		},
	}
	addEncounterFlags(cmd)
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed; 0 draws from crypto/rand")
	cmd.Flags().BoolVar(&persist, "persist", false, "record combat reports and hero progress in PostgreSQL")
	return cmd
}

func (a *app) serve(ctx context.Context, seed uint64, persist bool) error {
	content, err := engine.LoadContent(a.cfg.Content, a.cfg.Encounter, a.cfg.Combat.Boss.ShoutCondition, a.logger)
	if err != nil {
		return err
	}
	eng, err := engine.New(a.cfg, content, source(seed), a.logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	lc := server.NewLifecycle(observability.Component(a.logger, "lifecycle"))

	// The recorder must stop after the ticker.
	var (
		rec  *gameserver.ReportRecorder
		pool *postgres.Pool
	)
	if persist {
		pool, err = postgres.NewPool(ctx, a.cfg.Database)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer pool.Close()
		rec = gameserver.NewReportRecorder(
			postgres.NewCombatReportRepository(pool.DB()),
			postgres.NewHeroProgressRepository(pool.DB()),
			reportQueue, observability.Component(a.logger, "recorder"),
		)
		eng.Bus.Subscribe(rec.Handle)
		lc.Add("recorder", server.NewLoopService(rec.Run))
	}

	ticker := gameserver.NewTicker(a.cfg.Combat.TickInterval)
	if enemy := a.cfg.Encounter.Enemy; enemy != "" {
		ticker.Register("encounter", eng.AutoEncounter(enemy))
	}
	ticker.Register("combat", gameserver.CombatTick(eng.Orchestrator, func(err error) {
		a.logger.Error("combat tick", zap.Error(err))
	}))
	lc.Add("ticker", server.NewLoopService(ticker.Run))

	if a.cfg.Inspector.Enabled {
		insp := inspector.New(a.cfg.Inspector, eng.Orchestrator, observability.Component(a.logger, "inspector"))
		if pool != nil {
			insp.AddCheck("database", pool.Health)
		}
		lc.Add("inspector", insp)
		a.logger.Info("inspector enabled", zap.String("addr", a.cfg.Inspector.Addr()))
	}

	if err := lc.Run(ctx); err != nil {
		return err
	}
	if eng.Orchestrator.IsActive() {
		_ = eng.Orchestrator.Abort(context.WithoutCancel(ctx))
	}
	if rec != nil {
		rec.Drain(context.WithoutCancel(ctx))
	}
	return nil
}
