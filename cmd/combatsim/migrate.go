package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/idlecombat/internal/storage/postgres"
)

func newMigrateCmd(a *app) *cobra.Command {
	var (
		dir   string
		down  bool
		steps int
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the combat report and hero progress schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start := time.Now()
			res, err := postgres.Migrate(a.cfg.Database.DSN(), dir, down, steps)
			if err != nil {
				return err
			}
			a.logger.Info("migration finished",
				zap.Uint("version", res.Version),
				zap.Bool("dirty", res.Dirty),
				zap.Bool("changed", res.Changed),
				zap.Duration("elapsed", time.Since(start)),
			)
			if !res.Changed {
				fmt.Fprintf(cmd.OutOrStdout(), "no changes (version=%d dirty=%v)\n", res.Version, res.Dirty)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrated to version=%d dirty=%v\n", res.Version, res.Dirty)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "source", "migrations", "directory holding the migration files")
	cmd.Flags().BoolVar(&down, "down", false, "revert instead of apply")
	cmd.Flags().IntVar(&steps, "steps", 0, "number of migrations to move; 0 moves all")
	return cmd
}
