package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/idlecombat/internal/engine"
	"github.com/cory-johannsen/idlecombat/internal/game/dice"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Load configuration, content and scripts and report problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.validate(cmd.OutOrStdout())
		},
	}
}

func (a *app) validate(out io.Writer) error {
	content, err := engine.LoadContent(a.cfg.Content, a.cfg.Encounter, a.cfg.Combat.Boss.ShoutCondition, a.logger)
	if err != nil {
		return err
	}
	eng, err := engine.New(a.cfg, content, dice.NewSeededSource(1), a.logger)
	if err != nil {
		return err
	}
	eng.Close()

	fmt.Fprintf(out, "enemies:    %d\n", len(content.Enemies.All()))
	fmt.Fprintf(out, "heroes:     %d\n", len(content.Heroes))
	fmt.Fprintf(out, "conditions: %d\n", len(content.Conditions.All()))
	fmt.Fprintf(out, "items:      %d\n", len(content.Items.AllItems()))
	fmt.Fprintln(out, "ok")
	return nil
}
