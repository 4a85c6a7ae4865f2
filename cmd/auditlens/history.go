package main

import (
	"github.com/hazyhaar/auditlens/pkg/render"
	"github.com/hazyhaar/auditlens/pkg/session"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded analysis runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(globals.configPath, newLogger())
			if err != nil {
				return err
			}
			h, err := session.OpenHistory(cfg.HistoryDB)
			if err != nil {
				return err
			}
			defer h.Close()

			runs, err := h.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			render.Runs(cmd.OutOrStdout(), runs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "maximum number of runs")
	return cmd
}

func newRulesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "Print the effective rules as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := loadRules(globals.rulesPath)
			if err != nil {
				return err
			}
			data, err := c.Rules.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
