package main

import (
	"fmt"
	"time"

	"github.com/hazyhaar/auditlens/pkg/audit"
	"github.com/hazyhaar/auditlens/pkg/render"
	"github.com/hazyhaar/auditlens/pkg/report"
	"github.com/hazyhaar/auditlens/pkg/session"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	var (
		flags    reportFlags
		debounce time.Duration
		record   bool
	)

	cmd := &cobra.Command{
		Use:   "watch <file.xlsx>",
		Short: "Re-run the analysis whenever the workbook is replaced",
		Long:  "Re-analyzes when the file's name or size changes, like a re-upload.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			opts, err := flags.options()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			w := cmd.OutOrStdout()

			watcher := session.NewWatcher(args[0], debounce, logger)
			return watcher.Run(ctx, func(id session.Identity) error {
				d, _, err := loadDataset(args[0], logger)
				if err != nil {
					return err
				}
				if record {
					if err := recordRun(ctx, id, d, logger); err != nil {
						logger.Warn("history not recorded", "error", err)
					}
				}
				render.Title(w, fmt.Sprintf("%s (%d bytes) %s", id.Name, id.Size, time.Now().Format("15:04:05")))
				render.Report(w, report.Build(d, audit.NewClassifier(d.Rules), opts))
				return nil
			})
		},
	}

	flags.register(cmd)
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "wait for writes to settle")
	cmd.Flags().BoolVar(&record, "record", false, "record each run in the history database")
	return cmd
}
