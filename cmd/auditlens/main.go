// Command auditlens analyzes technician audit workbooks from the terminal
// and serves the same analysis over HTTP and MCP.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hazyhaar/auditlens/pkg/audit"
	"github.com/hazyhaar/auditlens/pkg/rules"
	"github.com/hazyhaar/auditlens/pkg/session"
	"github.com/spf13/cobra"
)

var version = "0.1.0-dev"

var globals struct {
	rulesPath  string
	logLevel   string
	configPath string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	rootCmd := &cobra.Command{
		Use:           "auditlens",
		Short:         "Classify and aggregate technician audit workbooks",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globals.rulesPath, "rules", "", "rules YAML file (default: embedded rules)")
	pf.StringVar(&globals.logLevel, "log-level", "info", "debug, info, warn or error")
	pf.StringVar(&globals.configPath, "config", "config.yaml", "server config file")

	rootCmd.AddCommand(
		newServeCmd(),
		newAnalyzeCmd(),
		newStockCmd(),
		newExportCmd(),
		newQueryCmd(),
		newMergeCmd(),
		newCompareCmd(),
		newConvertCmd(),
		newWatchCmd(),
		newHistoryCmd(),
		newRulesCmd(),
		newCallCmd(),
	)

	return rootCmd.ExecuteContext(ctx)
}

func newLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(globals.logLevel)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadRules compiles the rules file at path, or the embedded rules.
func loadRules(path string) (*rules.Compiled, error) {
	r, err := rules.LoadOrDefault(path)
	if err != nil {
		return nil, err
	}
	return rules.Compile(r)
}

// loadDataset reads one workbook with the effective rules.
func loadDataset(path string, logger *slog.Logger) (*audit.Dataset, session.Identity, error) {
	c, err := loadRules(globals.rulesPath)
	if err != nil {
		return nil, session.Identity{}, err
	}
	id, err := session.IdentityOf(path)
	if err != nil {
		return nil, session.Identity{}, err
	}
	d, err := audit.LoadFile(path, c, logger)
	if err != nil {
		return nil, session.Identity{}, err
	}
	logger.Info("workbook loaded", "file", id.Name, "records", len(d.Records), "sheets", len(d.Sheets))
	return d, id, nil
}

// recordRun appends the run to the history database named in the config.
func recordRun(ctx context.Context, id session.Identity, d *audit.Dataset, logger *slog.Logger) error {
	cfg, err := loadConfig(globals.configPath, logger)
	if err != nil {
		return err
	}
	h, err := session.OpenHistory(cfg.HistoryDB)
	if err != nil {
		return err
	}
	defer h.Close()
	return h.Record(ctx, session.NewRun(id, d))
}
