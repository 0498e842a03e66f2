package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/statements-tracker/internal/app"
	"github.com/joseph-ayodele/statements-tracker/internal/common"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	ConfigFile string
	LogLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "statementctl",
		Short:         "Submit, inspect and export bank statements",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML config file (overrides STATEMENTS_CONFIG)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "debug|info|warn|error")

	cmd.AddCommand(newSubmitCommand(opts))
	cmd.AddCommand(newRetryCommand(opts))
	cmd.AddCommand(newShowCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	cmd.AddCommand(newParseCommand(opts))
	cmd.AddCommand(newDBHealthCommand(opts))
	return cmd
}

func (o *rootOptions) load() (*common.Config, error) {
	if o.ConfigFile != "" {
		if err := os.Setenv("STATEMENTS_CONFIG", o.ConfigFile); err != nil {
			return nil, err
		}
	}
	cfg, err := common.LoadConfig()
	if err != nil {
		return nil, err
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
	return cfg, nil
}

func (o *rootOptions) logger(cmd *cobra.Command, cfg *common.Config) *slog.Logger {
	return common.NewTextLogger(cmd.ErrOrStderr(), cfg.LogLevel)
}

// withApp loads config, builds the pipeline and hands it to fn.
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := o.load()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	a, err := app.Build(ctx, cfg, o.logger(cmd, cfg))
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
