package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"quotebot/internal/app"
	"quotebot/internal/config"
	"quotebot/internal/storage"
	logx "quotebot/pkg/logx"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "quotebot",
		Short:         "quotebot posts queued items on a daily schedule",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", config.DefaultConfigPath, "path to config file (yaml or json)")

	cmd.AddCommand(
		newRunCmd(opts),
		newDBCmd(opts),
		newShuffleCmd(),
		newScheduleCmd(opts),
	)
	return cmd
}

// loadConfig parses the config file without the daemon's full validation so
// queue maintenance works before a publisher is configured.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.NewConfigManager(o.configPath).Parse()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func cliLogger(cfg *config.Config) logx.Logger {
	return logx.NewConsole(cfg.Logging.Level).With(logx.String("comp", "cli"))
}

// withStore opens the configured store, runs fn and closes the store.
func (o *rootOptions) withStore(ctx context.Context, fn func(cfg *config.Config, st storage.Store, log logx.Logger) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	log := cliLogger(cfg)
	st, err := app.OpenStore(ctx, cfg, log.With(logx.String("comp", "storage")))
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(cfg, st, log)
}

func printTable(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, r := range rows {
		fmt.Fprintln(tw, strings.Join(r, "\t"))
	}
	_ = tw.Flush()
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
