package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"quotebot/internal/app"
	"quotebot/internal/schedule"
	"quotebot/pkg/randx"
)

func newScheduleCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Inspect posting schedules",
	}
	cmd.AddCommand(newSchedulePreviewCmd(opts))
	return cmd
}

func newSchedulePreviewCmd(opts *rootOptions) *cobra.Command {
	var (
		at   string
		seed int64
	)
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Print the schedule the daemon would generate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			sc, loc, err := app.ScheduleConfig(cfg)
			if err != nil {
				return err
			}

			now := time.Now()
			if at != "" {
				if now, err = time.Parse(time.RFC3339, at); err != nil {
					return fmt.Errorf("--at: %w", err)
				}
			}
			now = now.In(loc)
			if seed == 0 {
				seed = time.Now().UnixNano()
			}

			sch, err := schedule.NewGenerator(randx.New(seed), cliLogger(cfg)).Generate(now, sc)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s schedule computed at %s\n", sc.Mode(), now.Format("2006-01-02 15:04:05 MST"))
			if sch.Empty() {
				fmt.Fprintln(out, "no posting times left")
				return nil
			}
			for _, t := range sch.Times {
				fmt.Fprintln(out, t.Format("2006-01-02 15:04:05 MST"))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "generate as if the current time were this RFC3339 instant")
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	return cmd
}
