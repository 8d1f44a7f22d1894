package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"quotebot/internal/queue"
	"quotebot/pkg/randx"
)

func newShuffleCmd() *cobra.Command {
	var seed int64
	cmd := &cobra.Command{
		Use:   "shuffle FILE",
		Short: "Shuffle the lines of a raw item file in place",
		Long: `Shuffle the lines of FILE in place before importing it.

Blank lines are dropped. The file is rewritten atomically.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			n, err := queue.ShuffleFile(args[0], randx.New(seed))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "shuffled %d lines\n", n)
			return nil
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "random seed (0 picks one)")
	return cmd
}
