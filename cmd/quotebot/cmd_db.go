package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"quotebot/internal/config"
	"quotebot/internal/queue"
	"quotebot/internal/storage"
	logx "quotebot/pkg/logx"
)

func newDBCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the item queue",
	}
	cmd.AddCommand(
		newDBInitCmd(opts),
		newDBImportCmd(opts),
		newDBAddCmd(opts),
		newDBListCmd(opts),
		newDBPostsCmd(opts),
	)
	return cmd
}

func newDBInitCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(cfg *config.Config, _ storage.Store, _ logx.Logger) error {
				fmt.Fprintf(cmd.OutOrStdout(), "schema ready (%s)\n", cfg.Storage.Driver)
				return nil
			})
		},
	}
}

func newDBImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Append one item per line of FILE",
		Long: `Append one item per line of FILE to the back of the queue, in file order.

Blank lines are ignored. Lines longer than queue.max_length characters are
skipped with a warning.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return opts.withStore(cmd.Context(), func(cfg *config.Config, st storage.Store, log logx.Logger) error {
				res, err := queue.Import(cmd.Context(), st, f, cfg.Queue.MaxLength, log.With(logx.String("comp", "import")))
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %d items (%d blank lines, %d skipped)\n", res.Added, res.Blank, len(res.Skipped))
				return nil
			})
		},
	}
}

func newDBAddCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add TEXT",
		Short: "Append one item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))
			if text == "" {
				return fmt.Errorf("item text is empty")
			}
			return opts.withStore(cmd.Context(), func(_ *config.Config, st storage.Store, _ logx.Logger) error {
				id, err := st.Append(cmd.Context(), text)
				if err != nil {
					return err
				}
				n, err := st.Length(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "added item %d at position %d\n", id, n)
				return nil
			})
		},
	}
}

func newDBListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the queue in order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(_ *config.Config, st storage.Store, _ logx.Logger) error {
				entries, err := st.List(cmd.Context())
				if err != nil {
					return err
				}
				rows := make([][]string, len(entries))
				for i, e := range entries {
					rows[i] = []string{strconv.Itoa(e.Position), strconv.FormatInt(e.Item.ID, 10), truncate(e.Item.Content, 60)}
				}
				printTable(cmd.OutOrStdout(), []string{"POS", "ID", "CONTENT"}, rows)
				return nil
			})
		},
	}
}

func newDBPostsCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "Print recent posts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withStore(cmd.Context(), func(_ *config.Config, st storage.Store, _ logx.Logger) error {
				posts, err := st.Posts(cmd.Context(), limit)
				if err != nil {
					return err
				}
				rows := make([][]string, len(posts))
				for i, p := range posts {
					rows[i] = []string{
						p.PostedAt.Format(time.RFC3339),
						p.ExternalID,
						strconv.FormatInt(p.ItemID, 10),
						truncate(p.Content, 50),
					}
				}
				printTable(cmd.OutOrStdout(), []string{"POSTED_AT", "EXTERNAL_ID", "ITEM", "CONTENT"}, rows)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of posts")
	return cmd
}
