package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/soyeahso/replybot/internal/domain"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	var (
		from  string
		limit int
	)

	cmd := &cobra.Command{
		Use:   "history <author-id>",
		Short: "Show the recent conversation with an author",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var keep domain.TurnFilter
			switch from {
			case "":
			case "user":
				keep = domain.ByUser
			case "bot":
				keep = domain.ByBot
			default:
				return fmt.Errorf("--from must be user or bot, got %q", from)
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if limit <= 0 {
				limit = cfg.History.WindowSize
			}

			ctx := context.Background()
			b := &bot{cfg: cfg}
			if err := openHistory(ctx, cfg, b); err != nil {
				return err
			}
			defer b.Close()

			turns, err := b.history.Recent(ctx, args[0], limit)
			if err != nil {
				return err
			}
			if keep != nil {
				turns = domain.FilterTurns(turns, keep)
			}
			if len(turns) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "(no history)")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, t := range turns {
				who := "bot"
				if t.FromUser {
					who = "user"
				}
				ts := "-"
				if !t.Timestamp.IsZero() {
					ts = t.Timestamp.Local().Format(time.DateTime)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ts, who, t.MessageID, t.Text)
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "only turns written by user or bot")
	cmd.Flags().IntVar(&limit, "limit", 0, "how many turns (default history.windowSize)")
	return cmd
}
