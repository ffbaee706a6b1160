package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/soyeahso/replybot/internal/mention"
	"github.com/soyeahso/replybot/internal/responder"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		strategy   string
		once       bool
		noSchedule bool
		since      string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start answering mentions and posting scheduled updates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if strategy != "" {
				cfg.Mentions.Strategy = strategy
			}
			if noSchedule {
				cfg.Schedule.Enabled = false
			}
			if err := validate(cfg); err != nil {
				return err
			}
			mode, err := mention.ParseMode(cfg.Mentions.Strategy)
			if err != nil {
				return err
			}

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			b, err := openBot(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			primary, fallback, err := b.sources(mode)
			if err != nil {
				return err
			}
			opts := []responder.Option{}
			if b.cursors != nil {
				opts = append(opts, responder.WithCursorStore(b.cursors))
			}
			if fallback != nil {
				opts = append(opts, responder.WithFallback(fallback))
			}
			orch := b.orchestrator(primary, opts...)
			if since != "" {
				orch.SetCursor(since)
			}

			if once {
				results, err := orch.RunOnce(ctx)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, r := range results {
					line := fmt.Sprintf("%s\t%s", r.MentionID, r.Outcome)
					if r.Err != nil {
						line += "\t" + r.Err.Error()
					}
					fmt.Fprintln(out, line)
				}
				fmt.Fprintf(out, "cursor %s\n", orch.Cursor())
				return nil
			}
			return orch.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&strategy, "strategy", "", "override mentions.strategy (poll, stream)")
	cmd.Flags().BoolVar(&once, "once", false, "handle a single batch of mentions and exit")
	cmd.Flags().BoolVar(&noSchedule, "no-schedule", false, "do not post scheduled updates")
	cmd.Flags().StringVar(&since, "since", "", "ignore mentions at or before this id")

	return cmd
}
