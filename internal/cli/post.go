package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/soyeahso/replybot/internal/mention"
	"github.com/soyeahso/replybot/internal/responder"
	"github.com/spf13/cobra"
)

func newPostCmd() *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "post [text]",
		Short: "Publish a status update now",
		Long: "Publish text as a status update. With --subject, the text is written by the\n" +
			"language model from the schedule prompt instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			if text == "" && subject == "" {
				return fmt.Errorf("give the text to post or --subject")
			}

			cfg, err := loadValidConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			b, err := openBot(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()
			disconnect, err := b.connect(ctx)
			if err != nil {
				return err
			}
			defer disconnect()

			if subject != "" {
				prompt := responder.SubjectPrompt(cfg.Schedule.Prompt, subject)
				posted, err := b.orchestrator(nil).PostAbout(ctx, prompt, subject)
				b.hooks.Wait()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", posted.ID, posted.Text)
				return nil
			}

			posted, err := b.publisher.PostUpdate(ctx, text)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", posted.ID, posted.Text)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "write the update about this subject")
	return cmd
}

func newAskCmd() *cobra.Command {
	var instructions string

	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send one prompt to the language model and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if instructions == "" {
				instructions = cfg.Completion.Instructions
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			completer, err := newCompleter(ctx, cfg)
			if err != nil {
				return err
			}

			reply, err := completer.Complete(ctx, instructions, nil, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}

	cmd.Flags().StringVar(&instructions, "instructions", "", "override completion.instructions")
	return cmd
}

func newReplyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reply <post-id>",
		Short: "Answer one post on X as if it had mentioned the bot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig()
			if err != nil {
				return err
			}
			if cfg.Platform.Kind != "x" {
				return fmt.Errorf("reply looks posts up on X; platform is %s", cfg.Platform.Kind)
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			b, err := openBot(ctx, cfg)
			if err != nil {
				return err
			}
			defer b.Close()

			m, err := b.x.GetPost(ctx, args[0])
			if err != nil {
				return err
			}
			// No cursor store: a manual reply must not move the saved cursor.
			res := b.orchestrator(nil).HandleMention(ctx, mention.ModePoll, m)
			b.hooks.Wait()
			if res.Err != nil {
				return fmt.Errorf("%s: %w", res.Outcome, res.Err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", res.Outcome, res.Published.ID, res.Reply)
			return nil
		},
	}
}
