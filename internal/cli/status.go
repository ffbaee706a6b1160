package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/soyeahso/replybot/internal/config"
	"github.com/soyeahso/replybot/internal/platform/x"
	"github.com/soyeahso/replybot/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show replybot status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("replybot %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Printf("Config:  %s\n", paths.Config)
			fmt.Printf("Data:    %s\n", paths.Data)
			fmt.Printf("Logs:    %s\n", paths.Logs)
			fmt.Println()

			cfg, err := config.Load(paths.Config)
			if err != nil {
				fmt.Printf("Config:  error loading: %v\n", err)
				return nil
			}
			if _, err := os.Stat(paths.Config); os.IsNotExist(err) {
				fmt.Println("Config:  not found (using defaults)")
			}

			c := cfg.Completion
			fmt.Printf("LLM:     provider=%s model=%s retries=%d\n", c.Provider, c.Model, c.Retries)

			switch cfg.Platform.Kind {
			case "irc":
				if irc := cfg.Platform.IRC; irc != nil {
					fmt.Printf("IRC:     server=%s nick=%s channels=%s tls=%v\n",
						irc.Server, irc.Nick, strings.Join(irc.Channels, ","), irc.UseTLS)
				} else {
					fmt.Println("IRC:     (not configured)")
				}
			default:
				tokenFile := paths.TokenFile(&cfg)
				token := "missing (run replybot auth)"
				if tok, err := x.TokenFromFile(tokenFile); err == nil {
					token = "present"
					if !tok.Expiry.IsZero() {
						token += ", expires " + tok.Expiry.Local().Format("2006-01-02 15:04")
					}
				}
				fmt.Printf("X:       account=%s handle=%s token=%s\n", cfg.Platform.X.AccountID, cfg.Platform.X.Handle, token)
			}

			m := cfg.Mentions
			fmt.Printf("Mentions: strategy=%s interval=%ds fallback=%v\n", m.Strategy, m.PollIntervalSeconds, m.FallbackToPolling)
			fmt.Printf("History: store=%s window=%d\n", cfg.History.Store, cfg.History.WindowSize)

			if cfg.History.Store != "memory" {
				b := &bot{cfg: cfg}
				if err := openHistory(context.Background(), cfg, b); err != nil {
					fmt.Printf("Cursor:  unavailable: %v\n", err)
				} else {
					cursor, err := b.cursors.Load(context.Background())
					b.Close()
					switch {
					case err != nil:
						fmt.Printf("Cursor:  unavailable: %v\n", err)
					case cursor == "":
						fmt.Println("Cursor:  (none)")
					default:
						fmt.Printf("Cursor:  %s\n", cursor)
					}
				}
			}

			if cfg.Schedule.Enabled {
				fmt.Printf("Schedule: every %dm, %d subject(s)\n", cfg.Schedule.IntervalMinutes, len(cfg.Schedule.Subjects))
			} else {
				fmt.Println("Schedule: off")
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Printf("\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}
