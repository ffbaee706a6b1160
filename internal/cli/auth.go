package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/soyeahso/replybot/internal/callback"
	"github.com/soyeahso/replybot/internal/platform/x"
	"github.com/spf13/cobra"
)

func newAuthCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize replybot to post on X and save the token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Platform.X.ClientID == "" {
				return fmt.Errorf("platform.x.clientId is required for auth")
			}
			if err := paths.EnsureDirs(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			var src callback.Source
			if cfg.Callback.RemoteURL != "" {
				src = callback.NewRemote(cfg.Callback.RemoteURL)
			} else {
				srv := callback.NewServer(cfg.Callback.Addr, log)
				addr, err := srv.Listen()
				if err != nil {
					return err
				}
				log.Info().Str("addr", addr).Msg("waiting for the authorization redirect")
				serveCtx, stopServe := context.WithCancel(ctx)
				served := make(chan error, 1)
				go func() { served <- srv.Serve(serveCtx) }()
				defer func() {
					stopServe()
					<-served
				}()
				src = srv
			}

			tokenFile := paths.TokenFile(&cfg)
			flow := x.NewOAuth(cfg.Platform.X, tokenFile, log)
			pending := flow.Begin()
			fmt.Fprintf(cmd.OutOrStdout(), "Open this URL to authorize replybot:\n\n  %s\n\n", pending.URL)

			got, err := callback.Await(ctx, src, time.Second)
			if err != nil {
				return fmt.Errorf("waiting for authorization: %w", err)
			}
			if _, err := flow.Exchange(ctx, pending, got.Code, got.State); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", tokenFile)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "how long to wait for the redirect")
	return cmd
}

func newCallbackCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "callback",
		Short: "Run the OAuth redirect receiver",
	}
	cmd.AddCommand(newCallbackServeCmd())
	return cmd
}

func newCallbackServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Receive authorization redirects and hand them out on /get",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Callback.Addr
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := callback.NewServer(addr, log)
			bound, err := srv.Listen()
			if err != nil {
				return err
			}
			log.Info().Str("addr", bound).Msg("callback receiver listening")
			return srv.Serve(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default callback.addr)")
	return cmd
}
