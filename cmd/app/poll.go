package main

import (
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pix-subscription/internal/config"
	"pix-subscription/internal/infra/logging"
	"pix-subscription/internal/infra/poller"
)

func pollCmd() *cobra.Command {
	var (
		baseURL  string
		token    string
		interval time.Duration
		window   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "poll <transaction-id>",
		Short: "Poll a transaction's status until it is paid, closed or the window elapses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(config.LogConfig{Level: "info", Format: "console"})
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p := poller.New(poller.NewHTTPChecker(baseURL, token, 10*time.Second), interval, window, logger)
			st, err := p.Run(ctx, args[0])
			if st != nil {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if encErr := enc.Encode(st); encErr != nil {
					return encErr
				}
			}
			if errors.Is(err, poller.ErrWindowElapsed) {
				logger.Warn().Str("transaction_id", args[0]).Dur("window", window).Msg("stopped polling without a final status")
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&baseURL, "base-url", "http://localhost:8080", "service base URL")
	cmd.Flags().StringVar(&token, "token", "", "check token returned by checkout")
	cmd.Flags().DurationVar(&interval, "interval", 10*time.Second, "time between checks")
	cmd.Flags().DurationVar(&window, "window", 15*time.Minute, "give up after this long")
	return cmd
}
