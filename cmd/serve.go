package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/lead-refinery/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		env, err := initRefinery(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := server.New(env.Pipeline, env.Store,
			server.WithMetrics(env.Metrics),
			server.WithCORSOrigins(cfg.Server.CORSOrigins),
			server.WithRateLimit(cfg.Server.RateLimit),
			server.WithRequestTimeout(time.Duration(cfg.Server.RequestTimeoutSecs)*time.Second),
			server.WithBatchConcurrency(cfg.Batch.Concurrency),
		)
		return srv.ListenAndServe(ctx, port)
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port (default server.port)")
	rootCmd.AddCommand(serveCmd)
}
