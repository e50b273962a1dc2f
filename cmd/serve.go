package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/census-cli/internal/server"
)

var (
	serveAddr        string
	serveWarm        bool
	serveNoNarrative bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the cached census result over HTTP",
	Example: `  census serve
  census serve --addr :8080 --warm`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := requireConfig()
		if err != nil {
			return err
		}
		a, err := newApp(c, !serveNoNarrative)
		if err != nil {
			return err
		}
		results := a.newCache(c.CacheTTL())

		addr := c.Addr()
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		srv := server.New(results, server.Options{
			Addr:        addr,
			CORSOrigins: c.CORSOrigins,
			Logger:      log.With("component", "server").Slog(),
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if serveWarm {
			go func() {
				if _, err := results.GetOrCompute(context.WithoutCancel(ctx)); err != nil {
					log.Warn("cache warm-up failed", "err", err)
				}
			}()
		}
		log.Info("starting census api", "addr", addr, "docs", "/api/docs", "health", "/health")
		return srv.ListenAndServe(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default server_addr, else :port)")
	serveCmd.Flags().BoolVar(&serveWarm, "warm", false, "compute the first result at startup")
	serveCmd.Flags().BoolVar(&serveNoNarrative, "no-narrative", false, "skip the language model write-up")
}
