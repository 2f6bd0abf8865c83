package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/dgnsrekt/lector/internal/cache"
	"github.com/dgnsrekt/lector/internal/extract"
	"github.com/dgnsrekt/lector/internal/observability"
	"github.com/dgnsrekt/lector/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the document extraction server",
	Long: paragraph(fmt.Sprintf("\n%s an HTTP server that turns uploaded documents into plain text. Point %s at it to extract documents remotely.",
		keyword("Run"), keyword("lector --server"))),
	Example: paragraph("lector serve\nlector serve --addr 0.0.0.0:5000"),
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := extract.LoadServerConfig()
		if err != nil {
			return err
		}
		cfg.CacheDir = utils.ExpandPath(cfg.CacheDir)

		c, err := cache.New(cfg.CacheConfig())
		if err != nil {
			return fmt.Errorf("unable to open extraction cache: %w", err)
		}
		defer c.Close() //nolint:errcheck

		metrics := observability.NewMetrics("lector")
		x := extract.New(extract.WithCache(c), extract.WithMetrics(metrics))

		// The server owns the terminal, so it logs there.
		logger := log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			Prefix:          "serve",
		})
		if os.Getenv("LECTOR_DEBUG") != "" {
			logger.SetLevel(log.DebugLevel)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return extract.NewServer(cfg, x, metrics, logger).ListenAndServe(ctx)
	},
}

func init() {
	serveCmd.Flags().String("addr", extract.DefaultServerConfig().Addr, "address to listen on")
	serveCmd.Flags().Float64("rate-limit", extract.DefaultServerConfig().RateLimit, "requests per second, 0 disables limiting")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("server.rate_limit", serveCmd.Flags().Lookup("rate-limit"))
}
