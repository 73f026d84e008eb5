// =============================================================================
// Faktury Export - Serve Command
// =============================================================================
//
// This file defines the 'serve' command, which runs the HTTP API used by the
// browser front end.
//
// COMMAND USAGE:
//   faktury serve [--addr :3001]
//
// The server stops gracefully on SIGINT or SIGTERM.
//
// =============================================================================

package cmd

import (
	"os/signal"
	"syscall"

	"github.com/dpeterek-muni/faktury-export/internal/fakturoid"
	"github.com/dpeterek-muni/faktury-export/internal/logger"
	"github.com/dpeterek-muni/faktury-export/internal/server"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logger.WithComponent("server")
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		if fakturoid.ServerCredentials(cfg.Fakturoid).Complete() {
			log.Info().Str("slug", cfg.Fakturoid.Slug).Msg("Using server-held Fakturoid credentials")
		} else {
			log.Info().Msg("No server-held Fakturoid credentials, clients must supply their own")
		}

		srv, err := server.New(cfg, log, server.Options{})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default from config or PORT)")
}
