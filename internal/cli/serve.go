package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"reporag/internal/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve ingestion and queries over HTTP",
	Long: `Start an HTTP server exposing:
  POST /ingest                     {"repository": "..."}
  POST /collections/{name}/query   {"question": "...", "k": 5}
  GET  /collections
  GET  /healthz
  GET  /metrics`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	p, err := buildPipeline(cfg, GetRootDir(), buildOptions{}, mtr, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	handler := server.NewRouter(server.Deps{Pipeline: p.service, Metrics: mtr, Logger: logger})
	if err := server.ListenAndServe(cmd.Context(), addr, handler, logger); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}
