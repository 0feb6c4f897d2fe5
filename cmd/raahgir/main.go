package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "raahgir",
		Short: "Raahgir - place collection from the Raah map service",
		Long: `Raahgir collects places from the Raah map service, either by walking
a city's paginated category listing or by searching a polygon from
multiple generated camera points, and enriches every found place with
its detail record.

Environment variables (RAAHGIR_ prefix, .env supported):
  RAAHGIR_STORAGE       Storage backend: sqlite, postgres, ndjson, csv (default: sqlite)
  RAAHGIR_STORAGE_DSN   Backend DSN or file path (default: raahgir.db)
  RAAHGIR_FINGERPRINT   TLS fingerprint profile: chrome, firefox, go (default: chrome)
  RAAHGIR_METRICS_PORT  Prometheus metrics port, 0 disables (default: 0)
  RAAHGIR_LOG_LEVEL     debug, info, warn, error (default: info)`,
		Version: version,
	}

	rootCmd.AddCommand(crawlCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(categoriesCmd())
	rootCmd.AddCommand(neighborhoodsCmd())
	rootCmd.AddCommand(reportCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
