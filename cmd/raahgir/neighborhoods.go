package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parsamap/raahgir/internal/crawler"
	"github.com/parsamap/raahgir/internal/raah"
)

func neighborhoodsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "neighborhoods",
		Short: "List the neighborhoods covered by a polygon",
		Long: `Sample points inside the polygon and reverse-geocode each one,
printing the distinct neighborhood names found.`,
		RunE: runNeighborhoods,
	}

	cmd.Flags().StringP("polygon", "p", "", "Polygon ring as lon,lat|lon,lat|... (required)")
	cmd.Flags().IntP("samples", "n", 10, "Number of sample points")
	_ = cmd.MarkFlagRequired("polygon")
	return cmd
}

func runNeighborhoods(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	polygonFlag, _ := cmd.Flags().GetString("polygon")
	ring, err := parsePolygon(polygonFlag)
	if err != nil {
		return err
	}
	samples, _ := cmd.Flags().GetInt("samples")

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	client, err := raah.New(a.clientConfig())
	if err != nil {
		return err
	}

	names, err := crawler.Neighborhoods(ctx, client, ring, samples, a.log)
	if err != nil {
		return err
	}
	for _, name := range names {
		fmt.Fprintln(cmd.OutOrStdout(), name)
	}
	return nil
}
