package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parsamap/raahgir/internal/crawler"
)

func searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search",
		Short: "Search a polygon from multiple generated camera points",
		Long: `Generate search points inside the polygon, run a bundle search from
each one, dedupe the found places, and enrich every distinct place with
its detail record.`,
		RunE: runSearch,
	}

	cmd.Flags().StringP("category", "c", "cafe", "Category slug to search")
	cmd.Flags().StringP("polygon", "p", "", "Polygon ring as lon,lat|lon,lat|... or @file.geojson (required)")
	cmd.Flags().IntP("points", "n", 10, "Number of search points to generate")
	cmd.Flags().Float64("min-spacing-km", 0.5, "Minimum spacing between search points in km")
	cmd.Flags().Float64("perimeter-step", 0, "Place cameras along the perimeter at this step in degrees instead of sampling the area")
	cmd.Flags().Float64("interior-spacing", 0, "Interior grid spacing in degrees for perimeter mode, 0 for perimeter only")
	_ = cmd.MarkFlagRequired("polygon")
	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	polygonFlag, _ := cmd.Flags().GetString("polygon")
	ring, err := parsePolygon(polygonFlag)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	category, _ := cmd.Flags().GetString("category")
	points, _ := cmd.Flags().GetInt("points")
	minSpacing, _ := cmd.Flags().GetFloat64("min-spacing-km")

	m := crawler.NewManager(crawler.ManagerConfig{
		Client: crawler.DefaultClientFactory(a.clientConfig()),
		Store:  a.store,
		Logger: a.log,
	})
	s, err := m.Start(category)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		s.Cancel()
	}()

	perimeterStep, _ := cmd.Flags().GetFloat64("perimeter-step")
	if perimeterStep > 0 {
		interiorSpacing, _ := cmd.Flags().GetFloat64("interior-spacing")
		err = s.SearchPerimeter(ring, perimeterStep, interiorSpacing)
	} else {
		err = s.SearchPolygon(ring, points, minSpacing)
	}
	if err != nil {
		return err
	}

	return printSummary(cmd, s)
}
