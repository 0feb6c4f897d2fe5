package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/parsamap/raahgir/internal/crawler"
	"github.com/parsamap/raahgir/internal/report"
	"github.com/parsamap/raahgir/internal/storage"
)

func crawlCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl <city-slug>",
		Short: "Walk a city's paginated category listing",
		Long: `Walk the region-paginated listing of a city for one category,
enriching every listed place with its detail record. The crawl stops
when the listing runs out of pages.`,
		Args: cobra.ExactArgs(1),
		RunE: runCrawl,
	}

	cmd.Flags().StringP("category", "c", "cafe", "Category slug to crawl")
	return cmd
}

func runCrawl(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	category, _ := cmd.Flags().GetString("category")

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

	if err := s.CrawlCity(args[0]); err != nil {
		return err
	}

	return printSummary(cmd, s)
}

func printSummary(cmd *cobra.Command, s *crawler.Session) error {
	places := s.Places()
	records := make([]*storage.PlaceRecord, len(places))
	status := s.Status()
	now := time.Now().UTC()
	for i := range places {
		records[i] = places[i].Record(fmt.Sprintf("%d", i), status.ID, now)
	}
	return report.WriteText(cmd.OutOrStdout(), report.GenerateSummary(records))
}
