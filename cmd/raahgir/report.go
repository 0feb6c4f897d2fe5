package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/parsamap/raahgir/internal/report"
	"github.com/parsamap/raahgir/internal/storage"
)

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize stored place records",
		RunE:  runReport,
	}

	cmd.Flags().String("session", "", "Restrict to one session id")
	cmd.Flags().String("format", "text", "Output format: text or json")
	return cmd
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	session, _ := cmd.Flags().GetString("session")
	format, _ := cmd.Flags().GetString("format")

	records, err := a.store.Query(ctx, storage.Filter{SessionID: session})
	if err != nil {
		return err
	}

	summary := report.GenerateSummary(records)
	if format == "json" {
		return report.WriteJSON(cmd.OutOrStdout(), summary)
	}
	return report.WriteText(cmd.OutOrStdout(), summary)
}
