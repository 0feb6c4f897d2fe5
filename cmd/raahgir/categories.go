package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/parsamap/raahgir/internal/raah"
)

func categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the searchable categories",
		Long: `Fetch and print the flattened category list. When the fetch fails a
static fallback list is printed instead so slugs are always available.`,
		RunE: runCategories,
	}
}

func runCategories(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := newApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close(ctx)

	client, err := raah.New(a.clientConfig())
	if err != nil {
		return err
	}

	for _, opt := range client.CategoriesOrFallback(ctx) {
		fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", opt.Slug, opt.Display)
	}
	return nil
}
