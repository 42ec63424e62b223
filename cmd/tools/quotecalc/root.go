package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noah-isme/backend-quote/internal/catalog"
	"github.com/noah-isme/backend-quote/internal/pricing"
)

type rootOptions struct {
	catalogDir string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "quotecalc",
		Short: "Validate catalogs and price quotes offline",
		Long: `quotecalc runs the quote pricing engine without the API.

Examples:
  quotecalc builders
  quotecalc validate catalogs/*.yaml
  quotecalc price --builder plan website:pro::seo app:essential image:essential`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.catalogDir, "catalog-dir", "", "directory of catalog files layered over the built-in catalogs")
	cmd.AddCommand(newBuildersCmd(opts), newValidateCmd(), newPriceCmd(opts))
	return cmd
}

func (o *rootOptions) registry() (*catalog.Registry, error) {
	reg, err := catalog.Load(o.catalogDir)
	if err != nil {
		return nil, fmt.Errorf("load catalogs: %w", err)
	}
	return reg, nil
}

func newBuildersCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "builders",
		Short: "List available builders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg, err := opts.registry()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, b := range reg.Builders() {
				fmt.Fprintf(out, "%-16s %-28s %d services\n", b.Builder, b.Name, b.Services)
			}
			return nil
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate FILE...",
		Short: "Check catalog files for schema errors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				c, err := pricing.LoadFile(path)
				if err != nil {
					failed++
					fmt.Fprintf(out, "FAIL %s: %v\n", path, err)
					continue
				}
				fmt.Fprintf(out, "ok   %s (builder %s, %d services)\n", path, c.Builder, len(c.Services))
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d catalogs invalid", failed, len(args))
			}
			return nil
		},
	}
}
