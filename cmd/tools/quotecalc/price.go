package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/noah-isme/backend-quote/internal/pricing"
	"github.com/noah-isme/backend-quote/internal/quote"
)

type priceOptions struct {
	builder     string
	catalogFile string
	bundle      string
	asJSON      bool
}

// itemSpec is one "service:tier[:qty[:addon,addon]]" argument.
type itemSpec struct {
	ServiceID string
	TierID    pricing.TierID
	Quantity  int
	AddOns    []string
}

func newPriceCmd(root *rootOptions) *cobra.Command {
	opts := &priceOptions{}
	cmd := &cobra.Command{
		Use:   "price ITEM...",
		Short: "Price a plan from service:tier[:qty[:addon,addon]] items",
		Long: `Builds a cart with the same rules as the API and prints the breakdown.
Unknown services, tiers and quantities below one are skipped, as in the wizard.

Examples:
  quotecalc price --builder plan website:pro app:essential image:essential
  quotecalc price --builder plan website:essential:2:seo,cms
  quotecalc price --catalog my-catalog.yaml --bundle 2:5,4:10 --json a:pro b:essential`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.resolveCatalog(root)
			if err != nil {
				return err
			}
			fallback, err := pricing.ParseBundleSchedule(opts.bundle)
			if err != nil {
				return fmt.Errorf("--bundle: %w", err)
			}
			items := make([]itemSpec, 0, len(args))
			for _, arg := range args {
				item, err := parseItem(arg)
				if err != nil {
					return err
				}
				items = append(items, item)
			}
			agg := quote.New(c, quote.WithBundleSchedule(c.Schedule(fallback)))
			skipped := applyItems(agg, items)
			summary := agg.Summary()
			for _, s := range skipped {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped: %s\n", s)
			}
			if opts.asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(summary)
			}
			return writeSummary(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&opts.builder, "builder", "plan", "builder catalog to price against")
	cmd.Flags().StringVar(&opts.catalogFile, "catalog", "", "catalog file to price against instead of a builder")
	cmd.Flags().StringVar(&opts.bundle, "bundle", "", "bundle discounts as min:percent pairs for catalogs without their own")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the summary as JSON")
	return cmd
}

func (o *priceOptions) resolveCatalog(root *rootOptions) (*pricing.Catalog, error) {
	if o.catalogFile != "" {
		return pricing.LoadFile(o.catalogFile)
	}
	reg, err := root.registry()
	if err != nil {
		return nil, err
	}
	return reg.Get(o.builder)
}

func parseItem(raw string) (itemSpec, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 4 || parts[0] == "" || parts[1] == "" {
		return itemSpec{}, fmt.Errorf("item %q: expected service:tier[:qty[:addon,addon]]", raw)
	}
	item := itemSpec{ServiceID: parts[0], TierID: parts[1], Quantity: 1}
	if len(parts) > 2 && parts[2] != "" {
		qty, err := strconv.Atoi(parts[2])
		if err != nil {
			return itemSpec{}, fmt.Errorf("item %q: invalid quantity", raw)
		}
		item.Quantity = qty
	}
	if len(parts) > 3 {
		for _, id := range strings.Split(parts[3], ",") {
			if id = strings.TrimSpace(id); id != "" {
				item.AddOns = append(item.AddOns, id)
			}
		}
	}
	return item, nil
}

func applyItems(agg *quote.Aggregator, items []itemSpec) []string {
	var skipped []string
	for _, item := range items {
		if !agg.AddItem(item.ServiceID, item.TierID) {
			skipped = append(skipped, fmt.Sprintf("%s:%s not in catalog", item.ServiceID, item.TierID))
			continue
		}
		if item.Quantity != 1 && !agg.UpdateQuantity(item.ServiceID, item.Quantity) {
			skipped = append(skipped, fmt.Sprintf("%s quantity %d", item.ServiceID, item.Quantity))
		}
		for _, addOn := range item.AddOns {
			if current, ok := agg.GetItemByServiceID(item.ServiceID); ok && contains(current.AddOns, addOn) {
				continue
			}
			agg.ToggleAddOn(item.ServiceID, addOn)
		}
	}
	return skipped
}

func writeSummary(w io.Writer, s quote.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "SERVICE\tTIER\tQTY\tPRICE\t\n")
	for _, item := range s.Items {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t\n", item.ServiceName, item.Tier.Name, item.Quantity, item.Tier.Price*pricing.Money(item.Quantity))
		for _, a := range item.AddOns {
			name := a.Name
			if !a.Known {
				name += " (unknown)"
			}
			fmt.Fprintf(tw, "  + %s\t\t\t%d\t\n", name, a.Price)
		}
	}
	fmt.Fprintf(tw, "\t\t\t\t\n")
	fmt.Fprintf(tw, "Subtotal\t\t\t%d\t\n", s.Subtotal)
	fmt.Fprintf(tw, "Bundle discount (%d%%)\t\t\t-%d\t\n", s.DiscountPercentage, s.Discount)
	fmt.Fprintf(tw, "Total %s\t\t\t%d\t\n", s.Currency, s.Total)
	return tw.Flush()
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
