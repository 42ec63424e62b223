package quote

import (
	"sort"

	"github.com/noah-isme/backend-quote/internal/pricing"
)

// SummaryLine is one priced row of a quote breakdown.
type SummaryLine struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Price pricing.Money `json:"price"`
	Known bool          `json:"known"`
}

// SummaryItem explains how a LineItem subtotal was derived.
type SummaryItem struct {
	ServiceID   string        `json:"serviceId"`
	ServiceName string        `json:"serviceName"`
	Tier        SummaryLine   `json:"tier"`
	Quantity    int           `json:"quantity"`
	AddOns      []SummaryLine `json:"addOns"`
	Subtotal    pricing.Money `json:"subtotal"`
}

// Summary is the final-step view of a quote: every line with catalog names and prices.
type Summary struct {
	Builder            string        `json:"builder"`
	Currency           string        `json:"currency,omitempty"`
	Items              []SummaryItem `json:"items"`
	Customer           CustomerInfo  `json:"customer"`
	ItemCount          int           `json:"itemCount"`
	Subtotal           pricing.Money `json:"subtotal"`
	DiscountPercentage int           `json:"discountPercentage"`
	Discount           pricing.Money `json:"discount"`
	Total              pricing.Money `json:"total"`
}

// Summary builds a priced breakdown of the current cart.
func (a *Aggregator) Summary() Summary {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cart := a.snapshotLocked()
	out := Summary{
		Builder:            cart.Builder,
		Currency:           cart.Currency,
		Items:              make([]SummaryItem, 0, len(cart.Items)),
		Customer:           cart.Customer,
		ItemCount:          cart.ItemCount,
		Subtotal:           cart.Subtotal,
		DiscountPercentage: cart.DiscountPercentage,
		Discount:           cart.Discount,
		Total:              cart.Total,
	}
	for _, item := range cart.Items {
		out.Items = append(out.Items, a.describe(item))
	}
	return out
}

func (a *Aggregator) describe(item LineItem) SummaryItem {
	svc, _ := a.catalog.Service(item.ServiceID)
	tierNames := make(map[pricing.TierID]string, len(svc.Tiers))
	for _, t := range svc.Tiers {
		tierNames[t.ID] = t.Name
	}
	addOnNames := make(map[string]string, len(svc.AddOns))
	for _, ad := range svc.AddOns {
		addOnNames[ad.ID] = ad.Name
	}
	tierPrice, tierKnown := a.catalog.TierPrice(item.ServiceID, item.TierID)
	si := SummaryItem{
		ServiceID:   item.ServiceID,
		ServiceName: fallbackName(svc.Name, item.ServiceID),
		Tier: SummaryLine{
			ID:    item.TierID,
			Name:  fallbackName(tierNames[item.TierID], item.TierID),
			Price: tierPrice,
			Known: tierKnown,
		},
		Quantity: item.Quantity,
		AddOns:   make([]SummaryLine, 0, len(item.AddOns)),
		Subtotal: item.Subtotal,
	}
	for _, id := range item.AddOns {
		price, known := a.catalog.AddOnPrice(item.ServiceID, id)
		si.AddOns = append(si.AddOns, SummaryLine{
			ID:    id,
			Name:  fallbackName(addOnNames[id], id),
			Price: price,
			Known: known,
		})
	}
	sort.SliceStable(si.AddOns, func(i, j int) bool {
		return si.AddOns[i].Known && !si.AddOns[j].Known
	})
	return si
}

func fallbackName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
