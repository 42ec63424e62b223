package quote

import (
	"sort"
	"sync"

	"github.com/noah-isme/backend-quote/internal/pricing"
)

// Option customises an Aggregator.
type Option func(*Aggregator)

// WithBundleSchedule overrides the bundle discount schedule. A schedule declared by the
// catalog still wins.
func WithBundleSchedule(s pricing.BundleSchedule) Option {
	return func(a *Aggregator) {
		if len(s) > 0 {
			a.schedule = s.Normalize()
		}
	}
}

type lineState struct {
	serviceID string
	tierID    pricing.TierID
	quantity  int
	addOns    map[string]struct{}
	subtotal  pricing.Money
}

// Aggregator owns one quote cart and keeps its derived totals consistent with the catalog.
// Every mutation runs to completion under a single write lock; readers get copies.
// Invalid calls are no-ops reported through the boolean result.
type Aggregator struct {
	mu       sync.RWMutex
	catalog  *pricing.Catalog
	schedule pricing.BundleSchedule

	items    []*lineState
	customer CustomerInfo
	summary  pricing.Summary
}

// New constructs an empty aggregator priced by catalog.
func New(catalog *pricing.Catalog, opts ...Option) *Aggregator {
	a := &Aggregator{catalog: catalog, schedule: pricing.DefaultBundleSchedule}
	for _, opt := range opts {
		opt(a)
	}
	a.schedule = catalog.Schedule(a.schedule)
	return a
}

// AddItem adds serviceID at tierID with quantity 1. When the service is already in the
// cart the call behaves as UpdateTier. Unknown services or tiers are ignored.
func (a *Aggregator) AddItem(serviceID string, tierID pricing.TierID) bool {
	applied, _ := a.Upsert(serviceID, tierID)
	return applied
}

// Upsert is AddItem that also reports whether a new line was inserted, decided under the
// same lock as the change.
func (a *Aggregator) Upsert(serviceID string, tierID pricing.TierID) (applied, inserted bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.catalog.TierPrice(serviceID, tierID); !ok {
		return false, false
	}
	if line := a.find(serviceID); line != nil {
		return a.setTier(line, tierID), false
	}
	line := &lineState{serviceID: serviceID, tierID: tierID, quantity: 1, addOns: map[string]struct{}{}}
	subtotal, ok := a.price(line.serviceID, line.tierID, line.quantity, line.addOns)
	if !ok || !a.fits(nil, subtotal) {
		return false, false
	}
	line.subtotal = subtotal
	a.items = append(a.items, line)
	a.recompute()
	return true, true
}

// RemoveItem drops serviceID from the cart.
func (a *Aggregator) RemoveItem(serviceID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i, line := range a.items {
		if line.serviceID != serviceID {
			continue
		}
		a.items = append(a.items[:i:i], a.items[i+1:]...)
		a.recompute()
		return true
	}
	return false
}

// UpdateTier switches the tier of a service already in the cart.
func (a *Aggregator) UpdateTier(serviceID string, tierID pricing.TierID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	line := a.find(serviceID)
	if line == nil {
		return false
	}
	return a.setTier(line, tierID)
}

// ToggleAddOn flips addOnID in the service's add-on set. IDs are not checked against
// the catalog; unknown add-ons are kept but price at zero.
func (a *Aggregator) ToggleAddOn(serviceID, addOnID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	line := a.find(serviceID)
	if line == nil {
		return false
	}
	addOns := make(map[string]struct{}, len(line.addOns)+1)
	for id := range line.addOns {
		addOns[id] = struct{}{}
	}
	if _, on := addOns[addOnID]; on {
		delete(addOns, addOnID)
	} else {
		addOns[addOnID] = struct{}{}
	}
	subtotal, ok := a.price(line.serviceID, line.tierID, line.quantity, addOns)
	if !ok || !a.fits(line, subtotal) {
		return false
	}
	line.addOns = addOns
	a.commit(line, subtotal)
	return true
}

// UpdateQuantity sets the quantity of a service already in the cart. Values below 1
// and quantities whose price would overflow Money are ignored.
func (a *Aggregator) UpdateQuantity(serviceID string, quantity int) bool {
	if quantity < 1 {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	line := a.find(serviceID)
	if line == nil {
		return false
	}
	subtotal, ok := a.price(line.serviceID, line.tierID, quantity, line.addOns)
	if !ok || !a.fits(line, subtotal) {
		return false
	}
	line.quantity = quantity
	a.commit(line, subtotal)
	return true
}

// SetCustomerInfo merges the set fields of patch into the contact record.
func (a *Aggregator) SetCustomerInfo(patch CustomerPatch) bool {
	if patch.Empty() {
		return false
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	patch.applyTo(&a.customer)
	return true
}

// ClearPlan resets the cart to its empty state.
func (a *Aggregator) ClearPlan() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.items = nil
	a.customer = CustomerInfo{}
	a.summary = pricing.Summary{}
}

// IsServiceInPlan reports whether serviceID has a line in the cart.
func (a *Aggregator) IsServiceInPlan(serviceID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.find(serviceID) != nil
}

// GetItemByServiceID returns a copy of the line for serviceID.
func (a *Aggregator) GetItemByServiceID(serviceID string) (LineItem, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	line := a.find(serviceID)
	if line == nil {
		return LineItem{}, false
	}
	return line.snapshot(), true
}

// Snapshot returns a deep copy of the cart.
func (a *Aggregator) Snapshot() Cart {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshotLocked()
}

func (a *Aggregator) snapshotLocked() Cart {
	items := make([]LineItem, 0, len(a.items))
	for _, line := range a.items {
		items = append(items, line.snapshot())
	}
	cart := Cart{
		Items:              items,
		Customer:           a.customer,
		ItemCount:          a.summary.ItemCount,
		Subtotal:           a.summary.Subtotal,
		DiscountPercentage: a.summary.DiscountPercentage,
		Discount:           a.summary.Discount,
		Total:              a.summary.Total,
	}
	if a.catalog != nil {
		cart.Builder = a.catalog.Builder
		cart.Currency = a.catalog.Currency
	}
	return cart
}

func (a *Aggregator) find(serviceID string) *lineState {
	for _, line := range a.items {
		if line.serviceID == serviceID {
			return line
		}
	}
	return nil
}

func (a *Aggregator) setTier(line *lineState, tierID pricing.TierID) bool {
	if _, ok := a.catalog.TierPrice(line.serviceID, tierID); !ok {
		return false
	}
	subtotal, ok := a.price(line.serviceID, tierID, line.quantity, line.addOns)
	if !ok || !a.fits(line, subtotal) {
		return false
	}
	line.tierID = tierID
	a.commit(line, subtotal)
	return true
}

// price derives a line subtotal from the catalog. ok is false when it overflows Money.
func (a *Aggregator) price(serviceID string, tierID pricing.TierID, qty int, addOns map[string]struct{}) (pricing.Money, bool) {
	tierPrice, _ := a.catalog.TierPrice(serviceID, tierID)
	addOnPrices := make([]pricing.Money, 0, len(addOns))
	for id := range addOns {
		if p, ok := a.catalog.AddOnPrice(serviceID, id); ok {
			addOnPrices = append(addOnPrices, p)
		}
	}
	return pricing.CheckedLineSubtotal(tierPrice, qty, addOnPrices...)
}

// fits reports whether the cart subtotal stays within Money when line is repriced to
// subtotal. A nil line is a new one.
func (a *Aggregator) fits(line *lineState, subtotal pricing.Money) bool {
	total := subtotal
	for _, other := range a.items {
		if other == line {
			continue
		}
		var ok bool
		if total, ok = pricing.AddChecked(total, other.subtotal); !ok {
			return false
		}
	}
	return true
}

func (a *Aggregator) commit(line *lineState, subtotal pricing.Money) {
	line.subtotal = subtotal
	a.recompute()
}

func (a *Aggregator) recompute() {
	subtotals := make([]pricing.Money, 0, len(a.items))
	for _, line := range a.items {
		subtotals = append(subtotals, line.subtotal)
	}
	a.summary = pricing.Compute(subtotals, a.schedule)
}

func (l *lineState) snapshot() LineItem {
	addOns := make([]string, 0, len(l.addOns))
	for id := range l.addOns {
		addOns = append(addOns, id)
	}
	sort.Strings(addOns)
	return LineItem{
		ServiceID: l.serviceID,
		TierID:    l.tierID,
		Quantity:  l.quantity,
		AddOns:    addOns,
		Subtotal:  l.subtotal,
	}
}
