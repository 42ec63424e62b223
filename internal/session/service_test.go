package session

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-quote/internal/catalog"
	"github.com/noah-isme/backend-quote/internal/events"
	"github.com/noah-isme/backend-quote/internal/obs"
	"github.com/noah-isme/backend-quote/internal/pricing"
	"github.com/noah-isme/backend-quote/internal/quote"
)

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recorder) Notify(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Topic)
	}
	return out
}

func testRegistry(t *testing.T) *catalog.Registry {
	t.Helper()
	plan, err := pricing.NewCatalog(pricing.Catalog{
		Builder:  "plan",
		Currency: "USD",
		Services: []pricing.Service{
			{
				ID: "web",
				Tiers: []pricing.Tier{
					{ID: pricing.TierEssential, Price: 2500},
					{ID: pricing.TierPro, Price: 4000},
				},
				AddOns: []pricing.AddOn{{ID: "seo", Price: 500}},
			},
			{ID: "app", Tiers: []pricing.Tier{{ID: pricing.TierEssential, Price: 2000}}},
			{ID: "image", Tiers: []pricing.Tier{{ID: pricing.TierEssential, Price: 1000}}},
		},
	})
	require.NoError(t, err)
	duo, err := pricing.NewCatalog(pricing.Catalog{
		Builder:         "duo",
		Services:        []pricing.Service{{ID: "a", Tiers: []pricing.Tier{{ID: pricing.TierEssential, Price: 1000}}}, {ID: "b", Tiers: []pricing.Tier{{ID: pricing.TierEssential, Price: 1000}}}},
		BundleDiscounts: pricing.BundleSchedule{{MinItems: 2, Percent: 50}},
	})
	require.NoError(t, err)
	return catalog.NewRegistry(plan, duo)
}

type fixture struct {
	svc     *Service
	events  *recorder
	metrics *obs.QuoteMetrics
}

func newFixture(t *testing.T, max int) fixture {
	t.Helper()
	rec := &recorder{}
	metrics := obs.NewQuoteMetrics("test", prometheus.NewRegistry())
	svc, err := NewService(ServiceConfig{
		Store:    NewStore(StoreConfig{Max: max}),
		Registry: testRegistry(t),
		Bus:      &events.Bus{Notifiers: []events.Notifier{rec}},
		Metrics:  metrics,
	})
	require.NoError(t, err)
	return fixture{svc: svc, events: rec, metrics: metrics}
}

func TestServiceQuoteFlow(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	info, err := f.svc.Start(ctx, "plan")
	require.NoError(t, err)
	require.Equal(t, "plan", info.Builder)
	require.Empty(t, info.Cart.Items)
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.SessionsActive))

	res, err := f.svc.AddItem(ctx, info.ID, "web", pricing.TierPro)
	require.NoError(t, err)
	require.True(t, res.Applied)
	res, err = f.svc.ToggleAddOn(ctx, info.ID, "web", "seo")
	require.NoError(t, err)
	require.True(t, res.Applied)
	_, err = f.svc.AddItem(ctx, info.ID, "app", pricing.TierEssential)
	require.NoError(t, err)
	res, err = f.svc.AddItem(ctx, info.ID, "image", pricing.TierEssential)
	require.NoError(t, err)

	require.Equal(t, 3, res.Cart.ItemCount)
	require.EqualValues(t, 7500, res.Cart.Subtotal)
	require.Equal(t, 10, res.Cart.DiscountPercentage)
	require.EqualValues(t, 750, res.Cart.Discount)
	require.EqualValues(t, 6750, res.Cart.Total)

	res, err = f.svc.UpdateQuantity(ctx, info.ID, "app", 2)
	require.NoError(t, err)
	require.EqualValues(t, 9500, res.Cart.Subtotal)

	res, err = f.svc.AddItem(ctx, info.ID, "web", pricing.TierEssential)
	require.NoError(t, err)
	require.True(t, res.Applied)
	item, ok, err := f.svc.Item(ctx, info.ID, "web")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, pricing.TierEssential, item.TierID)
	require.EqualValues(t, 3000, item.Subtotal)

	require.Equal(t, []string{
		events.TopicSessionStarted,
		events.TopicItemAdded,
		events.TopicAddOnToggled,
		events.TopicItemAdded,
		events.TopicItemAdded,
		events.TopicQuantityChanged,
		events.TopicTierChanged,
	}, f.events.topics())

	summary, err := f.svc.Summary(ctx, info.ID)
	require.NoError(t, err)
	require.Equal(t, res.Cart.Total, summary.Total)
}

func TestServiceNoOpsReportNotApplied(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	info, err := f.svc.Start(ctx, "plan")
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, info.ID, "web", pricing.TierEssential)
	require.NoError(t, err)
	before := len(f.events.topics())

	noops := []func() (Result, error){
		func() (Result, error) { return f.svc.AddItem(ctx, info.ID, "ghost", pricing.TierEssential) },
		func() (Result, error) { return f.svc.AddItem(ctx, info.ID, "app", pricing.TierEnterprise) },
		func() (Result, error) { return f.svc.RemoveItem(ctx, info.ID, "ghost") },
		func() (Result, error) { return f.svc.UpdateTier(ctx, info.ID, "web", pricing.TierEnterprise) },
		func() (Result, error) { return f.svc.UpdateQuantity(ctx, info.ID, "web", 0) },
		func() (Result, error) { return f.svc.ToggleAddOn(ctx, info.ID, "ghost", "seo") },
		func() (Result, error) { return f.svc.SetCustomer(ctx, info.ID, quote.CustomerPatch{}) },
	}
	for i, op := range noops {
		res, err := op()
		require.NoError(t, err, "op %d", i)
		require.False(t, res.Applied, "op %d", i)
		require.EqualValues(t, 2500, res.Cart.Total, "op %d", i)
	}
	require.Len(t, f.events.topics(), before, "no-ops emit nothing")
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Mutations.WithLabelValues(OpAddItem, obs.ResultApplied)))
	require.Equal(t, float64(2), testutil.ToFloat64(f.metrics.Mutations.WithLabelValues(OpAddItem, obs.ResultNoop)))
	require.Equal(t, float64(1), testutil.ToFloat64(f.metrics.Mutations.WithLabelValues(OpSetCustomer, obs.ResultNoop)))
}

func TestServiceUsesCatalogBundleDiscounts(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	info, err := f.svc.Start(ctx, "duo")
	require.NoError(t, err)
	_, err = f.svc.AddItem(ctx, info.ID, "a", pricing.TierEssential)
	require.NoError(t, err)
	res, err := f.svc.AddItem(ctx, info.ID, "b", pricing.TierEssential)
	require.NoError(t, err)
	require.Equal(t, 50, res.Cart.DiscountPercentage)
	require.EqualValues(t, 1000, res.Cart.Total)
}

func TestServiceCustomerAndClear(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	info, err := f.svc.Start(ctx, "plan")
	require.NoError(t, err)

	name := "Ada"
	res, err := f.svc.SetCustomer(ctx, info.ID, quote.CustomerPatch{Name: &name})
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Equal(t, "Ada", res.Cart.Customer.Name)

	_, err = f.svc.AddItem(ctx, info.ID, "web", pricing.TierEssential)
	require.NoError(t, err)
	res, err = f.svc.Clear(ctx, info.ID)
	require.NoError(t, err)
	require.True(t, res.Applied)
	require.Empty(t, res.Cart.Items)
	require.Equal(t, quote.CustomerInfo{}, res.Cart.Customer)
	require.Zero(t, res.Cart.Total)

	f.events.mu.Lock()
	last := f.events.events[len(f.events.events)-1]
	customer := f.events.events[1]
	f.events.mu.Unlock()
	require.Equal(t, events.TopicCleared, last.Topic)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(customer.Payload, &payload))
	require.Equal(t, []any{"name"}, payload["fields"])
	require.NotContains(t, string(customer.Payload), "Ada")
}

func TestServiceSessionLifecycleErrors(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()

	_, err := f.svc.Start(ctx, "nope")
	require.ErrorIs(t, err, catalog.ErrUnknownBuilder)

	info, err := f.svc.Start(ctx, "plan")
	require.NoError(t, err)
	_, err = f.svc.Start(ctx, "plan")
	require.ErrorIs(t, err, ErrLimitReached)

	require.NoError(t, f.svc.End(ctx, info.ID))
	require.Equal(t, float64(0), testutil.ToFloat64(f.metrics.SessionsActive))
	_, err = f.svc.AddItem(ctx, info.ID, "web", pricing.TierEssential)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, f.svc.End(ctx, info.ID), ErrNotFound)
}

func TestServiceConcurrentAddItemEmitsOneItemAdded(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	info, err := f.svc.Start(ctx, "plan")
	require.NoError(t, err)

	tiers := []pricing.TierID{pricing.TierEssential, pricing.TierPro}
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(tier pricing.TierID) {
			defer wg.Done()
			res, err := f.svc.AddItem(ctx, info.ID, "web", tier)
			require.NoError(t, err)
			require.True(t, res.Applied)
		}(tiers[i%2])
	}
	wg.Wait()

	counts := map[string]int{}
	for _, topic := range f.events.topics() {
		counts[topic]++
	}
	require.Equal(t, 1, counts[events.TopicItemAdded])
	require.Equal(t, 31, counts[events.TopicTierChanged])
}
