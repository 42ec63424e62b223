package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/backend-quote/internal/catalog"
	"github.com/noah-isme/backend-quote/internal/events"
	"github.com/noah-isme/backend-quote/internal/obs"
	"github.com/noah-isme/backend-quote/internal/pricing"
	"github.com/noah-isme/backend-quote/internal/quote"
)

// Operation names used for metrics, spans and logs.
const (
	OpAddItem        = "add_item"
	OpRemoveItem     = "remove_item"
	OpUpdateTier     = "update_tier"
	OpToggleAddOn    = "toggle_addon"
	OpUpdateQuantity = "update_quantity"
	OpSetCustomer    = "set_customer"
	OpClear          = "clear"
)

// Service applies quote operations to sessions.
type Service struct {
	store    *Store
	registry *catalog.Registry
	schedule pricing.BundleSchedule
	bus      *events.Bus
	metrics  *obs.QuoteMetrics
	logger   zerolog.Logger
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Store    *Store
	Registry *catalog.Registry
	// Schedule applies to catalogs that carry no bundle discounts of their own.
	Schedule pricing.BundleSchedule
	Bus      *events.Bus
	Metrics  *obs.QuoteMetrics
	Logger   *zerolog.Logger
}

// Info describes a session and its current cart.
type Info struct {
	ID        string     `json:"id"`
	Builder   string     `json:"builder"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
	Cart      quote.Cart `json:"cart"`
}

// Result is the outcome of a mutation. Applied is false for silent no-ops.
type Result struct {
	Applied bool       `json:"applied"`
	Cart    quote.Cart `json:"cart"`
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errors.New("session store is required")
	}
	if cfg.Registry == nil {
		return nil, errors.New("catalog registry is required")
	}
	schedule := cfg.Schedule
	if len(schedule) == 0 {
		schedule = pricing.DefaultBundleSchedule
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Service{
		store:    cfg.Store,
		registry: cfg.Registry,
		schedule: schedule,
		bus:      cfg.Bus,
		metrics:  cfg.Metrics,
		logger:   logger,
	}, nil
}

// Start opens a session for builder with an empty cart.
func (s *Service) Start(ctx context.Context, builder string) (Info, error) {
	ctx, span := otel.Tracer("session.Service").Start(ctx, "QuoteService.Start")
	defer span.End()
	span.SetAttributes(attribute.String("quote.builder", builder))

	c, err := s.registry.Get(builder)
	if err != nil {
		span.RecordError(err)
		return Info{}, err
	}
	agg := quote.New(c, quote.WithBundleSchedule(c.Schedule(s.schedule)))
	sess, err := s.store.Create(c.Builder, agg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Info{}, err
	}
	s.metrics.SetActiveSessions(s.store.Len())
	id := sess.ID.String()
	span.SetAttributes(attribute.String("quote.session_id", id))
	s.emit(ctx, events.TopicSessionStarted, id, map[string]any{"builder": c.Builder})
	return s.info(sess), nil
}

// Get returns session details and the cart snapshot.
func (s *Service) Get(_ context.Context, id string) (Info, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return Info{}, err
	}
	return s.info(sess), nil
}

// Summary returns the catalog-named breakdown of the session's cart.
func (s *Service) Summary(_ context.Context, id string) (quote.Summary, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return quote.Summary{}, err
	}
	return sess.Aggregator.Summary(), nil
}

// Item returns the line item for serviceID. ok is false when the service is not in the cart.
func (s *Service) Item(_ context.Context, id, serviceID string) (quote.LineItem, bool, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return quote.LineItem{}, false, err
	}
	item, ok := sess.Aggregator.GetItemByServiceID(serviceID)
	return item, ok, nil
}

// HasItem reports whether serviceID is in the session's cart.
func (s *Service) HasItem(_ context.Context, id, serviceID string) (bool, error) {
	sess, err := s.store.Get(id)
	if err != nil {
		return false, err
	}
	return sess.Aggregator.IsServiceInPlan(serviceID), nil
}

// End deletes the session.
func (s *Service) End(ctx context.Context, id string) error {
	sess, err := s.store.Delete(id)
	if err != nil {
		return err
	}
	s.metrics.SetActiveSessions(s.store.Len())
	s.emit(ctx, events.TopicSessionEnded, sess.ID.String(), map[string]any{"builder": sess.Builder})
	return nil
}

// AddItem adds serviceID at tierID, or changes its tier when already present.
func (s *Service) AddItem(ctx context.Context, id, serviceID string, tierID pricing.TierID) (Result, error) {
	payload := map[string]any{"serviceId": serviceID, "tierId": tierID}
	return s.mutate(ctx, OpAddItem, id, payload, func(agg *quote.Aggregator) (bool, string) {
		applied, inserted := agg.Upsert(serviceID, tierID)
		if inserted {
			return applied, events.TopicItemAdded
		}
		return applied, events.TopicTierChanged
	})
}

// RemoveItem drops serviceID from the cart.
func (s *Service) RemoveItem(ctx context.Context, id, serviceID string) (Result, error) {
	return s.mutate(ctx, OpRemoveItem, id, map[string]any{"serviceId": serviceID}, func(agg *quote.Aggregator) (bool, string) {
		return agg.RemoveItem(serviceID), events.TopicItemRemoved
	})
}

// UpdateTier switches the tier of serviceID.
func (s *Service) UpdateTier(ctx context.Context, id, serviceID string, tierID pricing.TierID) (Result, error) {
	payload := map[string]any{"serviceId": serviceID, "tierId": tierID}
	return s.mutate(ctx, OpUpdateTier, id, payload, func(agg *quote.Aggregator) (bool, string) {
		return agg.UpdateTier(serviceID, tierID), events.TopicTierChanged
	})
}

// ToggleAddOn flips addOnID on serviceID.
func (s *Service) ToggleAddOn(ctx context.Context, id, serviceID, addOnID string) (Result, error) {
	payload := map[string]any{"serviceId": serviceID, "addOnId": addOnID}
	return s.mutate(ctx, OpToggleAddOn, id, payload, func(agg *quote.Aggregator) (bool, string) {
		applied := agg.ToggleAddOn(serviceID, addOnID)
		if item, ok := agg.GetItemByServiceID(serviceID); ok {
			payload["selected"] = containsString(item.AddOns, addOnID)
		}
		return applied, events.TopicAddOnToggled
	})
}

// UpdateQuantity sets the quantity of serviceID.
func (s *Service) UpdateQuantity(ctx context.Context, id, serviceID string, quantity int) (Result, error) {
	payload := map[string]any{"serviceId": serviceID, "quantity": quantity}
	return s.mutate(ctx, OpUpdateQuantity, id, payload, func(agg *quote.Aggregator) (bool, string) {
		return agg.UpdateQuantity(serviceID, quantity), events.TopicQuantityChanged
	})
}

// SetCustomer merges patch into the customer details.
func (s *Service) SetCustomer(ctx context.Context, id string, patch quote.CustomerPatch) (Result, error) {
	payload := map[string]any{"fields": patchFields(patch)}
	return s.mutate(ctx, OpSetCustomer, id, payload, func(agg *quote.Aggregator) (bool, string) {
		return agg.SetCustomerInfo(patch), events.TopicCustomerUpdated
	})
}

// Clear empties the cart and customer details.
func (s *Service) Clear(ctx context.Context, id string) (Result, error) {
	return s.mutate(ctx, OpClear, id, nil, func(agg *quote.Aggregator) (bool, string) {
		agg.ClearPlan()
		return true, events.TopicCleared
	})
}

// Sweep drops expired sessions and refreshes the active gauge.
func (s *Service) Sweep(now time.Time) int {
	removed := s.store.Sweep(now)
	s.metrics.SetActiveSessions(s.store.Len())
	return removed
}

// RunJanitor expires idle sessions every interval until ctx is cancelled.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	s.store.RunJanitor(ctx, interval, func(removed, remaining int) {
		s.metrics.SetActiveSessions(remaining)
		if removed > 0 {
			s.logger.Info().Int("expired", removed).Int("active", remaining).Msg("quote sessions swept")
		}
	})
}

func (s *Service) mutate(ctx context.Context, op, id string, payload map[string]any, fn func(*quote.Aggregator) (bool, string)) (Result, error) {
	ctx, span := otel.Tracer("session.Service").Start(ctx, "QuoteService."+op)
	defer span.End()
	span.SetAttributes(attribute.String("quote.session_id", id))

	sess, err := s.store.Get(id)
	if err != nil {
		span.RecordError(err)
		return Result{}, err
	}
	applied, topic := fn(sess.Aggregator)
	cart := sess.Aggregator.Snapshot()
	span.SetAttributes(
		attribute.Bool("quote.applied", applied),
		attribute.Int("quote.item_count", cart.ItemCount),
		attribute.Int64("quote.total", cart.Total),
	)
	s.metrics.ObserveMutation(op, applied)
	if !applied {
		s.logger.Debug().Str("session_id", id).Str("op", op).Interface("args", payload).Msg("quote operation ignored")
		return Result{Applied: false, Cart: cart}, nil
	}
	s.metrics.ObserveTotal(sess.Builder, cart.Total)
	if payload == nil {
		payload = map[string]any{}
	}
	payload["total"] = cart.Total
	payload["itemCount"] = cart.ItemCount
	s.emit(ctx, topic, id, payload)
	return Result{Applied: true, Cart: cart}, nil
}

func (s *Service) emit(ctx context.Context, topic, id string, payload any) {
	if s.bus == nil {
		return
	}
	if _, err := s.bus.Emit(ctx, topic, id, payload); err != nil {
		s.logger.Warn().Err(err).Str("topic", topic).Str("session_id", id).Msg("quote event dispatch")
	}
}

func (s *Service) info(sess *Session) Info {
	return Info{
		ID:        sess.ID.String(),
		Builder:   sess.Builder,
		CreatedAt: sess.CreatedAt,
		ExpiresAt: s.store.ExpiresAt(sess),
		Cart:      sess.Aggregator.Snapshot(),
	}
}

func patchFields(p quote.CustomerPatch) []string {
	var fields []string
	if p.Name != nil {
		fields = append(fields, "name")
	}
	if p.Email != nil {
		fields = append(fields, "email")
	}
	if p.Company != nil {
		fields = append(fields, "company")
	}
	if p.Phone != nil {
		fields = append(fields, "phone")
	}
	if p.Notes != nil {
		fields = append(fields, "notes")
	}
	return fields
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
