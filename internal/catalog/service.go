package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-quote/internal/common"
	"github.com/noah-isme/backend-quote/internal/pricing"
)

// Service renders builder catalogs for the step UI, caching rendered views.
type Service struct {
	registry        *Registry
	cache           *Cache
	defaultSchedule pricing.BundleSchedule
	logger          zerolog.Logger
	versions        map[string]string
}

// ServiceConfig groups Service dependencies.
type ServiceConfig struct {
	Registry        *Registry
	Cache           *Cache
	DefaultSchedule pricing.BundleSchedule
	Logger          *zerolog.Logger
}

// TierView is the public tier payload.
type TierView struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Price pricing.Money `json:"price"`
}

// AddOnView is the public add-on payload.
type AddOnView struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	Price pricing.Money `json:"price"`
}

// ServiceView is the public service payload.
type ServiceView struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Tiers  []TierView  `json:"tiers"`
	AddOns []AddOnView `json:"addOns"`
}

// View is the rendered catalog of one builder.
type View struct {
	Builder         string                 `json:"builder"`
	Name            string                 `json:"name"`
	Currency        string                 `json:"currency,omitempty"`
	Version         string                 `json:"version"`
	Services        []ServiceView          `json:"services"`
	BundleDiscounts pricing.BundleSchedule `json:"bundleDiscounts"`
}

// NewService constructs a Service instance.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Registry == nil {
		return nil, errors.New("catalog registry is required")
	}
	schedule := cfg.DefaultSchedule
	if len(schedule) == 0 {
		schedule = pricing.DefaultBundleSchedule
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	s := &Service{
		registry:        cfg.Registry,
		cache:           cfg.Cache,
		defaultSchedule: schedule,
		logger:          logger,
		versions:        make(map[string]string, cfg.Registry.Len()),
	}
	for _, info := range cfg.Registry.Builders() {
		c, _ := cfg.Registry.Get(info.Builder)
		raw, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("fingerprint %s: %w", info.Builder, err)
		}
		s.versions[info.Builder] = common.Sha256Hex(string(raw) + schedule.String())[:12]
	}
	return s, nil
}

// Builders lists available builders.
func (s *Service) Builders(_ context.Context) []BuilderInfo {
	return s.registry.Builders()
}

// Catalog returns the rendered catalog for builder, served from cache when possible.
func (s *Service) Catalog(ctx context.Context, builder string) (View, error) {
	c, err := s.registry.Get(builder)
	if err != nil {
		return View{}, err
	}
	version := s.versions[c.Builder]
	key := fmt.Sprintf("catalog:v1:%s:%s", c.Builder, version)
	var view View
	if hit, err := s.cache.GetJSON(ctx, key, &view); err != nil {
		s.logger.Warn().Err(err).Str("builder", c.Builder).Msg("catalog cache read")
	} else if hit {
		return view, nil
	}
	view = s.render(c, version)
	if err := s.cache.SetJSON(ctx, key, view); err != nil {
		s.logger.Warn().Err(err).Str("builder", c.Builder).Msg("catalog cache write")
	}
	return view, nil
}

func (s *Service) render(c *pricing.Catalog, version string) View {
	view := View{
		Builder:         c.Builder,
		Name:            c.Name,
		Currency:        c.Currency,
		Version:         version,
		Services:        make([]ServiceView, 0, len(c.Services)),
		BundleDiscounts: c.Schedule(s.defaultSchedule),
	}
	for _, svc := range c.Services {
		sv := ServiceView{
			ID:     svc.ID,
			Name:   orID(svc.Name, svc.ID),
			Tiers:  make([]TierView, 0, len(svc.Tiers)),
			AddOns: make([]AddOnView, 0, len(svc.AddOns)),
		}
		for _, t := range svc.Tiers {
			sv.Tiers = append(sv.Tiers, TierView{ID: t.ID, Name: orID(t.Name, t.ID), Price: t.Price})
		}
		for _, a := range svc.AddOns {
			sv.AddOns = append(sv.AddOns, AddOnView{ID: a.ID, Name: orID(a.Name, a.ID), Price: a.Price})
		}
		view.Services = append(view.Services, sv)
	}
	return view
}

func orID(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
