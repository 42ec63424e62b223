package pricing

import (
	"errors"
	"fmt"
	"strings"

	validator "github.com/go-playground/validator/v10"
)

// ErrInvalidCatalog is returned when a catalog definition fails validation.
var ErrInvalidCatalog = errors.New("invalid catalog")

// TierID identifies a pricing tier.
type TierID = string

// Closed set of pricing tiers.
const (
	TierEssential  TierID = "essential"
	TierPro        TierID = "pro"
	TierEnterprise TierID = "enterprise"
)

// Tier is a pricing level with a fixed base price.
type Tier struct {
	ID    TierID `json:"id" yaml:"id" validate:"required,oneof=essential pro enterprise"`
	Name  string `json:"name,omitempty" yaml:"name"`
	Price Money  `json:"price" yaml:"price" validate:"gte=0"`
}

// AddOn is an optional extra with its own fixed price.
type AddOn struct {
	ID    string `json:"id" yaml:"id" validate:"required"`
	Name  string `json:"name,omitempty" yaml:"name"`
	Price Money  `json:"price" yaml:"price" validate:"gte=0"`
}

// Service is a catalog entry selectable into a cart.
type Service struct {
	ID     string  `json:"id" yaml:"id" validate:"required"`
	Name   string  `json:"name,omitempty" yaml:"name"`
	Tiers  []Tier  `json:"tiers" yaml:"tiers" validate:"required,min=1,dive"`
	AddOns []AddOn `json:"addOns" yaml:"addOns" validate:"dive"`
}

// Catalog is the static price list for one builder.
type Catalog struct {
	Builder         string         `json:"builder" yaml:"builder" validate:"required"`
	Name            string         `json:"name,omitempty" yaml:"name"`
	Currency        string         `json:"currency,omitempty" yaml:"currency" validate:"omitempty,len=3"`
	Services        []Service      `json:"services" yaml:"services" validate:"required,min=1,dive"`
	BundleDiscounts BundleSchedule `json:"bundleDiscounts,omitempty" yaml:"bundleDiscounts" validate:"omitempty,dive"`

	index map[string]*serviceIndex
}

type serviceIndex struct {
	service *Service
	tiers   map[TierID]Money
	addOns  map[string]Money
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// NewCatalog validates the definition and returns an indexed, read-only catalog.
func NewCatalog(def Catalog) (*Catalog, error) {
	c := def
	c.Builder = strings.TrimSpace(c.Builder)
	c.Currency = strings.ToUpper(strings.TrimSpace(c.Currency))
	if err := validate.Struct(&c); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidCatalog, describeValidation(err))
	}
	c.Services = append([]Service(nil), def.Services...)
	c.index = make(map[string]*serviceIndex, len(c.Services))
	for i := range c.Services {
		svc := &c.Services[i]
		if _, dup := c.index[svc.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate service %q", ErrInvalidCatalog, svc.ID)
		}
		idx := &serviceIndex{
			service: svc,
			tiers:   make(map[TierID]Money, len(svc.Tiers)),
			addOns:  make(map[string]Money, len(svc.AddOns)),
		}
		for _, t := range svc.Tiers {
			if _, dup := idx.tiers[t.ID]; dup {
				return nil, fmt.Errorf("%w: service %q has duplicate tier %q", ErrInvalidCatalog, svc.ID, t.ID)
			}
			idx.tiers[t.ID] = t.Price
		}
		for _, a := range svc.AddOns {
			if _, dup := idx.addOns[a.ID]; dup {
				return nil, fmt.Errorf("%w: service %q has duplicate add-on %q", ErrInvalidCatalog, svc.ID, a.ID)
			}
			idx.addOns[a.ID] = a.Price
		}
		c.index[svc.ID] = idx
	}
	if len(c.BundleDiscounts) > 0 {
		c.BundleDiscounts = c.BundleDiscounts.Normalize()
		for i := 1; i < len(c.BundleDiscounts); i++ {
			if c.BundleDiscounts[i].MinItems == c.BundleDiscounts[i-1].MinItems {
				return nil, fmt.Errorf("%w: duplicate bundle threshold %d", ErrInvalidCatalog, c.BundleDiscounts[i].MinItems)
			}
		}
	}
	return &c, nil
}

// Service returns the catalog entry for id.
func (c *Catalog) Service(id string) (Service, bool) {
	if c == nil {
		return Service{}, false
	}
	idx, ok := c.index[id]
	if !ok {
		return Service{}, false
	}
	return *idx.service, true
}

// HasService reports whether id is in the catalog.
func (c *Catalog) HasService(id string) bool {
	if c == nil {
		return false
	}
	_, ok := c.index[id]
	return ok
}

// TierPrice returns the base price of a service tier.
func (c *Catalog) TierPrice(serviceID string, tierID TierID) (Money, bool) {
	if c == nil {
		return 0, false
	}
	idx, ok := c.index[serviceID]
	if !ok {
		return 0, false
	}
	price, ok := idx.tiers[tierID]
	return price, ok
}

// AddOnPrice returns the price of an add-on within a service.
func (c *Catalog) AddOnPrice(serviceID, addOnID string) (Money, bool) {
	if c == nil {
		return 0, false
	}
	idx, ok := c.index[serviceID]
	if !ok {
		return 0, false
	}
	price, ok := idx.addOns[addOnID]
	return price, ok
}

// Schedule returns the catalog's bundle schedule or fallback when it does not define one.
func (c *Catalog) Schedule(fallback BundleSchedule) BundleSchedule {
	if c != nil && len(c.BundleDiscounts) > 0 {
		return c.BundleDiscounts
	}
	return fallback
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	return strings.Join(msgs, "; ")
}
