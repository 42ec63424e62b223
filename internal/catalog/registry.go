package catalog

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/noah-isme/backend-quote/internal/pricing"
)

// ErrUnknownBuilder indicates no catalog is registered for the requested builder.
var ErrUnknownBuilder = errors.New("unknown builder")

//go:embed defaults/*.yaml
var defaultCatalogs embed.FS

// BuilderInfo is the public listing entry for a builder.
type BuilderInfo struct {
	Builder  string `json:"builder"`
	Name     string `json:"name"`
	Currency string `json:"currency,omitempty"`
	Services int    `json:"services"`
}

// Registry maps builder slugs to their pricing catalogs. It is read-only once built.
type Registry struct {
	catalogs map[string]*pricing.Catalog
}

// NewRegistry indexes catalogs by builder. Later catalogs replace earlier ones with the
// same builder.
func NewRegistry(catalogs ...*pricing.Catalog) *Registry {
	r := &Registry{catalogs: make(map[string]*pricing.Catalog, len(catalogs))}
	for _, c := range catalogs {
		if c == nil {
			continue
		}
		r.catalogs[c.Builder] = c
	}
	return r
}

// LoadDefaults builds a registry from the embedded catalogs.
func LoadDefaults() (*Registry, error) {
	catalogs, err := loadFS(defaultCatalogs, "defaults")
	if err != nil {
		return nil, err
	}
	return NewRegistry(catalogs...), nil
}

// LoadOption customises Load.
type LoadOption func(*loadOptions)

type loadOptions struct {
	currency string
}

// WithDefaultCurrency sets the currency of catalogs that do not declare one.
func WithDefaultCurrency(code string) LoadOption {
	return func(o *loadOptions) { o.currency = strings.ToUpper(strings.TrimSpace(code)) }
}

// Load builds the default registry and overlays every catalog file found in dir.
// An empty dir yields the defaults.
func Load(dir string, opts ...LoadOption) (*Registry, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	catalogs, err := loadFS(defaultCatalogs, "defaults")
	if err != nil {
		return nil, err
	}
	dir = strings.TrimSpace(dir)
	if dir != "" {
		overrides, err := loadFS(os.DirFS(dir), ".")
		if err != nil {
			return nil, fmt.Errorf("catalog dir %s: %w", dir, err)
		}
		catalogs = append(catalogs, overrides...)
	}
	if o.currency != "" {
		for _, c := range catalogs {
			if c.Currency == "" {
				c.Currency = o.currency
			}
		}
	}
	return NewRegistry(catalogs...), nil
}

func loadFS(fsys fs.FS, root string) ([]*pricing.Catalog, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, err
	}
	var out []*pricing.Catalog
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		format, ok := pricing.FormatFromPath(entry.Name())
		if !ok {
			continue
		}
		name := path.Join(root, entry.Name())
		f, err := fsys.Open(name)
		if err != nil {
			return nil, err
		}
		c, err := pricing.Decode(f, format)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(name), err)
		}
		out = append(out, c)
	}
	return out, nil
}

// Get returns the catalog for builder.
func (r *Registry) Get(builder string) (*pricing.Catalog, error) {
	if r == nil {
		return nil, ErrUnknownBuilder
	}
	c, ok := r.catalogs[strings.TrimSpace(builder)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownBuilder, builder)
	}
	return c, nil
}

// Len reports the number of registered builders.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.catalogs)
}

// Builders lists registered builders sorted by slug.
func (r *Registry) Builders() []BuilderInfo {
	if r == nil {
		return nil
	}
	out := make([]BuilderInfo, 0, len(r.catalogs))
	for _, c := range r.catalogs {
		out = append(out, BuilderInfo{
			Builder:  c.Builder,
			Name:     c.Name,
			Currency: c.Currency,
			Services: len(c.Services),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Builder < out[j].Builder })
	return out
}
