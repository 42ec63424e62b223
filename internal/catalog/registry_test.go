package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-quote/internal/catalog"
)

func TestLoadDefaults(t *testing.T) {
	reg, err := catalog.LoadDefaults()
	require.NoError(t, err)

	builders := reg.Builders()
	require.GreaterOrEqual(t, len(builders), 4)
	for i := 1; i < len(builders); i++ {
		require.Less(t, builders[i-1].Builder, builders[i].Builder)
	}

	plan, err := reg.Get("plan")
	require.NoError(t, err)
	price, ok := plan.TierPrice("website", "pro")
	require.True(t, ok)
	require.EqualValues(t, 4000, price)

	_, err = reg.Get("missing")
	require.ErrorIs(t, err, catalog.ErrUnknownBuilder)
}

func TestLoadOverlaysDirectory(t *testing.T) {
	dir := t.TempDir()
	override := `
builder: plan
name: Custom plan
currency: eur
services:
  - id: website
    tiers:
      - {id: essential, price: 100}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "plan.yaml"), []byte(override), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.txt"), []byte("ignored"), 0o600))

	reg, err := catalog.Load(dir)
	require.NoError(t, err)

	plan, err := reg.Get("plan")
	require.NoError(t, err)
	require.Equal(t, "Custom plan", plan.Name)
	require.Equal(t, "EUR", plan.Currency)
	require.Len(t, plan.Services, 1)

	_, err = reg.Get("website")
	require.NoError(t, err, "defaults survive the overlay")
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"builder":"x","services":[]}`), 0o600))

	_, err := catalog.Load(dir)
	require.Error(t, err)
	require.Contains(t, err.Error(), "bad.json")
}

func TestLoadMissingDirectory(t *testing.T) {
	_, err := catalog.Load(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestLoadDefaultCurrency(t *testing.T) {
	reg, err := catalog.Load("", catalog.WithDefaultCurrency("gbp"))
	require.NoError(t, err)

	app, err := reg.Get("app")
	require.NoError(t, err)
	require.Equal(t, "GBP", app.Currency)

	plan, err := reg.Get("plan")
	require.NoError(t, err)
	require.Equal(t, "USD", plan.Currency, "declared currency wins")
}
