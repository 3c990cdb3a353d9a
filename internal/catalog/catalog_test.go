package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmerrifield20/SupplyChainLedger/internal/catalog"
)

var ctx = context.Background()

func TestMemoryStore_defaults(t *testing.T) {
	s := catalog.NewMemoryStore(catalog.Defaults()...)

	g, err := s.Get(ctx, "organic-cotton-tshirt")
	require.NoError(t, err)
	assert.Equal(t, "Organic Cotton T-Shirt", g.Name)
	assert.Len(t, g.ESGClaims, 5)

	_, err = s.Get(ctx, "wool-sweater")
	assert.True(t, errors.Is(err, catalog.ErrNotFound))
}

func TestMemoryStore_returnsCopies(t *testing.T) {
	s := catalog.NewMemoryStore(catalog.Defaults()...)

	g, err := s.Get(ctx, "organic-cotton-tshirt")
	require.NoError(t, err)
	g.Name = "changed"
	g.ESGClaims[0] = "changed"

	again, err := s.Get(ctx, "organic-cotton-tshirt")
	require.NoError(t, err)
	assert.Equal(t, "Organic Cotton T-Shirt", again.Name)
	assert.Equal(t, "Certified Organic Cotton (GOTS)", again.ESGClaims[0])
}

func TestMemoryStore_ListSorted(t *testing.T) {
	s := catalog.NewMemoryStore(
		&catalog.Garment{ID: "b", Name: "B"},
		&catalog.Garment{ID: "a", Name: "A"},
	)
	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
}

func TestDefaults_valid(t *testing.T) {
	for _, g := range catalog.Defaults() {
		assert.NoError(t, catalog.Validate(g))
	}
}

func TestValidate_rejects(t *testing.T) {
	assert.Error(t, catalog.Validate(&catalog.Garment{Name: "no id"}))
	assert.Error(t, catalog.Validate(&catalog.Garment{ID: "x"}))
	assert.Error(t, catalog.Validate(&catalog.Garment{ID: "x", Name: "X", Image: "not a url"}))
	assert.Error(t, catalog.Validate(&catalog.Garment{ID: "x", Name: "X", ESGClaims: []string{""}}))
}

const sampleYAML = `
garments:
  - id: hemp-jacket
    name: Hemp Jacket
    description: Durable jacket woven from hemp fibre
    image: https://example.com/hemp.jpg
    price: "$120"
    esg_claims:
      - Low-water crop
      - Solar-powered mill
  - id: linen-shirt
    name: Linen Shirt
`

func TestParse(t *testing.T) {
	s, err := catalog.Parse([]byte(sampleYAML))
	require.NoError(t, err)

	g, err := s.Get(ctx, "hemp-jacket")
	require.NoError(t, err)
	assert.Equal(t, "$120", g.Price)
	assert.Equal(t, []string{"Low-water crop", "Solar-powered mill"}, g.ESGClaims)

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestParse_errors(t *testing.T) {
	cases := map[string]string{
		"empty":     `garments: []`,
		"malformed": `garments: [`,
		"invalid":   "garments:\n  - id: x\n",
		"duplicate": "garments:\n  - {id: x, name: X}\n  - {id: x, name: Y}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := catalog.Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o600))

	s, err := catalog.LoadFile(path)
	require.NoError(t, err)
	_, err = s.Get(ctx, "linen-shirt")
	assert.NoError(t, err)

	_, err = catalog.LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
