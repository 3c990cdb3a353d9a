// Package catalog holds the static product descriptions shown next to the
// ledger timeline: name, imagery, price and the ESG claims being verified.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// ErrNotFound is returned when a garment is not in the catalog.
var ErrNotFound = errors.New("garment not found")

// Garment is one catalog item. ID doubles as the ledger product identifier.
type Garment struct {
	ID          string   `json:"id" yaml:"id" validate:"required,max=128"`
	Name        string   `json:"name" yaml:"name" validate:"required"`
	Description string   `json:"description" yaml:"description"`
	Image       string   `json:"image" yaml:"image" validate:"omitempty,url"`
	Price       string   `json:"price" yaml:"price"`
	ESGClaims   []string `json:"esg_claims" yaml:"esg_claims" validate:"dive,required"`
}

// Clone returns a deep copy so callers can never mutate stored entries.
func (g *Garment) Clone() *Garment {
	c := *g
	c.ESGClaims = append([]string(nil), g.ESGClaims...)
	return &c
}

// Store looks up catalog items.
// MemoryStore and PostgresStore implement this interface.
type Store interface {
	Get(ctx context.Context, id string) (*Garment, error)
	List(ctx context.Context) ([]*Garment, error)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a garment's fields.
func Validate(g *Garment) error {
	if err := validate.Struct(g); err != nil {
		return fmt.Errorf("garment %q: %w", g.ID, err)
	}
	return nil
}

// Defaults returns the built-in catalog.
func Defaults() []*Garment {
	return []*Garment{
		{
			ID:          "organic-cotton-tshirt",
			Name:        "Organic Cotton T-Shirt",
			Description: "A comfortable, breathable t-shirt made from 100% certified organic cotton",
			Image:       "https://images.unsplash.com/photo-1521572163474-6864f9cf17ab?w=800",
			Price:       "$45",
			ESGClaims: []string{
				"Certified Organic Cotton (GOTS)",
				"Carbon-neutral manufacturing",
				"Fair Trade Certified",
				"Water-efficient dyeing process",
				"Recyclable packaging",
			},
		},
	}
}
