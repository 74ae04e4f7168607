// Package catalog defines the product records that are reranked and the
// storage used to look them up.
package catalog

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// MaxRating is the upper bound of the product rating scale.
const MaxRating = 5.0

// Product is a catalog entry and the unit the reranker scores. The core
// treats it as read-only.
type Product struct {
	ID          string  `json:"id" validate:"required,max=100"`
	Title       string  `json:"title" validate:"required,max=500"`
	Description string  `json:"description"`
	Category    string  `json:"category" validate:"max=100"`
	Price       float64 `json:"price" validate:"gte=0"`
	Rating      float64 `json:"rating" validate:"gte=0,lte=5"`
	NumReviews  int     `json:"num_reviews" validate:"gte=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field bounds before a product is stored.
func (p Product) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("product %q: %w", p.ID, err)
	}
	return nil
}
