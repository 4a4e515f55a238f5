package domain

import (
	"context"
	"errors"
	"time"
)

type Service interface {
	List(ctx context.Context, productID string) ([]Response, error)
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Update(ctx context.Context, req UpdateRequest) (*Response, error)
	Delete(ctx context.Context, id string) error
	ImportRows(ctx context.Context, productID string, rows []ImportRow) (int, error)
}

// CreateRequest carries a submitted draft. Distance and weight arrive as text
// because the form keeps them that way until submit; this service is the
// authority on their numeric validity.
type CreateRequest struct {
	ProductID       string           `json:"product_id"`
	Distance        string           `json:"distance"`
	Weight          string           `json:"weight"`
	Reference       string           `json:"reference"`
	OverrideFactors []OverrideFactor `json:"override_factors"`
	LineItems       []string         `json:"line_items"`
}

type UpdateRequest struct {
	ID              string           `json:"id"`
	Distance        string           `json:"distance"`
	Weight          string           `json:"weight"`
	Reference       string           `json:"reference"`
	OverrideFactors []OverrideFactor `json:"override_factors"`
	LineItems       []string         `json:"line_items"`
}

// ImportRow is one bulk-imported record, already decoded from the uploaded
// file by the import adapter.
type ImportRow struct {
	Distance  string `json:"distance" csv:"distance"`
	Weight    string `json:"weight" csv:"weight"`
	Reference string `json:"reference" csv:"reference"`
}

type Response struct {
	ID              string           `json:"id"`
	ProductID       string           `json:"product_id"`
	Distance        float64          `json:"distance"`
	Weight          float64          `json:"weight"`
	Reference       string           `json:"reference"`
	OverrideFactors []OverrideFactor `json:"override_factors"`
	LineItems       []string         `json:"line_items"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

var (
	ErrInvalidCompany   = errors.New("invalid_company")
	ErrInvalidProductID = errors.New("invalid_product_id")
	ErrInvalidDistance  = errors.New("invalid_distance")
	ErrInvalidWeight    = errors.New("invalid_weight")
	ErrInvalidReference = errors.New("invalid_reference")
	ErrInvalidLineItem  = errors.New("invalid_line_item")
	ErrInvalidID        = errors.New("invalid_id")
	ErrNotFound         = errors.New("not_found")
)
