package promotions

import (
	"time"

	"github.com/tillpoint/tillpoint/internal/platform/httpx"
	"github.com/tillpoint/tillpoint/internal/shared"
)

// Promotion is a percentage discount redeemable by code within a window.
type Promotion struct {
	ID              int64     `json:"id"`
	Code            string    `json:"code"`
	Name            string    `json:"name"`
	DiscountPercent float64   `json:"discount_percent"`
	StartsAt        time.Time `json:"starts_at"`
	EndsAt          time.Time `json:"ends_at"`
	Active          bool      `json:"active"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AppliesAt reports whether the promotion can be redeemed at t. The window
// includes StartsAt and excludes EndsAt.
func (p Promotion) AppliesAt(t time.Time) bool {
	return p.Active && !t.Before(p.StartsAt) && t.Before(p.EndsAt)
}

// Input is the editable part of a promotion.
type Input struct {
	Code            string    `json:"code" validate:"required,max=64"`
	Name            string    `json:"name" validate:"required,max=128"`
	DiscountPercent float64   `json:"discount_percent" validate:"gt=0,lte=100"`
	StartsAt        time.Time `json:"starts_at" validate:"required"`
	EndsAt          time.Time `json:"ends_at" validate:"required,gtfield=StartsAt"`
	Active          bool      `json:"active"`
}

// ListFilter narrows promotion listings.
type ListFilter struct {
	shared.ListFilters
	ActiveAt time.Time
}

var (
	// ErrNotFound indicates the promotion does not exist.
	ErrNotFound = shared.Safe("Promotion not found", httpx.ErrNotFound)
	// ErrDuplicateCode indicates the code is taken.
	ErrDuplicateCode = shared.Safe("A promotion with this code already exists", httpx.ErrDuplicate)
	// ErrNotApplicable is returned for unknown, inactive or expired codes.
	ErrNotApplicable = shared.Safe("This promotion code is not valid right now", httpx.ErrValidation)
)
