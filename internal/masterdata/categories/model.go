package categories

import "time"

// Category represents a product category
type Category struct {
	ID          int64     `json:"id"`
	Code        string    `json:"code" validate:"required,max=32"`
	Name        string    `json:"name" validate:"required,max=120"`
	Description string    `json:"description" validate:"max=500"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
