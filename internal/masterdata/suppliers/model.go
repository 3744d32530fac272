package suppliers

import (
	"time"
)

// Supplier represents a supplier entity
type Supplier struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code" validate:"required,max=32"`
	Name      string    `json:"name" validate:"required,max=160"`
	Contact   string    `json:"contact" validate:"max=120"`
	Phone     string    `json:"phone" validate:"max=32"`
	Email     string    `json:"email" validate:"omitempty,email"`
	Address   string    `json:"address" validate:"max=500"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
