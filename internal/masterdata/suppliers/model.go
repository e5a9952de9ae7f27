package suppliers

import (
	"time"

	"github.com/google/uuid"
)

// Supplier represents a supplier entity. Suppliers are soft-disabled once
// referenced by purchase orders, never hard-deleted.
type Supplier struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	ContactPerson string    `json:"contact_person"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Address       string    `json:"address"`
	TaxNumber     string    `json:"tax_number"`
	IsActive      bool      `json:"is_active"`
	CreatedBy     uuid.UUID `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
