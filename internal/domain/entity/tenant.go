package entity

import "time"

// Tenant empresa emisora (obligado tributario ante la AEAT).
type Tenant struct {
	ID        string
	Name      string // Razón social
	NIF       string
	Address   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
