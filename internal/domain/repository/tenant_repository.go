package repository

import (
	"context"

	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/entity"
)

// TenantRepository acceso a la empresa emisora.
type TenantRepository interface {
	// GetByID devuelve el tenant o nil si no existe.
	GetByID(ctx context.Context, id string) (*entity.Tenant, error)
}
