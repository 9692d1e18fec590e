package repository

import (
	"context"

	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/entity"
)

// CertificateRepository persistencia del certificado cifrado por tenant.
type CertificateRepository interface {
	// GetByTenant devuelve el certificado cifrado del tenant, o nil si no hay.
	GetByTenant(ctx context.Context, tenantID string) (*entity.Certificate, error)
	// Upsert crea o reemplaza el certificado del tenant (uno por tenant).
	Upsert(ctx context.Context, cert *entity.Certificate) error
	// Delete elimina el certificado del tenant.
	Delete(ctx context.Context, tenantID string) error
}
