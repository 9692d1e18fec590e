package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/SgeoCrg/facturandozen-sub000/internal/domain"
	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/entity"
	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/repository"
)

var _ repository.CertificateRepository = (*CertificateRepo)(nil)

// CertificateRepo persistencia del certificado cifrado por tenant (uno por tenant).
type CertificateRepo struct {
	q Querier
}

// NewCertificateRepository construye el adaptador. Pasar pool o tx (Querier).
func NewCertificateRepository(q Querier) *CertificateRepo {
	return &CertificateRepo{q: q}
}

// GetByTenant obtiene el certificado cifrado del tenant, o nil si no hay.
func (r *CertificateRepo) GetByTenant(ctx context.Context, tenantID string) (*entity.Certificate, error) {
	const query = `
		SELECT tenant_id, cert_encrypted, password_encrypted, expires_at, created_at, updated_at
		FROM tenant_certificates WHERE tenant_id = $1`
	var c entity.Certificate
	err := r.q.QueryRow(ctx, query, tenantID).Scan(
		&c.TenantID, &c.CertEncrypted, &c.PasswordEncrypted, &c.ExpiresAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get certificate: %w", err)
	}
	return &c, nil
}

// Upsert crea o reemplaza el certificado del tenant. Devuelve domain.ErrNotFound
// si el tenant referenciado no existe.
func (r *CertificateRepo) Upsert(ctx context.Context, cert *entity.Certificate) error {
	const query = `
		INSERT INTO tenant_certificates (tenant_id, cert_encrypted, password_encrypted, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id) DO UPDATE
		SET cert_encrypted     = EXCLUDED.cert_encrypted,
		    password_encrypted = EXCLUDED.password_encrypted,
		    expires_at         = EXCLUDED.expires_at,
		    updated_at         = EXCLUDED.updated_at`
	_, err := r.q.Exec(ctx, query,
		cert.TenantID, cert.CertEncrypted, cert.PasswordEncrypted,
		cert.ExpiresAt, cert.CreatedAt, cert.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("tenant %s no existe: %w", cert.TenantID, domain.ErrNotFound)
		}
		return fmt.Errorf("upsert certificate: %w", err)
	}
	return nil
}

// Delete elimina el certificado del tenant. No falla si no existía.
func (r *CertificateRepo) Delete(ctx context.Context, tenantID string) error {
	_, err := r.q.Exec(ctx, `DELETE FROM tenant_certificates WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("delete certificate: %w", err)
	}
	return nil
}
