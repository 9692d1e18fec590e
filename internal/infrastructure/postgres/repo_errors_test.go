package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/SgeoCrg/facturandozen-sub000/internal/domain"
	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/entity"
)

// failingQuerier devuelve siempre el mismo error en Exec (simula el pool).
type failingQuerier struct {
	err error
}

func (q *failingQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, q.err
}

func (q *failingQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, q.err
}

func (q *failingQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	panic("no usado en estos tests")
}

func testRecord() *entity.VerifactuRecord {
	now := time.Now().UTC()
	return &entity.VerifactuRecord{
		ID:        "8d0f2a9e-0000-0000-0000-000000000001",
		TenantID:  "8d0f2a9e-0000-0000-0000-0000000000aa",
		InvoiceID: "8d0f2a9e-0000-0000-0000-0000000000bb",
		Status:    entity.VerifactuStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Un insert duplicado se traduce al error de dominio, no al error crudo de pgx.
func TestVerifactuRecordRepo_CreateDuplicado(t *testing.T) {
	repo := NewVerifactuRecordRepository(&failingQuerier{err: pgError(codeUniqueViolation)})

	err := repo.Create(context.Background(), testRecord())

	assert.ErrorIs(t, err, domain.ErrDuplicate)
}

// Si la factura fue borrada entre la lectura y el insert, la violación de FK
// se reporta como factura no encontrada.
func TestVerifactuRecordRepo_CreateFacturaBorrada(t *testing.T) {
	repo := NewVerifactuRecordRepository(&failingQuerier{err: pgError(codeForeignKeyViolation)})

	err := repo.Create(context.Background(), testRecord())

	assert.ErrorIs(t, err, domain.ErrInvoiceNotFound)
}

// Subir un certificado para un tenant inexistente devuelve not found.
func TestCertificateRepo_UpsertTenantInexistente(t *testing.T) {
	repo := NewCertificateRepository(&failingQuerier{err: pgError(codeForeignKeyViolation)})

	now := time.Now().UTC()
	err := repo.Upsert(context.Background(), &entity.Certificate{
		TenantID:  "8d0f2a9e-0000-0000-0000-0000000000aa",
		ExpiresAt: now.AddDate(1, 0, 0),
		CreatedAt: now,
		UpdatedAt: now,
	})

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
