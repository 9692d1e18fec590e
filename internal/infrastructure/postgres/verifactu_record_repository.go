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

var _ repository.VerifactuRecordRepository = (*VerifactuRecordRepo)(nil)

// VerifactuRecordRepo persistencia de registros Verifactu. Cada transición de
// estado es una sola sentencia SQL (atómica sin tx explícita).
type VerifactuRecordRepo struct {
	q Querier
}

// NewVerifactuRecordRepository construye el adaptador. Pasar pool o tx (Querier).
func NewVerifactuRecordRepository(q Querier) *VerifactuRecordRepo {
	return &VerifactuRecordRepo{q: q}
}

const recordColumns = `
	id, tenant_id, invoice_id,
	COALESCE(hash, ''), COALESCE(previous_hash, ''),
	COALESCE(xml_unsigned, ''), COALESCE(xml_signed, ''),
	COALESCE(aeat_response, ''), COALESCE(aeat_csv, ''),
	sent_at, status, COALESCE(error_message, ''), COALESCE(qr_code, ''),
	created_at, updated_at`

func scanRecord(row pgx.Row) (*entity.VerifactuRecord, error) {
	var rec entity.VerifactuRecord
	err := row.Scan(
		&rec.ID, &rec.TenantID, &rec.InvoiceID,
		&rec.Hash, &rec.PreviousHash,
		&rec.XMLUnsigned, &rec.XMLSigned,
		&rec.AeatResponse, &rec.AeatCSV,
		&rec.SentAt, &rec.Status, &rec.ErrorMessage, &rec.QRCode,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByInvoiceID devuelve el registro de la factura, o nil si no existe.
func (r *VerifactuRecordRepo) GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.VerifactuRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM verifactu_records WHERE invoice_id = $1`
	rec, err := scanRecord(r.q.QueryRow(ctx, query, invoiceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get verifactu record: %w", err)
	}
	return rec, nil
}

// GetChainTail devuelve el último registro del tenant que ya forma parte de la
// cadena (enviado o aceptado), o nil si no hay ninguno. Los registros en
// pending/error/rejected no cuentan: aún no tienen huella confirmada, y así un
// reintento nunca se encadena consigo mismo.
func (r *VerifactuRecordRepo) GetChainTail(ctx context.Context, tenantID string) (*entity.VerifactuRecord, error) {
	query := `SELECT ` + recordColumns + `
		FROM verifactu_records
		WHERE tenant_id = $1 AND status IN ('sent', 'accepted')
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	rec, err := scanRecord(r.q.QueryRow(ctx, query, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chain tail: %w", err)
	}
	return rec, nil
}

// Create inserta el registro en estado pending. Devuelve domain.ErrDuplicate
// si ya existe un registro para la misma factura, y domain.ErrInvoiceNotFound
// si la factura (o el tenant) desapareció entre la lectura y el insert.
func (r *VerifactuRecordRepo) Create(ctx context.Context, rec *entity.VerifactuRecord) error {
	const query = `
		INSERT INTO verifactu_records (id, tenant_id, invoice_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, query,
		rec.ID, rec.TenantID, rec.InvoiceID, rec.Status, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("registro ya existe para la factura %s: %w", rec.InvoiceID, domain.ErrDuplicate)
		}
		if isForeignKeyViolation(err) {
			return fmt.Errorf("factura %s ya no existe: %w", rec.InvoiceID, domain.ErrInvoiceNotFound)
		}
		return fmt.Errorf("insert verifactu record: %w", err)
	}
	return nil
}

// ClaimSending intenta la transición condicional a "sent". El WHERE sobre el
// estado actual garantiza como máximo un envío en vuelo por factura aunque
// haya varios procesos compitiendo: solo uno ve RowsAffected = 1.
func (r *VerifactuRecordRepo) ClaimSending(ctx context.Context, rec *entity.VerifactuRecord, fromStatuses []string) (bool, error) {
	const query = `
		UPDATE verifactu_records
		SET status        = $2,
		    hash          = $3,
		    previous_hash = $4,
		    xml_unsigned  = $5,
		    sent_at       = $6,
		    error_message = NULL,
		    updated_at    = $7
		WHERE id = $1 AND status = ANY($8)`
	tag, err := r.q.Exec(ctx, query,
		rec.ID, rec.Status, rec.Hash, rec.PreviousHash,
		rec.XMLUnsigned, rec.SentAt, rec.UpdatedAt, fromStatuses,
	)
	if err != nil {
		return false, fmt.Errorf("claim sending: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Finalize persiste el estado terminal del intento junto con el XML firmado,
// la respuesta de la AEAT, el CSV, el mensaje de error y el QR.
func (r *VerifactuRecordRepo) Finalize(ctx context.Context, rec *entity.VerifactuRecord) error {
	const query = `
		UPDATE verifactu_records
		SET status        = $2,
		    xml_signed    = $3,
		    aeat_response = $4,
		    aeat_csv      = $5,
		    error_message = $6,
		    qr_code       = $7,
		    updated_at    = $8
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query,
		rec.ID, rec.Status, rec.XMLSigned, rec.AeatResponse,
		rec.AeatCSV, rec.ErrorMessage, rec.QRCode, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("finalize verifactu record: %w", err)
	}
	return nil
}
