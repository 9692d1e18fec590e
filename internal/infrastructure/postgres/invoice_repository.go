package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/entity"
	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de solo lectura de InvoiceRepository.
// El pipeline Verifactu nunca escribe en invoices.
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador. Pasar pool o tx (Querier).
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

// GetByID obtiene la factura del tenant con sus líneas en orden de inserción,
// o nil si no existe. El filtro por tenant_id evita leer facturas ajenas.
func (r *InvoiceRepo) GetByID(ctx context.Context, tenantID, invoiceID string) (*entity.Invoice, error) {
	const query = `
		SELECT id, tenant_id, full_number, date,
		       customer_name, COALESCE(customer_nif, ''), COALESCE(customer_address, ''),
		       subtotal, total_iva, total,
		       created_at, updated_at
		FROM invoices WHERE id = $1 AND tenant_id = $2`
	var inv entity.Invoice
	err := r.q.QueryRow(ctx, query, invoiceID, tenantID).Scan(
		&inv.ID, &inv.TenantID, &inv.FullNumber, &inv.Date,
		&inv.CustomerName, &inv.CustomerNIF, &inv.CustomerAddress,
		&inv.Subtotal, &inv.TotalIVA, &inv.Total,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	lines, err := r.linesByInvoiceID(ctx, inv.ID)
	if err != nil {
		return nil, err
	}
	inv.Lines = lines
	return &inv, nil
}

// linesByInvoiceID obtiene las líneas ordenadas por posición (orden de
// inserción, significativo para la serialización canónica).
func (r *InvoiceRepo) linesByInvoiceID(ctx context.Context, invoiceID string) ([]entity.InvoiceLine, error) {
	const query = `
		SELECT id, invoice_id, position, description, quantity, unit_price, iva_rate
		FROM invoice_lines WHERE invoice_id = $1 ORDER BY position`
	rows, err := r.q.Query(ctx, query, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list invoice lines: %w", err)
	}
	defer rows.Close()
	var list []entity.InvoiceLine
	for rows.Next() {
		var l entity.InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Position, &l.Description, &l.Quantity, &l.UnitPrice, &l.IVARate); err != nil {
			return nil, fmt.Errorf("scan line: %w", err)
		}
		list = append(list, l)
	}
	return list, rows.Err()
}
