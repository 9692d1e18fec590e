package repository

import (
	"context"

	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/entity"
)

// InvoiceRepository acceso de solo lectura a facturas emitidas.
// El pipeline Verifactu nunca muta una factura.
type InvoiceRepository interface {
	// GetByID devuelve la factura con sus líneas en orden de inserción,
	// o nil si no existe.
	GetByID(ctx context.Context, tenantID, invoiceID string) (*entity.Invoice, error)
}
