package repository

import (
	"context"

	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/entity"
)

// VerifactuRecordRepository persistencia de registros de facturación Verifactu.
// Cada transición de estado se persiste de forma atómica (una sentencia o una tx).
type VerifactuRecordRepository interface {
	// GetByInvoiceID devuelve el registro de la factura, o nil si no existe.
	GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.VerifactuRecord, error)
	// GetChainTail devuelve el registro más reciente del tenant por fecha de
	// creación (cola de la cadena), o nil si el tenant no tiene registros.
	// La huella de ese registro es la HuellaAnterior del siguiente envío.
	GetChainTail(ctx context.Context, tenantID string) (*entity.VerifactuRecord, error)
	// Create inserta el registro. Devuelve domain.ErrDuplicate si ya existe
	// un registro para la misma factura (constraint único sobre invoice_id).
	Create(ctx context.Context, rec *entity.VerifactuRecord) error
	// ClaimSending intenta la transición condicional a "sent": UPDATE ... WHERE
	// status = ANY(fromStatuses). Devuelve false si el estado actual no permite
	// reclamar el envío (otro intento ya lo reclamó). Persiste también hash,
	// previous_hash, xml_unsigned y sent_at calculados para este intento.
	ClaimSending(ctx context.Context, rec *entity.VerifactuRecord, fromStatuses []string) (bool, error)
	// Finalize persiste el estado terminal del intento (accepted/rejected/error)
	// junto con xml_signed, respuesta AEAT, CSV, mensaje de error y QR.
	Finalize(ctx context.Context, rec *entity.VerifactuRecord) error
}
