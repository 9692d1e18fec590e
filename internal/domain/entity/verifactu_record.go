package entity

import "time"

// Estados del registro Verifactu. Máquina de estados:
//
//	pending → sent → {accepted | rejected | error}
//
// "error" es terminal recuperable: un reintento reutiliza la misma fila
// (nunca se crea un segundo registro para la misma factura) volviendo a "sent".
// "rejected" requiere corregir la factura y reenviar manualmente.
const (
	VerifactuStatusPending  = "pending"
	VerifactuStatusSent     = "sent"
	VerifactuStatusAccepted = "accepted"
	VerifactuStatusRejected = "rejected"
	VerifactuStatusError    = "error"
)

// VerifactuRecord registro de facturación Verifactu: huella encadenada,
// XML firmado y resultado del envío a la AEAT. Uno por factura (constraint
// único sobre invoice_id).
type VerifactuRecord struct {
	ID        string
	TenantID  string
	InvoiceID string

	// Huella hex de esta factura + eslabón de cadena. PreviousHash es la huella
	// del registro inmediatamente anterior del mismo tenant, o "" si es el primero.
	Hash         string
	PreviousHash string

	XMLUnsigned string
	XMLSigned   string // vacío hasta que la firma tiene éxito

	AeatResponse string // respuesta cruda de la AEAT
	AeatCSV      string // código seguro de verificación devuelto al aceptar
	SentAt       *time.Time

	Status       string
	ErrorMessage string // poblado en rejected/error; vacío en accepted

	QRCode string // data URI PNG con la URL de verificación AEAT

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Terminal indica si el registro está en un estado desde el que no procede
// un nuevo envío automático (accepted es idempotente, sent está en vuelo).
func (r *VerifactuRecord) Terminal() bool {
	return r.Status == VerifactuStatusAccepted
}

// Retryable indica si SubmitInvoice puede reutilizar este registro para un
// nuevo intento.
func (r *VerifactuRecord) Retryable() bool {
	return r.Status == VerifactuStatusError || r.Status == VerifactuStatusRejected || r.Status == VerifactuStatusPending
}
