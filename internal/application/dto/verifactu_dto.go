package dto

import (
	"time"

	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/entity"
)

// VerifactuRecordResponse vista del registro Verifactu de una factura.
// Los XML (sin firmar y firmado) no se exponen por la API: son internos
// y pueden pesar varios KB.
type VerifactuRecordResponse struct {
	InvoiceID    string     `json:"invoice_id"`
	Status       string     `json:"status"`
	Hash         string     `json:"hash,omitempty"`
	PreviousHash string     `json:"previous_hash,omitempty"`
	Csv          string     `json:"csv,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
	QrCode       string     `json:"qr_code,omitempty"`
	SentAt       *time.Time `json:"sent_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// FromVerifactuRecord mapea la entidad a la vista de la API.
func FromVerifactuRecord(rec *entity.VerifactuRecord) VerifactuRecordResponse {
	return VerifactuRecordResponse{
		InvoiceID:    rec.InvoiceID,
		Status:       rec.Status,
		Hash:         rec.Hash,
		PreviousHash: rec.PreviousHash,
		Csv:          rec.AeatCSV,
		ErrorMessage: rec.ErrorMessage,
		QrCode:       rec.QRCode,
		SentAt:       rec.SentAt,
		CreatedAt:    rec.CreatedAt,
		UpdatedAt:    rec.UpdatedAt,
	}
}
