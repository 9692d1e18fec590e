package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/SgeoCrg/facturandozen-sub000/internal/application/dto"
	appverifactu "github.com/SgeoCrg/facturandozen-sub000/internal/application/verifactu"
	"github.com/SgeoCrg/facturandozen-sub000/internal/domain"
)

// VerifactuHandler maneja el envío y la consulta del registro Verifactu (protegido).
type VerifactuHandler struct {
	orch *appverifactu.Orchestrator
}

// NewVerifactuHandler construye el handler.
func NewVerifactuHandler(orch *appverifactu.Orchestrator) *VerifactuHandler {
	return &VerifactuHandler{orch: orch}
}

// Submit ejecuta el envío Verifactu de la factura. Reenviar una factura ya
// aceptada es idempotente: devuelve el registro existente sin segundo envío.
// POST /api/invoices/:id/verifactu/submit
func (h *VerifactuHandler) Submit(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	invoiceID := c.Params("id")
	if invoiceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}

	rec, err := h.orch.SubmitInvoice(c.Context(), tenantID, invoiceID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInvoiceNotFound), errors.Is(err, domain.ErrNotFound):
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "factura no encontrada"})
		case errors.Is(err, domain.ErrInvalidInvoiceData):
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
		case errors.Is(err, domain.ErrSubmissionInProgress):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "IN_PROGRESS", Message: "ya hay un envío en curso para esta factura"})
		case errors.Is(err, domain.ErrCertificateNotFound):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CERT_MISSING", Message: "el tenant no tiene certificado de firma"})
		case errors.Is(err, domain.ErrCertificateExpired):
			return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CERT_EXPIRED", Message: "el certificado de firma está caducado"})
		case errors.Is(err, domain.ErrDecryption), errors.Is(err, domain.ErrSigning):
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "SIGNING", Message: "no se pudo firmar el registro"})
		default:
			return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
		}
	}
	// Sin error también cubre rechazo AEAT y fallo transitorio agotado: el
	// estado del registro (rejected/error) lo cuenta.
	return c.JSON(dto.FromVerifactuRecord(rec))
}

// GetRecord consulta el registro Verifactu de la factura.
// GET /api/invoices/:id/verifactu
func (h *VerifactuHandler) GetRecord(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	invoiceID := c.Params("id")
	if invoiceID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "id requerido"})
	}

	rec, err := h.orch.GetRecord(c.Context(), tenantID, invoiceID)
	if err != nil {
		if errors.Is(err, domain.ErrInvoiceNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "factura no encontrada"})
		}
		if errors.Is(err, domain.ErrNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "la factura no tiene registro Verifactu"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	return c.JSON(dto.FromVerifactuRecord(rec))
}
