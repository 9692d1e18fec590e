package http

import (
	"encoding/base64"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/SgeoCrg/facturandozen-sub000/internal/application/dto"
	"github.com/SgeoCrg/facturandozen-sub000/internal/domain"
	"github.com/SgeoCrg/facturandozen-sub000/internal/infrastructure/certstore"
)

// CertificateHandler gestiona el certificado de firma del tenant (protegido).
type CertificateHandler struct {
	store *certstore.Store
}

// NewCertificateHandler construye el handler.
func NewCertificateHandler(store *certstore.Store) *CertificateHandler {
	return &CertificateHandler{store: store}
}

// Upload sube (o reemplaza) el certificado PKCS#12 del tenant.
// PUT /api/tenant/certificate
func (h *CertificateHandler) Upload(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.UploadCertificateRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "cuerpo inválido"})
	}
	p12, err := base64.StdEncoding.DecodeString(in.CertificateBase64)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "certificate_base64 no es Base64 válido"})
	}

	rec, err := h.store.Save(c.Context(), tenantID, p12, in.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "el archivo no es un PKCS#12 válido o la contraseña es incorrecta"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "no se pudo guardar el certificado"})
	}
	return c.JSON(dto.CertificateResponse{
		TenantID:  rec.TenantID,
		ExpiresAt: rec.ExpiresAt,
		UpdatedAt: rec.UpdatedAt,
	})
}

// Delete elimina el certificado del tenant.
// DELETE /api/tenant/certificate
func (h *CertificateHandler) Delete(c *fiber.Ctx) error {
	tenantID := GetTenantID(c)
	if tenantID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	if err := h.store.Delete(c.Context(), tenantID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: "no se pudo eliminar el certificado"})
	}
	return c.SendStatus(fiber.StatusNoContent)
}
