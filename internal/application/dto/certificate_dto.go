package dto

import "time"

// UploadCertificateRequest subida del certificado de firma del tenant.
// El PKCS#12 viaja en Base64; la contraseña nunca se devuelve ni se loguea.
type UploadCertificateRequest struct {
	CertificateBase64 string `json:"certificate_base64"`
	Password          string `json:"password"`
}

// CertificateResponse vista del certificado almacenado (sin material sensible).
type CertificateResponse struct {
	TenantID  string    `json:"tenant_id"`
	ExpiresAt time.Time `json:"expires_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
