package entity

import "time"

// Certificate certificado de firma PKCS#12 del tenant, cifrado en reposo.
// Se sube una vez desde ajustes, se descifra bajo demanda en cada envío y
// el pipeline nunca lo muta. CertEncrypted y PasswordEncrypted van cifrados
// con AES-256-GCM usando la clave maestra del proceso (nunca se almacena junto
// al ciphertext).
type Certificate struct {
	TenantID          string
	CertEncrypted     []byte // PKCS#12 cifrado
	PasswordEncrypted []byte // Contraseña del PKCS#12, cifrada aparte
	ExpiresAt         time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Expired indica si el certificado está caducado respecto a now.
func (c *Certificate) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}
