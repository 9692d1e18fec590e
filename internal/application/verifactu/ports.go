package verifactu

import (
	"context"
	"crypto/tls"
)

// CredentialProvider puerto de acceso al certificado de firma del tenant.
// Desacopla al orquestador del almacenamiento y cifrado concretos; la
// implementación real es infrastructure/certstore.Store.
type CredentialProvider interface {
	// GetDecrypted devuelve el certificado con llave privada listo para firmar.
	// Errores: domain.ErrCertificateNotFound, domain.ErrCertificateExpired,
	// domain.ErrDecryption.
	GetDecrypted(ctx context.Context, tenantID string) (tls.Certificate, error)
}
