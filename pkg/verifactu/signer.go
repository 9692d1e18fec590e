// Package verifactu: interfaz para firma digital de registros XML (XAdES, AEAT).

package verifactu

import "crypto/tls"

// Signer firma un XML de registro de facturación y devuelve el XML con la
// firma envuelta (enveloped signature).
type Signer interface {
	// Sign toma el XML del registro (sin firma) y el certificado con llave privada,
	// y retorna el XML con el nodo ds:Signature inyectado.
	Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error)
}
