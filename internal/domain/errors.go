package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrDuplicate    = errors.New("recurso duplicado")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")
)

// Errores del pipeline Verifactu.
var (
	// ErrInvoiceNotFound la factura no existe o no pertenece al tenant.
	ErrInvoiceNotFound = errors.New("factura no encontrada")
	// ErrInvalidInvoiceData faltan campos obligatorios para el registro (NIF, total, líneas).
	ErrInvalidInvoiceData = errors.New("datos de factura inválidos para Verifactu")
	// ErrCertificateNotFound el tenant no ha subido certificado de firma.
	ErrCertificateNotFound = errors.New("certificado no encontrado")
	// ErrCertificateExpired el certificado está caducado; renovarlo antes de enviar.
	ErrCertificateExpired = errors.New("certificado caducado")
	// ErrDecryption no se pudo descifrar el certificado almacenado.
	ErrDecryption = errors.New("error al descifrar el certificado")
	// ErrSigning fallo al firmar el XML (certificado malformado o clave no soportada).
	ErrSigning = errors.New("error de firma digital")
	// ErrSubmissionInProgress ya hay un envío en curso para la misma factura.
	ErrSubmissionInProgress = errors.New("envío Verifactu en curso para esta factura")
	// ErrQrEncoding no se pudo generar el código QR de verificación.
	ErrQrEncoding = errors.New("error al generar el código QR")
)
