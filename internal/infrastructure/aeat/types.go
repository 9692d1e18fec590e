// Package aeat implementa la generación y envío del registro de facturación
// Verifactu (suministro de registros al sistema de la AEAT).
package aeat

import (
	"time"

	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/entity"
)

// RegistroBuildContext contexto con todos los datos necesarios para construir
// el XML del registro de alta.
type RegistroBuildContext struct {
	Invoice *entity.Invoice
	Tenant  *entity.Tenant // Obligado de emisión (emisor)

	// Huella de este registro y del anterior de la cadena ("" si es el primero).
	Hash         string
	PreviousHash string

	// GeneratedAt momento de generación del registro (FechaHoraHusoGenRegistro).
	// Se pasa como parámetro para que la salida sea reproducible.
	GeneratedAt time.Time
}
