package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice cabecera de factura emitida. Para el pipeline Verifactu es un
// colaborador de solo lectura: una vez emitida, su contenido es inmutable
// a efectos de huella (el hash encadenado se calcula sobre estos campos).
type Invoice struct {
	ID         string
	TenantID   string
	FullNumber string // Serie + número (ej: A2025/000001)
	Date       time.Time

	// Snapshot del cliente en el momento de emisión (vinculado o manual).
	CustomerName    string
	CustomerNIF     string
	CustomerAddress string

	// Totales calculados: Total = Subtotal + TotalIVA.
	Subtotal decimal.Decimal
	TotalIVA decimal.Decimal
	Total    decimal.Decimal

	Lines []InvoiceLine

	CreatedAt time.Time
	UpdatedAt time.Time
}

// InvoiceLine línea de factura. El orden de inserción es significativo:
// afecta a la serialización canónica usada para la huella.
type InvoiceLine struct {
	ID          string
	InvoiceID   string
	Position    int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	IVARate     decimal.Decimal // Tipo de IVA en porcentaje (21, 10, 4, 0)
}

// LineTotal importe de la línea sin IVA.
func (l InvoiceLine) LineTotal() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}
