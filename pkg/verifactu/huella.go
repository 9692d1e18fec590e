// Package verifactu: cálculo de la huella encadenada del registro de
// facturación (RD 1007/2023, sistema Verifactu de la AEAT).
// Algoritmo: SHA-256 sobre la cadena canónica clave=valor en orden estricto,
// salida en hexadecimal (mayúsculas).

package verifactu

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// HuellaParams contiene los datos para calcular la huella (orden estricto AEAT).
// La huella del registro anterior del mismo tenant entra como último campo;
// cadena vacía si es el primer registro de la cadena.
type HuellaParams struct {
	NIFEmisor      string          // NIF del obligado a expedir la factura
	NumSerie       string          // Serie + número (sin espacios)
	FechaEmision   string          // Fecha de expedición DD-MM-YYYY
	NIFDestino     string          // NIF/ID del destinatario (puede ser vacío en simplificadas)
	ImporteTotal   decimal.Decimal // Total de la factura (base + cuota)
	HuellaAnterior string          // Huella del registro anterior, "" si primer eslabón
}

// HuellaCalculatorService calcula la huella según la especificación Verifactu.
type HuellaCalculatorService struct{}

// NewHuellaCalculatorService crea el servicio.
func NewHuellaCalculatorService() *HuellaCalculatorService {
	return &HuellaCalculatorService{}
}

var espacios = regexp.MustCompile(`\s+`)

// Calculate genera la huella a partir de parámetros ya preparados.
// Orden estricto: IDEmisorFactura + NumSerieFactura + FechaExpedicionFactura +
// IDDestinatario + ImporteTotal + Huella (anterior).
// Función pura: entradas idénticas producen siempre la misma salida.
func (s *HuellaCalculatorService) Calculate(p *HuellaParams) (string, error) {
	if p == nil {
		return "", fmt.Errorf("verifactu: HuellaParams es obligatorio")
	}

	nifEmisor := normalizeNIF(p.NIFEmisor)
	if nifEmisor == "" {
		return "", fmt.Errorf("verifactu: NIFEmisor es obligatorio para la huella")
	}
	numSerie := espacios.ReplaceAllString(strings.TrimSpace(p.NumSerie), "")
	if numSerie == "" {
		return "", fmt.Errorf("verifactu: NumSerie es obligatorio")
	}
	if p.FechaEmision == "" {
		return "", fmt.Errorf("verifactu: FechaEmision es obligatoria")
	}

	cadena := "IDEmisorFactura=" + nifEmisor +
		"&NumSerieFactura=" + numSerie +
		"&FechaExpedicionFactura=" + p.FechaEmision +
		"&IDDestinatario=" + normalizeNIF(p.NIFDestino) +
		"&ImporteTotal=" + formatImporte(p.ImporteTotal) +
		"&Huella=" + strings.TrimSpace(p.HuellaAnterior)

	hash := sha256.Sum256([]byte(cadena))
	return strings.ToUpper(hex.EncodeToString(hash[:])), nil
}

// formatImporte formatea el valor para la cadena de huella: sin separador de
// miles, punto decimal, 2 decimales.
func formatImporte(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// normalizeNIF quita espacios y guiones y pasa a mayúsculas (el NIF español
// puede llevar letra inicial o final).
func normalizeNIF(s string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(s)) {
		if (r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') {
			b.WriteRune(r)
		}
	}
	return b.String()
}
