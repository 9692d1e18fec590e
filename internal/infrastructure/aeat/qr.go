package aeat

import (
	"encoding/base64"
	"fmt"
	"net/url"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/SgeoCrg/facturandozen-sub000/internal/domain"
	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/entity"
)

// URLs del servicio de cotejo de la AEAT para el QR tributario.
const (
	qrURLProd = "https://www2.agenciatributaria.gob.es/wlpl/TIKE-CONT/ValidarQR"
	qrURLTest = "https://prewww2.aeat.es/wlpl/TIKE-CONT/ValidarQR"
)

// BuildVerificationURL construye la URL de cotejo AEAT del registro.
// El orden de parámetros (nif, numserie, fecha, importe) es el que fija la
// especificación del QR tributario, por eso no se usa url.Values.Encode (ordena
// alfabéticamente).
func BuildVerificationURL(env string, inv *entity.Invoice, issuerNIF, csv string) string {
	base := qrURLTest
	if env == AppEnvProd {
		base = qrURLProd
	}
	u := base +
		"?nif=" + url.QueryEscape(normalizeNIF(issuerNIF)) +
		"&numserie=" + url.QueryEscape(inv.FullNumber) +
		"&fecha=" + url.QueryEscape(inv.Date.Format("02-01-2006")) +
		"&importe=" + url.QueryEscape(formatImporte(inv.Total))
	if csv != "" {
		u += "&csv=" + url.QueryEscape(csv)
	}
	return u
}

// GenerateQR genera el QR de verificación como data URI PNG.
// Pura y determinista; falla con domain.ErrQrEncoding solo ante entrada malformada.
func GenerateQR(env string, inv *entity.Invoice, issuerNIF, csv string) (string, error) {
	if inv == nil || inv.FullNumber == "" {
		return "", fmt.Errorf("aeat: factura sin número para el QR: %w", domain.ErrQrEncoding)
	}
	if normalizeNIF(issuerNIF) == "" {
		return "", fmt.Errorf("aeat: NIF de emisor vacío para el QR: %w", domain.ErrQrEncoding)
	}

	content := BuildVerificationURL(env, inv, issuerNIF, csv)
	png, err := qrcode.Encode(content, qrcode.Medium, 300)
	if err != nil {
		return "", fmt.Errorf("aeat: codificar QR: %w", domain.ErrQrEncoding)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
