package aeat_test

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SgeoCrg/facturandozen-sub000/internal/domain"
	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/entity"
	"github.com/SgeoCrg/facturandozen-sub000/internal/infrastructure/aeat"
)

func qrInvoice() *entity.Invoice {
	return &entity.Invoice{
		FullNumber: "A2025/000001",
		Date:       time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
		Total:      decimal.NewFromFloat(121.5),
	}
}

func TestBuildVerificationURL_OrdenDeParametros(t *testing.T) {
	u := aeat.BuildVerificationURL(aeat.AppEnvProd, qrInvoice(), "B-12345678", "CSV123")

	assert.True(t, strings.HasPrefix(u, "https://www2.agenciatributaria.gob.es/wlpl/TIKE-CONT/ValidarQR?"))
	// El orden nif, numserie, fecha, importe lo fija la especificación del QR.
	assert.Contains(t, u, "nif=B12345678&numserie=A2025%2F000001&fecha=15-03-2025&importe=121.50")
	assert.Contains(t, u, "&csv=CSV123")
}

func TestBuildVerificationURL_EntornoDePruebas(t *testing.T) {
	u := aeat.BuildVerificationURL(aeat.AppEnvTest, qrInvoice(), "B12345678", "")
	assert.True(t, strings.HasPrefix(u, "https://prewww2.aeat.es/"))
	assert.NotContains(t, u, "csv=", "sin CSV no se añade el parámetro")
}

func TestGenerateQR_DataURIValido(t *testing.T) {
	qr, err := aeat.GenerateQR(aeat.AppEnvProd, qrInvoice(), "B12345678", "CSV123")
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(qr, "data:image/png;base64,"))
	png, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(qr, "data:image/png;base64,"))
	require.NoError(t, err)
	// Firma PNG
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, png[:4])
}

func TestGenerateQR_Determinista(t *testing.T) {
	a, err := aeat.GenerateQR(aeat.AppEnvProd, qrInvoice(), "B12345678", "CSV123")
	require.NoError(t, err)
	b, err := aeat.GenerateQR(aeat.AppEnvProd, qrInvoice(), "B12345678", "CSV123")
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestGenerateQR_EntradaInvalida(t *testing.T) {
	_, err := aeat.GenerateQR(aeat.AppEnvProd, nil, "B12345678", "")
	assert.ErrorIs(t, err, domain.ErrQrEncoding)

	inv := qrInvoice()
	inv.FullNumber = ""
	_, err = aeat.GenerateQR(aeat.AppEnvProd, inv, "B12345678", "")
	assert.ErrorIs(t, err, domain.ErrQrEncoding)

	_, err = aeat.GenerateQR(aeat.AppEnvProd, qrInvoice(), " - ", "")
	assert.ErrorIs(t, err, domain.ErrQrEncoding)
}
