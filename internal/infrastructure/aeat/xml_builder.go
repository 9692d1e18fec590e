package aeat

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/SgeoCrg/facturandozen-sub000/internal/domain"
	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/entity"
)

// Namespaces oficiales del suministro Verifactu (esquemas SuministroLR /
// SuministroInformacion publicados por la AEAT).
const (
	// Namespace del envío (RegFactuSistemaFacturacion)
	NsSum = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroLR.xsd"
	// Namespace de los tipos de información (RegistroAlta y componentes)
	NsSum1 = "https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroInformacion.xsd"
	// XML Digital Signature
	NsDs = "http://www.w3.org/2000/09/xmldsig#"
)

// Valores fijos del registro de alta.
const (
	idVersion        = "1.0"
	tipoFactura      = "F1" // Factura completa (art. 6 RD 1619/2012)
	impuestoIVA      = "01"
	claveRegimen     = "01" // Régimen general
	calificacionOp   = "S1" // Operación sujeta y no exenta
	tipoHuellaSHA256 = "01"
)

// XMLBuilderService construye el XML del registro de facturación (sin firma).
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build genera el []byte del RegFactuSistemaFacturacion con el RegistroAlta.
// Determinista: mismas entradas producen el mismo documento (la fecha de
// generación entra por contexto, no se toma del reloj).
// Devuelve domain.ErrInvalidInvoiceData si faltan campos obligatorios.
func (s *XMLBuilderService) Build(ctx *RegistroBuildContext) ([]byte, error) {
	if err := validate(ctx); err != nil {
		return nil, err
	}
	inv := ctx.Invoice

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")

	root := xml.StartElement{
		Name: xml.Name{Local: "sum:RegFactuSistemaFacturacion"},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "xmlns:sum"}, Value: NsSum},
			{Name: xml.Name{Local: "xmlns:sum1"}, Value: NsSum1},
			{Name: xml.Name{Local: "xmlns:ds"}, Value: NsDs},
		},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	// ---- sum:Cabecera (obligado de emisión)
	open(enc, "sum:Cabecera")
	open(enc, "sum1:ObligadoEmision")
	write(enc, "sum1:NombreRazon", ctx.Tenant.Name)
	write(enc, "sum1:NIF", normalizeNIF(ctx.Tenant.NIF))
	closeEl(enc, "sum1:ObligadoEmision")
	closeEl(enc, "sum:Cabecera")

	// ---- sum:RegistroFactura > sum1:RegistroAlta
	open(enc, "sum:RegistroFactura")
	open(enc, "sum1:RegistroAlta")

	write(enc, "sum1:IDVersion", idVersion)

	// Identificación de la factura
	open(enc, "sum1:IDFactura")
	write(enc, "sum1:IDEmisorFactura", normalizeNIF(ctx.Tenant.NIF))
	write(enc, "sum1:NumSerieFactura", inv.FullNumber)
	write(enc, "sum1:FechaExpedicionFactura", inv.Date.Format("02-01-2006"))
	closeEl(enc, "sum1:IDFactura")

	write(enc, "sum1:NombreRazonEmisor", ctx.Tenant.Name)
	write(enc, "sum1:TipoFactura", tipoFactura)
	write(enc, "sum1:DescripcionOperacion", descripcionOperacion(inv.Lines))

	// Destinatario (snapshot del cliente en la factura)
	if inv.CustomerNIF != "" {
		open(enc, "sum1:Destinatarios")
		open(enc, "sum1:IDDestinatario")
		write(enc, "sum1:NombreRazon", inv.CustomerName)
		write(enc, "sum1:NIF", normalizeNIF(inv.CustomerNIF))
		closeEl(enc, "sum1:IDDestinatario")
		closeEl(enc, "sum1:Destinatarios")
	}

	// Desglose por tipo impositivo
	if err := s.writeDesglose(enc, ctx); err != nil {
		return nil, err
	}

	write(enc, "sum1:CuotaTotal", formatImporte(inv.TotalIVA))
	write(enc, "sum1:ImporteTotal", formatImporte(inv.Total))

	// Encadenamiento: primer registro o huella del anterior
	open(enc, "sum1:Encadenamiento")
	if ctx.PreviousHash == "" {
		write(enc, "sum1:PrimerRegistro", "S")
	} else {
		open(enc, "sum1:RegistroAnterior")
		write(enc, "sum1:Huella", ctx.PreviousHash)
		closeEl(enc, "sum1:RegistroAnterior")
	}
	closeEl(enc, "sum1:Encadenamiento")

	write(enc, "sum1:FechaHoraHusoGenRegistro", ctx.GeneratedAt.Format("2006-01-02T15:04:05-07:00"))
	write(enc, "sum1:TipoHuella", tipoHuellaSHA256)
	write(enc, "sum1:Huella", ctx.Hash)

	closeEl(enc, "sum1:RegistroAlta")
	closeEl(enc, "sum:RegistroFactura")

	if err := enc.EncodeToken(root.End()); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeDesglose agrupa las líneas por tipo de IVA y escribe un DetalleDesglose
// por cada tipo, en orden ascendente de tipo impositivo (salida estable).
func (s *XMLBuilderService) writeDesglose(enc *xml.Encoder, ctx *RegistroBuildContext) error {
	type acumulado struct {
		base  decimal.Decimal
		cuota decimal.Decimal
	}
	grupos := map[string]*acumulado{}
	for _, l := range ctx.Invoice.Lines {
		key := l.IVARate.Round(2).StringFixed(2)
		g, ok := grupos[key]
		if !ok {
			g = &acumulado{base: decimal.Zero, cuota: decimal.Zero}
			grupos[key] = g
		}
		base := l.LineTotal()
		g.base = g.base.Add(base)
		g.cuota = g.cuota.Add(base.Mul(l.IVARate).Div(decimal.NewFromInt(100)))
	}

	keys := make([]string, 0, len(grupos))
	for k := range grupos {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, _ := strconv.ParseFloat(keys[i], 64)
		b, _ := strconv.ParseFloat(keys[j], 64)
		return a < b
	})

	open(enc, "sum1:Desglose")
	for _, k := range keys {
		g := grupos[k]
		open(enc, "sum1:DetalleDesglose")
		write(enc, "sum1:Impuesto", impuestoIVA)
		write(enc, "sum1:ClaveRegimen", claveRegimen)
		write(enc, "sum1:CalificacionOperacion", calificacionOp)
		write(enc, "sum1:TipoImpositivo", k)
		write(enc, "sum1:BaseImponibleOimporteNoSujeto", formatImporte(g.base))
		write(enc, "sum1:CuotaRepercutida", formatImporte(g.cuota.Round(2)))
		closeEl(enc, "sum1:DetalleDesglose")
	}
	closeEl(enc, "sum1:Desglose")
	return nil
}

func validate(ctx *RegistroBuildContext) error {
	if ctx == nil || ctx.Invoice == nil || ctx.Tenant == nil {
		return fmt.Errorf("aeat: faltan invoice o tenant en el contexto: %w", domain.ErrInvalidInvoiceData)
	}
	if normalizeNIF(ctx.Tenant.NIF) == "" {
		return fmt.Errorf("aeat: el emisor no tiene NIF: %w", domain.ErrInvalidInvoiceData)
	}
	if ctx.Invoice.FullNumber == "" {
		return fmt.Errorf("aeat: la factura no tiene número: %w", domain.ErrInvalidInvoiceData)
	}
	if len(ctx.Invoice.Lines) == 0 {
		return fmt.Errorf("aeat: la factura no tiene líneas: %w", domain.ErrInvalidInvoiceData)
	}
	if ctx.Invoice.Total.IsNegative() || ctx.Invoice.Total.IsZero() {
		return fmt.Errorf("aeat: importe total inválido %s: %w", ctx.Invoice.Total, domain.ErrInvalidInvoiceData)
	}
	if ctx.Hash == "" {
		return fmt.Errorf("aeat: falta la huella del registro: %w", domain.ErrInvalidInvoiceData)
	}
	return nil
}

// descripcionOperacion resume la operación a partir de todas las líneas de la
// factura, recortada al máximo de 500 caracteres del esquema.
func descripcionOperacion(lines []entity.InvoiceLine) string {
	var parts []string
	for _, l := range lines {
		if l.Description != "" {
			parts = append(parts, l.Description)
		}
	}
	if len(parts) == 0 {
		return "Venta de bienes y servicios"
	}
	s := strings.Join(parts, "; ")
	runes := []rune(s)
	if len(runes) > 500 {
		return string(runes[:500])
	}
	return s
}

func open(enc *xml.Encoder, name string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: name}})
}

func closeEl(enc *xml.Encoder, name string) {
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: name}})
}

func write(enc *xml.Encoder, name, value string) {
	open(enc, name)
	_ = enc.EncodeToken(xml.CharData(value))
	closeEl(enc, name)
}

func formatImporte(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

// normalizeNIF deja solo dígitos y letras mayúsculas (quita guiones y espacios).
func normalizeNIF(nif string) string {
	var out []byte
	for _, b := range []byte(nif) {
		switch {
		case b >= '0' && b <= '9':
			out = append(out, b)
		case b >= 'A' && b <= 'Z':
			out = append(out, b)
		case b >= 'a' && b <= 'z':
			out = append(out, b-'a'+'A')
		}
	}
	return string(out)
}
