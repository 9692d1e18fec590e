package aeat

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ── Constantes de entorno ──────────────────────────────────────────────────────

const (
	// AppEnvTest es el identificador del entorno de pruebas AEAT.
	AppEnvTest = "test"
	// AppEnvProd es el identificador del entorno de producción AEAT.
	AppEnvProd = "prod"
	// AppEnvDev es el identificador local: no envía al WS AEAT.
	AppEnvDev = "dev"

	soapURLTest = "https://prewww1.aeat.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"
	soapURLProd = "https://www1.agenciatributaria.gob.es/wlpl/TIKE-CONT/ws/SistemaFacturacion/VerifactuSOAP"

	soapNS = "http://schemas.xmlsoap.org/soap/envelope/"
)

// ── Puerto (interfaz) ──────────────────────────────────────────────────────────

// SubmitResult resultado de la entrega del registro al WS Verifactu.
type SubmitResult struct {
	Accepted     bool   // true si la AEAT aceptó el registro
	CSV          string // Código Seguro de Verificación (solo si Accepted)
	ErrorMessage string // mensajes de rechazo de la AEAT (puede ser vacío)
	Raw          string // respuesta cruda para auditoría
}

// AEATSubmitter define el puerto de salida para la entrega de registros al WS AEAT.
// La implementación concreta usa SOAP; para tests se puede inyectar un fake.
type AEATSubmitter interface {
	// Submit envía el XML firmado del registro de facturación.
	// Un error devuelto significa fallo transitorio (red / 5xx) tras agotar los
	// reintentos; un SubmitResult con Accepted=false es un rechazo de negocio
	// que NO se reintenta automáticamente.
	Submit(ctx context.Context, signedXML []byte) (*SubmitResult, error)
}

// ── Implementación SOAP ────────────────────────────────────────────────────────

// ClientConfig parámetros del cliente SOAP Verifactu.
type ClientConfig struct {
	Environment string        // "test" o "prod" (determina la URL si BaseURL está vacío)
	BaseURL     string        // sobrescribe la URL del WS (útil en tests)
	Timeout     time.Duration // timeout por llamada HTTP (distinto del backoff)
	MaxRetries  int           // reintentos ante fallos transitorios
}

// SOAPClient implementa AEATSubmitter usando el WS SOAP de la AEAT.
// Usa net/http de la stdlib con reintentos acotados y backoff exponencial.
type SOAPClient struct {
	httpClient *http.Client
	url        string
	maxRetries int
	backoff    time.Duration // base del backoff exponencial; configurable para tests
}

// NewSOAPClient construye el cliente SOAP para el entorno indicado.
func NewSOAPClient(cfg ClientConfig) (*SOAPClient, error) {
	url := cfg.BaseURL
	if url == "" {
		switch cfg.Environment {
		case AppEnvProd:
			url = soapURLProd
		case AppEnvTest:
			url = soapURLTest
		default:
			return nil, fmt.Errorf("aeat: entorno desconocido %q (usar 'test' o 'prod')", cfg.Environment)
		}
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &SOAPClient{
		httpClient: &http.Client{Timeout: timeout},
		url:        url,
		maxRetries: retries,
		backoff:    500 * time.Millisecond,
	}, nil
}

// ── Estructuras de respuesta ──────────────────────────────────────────────────

type soapResponseEnvelope struct {
	Body soapResponseBody `xml:"Body"`
}

type soapResponseBody struct {
	Respuesta *respuestaRegFactu `xml:"RespuestaRegFactuSistemaFacturacion"`
	Fault     *soapFault         `xml:"Fault"`
}

type respuestaRegFactu struct {
	CSV            string           `xml:"CSV"`
	EstadoEnvio    string           `xml:"EstadoEnvio"` // Correcto | ParcialmenteCorrecto | Incorrecto
	RespuestaLinea []respuestaLinea `xml:"RespuestaLinea"`
}

type respuestaLinea struct {
	EstadoRegistro           string `xml:"EstadoRegistro"` // Correcto | AceptadoConErrores | Incorrecto
	CodigoErrorRegistro      string `xml:"CodigoErrorRegistro"`
	DescripcionErrorRegistro string `xml:"DescripcionErrorRegistro"`
}

type soapFault struct {
	FaultCode   string `xml:"faultcode"`
	FaultString string `xml:"faultstring"`
}

// ── Submit ────────────────────────────────────────────────────────────────────

// Submit envía el registro firmado con reintentos acotados.
// Política: fallos de transporte y HTTP 5xx se reintentan con backoff
// exponencial; HTTP 4xx y rechazos de negocio de la AEAT NO se reintentan.
func (c *SOAPClient) Submit(ctx context.Context, signedXML []byte) (*SubmitResult, error) {
	payload := buildEnvelope(signedXML)

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			// Backoff exponencial: base * 2^(intento-1)
			wait := c.backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("aeat: cancelado durante backoff: %w", ctx.Err())
			case <-time.After(wait):
			}
		}

		result, retryable, err := c.doCall(ctx, payload)
		if err == nil {
			return result, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("aeat: agotados %d reintentos: %w", c.maxRetries, lastErr)
}

// doCall ejecuta una llamada. retryable indica si el fallo es transitorio.
func (c *SOAPClient) doCall(ctx context.Context, payload []byte) (result *SubmitResult, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("aeat: crear request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", "")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// Cancelación del llamador: no insistir
			return nil, false, fmt.Errorf("aeat: cancelación: %w", ctx.Err())
		}
		// Timeout o error de red: transitorio
		return nil, true, fmt.Errorf("aeat: llamada HTTP fallida: %w", err)
	}
	defer resp.Body.Close()

	rawBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // max 1 MB
	if err != nil {
		return nil, true, fmt.Errorf("aeat: leer respuesta: %w", err)
	}

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("aeat: HTTP %d del WS", resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		// Error de cliente: terminal, requiere corrección; no se reintenta
		return &SubmitResult{
			Accepted:     false,
			ErrorMessage: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(rawBody))),
			Raw:          string(rawBody),
		}, false, nil
	}

	return parseResponse(rawBody), false, nil
}

// buildEnvelope envuelve el registro firmado en el sobre SOAP. El XML firmado
// se inserta tal cual: volver a serializarlo rompería la firma.
func buildEnvelope(signedXML []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<soapenv:Envelope xmlns:soapenv="` + soapNS + `"><soapenv:Header/><soapenv:Body>`)
	buf.Write(signedXML)
	buf.WriteString(`</soapenv:Body></soapenv:Envelope>`)
	return buf.Bytes()
}

// parseResponse desempaqueta la respuesta SOAP y extrae CSV y errores.
func parseResponse(rawBody []byte) *SubmitResult {
	var envResp soapResponseEnvelope
	if err := xml.Unmarshal(rawBody, &envResp); err != nil {
		// Si no podemos parsear, devolvemos el raw como rechazo auditable.
		return &SubmitResult{
			Accepted:     false,
			ErrorMessage: "no se pudo parsear respuesta SOAP: " + string(rawBody),
			Raw:          string(rawBody),
		}
	}

	// SOAP Fault (error de protocolo, autenticación, validación de esquema)
	if envResp.Body.Fault != nil {
		return &SubmitResult{
			Accepted:     false,
			ErrorMessage: fmt.Sprintf("SOAP Fault [%s]: %s", envResp.Body.Fault.FaultCode, envResp.Body.Fault.FaultString),
			Raw:          string(rawBody),
		}
	}

	r := envResp.Body.Respuesta
	if r == nil {
		return &SubmitResult{
			Accepted:     false,
			ErrorMessage: "respuesta SOAP vacía o inesperada: " + string(rawBody),
			Raw:          string(rawBody),
		}
	}

	if r.EstadoEnvio == "Correcto" {
		return &SubmitResult{
			Accepted: true,
			CSV:      r.CSV,
			Raw:      string(rawBody),
		}
	}

	var msgs []string
	for _, l := range r.RespuestaLinea {
		if l.EstadoRegistro == "Correcto" {
			continue
		}
		m := l.DescripcionErrorRegistro
		if l.CodigoErrorRegistro != "" {
			m = "[" + l.CodigoErrorRegistro + "] " + m
		}
		if m != "" {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) == 0 {
		msgs = append(msgs, "estado de envío: "+r.EstadoEnvio)
	}
	return &SubmitResult{
		Accepted:     false,
		ErrorMessage: strings.Join(msgs, "; "),
		Raw:          string(rawBody),
	}
}
