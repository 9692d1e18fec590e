package aeat

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const respuestaAceptada = `<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">
  <env:Body>
    <tikR:RespuestaRegFactuSistemaFacturacion xmlns:tikR="https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/RespuestaSuministro.xsd">
      <tikR:CSV>ABC123XYZ</tikR:CSV>
      <tikR:EstadoEnvio>Correcto</tikR:EstadoEnvio>
      <tikR:RespuestaLinea>
        <tikR:EstadoRegistro>Correcto</tikR:EstadoRegistro>
      </tikR:RespuestaLinea>
    </tikR:RespuestaRegFactuSistemaFacturacion>
  </env:Body>
</env:Envelope>`

const respuestaRechazada = `<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">
  <env:Body>
    <tikR:RespuestaRegFactuSistemaFacturacion xmlns:tikR="https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/RespuestaSuministro.xsd">
      <tikR:EstadoEnvio>Incorrecto</tikR:EstadoEnvio>
      <tikR:RespuestaLinea>
        <tikR:EstadoRegistro>Incorrecto</tikR:EstadoRegistro>
        <tikR:CodigoErrorRegistro>1117</tikR:CodigoErrorRegistro>
        <tikR:DescripcionErrorRegistro>NIF del destinatario no identificado</tikR:DescripcionErrorRegistro>
      </tikR:RespuestaLinea>
    </tikR:RespuestaRegFactuSistemaFacturacion>
  </env:Body>
</env:Envelope>`

const respuestaFault = `<?xml version="1.0" encoding="UTF-8"?>
<env:Envelope xmlns:env="http://schemas.xmlsoap.org/soap/envelope/">
  <env:Body>
    <env:Fault>
      <faultcode>env:Client</faultcode>
      <faultstring>Certificado no admitido</faultstring>
    </env:Fault>
  </env:Body>
</env:Envelope>`

// newTestClient apunta el cliente al servidor de test con backoff mínimo.
func newTestClient(t *testing.T, url string, maxRetries int) *SOAPClient {
	t.Helper()
	c, err := NewSOAPClient(ClientConfig{
		BaseURL:    url,
		Timeout:    2 * time.Second,
		MaxRetries: maxRetries,
	})
	require.NoError(t, err)
	c.backoff = time.Millisecond
	return c
}

func TestSubmit_Aceptado(t *testing.T) {
	var gotBody atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/xml; charset=utf-8", r.Header.Get("Content-Type"))
		buf, _ := io.ReadAll(r.Body)
		gotBody.Store(string(buf))
		_, _ = w.Write([]byte(respuestaAceptada))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	result, err := c.Submit(context.Background(), []byte("<registro>firmado</registro>"))
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.Equal(t, "ABC123XYZ", result.CSV)
	assert.NotEmpty(t, result.Raw)

	// El XML firmado viaja tal cual dentro del sobre (re-serializar rompería la firma).
	body, _ := gotBody.Load().(string)
	assert.Contains(t, body, "<registro>firmado</registro>")
	assert.Contains(t, body, "soapenv:Envelope")
}

func TestSubmit_RechazoDeNegocio(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(respuestaRechazada))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	result, err := c.Submit(context.Background(), []byte("<registro/>"))
	require.NoError(t, err, "un rechazo de negocio no es error de transporte")

	assert.False(t, result.Accepted)
	assert.Contains(t, result.ErrorMessage, "1117")
	assert.Contains(t, result.ErrorMessage, "NIF del destinatario")
}

func TestSubmit_SOAPFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(respuestaFault))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 0)
	result, err := c.Submit(context.Background(), []byte("<registro/>"))
	require.NoError(t, err)

	assert.False(t, result.Accepted)
	assert.Contains(t, result.ErrorMessage, "SOAP Fault")
	assert.Contains(t, result.ErrorMessage, "Certificado no admitido")
}

// HTTP 5xx es transitorio: se reintenta con backoff hasta que responde bien.
func TestSubmit_Reintento5xxYExito(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(respuestaAceptada))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	result, err := c.Submit(context.Background(), []byte("<registro/>"))
	require.NoError(t, err)

	assert.True(t, result.Accepted)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "dos fallos 5xx y un éxito")
}

// Agotados los reintentos el error se propaga (el orquestador lo marca transitorio).
func TestSubmit_ReintentosAgotados(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 2)
	_, err := c.Submit(context.Background(), []byte("<registro/>"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agotados")
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls), "intento inicial + 2 reintentos")
}

// HTTP 4xx es terminal: no se reintenta y se devuelve como rechazo auditable.
func TestSubmit_Error4xxNoSeReintenta(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte("peticion invalida"))
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 3)
	result, err := c.Submit(context.Background(), []byte("<registro/>"))
	require.NoError(t, err)

	assert.False(t, result.Accepted)
	assert.Contains(t, result.ErrorMessage, "HTTP 400")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx no debe reintentarse")
}

// La cancelación del contexto corta el ciclo de reintentos.
func TestSubmit_ContextoCancelado(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, 5)
	c.backoff = time.Second

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := c.Submit(ctx, []byte("<registro/>"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewSOAPClient_EntornoDesconocido(t *testing.T) {
	_, err := NewSOAPClient(ClientConfig{Environment: "staging"})
	assert.Error(t, err)

	c, err := NewSOAPClient(ClientConfig{Environment: AppEnvProd})
	require.NoError(t, err)
	assert.Contains(t, c.url, "www1.agenciatributaria.gob.es")

	c, err = NewSOAPClient(ClientConfig{Environment: AppEnvTest})
	require.NoError(t, err)
	assert.Contains(t, c.url, "prewww1.aeat.es")
}
