package signer

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"encoding/xml"
	"math/big"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ucarion/c14n"

	"github.com/SgeoCrg/facturandozen-sub000/internal/domain"
)

// testCertificate genera un certificado RSA autofirmado en memoria.
func testCertificate(t *testing.T) (tls.Certificate, *rsa.PrivateKey) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(42),
		Subject: pkix.Name{
			CommonName:   "FACTURANDOZEN SL",
			Organization: []string{"FacturandoZen"},
			Country:      []string{"ES"},
		},
		NotBefore:   time.Now().Add(-time.Hour),
		NotAfter:    time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:    x509.KeyUsageDigitalSignature,
		ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)

	leaf, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	return tls.Certificate{
		Certificate: [][]byte{der},
		PrivateKey:  priv,
		Leaf:        leaf,
	}, priv
}

const testRegistro = `<sum:RegFactuSistemaFacturacion xmlns:sum="https://www2.agenciatributaria.gob.es/static_files/common/internet/dep/aplicaciones/es/aeat/tike/cont/ws/SuministroLR.xsd"><sum:Cabecera>dato</sum:Cabecera></sum:RegFactuSistemaFacturacion>`

func TestSign_InyectaFirmaComoUltimoHijo(t *testing.T) {
	cert, _ := testCertificate(t)
	svc := NewDigitalSignatureService()

	signed, err := svc.Sign([]byte(testRegistro), cert)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(signed))
	root := doc.Root()
	require.NotNil(t, root)

	children := root.ChildElements()
	require.NotEmpty(t, children)
	sig := children[len(children)-1]
	assert.Equal(t, "Signature", sig.Tag, "ds:Signature debe ser el último hijo de la raíz")

	assert.NotNil(t, sig.FindElement("SignedInfo"))
	assert.NotEmpty(t, sig.FindElement("SignatureValue").Text())
	assert.NotNil(t, sig.FindElement("Object/QualifyingProperties/SignedProperties/SignedSignatureProperties/SigningTime"))

	// El certificado viaja en KeyInfo tal cual (DER en Base64).
	certB64 := sig.FindElement("KeyInfo/X509Data/X509Certificate").Text()
	assert.Equal(t, base64.StdEncoding.EncodeToString(cert.Certificate[0]), certB64)
}

// La firma RSA sobre el SignedInfo canónico debe verificar con la llave pública.
func TestSign_FirmaVerificable(t *testing.T) {
	cert, priv := testCertificate(t)
	svc := NewDigitalSignatureService()

	signed, err := svc.Sign([]byte(testRegistro), cert)
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(signed))
	sigEl := doc.FindElement("//Signature")
	require.NotNil(t, sigEl)

	siEl := sigEl.FindElement("SignedInfo")
	require.NotNil(t, siEl)
	siDoc := etree.NewDocument()
	siDoc.SetRoot(siEl.Copy())
	siBytes, err := siDoc.WriteToBytes()
	require.NoError(t, err)

	dec := xml.NewDecoder(bytes.NewReader(siBytes))
	canonical, err := c14n.Canonicalize(dec)
	require.NoError(t, err)
	digest := sha256.Sum256(canonical)

	sigB64 := sigEl.FindElement("SignatureValue").Text()
	sigBytes, err := base64.StdEncoding.DecodeString(sigB64)
	require.NoError(t, err)

	assert.NoError(t, rsa.VerifyPKCS1v15(&priv.PublicKey, crypto.SHA256, digest[:], sigBytes),
		"la firma debe verificar contra el SignedInfo canónico")
}

func TestSign_EntradasInvalidas(t *testing.T) {
	cert, _ := testCertificate(t)
	svc := NewDigitalSignatureService()

	_, err := svc.Sign(nil, cert)
	assert.ErrorIs(t, err, domain.ErrSigning, "XML vacío")

	_, err = svc.Sign([]byte("esto no es XML <"), cert)
	assert.ErrorIs(t, err, domain.ErrSigning, "XML malformado")

	_, err = svc.Sign([]byte(testRegistro), tls.Certificate{})
	assert.ErrorIs(t, err, domain.ErrSigning, "certificado sin llave privada")

	sinCadena := tls.Certificate{PrivateKey: cert.PrivateKey}
	_, err = svc.Sign([]byte(testRegistro), sinCadena)
	assert.ErrorIs(t, err, domain.ErrSigning, "certificado sin cadena")
}

func TestCertDigestAndIssuerSerial(t *testing.T) {
	cert, _ := testCertificate(t)

	digestB64, issuer, serialHex := CertDigestAndIssuerSerial(cert.Leaf)

	h := sha256.Sum256(cert.Leaf.Raw)
	assert.Equal(t, base64.StdEncoding.EncodeToString(h[:]), digestB64)
	assert.Contains(t, issuer, "FACTURANDOZEN SL")
	assert.Equal(t, "2a", serialHex)
}

func TestDecodeP12_DatosInvalidos(t *testing.T) {
	_, err := DecodeP12([]byte("no es un contenedor p12"), "pass")
	assert.Error(t, err)

	_, err = DecodeP12(nil, "")
	assert.Error(t, err)
}
