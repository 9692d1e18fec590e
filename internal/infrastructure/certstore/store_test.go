package certstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SgeoCrg/facturandozen-sub000/internal/domain"
	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/entity"
)

// fakeCertRepo repositorio en memoria para los tests del almacén.
type fakeCertRepo struct {
	certs map[string]*entity.Certificate
}

func newFakeCertRepo() *fakeCertRepo {
	return &fakeCertRepo{certs: map[string]*entity.Certificate{}}
}

func (r *fakeCertRepo) GetByTenant(_ context.Context, tenantID string) (*entity.Certificate, error) {
	return r.certs[tenantID], nil
}

func (r *fakeCertRepo) Upsert(_ context.Context, cert *entity.Certificate) error {
	r.certs[cert.TenantID] = cert
	return nil
}

func (r *fakeCertRepo) Delete(_ context.Context, tenantID string) error {
	delete(r.certs, tenantID)
	return nil
}

func testKeyHex(t *testing.T) string {
	t.Helper()
	key := make([]byte, 32)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return hex.EncodeToString(key)
}

func TestNew_ValidacionDeClaveMaestra(t *testing.T) {
	repo := newFakeCertRepo()

	_, err := New(repo, "no-es-hex")
	assert.Error(t, err)

	_, err = New(repo, "abcd1234") // 4 bytes, no 32
	assert.Error(t, err)

	_, err = New(repo, testKeyHex(t))
	assert.NoError(t, err)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	s, err := New(newFakeCertRepo(), testKeyHex(t))
	require.NoError(t, err)

	plaintext := []byte("contenido PKCS#12 de prueba")
	ct, err := s.encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, plaintext, ct)

	pt, err := s.decrypt(ct)
	require.NoError(t, err)
	assert.Equal(t, plaintext, pt)

	// Cada cifrado usa un nonce distinto: mismo plaintext, ciphertext distinto.
	ct2, err := s.encrypt(plaintext)
	require.NoError(t, err)
	assert.NotEqual(t, ct, ct2)
}

func TestDecrypt_CiphertextManipulado(t *testing.T) {
	s, err := New(newFakeCertRepo(), testKeyHex(t))
	require.NoError(t, err)

	ct, err := s.encrypt([]byte("secreto"))
	require.NoError(t, err)
	ct[len(ct)-1] ^= 0xff

	_, err = s.decrypt(ct)
	assert.Error(t, err, "GCM debe detectar la manipulación")
}

func TestDecrypt_ClaveDistinta(t *testing.T) {
	repo := newFakeCertRepo()
	s1, err := New(repo, testKeyHex(t))
	require.NoError(t, err)
	s2, err := New(repo, testKeyHex(t))
	require.NoError(t, err)

	ct, err := s1.encrypt([]byte("secreto"))
	require.NoError(t, err)

	_, err = s2.decrypt(ct)
	assert.Error(t, err, "otra clave maestra no debe poder descifrar")
}

func TestGetDecrypted_SinCertificado(t *testing.T) {
	s, err := New(newFakeCertRepo(), testKeyHex(t))
	require.NoError(t, err)

	_, err = s.GetDecrypted(context.Background(), "ten-1")
	assert.ErrorIs(t, err, domain.ErrCertificateNotFound)
}

func TestGetDecrypted_Caducado(t *testing.T) {
	repo := newFakeCertRepo()
	s, err := New(repo, testKeyHex(t))
	require.NoError(t, err)

	// La caducidad se comprueba antes de descifrar: el ciphertext puede ser basura.
	repo.certs["ten-1"] = &entity.Certificate{
		TenantID:          "ten-1",
		CertEncrypted:     []byte("basura"),
		PasswordEncrypted: []byte("basura"),
		ExpiresAt:         time.Now().Add(-24 * time.Hour),
	}

	_, err = s.GetDecrypted(context.Background(), "ten-1")
	assert.ErrorIs(t, err, domain.ErrCertificateExpired)
}

func TestGetDecrypted_CiphertextCorrupto(t *testing.T) {
	repo := newFakeCertRepo()
	s, err := New(repo, testKeyHex(t))
	require.NoError(t, err)

	repo.certs["ten-1"] = &entity.Certificate{
		TenantID:          "ten-1",
		CertEncrypted:     []byte("esto no es un ciphertext GCM"),
		PasswordEncrypted: []byte("tampoco"),
		ExpiresAt:         time.Now().Add(365 * 24 * time.Hour),
	}

	_, err = s.GetDecrypted(context.Background(), "ten-1")
	assert.ErrorIs(t, err, domain.ErrDecryption)
	// Los mensajes de error nunca incluyen material de clave.
	assert.NotContains(t, err.Error(), "esto no es")
}

func TestSave_ArchivoInvalido(t *testing.T) {
	s, err := New(newFakeCertRepo(), testKeyHex(t))
	require.NoError(t, err)

	_, err = s.Save(context.Background(), "ten-1", nil, "pass")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = s.Save(context.Background(), "ten-1", []byte("no es un p12"), "pass")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDelete(t *testing.T) {
	repo := newFakeCertRepo()
	s, err := New(repo, testKeyHex(t))
	require.NoError(t, err)

	repo.certs["ten-1"] = &entity.Certificate{TenantID: "ten-1"}
	require.NoError(t, s.Delete(context.Background(), "ten-1"))
	assert.Nil(t, repo.certs["ten-1"])
}
