// Package certstore: almacén de certificados de firma PKCS#12 por tenant,
// cifrados en reposo con AES-256-GCM. La clave maestra viene de configuración
// del proceso y nunca se persiste junto al ciphertext.
package certstore

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/tls"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"github.com/SgeoCrg/facturandozen-sub000/internal/domain"
	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/entity"
	"github.com/SgeoCrg/facturandozen-sub000/internal/domain/repository"
	"github.com/SgeoCrg/facturandozen-sub000/internal/infrastructure/aeat/signer"
)

// Store expone acceso descifrado bajo demanda al certificado del tenant.
// Solo lectura para el pipeline; la subida/borrado la usa la UI de ajustes.
type Store struct {
	repo repository.CertificateRepository
	key  []byte
	now  func() time.Time
}

// New construye el almacén. masterKeyHex debe ser una clave AES-256 en hex
// (64 caracteres).
func New(repo repository.CertificateRepository, masterKeyHex string) (*Store, error) {
	key, err := hex.DecodeString(masterKeyHex)
	if err != nil {
		return nil, fmt.Errorf("certstore: clave maestra no es hex válido")
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("certstore: la clave maestra debe tener 32 bytes (AES-256), tiene %d", len(key))
	}
	return &Store{repo: repo, key: key, now: time.Now}, nil
}

// GetDecrypted devuelve el certificado del tenant listo para firmar.
// Falla con domain.ErrCertificateNotFound si no hay certificado,
// domain.ErrCertificateExpired si está caducado y domain.ErrDecryption si el
// descifrado o la decodificación PKCS#12 fallan. Los mensajes de error nunca
// incluyen material de clave.
func (s *Store) GetDecrypted(ctx context.Context, tenantID string) (tls.Certificate, error) {
	rec, err := s.repo.GetByTenant(ctx, tenantID)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("certstore: leer certificado: %w", err)
	}
	if rec == nil {
		return tls.Certificate{}, fmt.Errorf("certstore: tenant %s: %w", tenantID, domain.ErrCertificateNotFound)
	}
	// Caducidad primero: nunca firmar con certificado caducado
	if rec.Expired(s.now()) {
		return tls.Certificate{}, fmt.Errorf("certstore: caducado el %s: %w",
			rec.ExpiresAt.Format("2006-01-02"), domain.ErrCertificateExpired)
	}

	p12, err := s.decrypt(rec.CertEncrypted)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("certstore: %w", domain.ErrDecryption)
	}
	password, err := s.decrypt(rec.PasswordEncrypted)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("certstore: %w", domain.ErrDecryption)
	}

	cert, err := signer.DecodeP12(p12, string(password))
	if err != nil {
		// Password incorrecta o contenedor corrupto
		return tls.Certificate{}, fmt.Errorf("certstore: %w", domain.ErrDecryption)
	}
	return cert, nil
}

// Save cifra y persiste el PKCS#12 del tenant. Valida que el contenedor se
// pueda abrir con la password dada y deriva la caducidad del propio certificado.
func (s *Store) Save(ctx context.Context, tenantID string, p12 []byte, password string) (*entity.Certificate, error) {
	if len(p12) == 0 {
		return nil, fmt.Errorf("certstore: archivo vacío: %w", domain.ErrInvalidInput)
	}
	cert, err := signer.DecodeP12(p12, password)
	if err != nil {
		return nil, fmt.Errorf("certstore: el archivo no es un PKCS#12 válido o la contraseña es incorrecta: %w", domain.ErrInvalidInput)
	}

	certEnc, err := s.encrypt(p12)
	if err != nil {
		return nil, fmt.Errorf("certstore: cifrar certificado: %w", err)
	}
	passEnc, err := s.encrypt([]byte(password))
	if err != nil {
		return nil, fmt.Errorf("certstore: cifrar contraseña: %w", err)
	}

	now := s.now()
	rec := &entity.Certificate{
		TenantID:          tenantID,
		CertEncrypted:     certEnc,
		PasswordEncrypted: passEnc,
		ExpiresAt:         cert.Leaf.NotAfter,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("certstore: persistir certificado: %w", err)
	}
	return rec, nil
}

// Delete elimina el certificado del tenant.
func (s *Store) Delete(ctx context.Context, tenantID string) error {
	return s.repo.Delete(ctx, tenantID)
}

// ── Cifrado AES-256-GCM ───────────────────────────────────────────────────────

// encrypt cifra con AES-256-GCM; el nonce va como prefijo del ciphertext.
func (s *Store) encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// decrypt revierte encrypt. Un ciphertext manipulado o una clave distinta
// hacen fallar la verificación de autenticidad de GCM.
func (s *Store) decrypt(data []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(data) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext demasiado corto")
	}
	nonce, ciphertext := data[:gcm.NonceSize()], data[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
