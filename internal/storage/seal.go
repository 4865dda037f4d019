package storage

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	sealMagic      = "GCM3NCR0"
	sealSalt       = "foliocraft/blob-seal/v1"
	sealIterations = 100000
)

// ErrSealed is returned when a sealed object cannot be opened.
var ErrSealed = errors.New("sealed object could not be opened")

// Sealed encrypts every object before it reaches the underlying store.
// Format: magic(8) + nonce(12) + ciphertext + tag(16). The object key is
// bound as additional data so objects cannot be swapped between keys.
type Sealed struct {
	Blob
	aead cipher.AEAD
}

// NewSealed derives the AES-256 key from secret once.
func NewSealed(b Blob, secret string) (*Sealed, error) {
	if secret == "" {
		return nil, errors.New("empty storage secret")
	}
	key := pbkdf2.Key([]byte(secret), []byte(sealSalt), sealIterations, 32, sha256.New)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Sealed{Blob: b, aead: gcm}, nil
}

func (s *Sealed) Put(ctx context.Context, key string, data []byte) error {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	out := make([]byte, 0, len(sealMagic)+len(nonce)+len(data)+s.aead.Overhead())
	out = append(out, sealMagic...)
	out = append(out, nonce...)
	out = s.aead.Seal(out, nonce, data, []byte(key))
	return s.Blob.Put(ctx, key, out)
}

func (s *Sealed) Get(ctx context.Context, key string) ([]byte, error) {
	raw, err := s.Blob.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	ns := s.aead.NonceSize()
	if len(raw) < len(sealMagic)+ns+s.aead.Overhead() || string(raw[:len(sealMagic)]) != sealMagic {
		return nil, fmt.Errorf("%w: %s: bad header", ErrSealed, key)
	}
	nonce := raw[len(sealMagic) : len(sealMagic)+ns]
	plain, err := s.aead.Open(nil, nonce, raw[len(sealMagic)+ns:], []byte(key))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrSealed, key, err)
	}
	return plain, nil
}
