// Package vault encrypts small local secrets with a key derived from a password.
// The key lives only in memory.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

const (
	appSalt    = "eckposgo/credential-vault/v1"
	iterations = 100_000
	keyLen     = 32
)

// ErrEmptySecret is returned when initializing without a secret
var ErrEmptySecret = errors.New("vault secret must not be empty")

// Vault holds the derived AES-256-GCM key
type Vault struct {
	mu  sync.RWMutex
	key []byte
}

// New returns an uninitialized vault
func New() *Vault {
	return &Vault{}
}

// Initialize derives the key from secret with PBKDF2-SHA256
func (v *Vault) Initialize(secret string) error {
	if secret == "" {
		return ErrEmptySecret
	}
	key := pbkdf2.Key([]byte(secret), []byte(appSalt), iterations, keyLen, sha256.New)

	v.mu.Lock()
	v.key = key
	v.mu.Unlock()
	return nil
}

// Initialized reports whether a key is held
func (v *Vault) Initialized() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.key != nil
}

// Lock zeroes and drops the key
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.key {
		v.key[i] = 0
	}
	v.key = nil
}

// Encrypt returns Base64(nonce || ciphertext). ok is false when the vault is
// locked or encryption failed.
func (v *Vault) Encrypt(plaintext string) (string, bool) {
	gcm, ok := v.aead()
	if !ok {
		return "", false
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", false
	}

	sealed := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), true
}

// Decrypt reverses Encrypt. ok is false for a locked vault, malformed Base64,
// a payload shorter than the nonce, or a failed authentication.
func (v *Vault) Decrypt(blob string) (string, bool) {
	gcm, ok := v.aead()
	if !ok {
		return "", false
	}

	data, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", false
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize+gcm.Overhead() {
		return "", false
	}

	plaintext, err := gcm.Open(nil, data[:nonceSize], data[nonceSize:], nil)
	if err != nil {
		return "", false
	}
	return string(plaintext), true
}

func (v *Vault) aead() (cipher.AEAD, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.key == nil {
		return nil, false
	}

	block, err := aes.NewCipher(v.key)
	if err != nil {
		return nil, false
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, false
	}
	return gcm, true
}
