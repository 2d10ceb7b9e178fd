package ledger

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// KeyPair is the terminal's fiscal signing identity
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// PublicKeyHex returns the public key as hex, as printed on receipts
func (k *KeyPair) PublicKeyHex() string {
	return hex.EncodeToString(k.Public)
}

// KeyProvider returns the signing key pair, creating it on first use
type KeyProvider interface {
	KeyPair(ctx context.Context) (*KeyPair, error)
}

// Cipher protects the private key at rest. *vault.Vault satisfies it.
type Cipher interface {
	Initialized() bool
	Encrypt(plaintext string) (string, bool)
	Decrypt(blob string) (string, bool)
}

// ErrKeyLocked is returned when the key file is encrypted and the vault cannot open it
var ErrKeyLocked = errors.New("fiscal key is encrypted and the vault is locked")

// fiscalIdentity is the on-disk form of the key pair
type fiscalIdentity struct {
	TerminalID string    `json:"terminal_id"`
	PublicKey  string    `json:"public_key"`  // Base64
	PrivateKey string    `json:"private_key"` // Base64, or vault blob when Encrypted
	Encrypted  bool      `json:"encrypted"`
	CreatedAt  time.Time `json:"created_at"`
}

// FileKeyProvider keeps the key pair in a JSON file outside the ledger tables.
// A missing file is generated; an unreadable one is an error, never replaced.
type FileKeyProvider struct {
	path       string
	terminalID string
	cipher     Cipher

	// OnGenerate is called once when a new key pair was created
	OnGenerate func(pub ed25519.PublicKey)

	mu     sync.Mutex
	cached *KeyPair
}

// NewFileKeyProvider creates a provider for path. cipher may be nil.
func NewFileKeyProvider(path, terminalID string, cipher Cipher) *FileKeyProvider {
	return &FileKeyProvider{path: path, terminalID: terminalID, cipher: cipher}
}

func (p *FileKeyProvider) KeyPair(ctx context.Context) (*KeyPair, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached != nil {
		return p.cached, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p.path)
	switch {
	case err == nil:
		kp, err := p.decode(data)
		if err != nil {
			return nil, err
		}
		p.cached = kp
		return kp, nil
	case errors.Is(err, os.ErrNotExist):
		kp, err := p.generate()
		if err != nil {
			return nil, err
		}
		p.cached = kp
		if p.OnGenerate != nil {
			p.OnGenerate(kp.Public)
		}
		return kp, nil
	default:
		return nil, fmt.Errorf("read fiscal key: %w", err)
	}
}

func (p *FileKeyProvider) decode(data []byte) (*KeyPair, error) {
	var id fiscalIdentity
	if err := json.Unmarshal(data, &id); err != nil {
		return nil, fmt.Errorf("parse fiscal key %s: %w", p.path, err)
	}

	privB64 := id.PrivateKey
	if id.Encrypted {
		if p.cipher == nil || !p.cipher.Initialized() {
			return nil, ErrKeyLocked
		}
		plain, ok := p.cipher.Decrypt(id.PrivateKey)
		if !ok {
			return nil, ErrKeyLocked
		}
		privB64 = plain
	}

	pub, err := base64.StdEncoding.DecodeString(id.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key in %s", p.path)
	}
	priv, err := base64.StdEncoding.DecodeString(privB64)
	if err != nil || len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("invalid private key in %s", p.path)
	}
	if !ed25519.PublicKey(pub).Equal(ed25519.PrivateKey(priv).Public()) {
		return nil, fmt.Errorf("key pair mismatch in %s", p.path)
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

var writeKey = func(w io.Writer, data []byte) error {
	_, err := w.Write(data)
	return err
}

func (p *FileKeyProvider) generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate keys: %w", err)
	}

	id := fiscalIdentity{
		TerminalID: p.terminalID,
		PublicKey:  base64.StdEncoding.EncodeToString(pub),
		PrivateKey: base64.StdEncoding.EncodeToString(priv),
		CreatedAt:  time.Now().UTC(),
	}
	if p.cipher != nil && p.cipher.Initialized() {
		if blob, ok := p.cipher.Encrypt(id.PrivateKey); ok {
			id.PrivateKey = blob
			id.Encrypted = true
		}
	}

	if err := os.MkdirAll(filepath.Dir(p.path), 0o700); err != nil {
		return nil, fmt.Errorf("create key dir: %w", err)
	}
	data, err := json.MarshalIndent(id, "", "  ")
	if err != nil {
		return nil, err
	}
	// The key gets its final name only when fully written. Link never
	// replaces a key another process created in the meantime.
	tmp, err := os.CreateTemp(filepath.Dir(p.path), ".fiscal-key-*")
	if err != nil {
		return nil, fmt.Errorf("persist fiscal key: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := writeKey(tmp, data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("persist fiscal key: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("persist fiscal key: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("persist fiscal key: %w", err)
	}
	if err := os.Link(tmp.Name(), p.path); err != nil {
		return nil, fmt.Errorf("persist fiscal key: %w", err)
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// StaticKeyProvider serves a fixed key pair
type StaticKeyProvider struct {
	Pair *KeyPair
	Err  error
}

func (s StaticKeyProvider) KeyPair(context.Context) (*KeyPair, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return s.Pair, nil
}
