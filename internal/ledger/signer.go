package ledger

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

// Signature chains one payload to its predecessor
type Signature struct {
	Hash      string
	Signature string
}

// Signer turns a payload and the previous hash into a chained signature.
// It must be pure: same inputs, same hash.
type Signer func(payload []byte, previousHash string, key ed25519.PrivateKey) (Signature, error)

// HashPayload is hex(sha256(payload || previousHash))
func HashPayload(payload []byte, previousHash string) string {
	h := sha256.New()
	h.Write(payload)
	h.Write([]byte(previousHash))
	return hex.EncodeToString(h.Sum(nil))
}

// Sign is the default Signer: Ed25519 over the chained hash
func Sign(payload []byte, previousHash string, key ed25519.PrivateKey) (Signature, error) {
	if len(key) != ed25519.PrivateKeySize {
		return Signature{}, errors.New("invalid private key")
	}
	hash := HashPayload(payload, previousHash)
	sig := ed25519.Sign(key, []byte(hash))
	return Signature{Hash: hash, Signature: base64.StdEncoding.EncodeToString(sig)}, nil
}

// VerifySignature checks a Base64 Ed25519 signature over hash
func VerifySignature(pub ed25519.PublicKey, hash, signature string) bool {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, []byte(hash), sig)
}
