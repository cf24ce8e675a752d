// Package keys manages the Ed25519 signing keypairs used to identify wallets
// and sign transactions.
package keys

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/cloudflare/circl/sign/ed25519"
)

// PublicKey is the 32-byte Ed25519 verifying key that also identifies a
// wallet in the storage schema.
type PublicKey [ed25519.PublicKeySize]byte

// PrivateKey is the 64-byte Ed25519 signing key.
type PrivateKey [ed25519.PrivateKeySize]byte

// ErrInvalidSignature reports a signature that fails to check. Verify
// itself reports failure as false and does not return this error.
var ErrInvalidSignature = errors.New("keys: invalid signature")

// Generate creates a fresh random Ed25519 keypair.
func Generate() (PublicKey, PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return PublicKey{}, PrivateKey{}, fmt.Errorf("keys: generate: %w", err)
	}
	var pk PublicKey
	var sk PrivateKey
	copy(pk[:], pub)
	copy(sk[:], priv)
	return pk, sk, nil
}

// Sign produces a detached Ed25519 signature over message.
func Sign(sk PrivateKey, message []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(sk[:]), message)
}

// Verify checks a detached Ed25519 signature.
func Verify(pk PublicKey, message, signature []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(pk[:]), message, signature)
}

// Public extracts the verifying key embedded in an Ed25519 signing key.
func (sk PrivateKey) Public() PublicKey {
	var pk PublicKey
	copy(pk[:], sk[ed25519.PublicKeySize:])
	return pk
}

// String renders the public key as lowercase hex, for logging and the HTTP API.
func (pk PublicKey) String() string {
	return hex.EncodeToString(pk[:])
}

// MarshalJSON renders a PublicKey as a hex string.
func (pk PublicKey) MarshalJSON() ([]byte, error) {
	return json.Marshal(pk.String())
}

// UnmarshalJSON parses a PublicKey from the hex string MarshalJSON produces.
func (pk *PublicKey) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	decoded, err := PublicKeyFromHex(s)
	if err != nil {
		return err
	}
	*pk = decoded
	return nil
}

// PublicKeyFromHex decodes a hex-encoded public key.
func PublicKeyFromHex(s string) (PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("keys: decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return PublicKey{}, fmt.Errorf("keys: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	var pk PublicKey
	copy(pk[:], raw)
	return pk, nil
}

// Manager loads a signing key from disk, generating and persisting a new one
// on first use.
type Manager struct {
	keyPath string
}

// NewManager creates a key Manager rooted at keyPath.
func NewManager(keyPath string) *Manager {
	return &Manager{keyPath: keyPath}
}

// LoadOrGenerate loads the key at keyPath, generating and saving a new one if
// it does not exist.
func (m *Manager) LoadOrGenerate() (PublicKey, PrivateKey, error) {
	if m.keyPath == "" {
		return Generate()
	}
	if _, err := os.Stat(m.keyPath); err == nil {
		return m.load()
	}
	pk, sk, err := Generate()
	if err != nil {
		return PublicKey{}, PrivateKey{}, err
	}
	if err := m.save(sk); err != nil {
		return PublicKey{}, PrivateKey{}, err
	}
	return pk, sk, nil
}

func (m *Manager) load() (PublicKey, PrivateKey, error) {
	raw, err := os.ReadFile(m.keyPath)
	if err != nil {
		return PublicKey{}, PrivateKey{}, fmt.Errorf("keys: read %s: %w", m.keyPath, err)
	}
	skBytes, err := hex.DecodeString(string(raw))
	if err != nil || len(skBytes) != ed25519.PrivateKeySize {
		return PublicKey{}, PrivateKey{}, fmt.Errorf("keys: malformed key file %s", m.keyPath)
	}
	var sk PrivateKey
	copy(sk[:], skBytes)
	var pk PublicKey
	copy(pk[:], skBytes[ed25519.PublicKeySize:])
	return pk, sk, nil
}

func (m *Manager) save(sk PrivateKey) error {
	return os.WriteFile(m.keyPath, []byte(hex.EncodeToString(sk[:])), 0o600)
}
