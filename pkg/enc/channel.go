// Package enc implements the authenticated public-key encryption channel
// used to seal transfer amounts. Both parties' Ed25519 signing keypairs are
// mapped to X25519 encryption keypairs via the standard birational map; a
// sender can decrypt its own outgoing ciphertext without retaining side
// state, because the shared secret derived from (receiver_pk, sender_sk) is
// identical to the one derived from (sender_pk, receiver_sk).
package enc

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/crypto/nacl/box"

	"github.com/certen/private-currency/pkg/keys"
)

// NonceSize is the width of the random per-message nonce.
const NonceSize = 24

// PublicKey is an X25519 encryption public key derived from a signing key.
type PublicKey [32]byte

// SecretKey is an X25519 encryption secret key derived from a signing key.
type SecretKey [32]byte

// ErrDecryptionFailed is returned when authenticated decryption fails,
// indicating tampering or a key mismatch.
var ErrDecryptionFailed = errors.New("enc: decryption failed")

// KeypairFromEd25519 derives the encryption keypair corresponding to a
// signing keypair.
func KeypairFromEd25519(pk keys.PublicKey, sk keys.PrivateKey) (PublicKey, SecretKey) {
	return PublicKey(publicKeyFromEd25519(pk)), SecretKey(secretKeyFromEd25519(sk))
}

// PublicKeyFromEd25519 derives only the encryption public key, for use when
// encrypting to a counterparty whose secret key is not available locally.
func PublicKeyFromEd25519(pk keys.PublicKey) PublicKey {
	return PublicKey(publicKeyFromEd25519(pk))
}

// EncryptedData is a sealed (nonce, ciphertext) pair.
type EncryptedData struct {
	Nonce      [NonceSize]byte
	Ciphertext []byte
}

// Seal encrypts message for receiver, authenticated under senderSK, with a
// freshly sampled random nonce.
func Seal(message []byte, receiver PublicKey, senderSK SecretKey) (EncryptedData, error) {
	var nonce [NonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return EncryptedData{}, fmt.Errorf("enc: generate nonce: %w", err)
	}
	recvKey := [32]byte(receiver)
	senderKey := [32]byte(senderSK)
	ciphertext := box.Seal(nil, message, &nonce, &recvKey, &senderKey)
	return EncryptedData{Nonce: nonce, Ciphertext: ciphertext}, nil
}

// Open decrypts d as the receiver, given the sender's public key and the
// receiver's own secret key.
func (d EncryptedData) Open(sender PublicKey, receiverSK SecretKey) ([]byte, error) {
	senderKey := [32]byte(sender)
	receiverKey := [32]byte(receiverSK)
	out, ok := box.Open(nil, d.Ciphertext, &d.Nonce, &senderKey, &receiverKey)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return out, nil
}

// Bytes returns the canonical wire encoding: the 24-byte nonce, a 4-byte
// big-endian ciphertext length, then the ciphertext itself.
func (d EncryptedData) Bytes() []byte {
	out := make([]byte, 0, NonceSize+4+len(d.Ciphertext))
	out = append(out, d.Nonce[:]...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(d.Ciphertext)))
	out = append(out, lenBuf[:]...)
	out = append(out, d.Ciphertext...)
	return out
}

// EncryptedDataFromBytes decodes the encoding produced by Bytes, reporting
// how many bytes were consumed.
func EncryptedDataFromBytes(b []byte) (EncryptedData, int, error) {
	if len(b) < NonceSize+4 {
		return EncryptedData{}, 0, fmt.Errorf("enc: truncated encrypted data")
	}
	var d EncryptedData
	copy(d.Nonce[:], b[:NonceSize])
	n := binary.BigEndian.Uint32(b[NonceSize : NonceSize+4])
	start := NonceSize + 4
	end := start + int(n)
	if end > len(b) {
		return EncryptedData{}, 0, fmt.Errorf("enc: truncated ciphertext")
	}
	d.Ciphertext = append([]byte(nil), b[start:end]...)
	return d, end, nil
}

// OpenAsSender decrypts d using the sender's own secret key and the
// receiver's public key — the shared-secret-symmetry path that lets a sender
// read back its own outgoing ciphertext.
func (d EncryptedData) OpenAsSender(receiver PublicKey, senderSK SecretKey) ([]byte, error) {
	recvKey := [32]byte(receiver)
	senderKey := [32]byte(senderSK)
	var shared [32]byte
	box.Precompute(&shared, &recvKey, &senderKey)
	out, ok := box.OpenAfterPrecomputation(nil, d.Ciphertext, &d.Nonce, &shared)
	if !ok {
		return nil, ErrDecryptionFailed
	}
	return out, nil
}
