package keys

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"github.com/cloudflare/circl/sign/dilithium/mode3"
	"golang.org/x/crypto/sha3"
)

// Dilithium is the post-quantum replacement scheme. The private material stored
// per wallet is the 32-byte generation seed; the full key is re-derived from it
// on every signing operation. The scheme sits behind the Scheme interface so it
// can be swapped for another implementation without touching the engine.
type Dilithium struct{}

// NewDilithium returns the post-quantum scheme.
func NewDilithium() Dilithium {
	return Dilithium{}
}

// Name identifies the scheme in audit output.
func (Dilithium) Name() string {
	return "Dilithium3"
}

// GenerateKeypair draws a random seed and derives the keypair from it. The
// base64 seed stands in for the private key; no Address is derived because
// migrated wallets keep their legacy address for lookup.
func (Dilithium) GenerateKeypair() (Keypair, error) {
	var seed [mode3.SeedSize]byte
	if _, err := rand.Read(seed[:]); err != nil {
		return Keypair{}, fmt.Errorf("generate dilithium seed: %w", err)
	}

	pub, _ := mode3.NewKeyFromSeed(&seed)
	var packed [mode3.PublicKeySize]byte
	pub.Pack(&packed)

	return Keypair{
		PublicKey:  base64.StdEncoding.EncodeToString(packed[:]),
		PrivateKey: base64.StdEncoding.EncodeToString(seed[:]),
	}, nil
}

// Sign re-derives the keypair from the base64 seed and signs the message.
func (Dilithium) Sign(privateKey, message string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(privateKey)
	if err != nil {
		return "", fmt.Errorf("decode dilithium seed: %w", err)
	}
	if len(raw) != mode3.SeedSize {
		return "", fmt.Errorf("dilithium seed must be %d bytes, got %d", mode3.SeedSize, len(raw))
	}

	var seed [mode3.SeedSize]byte
	copy(seed[:], raw)
	_, priv := mode3.NewKeyFromSeed(&seed)

	sig := make([]byte, mode3.SignatureSize)
	mode3.SignTo(priv, []byte(message), sig)
	return base64.StdEncoding.EncodeToString(sig), nil
}

// Verify checks a base64 signature against the base64 public key. Malformed
// inputs verify as false.
func (Dilithium) Verify(publicKey, message, signature string) bool {
	rawPub, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil || len(rawPub) != mode3.PublicKeySize {
		return false
	}
	rawSig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil || len(rawSig) != mode3.SignatureSize {
		return false
	}

	var packed [mode3.PublicKeySize]byte
	copy(packed[:], rawPub)
	var pub mode3.PublicKey
	pub.Unpack(&packed)

	return mode3.Verify(&pub, []byte(message), rawSig)
}

// Fingerprint returns a truncated SHA3-256 of the decoded public key.
func (Dilithium) Fingerprint(publicKey string) string {
	raw, err := base64.StdEncoding.DecodeString(publicKey)
	if err != nil {
		raw = []byte(publicKey)
	}
	digest := sha3.Sum256(raw)
	return hex.EncodeToString(digest[:])[:fingerprintHexLen]
}
