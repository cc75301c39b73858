package keys

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"fmt"
)

const (
	pemPrivateBlock = "PRIVATE KEY"
	pemPublicBlock  = "PUBLIC KEY"
)

// ECDSA is the legacy elliptic-curve scheme wallets are created with. Keys are
// PEM encoded so they round-trip through text columns unchanged.
type ECDSA struct{}

// NewECDSA returns the legacy scheme.
func NewECDSA() ECDSA {
	return ECDSA{}
}

// Name identifies the scheme in audit output.
func (ECDSA) Name() string {
	return "ECDSA-P256"
}

// GenerateKeypair creates a fresh keypair and derives the wallet address from
// the public key.
func (ECDSA) GenerateKeypair() (Keypair, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Keypair{}, fmt.Errorf("generate ecdsa key: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return Keypair{}, fmt.Errorf("encode private key: %w", err)
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	if err != nil {
		return Keypair{}, fmt.Errorf("encode public key: %w", err)
	}

	digest := sha256.Sum256(pubDER)

	return Keypair{
		PublicKey:  string(pem.EncodeToMemory(&pem.Block{Type: pemPublicBlock, Bytes: pubDER})),
		PrivateKey: string(pem.EncodeToMemory(&pem.Block{Type: pemPrivateBlock, Bytes: privDER})),
		Address:    "0x" + hex.EncodeToString(digest[:])[:40],
	}, nil
}

// Sign produces a hex encoded ASN.1 signature over the SHA-256 digest of the
// message.
func (ECDSA) Sign(privateKey, message string) (string, error) {
	block, _ := pem.Decode([]byte(privateKey))
	if block == nil {
		return "", fmt.Errorf("private key is not PEM encoded")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return "", fmt.Errorf("parse private key: %w", err)
	}
	key, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return "", fmt.Errorf("private key is not ECDSA")
	}

	digest := sha256.Sum256([]byte(message))
	sig, err := ecdsa.SignASN1(rand.Reader, key, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}
	return hex.EncodeToString(sig), nil
}

// Verify reports whether the hex signature matches the message under the PEM
// public key. Malformed inputs verify as false rather than erroring.
func (ECDSA) Verify(publicKey, message, signature string) bool {
	block, _ := pem.Decode([]byte(publicKey))
	if block == nil {
		return false
	}
	parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return false
	}
	key, ok := parsed.(*ecdsa.PublicKey)
	if !ok {
		return false
	}
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	digest := sha256.Sum256([]byte(message))
	return ecdsa.VerifyASN1(key, digest[:], sig)
}

// Fingerprint returns a truncated SHA-256 of the PEM public key for audit rows.
func (ECDSA) Fingerprint(publicKey string) string {
	digest := sha256.Sum256([]byte(publicKey))
	return hex.EncodeToString(digest[:])[:fingerprintHexLen]
}
