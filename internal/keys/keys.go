package keys

// Keypair holds serialized key material produced by a Scheme. PrivateKey is the
// scheme's private material (a PEM body for ECDSA, a base64 seed for Dilithium).
// Address is only derived by the legacy scheme.
type Keypair struct {
	PublicKey  string
	PrivateKey string
	Address    string
}

// Scheme is the opaque signature capability consumed by the migration engine.
// Implementations must never log or embed raw private material in derived
// values; Fingerprint is the only audit-safe projection of a key.
type Scheme interface {
	Name() string
	GenerateKeypair() (Keypair, error)
	Sign(privateKey, message string) (string, error)
	Verify(publicKey, message, signature string) bool
	Fingerprint(publicKey string) string
}

// fingerprintHexLen bounds fingerprints to 16 hex characters, enough to
// correlate audit rows without exposing usable key material.
const fingerprintHexLen = 16
