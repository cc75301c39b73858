package wallet

import "time"

// Wallet represents one user-owned keypair plus balance. Legacy key material is
// always present; post-quantum material appears exactly when Migrated is true
// and the legacy fields are retained afterwards for address lookup.
type Wallet struct {
	ID      string
	OwnerID string
	Name    string

	LegacyPrivateKey string
	LegacyPublicKey  string
	Address          string

	PQPublicKey string
	PQSeed      string

	Balance    float64
	Migrated   bool
	MigratedAt *time.Time

	CreatedAt time.Time
}

// Counts summarizes the migration posture of the whole wallet population.
type Counts struct {
	Total      int
	Migrated   int
	Vulnerable int
}
