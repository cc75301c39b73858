package identity

import "time"

// User represents a registered wallet owner.
type User struct {
	ID        string
	Username  string
	Email     string
	CreatedAt time.Time
}
