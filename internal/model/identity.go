package model

import "time"

// Identity is a registered account: either an issuer (resident) or a
// verifier (guard). Passwords are stored as bcrypt hashes.
type Identity struct {
	ID           string     `json:"id" db:"id"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"` // bcrypt hash, never expose
	DisplayName  string     `json:"display_name" db:"display_name"`
	Role         Role       `json:"role" db:"role"`
	UnitNo       string     `json:"unit_no,omitempty" db:"unit_no"`
	StreetNo     string     `json:"street_no,omitempty" db:"street_no"`
	FailedLogins int        `json:"-" db:"failed_logins"`
	LockedUntil  *time.Time `json:"-" db:"locked_until"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// Locked reports whether the account is locked out at the given instant.
func (i *Identity) Locked(now time.Time) bool {
	return i.LockedUntil != nil && i.LockedUntil.After(now)
}
