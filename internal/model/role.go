package model

import "fmt"

// Role identifies which side of the gate an identity acts from. It is fixed
// at registration and never changes afterwards.
type Role string

const (
	// RoleIssuer is a resident: creates, edits, and revokes visitor requests.
	RoleIssuer Role = "issuer"
	// RoleVerifier is a guard: scans codes and reviews all requests.
	RoleVerifier Role = "verifier"
)

// ParseRole converts a wire value into a Role, rejecting anything outside
// the closed two-variant set.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleIssuer:
		return RoleIssuer, nil
	case RoleVerifier:
		return RoleVerifier, nil
	}
	return "", fmt.Errorf("unknown role %q (want %q or %q)", s, RoleIssuer, RoleVerifier)
}

// Valid reports whether r is one of the two known roles.
func (r Role) Valid() bool {
	return r == RoleIssuer || r == RoleVerifier
}
