package model

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestParseRole(t *testing.T) {
	for _, tc := range []struct {
		in      string
		want    Role
		wantErr bool
	}{
		{"issuer", RoleIssuer, false},
		{"verifier", RoleVerifier, false},
		{"resident", "", true},
		{"", "", true},
		{"ISSUER", "", true},
	} {
		got, err := ParseRole(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseRole(%q): expected error, got %q", tc.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseRole(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Errorf("ParseRole(%q): got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestValidateRequestFieldsWindow(t *testing.T) {
	start := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)

	// valid_until strictly after scheduled_start passes
	if err := ValidateRequestFields("Bob", "ABC123", start, start.Add(time.Second)); err != nil {
		t.Fatalf("expected valid window to pass: %v", err)
	}

	// equal timestamps fail
	err := ValidateRequestFields("Bob", "ABC123", start, start)
	if err == nil {
		t.Fatal("expected error for valid_until == scheduled_start")
	}
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
	if _, ok := verr.Fields["valid_until"]; !ok {
		t.Errorf("expected valid_until field error, got %v", verr.Fields)
	}

	// valid_until before scheduled_start fails
	if err := ValidateRequestFields("Bob", "ABC123", start, start.Add(-time.Hour)); err == nil {
		t.Fatal("expected error for valid_until before scheduled_start")
	}
}

func TestValidateRequestFieldsLengths(t *testing.T) {
	start := time.Now()
	until := start.Add(4 * time.Hour)

	longName := strings.Repeat("a", MaxVisitorNameLen+1)
	if err := ValidateRequestFields(longName, "ABC123", start, until); err == nil {
		t.Error("expected error for over-length visitor name")
	}
	if err := ValidateRequestFields(strings.Repeat("a", MaxVisitorNameLen), "ABC123", start, until); err != nil {
		t.Errorf("name at limit should pass: %v", err)
	}

	longPlate := strings.Repeat("X", MaxVehiclePlateLen+1)
	if err := ValidateRequestFields("Bob", longPlate, start, until); err == nil {
		t.Error("expected error for over-length vehicle plate")
	}

	if err := ValidateRequestFields("", "ABC123", start, until); err == nil {
		t.Error("expected error for empty visitor name")
	}
	if err := ValidateRequestFields("Bob", "", start, until); err == nil {
		t.Error("expected error for empty vehicle plate")
	}
}

func TestIdentityLocked(t *testing.T) {
	now := time.Now()
	id := &Identity{}
	if id.Locked(now) {
		t.Error("identity with no lock should not be locked")
	}
	future := now.Add(10 * time.Minute)
	id.LockedUntil = &future
	if !id.Locked(now) {
		t.Error("identity locked until the future should be locked")
	}
	past := now.Add(-time.Minute)
	id.LockedUntil = &past
	if id.Locked(now) {
		t.Error("expired lock should not count as locked")
	}
}
