package model

import (
	"fmt"
	"strings"
	"time"
)

// Field length limits for visitor requests, matching the database schema.
const (
	MaxVisitorNameLen  = 30
	MaxVehiclePlateLen = 10
)

// VisitorRequest is a resident-issued authorization for a visitor to enter
// the facility within a scheduled window. The public code is the only
// identifier ever embedded in the scannable artifact; the sequential ID
// stays internal.
type VisitorRequest struct {
	ID             int64     `json:"id" db:"id"`
	PublicCode     string    `json:"public_code" db:"public_code"`
	OwnerID        string    `json:"owner_id" db:"owner_id"`
	VisitorName    string    `json:"visitor_name" db:"visitor_name"`
	VehiclePlate   string    `json:"vehicle_plate" db:"vehicle_plate"`
	ScheduledStart time.Time `json:"scheduled_start" db:"scheduled_start"`
	ValidUntil     time.Time `json:"valid_until" db:"valid_until"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`

	// Owner columns joined on reads so verifiers see who issued the request.
	OwnerEmail    string `json:"owner_email,omitempty" db:"owner_email"`
	OwnerUnitNo   string `json:"owner_unit_no,omitempty" db:"owner_unit_no"`
	OwnerStreetNo string `json:"owner_street_no,omitempty" db:"owner_street_no"`
}

// ValidationError reports boundary validation failures with per-field detail.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, field+": "+msg)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ValidateRequestFields checks the four editable fields of a visitor request
// before any store access. It enforces presence, length limits, and the
// valid_until > scheduled_start invariant.
func ValidateRequestFields(visitorName, vehiclePlate string, scheduledStart, validUntil time.Time) error {
	fields := map[string]string{}

	if strings.TrimSpace(visitorName) == "" {
		fields["visitor_name"] = "required"
	} else if len(visitorName) > MaxVisitorNameLen {
		fields["visitor_name"] = fmt.Sprintf("must be at most %d characters", MaxVisitorNameLen)
	}

	if strings.TrimSpace(vehiclePlate) == "" {
		fields["vehicle_plate"] = "required"
	} else if len(vehiclePlate) > MaxVehiclePlateLen {
		fields["vehicle_plate"] = fmt.Sprintf("must be at most %d characters", MaxVehiclePlateLen)
	}

	if scheduledStart.IsZero() {
		fields["scheduled_start"] = "required"
	}
	if validUntil.IsZero() {
		fields["valid_until"] = "required"
	}
	if !scheduledStart.IsZero() && !validUntil.IsZero() && !validUntil.After(scheduledStart) {
		fields["valid_until"] = "must be after scheduled_start"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}
