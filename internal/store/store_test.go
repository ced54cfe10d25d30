package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JeffCSZ/vms/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(DriverSQLite, "", "") // in-memory
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedIssuer(t *testing.T, s *Store, email string) *model.Identity {
	t.Helper()
	id := &model.Identity{
		Email:        email,
		PasswordHash: "$2a$10$fakehashfortests",
		DisplayName:  "Test Issuer",
		Role:         model.RoleIssuer,
		UnitNo:       "12",
		StreetNo:     "7",
	}
	if err := s.CreateIdentity(context.Background(), id); err != nil {
		t.Fatalf("CreateIdentity: %v", err)
	}
	return id
}

func seedRequest(t *testing.T, s *Store, ownerID string) *model.VisitorRequest {
	t.Helper()
	start := time.Date(2025, 6, 1, 14, 0, 0, 0, time.UTC)
	req := &model.VisitorRequest{
		OwnerID:        ownerID,
		VisitorName:    "Bob",
		VehiclePlate:   "ABC123",
		ScheduledStart: start,
		ValidUntil:     start.Add(4 * time.Hour),
	}
	if err := s.CreateRequest(context.Background(), req); err != nil {
		t.Fatalf("CreateRequest: %v", err)
	}
	return req
}

func TestIdentityCreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id := seedIssuer(t, s, "alice@example.com")
	if id.ID == "" {
		t.Fatal("expected store-assigned identity ID")
	}

	got, err := s.GetIdentityByEmail(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetIdentityByEmail: %v", err)
	}
	if got.ID != id.ID || got.Role != model.RoleIssuer || got.UnitNo != "12" {
		t.Errorf("round trip mismatch: %+v", got)
	}

	got2, err := s.GetIdentityByID(ctx, id.ID)
	if err != nil {
		t.Fatalf("GetIdentityByID: %v", err)
	}
	if got2.Email != "alice@example.com" {
		t.Errorf("got email %q", got2.Email)
	}

	if _, err := s.GetIdentityByEmail(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestIdentityDuplicateEmail(t *testing.T) {
	s := newTestStore(t)
	seedIssuer(t, s, "alice@example.com")

	dup := &model.Identity{
		Email:        "alice@example.com",
		PasswordHash: "x",
		Role:         model.RoleVerifier,
	}
	if err := s.CreateIdentity(context.Background(), dup); !errors.Is(err, ErrDuplicateEmail) {
		t.Errorf("expected ErrDuplicateEmail, got %v", err)
	}
}

func TestIdentityLoginState(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	id := seedIssuer(t, s, "alice@example.com")

	until := time.Now().UTC().Add(15 * time.Minute)
	if err := s.UpdateLoginState(ctx, id.ID, 3, &until); err != nil {
		t.Fatalf("UpdateLoginState: %v", err)
	}
	got, _ := s.GetIdentityByID(ctx, id.ID)
	if got.FailedLogins != 3 {
		t.Errorf("failed_logins: got %d, want 3", got.FailedLogins)
	}
	if got.LockedUntil == nil {
		t.Fatal("expected locked_until to be set")
	}

	if err := s.UpdateLoginState(ctx, id.ID, 0, nil); err != nil {
		t.Fatalf("UpdateLoginState reset: %v", err)
	}
	got, _ = s.GetIdentityByID(ctx, id.ID)
	if got.FailedLogins != 0 || got.LockedUntil != nil {
		t.Errorf("expected reset state, got %+v", got)
	}
}

func TestRequestCreateAssignsCodeAndID(t *testing.T) {
	s := newTestStore(t)
	owner := seedIssuer(t, s, "alice@example.com")

	req := seedRequest(t, s, owner.ID)
	if req.ID == 0 {
		t.Error("expected store-assigned sequential ID")
	}
	if req.PublicCode == "" {
		t.Error("expected store-assigned public code")
	}

	req2 := seedRequest(t, s, owner.ID)
	if req2.PublicCode == req.PublicCode {
		t.Error("public codes must be unique per record")
	}
	if req2.ID <= req.ID {
		t.Errorf("IDs should be sequential: %d then %d", req.ID, req2.ID)
	}
}

func TestRequestRoundTripByCode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedIssuer(t, s, "alice@example.com")
	req := seedRequest(t, s, owner.ID)

	got, err := s.GetRequestByCode(ctx, req.PublicCode)
	if err != nil {
		t.Fatalf("GetRequestByCode: %v", err)
	}
	if got.VisitorName != req.VisitorName || got.VehiclePlate != req.VehiclePlate {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if !got.ScheduledStart.Equal(req.ScheduledStart) {
		t.Errorf("scheduled_start: got %v, want %v", got.ScheduledStart, req.ScheduledStart)
	}
	if !got.ValidUntil.Equal(req.ValidUntil) {
		t.Errorf("valid_until: got %v, want %v", got.ValidUntil, req.ValidUntil)
	}
	if got.OwnerEmail != "alice@example.com" {
		t.Errorf("owner join: got email %q", got.OwnerEmail)
	}

	if _, err := s.GetRequestByCode(ctx, "3b241101-e2bb-4255-8caf-4136c566a962"); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown code: expected ErrNotFound, got %v", err)
	}
}

func TestListOrderingNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedIssuer(t, s, "alice@example.com")
	other := seedIssuer(t, s, "carol@example.com")

	first := seedRequest(t, s, owner.ID)
	second := seedRequest(t, s, other.ID)
	third := seedRequest(t, s, owner.ID)

	all, err := s.ListAllRequests(ctx)
	if err != nil {
		t.Fatalf("ListAllRequests: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d requests, want 3", len(all))
	}
	if all[0].ID != third.ID || all[1].ID != second.ID || all[2].ID != first.ID {
		t.Errorf("expected newest-first order, got %d %d %d", all[0].ID, all[1].ID, all[2].ID)
	}

	own, err := s.ListRequestsByOwner(ctx, owner.ID)
	if err != nil {
		t.Fatalf("ListRequestsByOwner: %v", err)
	}
	if len(own) != 2 {
		t.Fatalf("got %d owner requests, want 2", len(own))
	}
	if own[0].ID != third.ID || own[1].ID != first.ID {
		t.Errorf("owner list out of order: %d %d", own[0].ID, own[1].ID)
	}
}

func TestUpdateReplacesOnlyEditableFields(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedIssuer(t, s, "alice@example.com")
	req := seedRequest(t, s, owner.ID)

	newStart := req.ScheduledStart.Add(24 * time.Hour)
	newUntil := newStart.Add(2 * time.Hour)
	got, err := s.UpdateRequest(ctx, req.ID, "Carol", "XYZ789", newStart, newUntil)
	if err != nil {
		t.Fatalf("UpdateRequest: %v", err)
	}
	if got.VisitorName != "Carol" || got.VehiclePlate != "XYZ789" {
		t.Errorf("editable fields not replaced: %+v", got)
	}
	if !got.ScheduledStart.Equal(newStart) || !got.ValidUntil.Equal(newUntil) {
		t.Errorf("window not replaced: %+v", got)
	}
	if got.OwnerID != req.OwnerID {
		t.Error("owner must never change on update")
	}
	if got.PublicCode != req.PublicCode {
		t.Error("public code must never change on update")
	}
	if !got.CreatedAt.Equal(req.CreatedAt) {
		t.Error("created_at must be immutable")
	}
}

func TestUpdateDeleteRace(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	owner := seedIssuer(t, s, "alice@example.com")
	req := seedRequest(t, s, owner.ID)

	if err := s.DeleteRequest(ctx, req.ID); err != nil {
		t.Fatalf("DeleteRequest: %v", err)
	}

	// The losing side of an update/delete race sees ErrNotFound, never a
	// partial write.
	_, err := s.UpdateRequest(ctx, req.ID, "Carol", "XYZ789", req.ScheduledStart, req.ValidUntil)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("update after delete: expected ErrNotFound, got %v", err)
	}
	if err := s.DeleteRequest(ctx, req.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("double delete: expected ErrNotFound, got %v", err)
	}
}

func TestSettings(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetSetting(ctx, "instance_id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unset key, got %v", err)
	}
	if err := s.SetSetting(ctx, "instance_id", "abc"); err != nil {
		t.Fatalf("SetSetting: %v", err)
	}
	if err := s.SetSetting(ctx, "instance_id", "def"); err != nil {
		t.Fatalf("SetSetting overwrite: %v", err)
	}
	got, err := s.GetSetting(ctx, "instance_id")
	if err != nil {
		t.Fatalf("GetSetting: %v", err)
	}
	if got != "def" {
		t.Errorf("got %q, want %q", got, "def")
	}
}
