package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/JeffCSZ/vms/internal/gate"
	"github.com/JeffCSZ/vms/internal/model"
)

const validToken = "good-token"

// newAPIStub returns a test server that accepts validToken and rejects
// everything else with the standard 401 envelope.
func newAPIStub(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+validToken {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"error":{"code":401,"message":"Token expired","context":{"category":"authentication"}}}`))
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLoginAdoptsToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/account/login" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"token":%q,"token_type":"bearer","role":"verifier","display_name":"guard"}`, validToken)
	}))
	t.Cleanup(srv.Close)

	c := New(srv.URL, nil, nil)
	payload, err := c.Login(context.Background(), "guard@example.com", "hunter2hunter2", model.RoleVerifier)
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if payload.Role != model.RoleVerifier || payload.DisplayName != "guard" {
		t.Errorf("unexpected payload: %+v", payload)
	}
	if c.Session().Token() != validToken {
		t.Errorf("session token = %q, want %q", c.Session().Token(), validToken)
	}
}

func TestGetRequestByCode(t *testing.T) {
	const code = "0198c5c9-7b3a-4c5e-9f10-1234567890ab"

	srv := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/requests/code/"+code {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":1,"public_code":%q,"visitor_name":"Bob","status":"valid"}`, code)
	})

	c := New(srv.URL, nil, nil)
	c.Session().SetToken(validToken)

	// The scanner hands over a full URL; the client reduces it to the code.
	scanned, err := c.GetRequestByCode(context.Background(), "https://gate.example.com/visit/"+code)
	if err != nil {
		t.Fatalf("GetRequestByCode: %v", err)
	}
	if scanned.Status != gate.OutcomeValid || scanned.VisitorName != "Bob" {
		t.Errorf("unexpected result: %+v", scanned)
	}
}

func TestGetRequestByCodeRejectsMalformedScanLocally(t *testing.T) {
	var hits atomic.Int32
	srv := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	})

	c := New(srv.URL, nil, nil)
	c.Session().SetToken(validToken)

	if _, err := c.GetRequestByCode(context.Background(), "not a code"); err == nil {
		t.Fatal("expected error for malformed scan")
	}
	if hits.Load() != 0 {
		t.Errorf("malformed scan reached the server %d times", hits.Load())
	}
}

func TestErrorEnvelopeDecoding(t *testing.T) {
	srv := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"Your role does not permit this operation","context":{"reason":"wrong_role"}}}`))
	})

	c := New(srv.URL, nil, nil)
	c.Session().SetToken(validToken)

	_, err := c.ListAllRequests(context.Background())
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Reason() != "wrong_role" {
		t.Errorf("unexpected error: %+v", apiErr)
	}
}

func TestAuthExpiredFiresOncePerToken(t *testing.T) {
	srv := newAPIStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"resource":[],"meta":{"count":0}}`))
	})

	var fired atomic.Int32
	session := NewSession()
	session.OnAuthExpired = func() { fired.Add(1) }
	session.SetToken("stale-token")

	c := New(srv.URL, nil, session)

	// A burst of concurrent calls all hit the 401; the hook must fire once.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.ListOwnRequests(context.Background())
		}()
	}
	wg.Wait()

	if got := fired.Load(); got != 1 {
		t.Fatalf("OnAuthExpired fired %d times, want 1", got)
	}
	if session.Token() != "" {
		t.Error("expected token to be dropped after rejection")
	}

	// A fresh login re-arms the hook for the next expiry.
	session.SetToken("another-stale-token")
	c.ListOwnRequests(context.Background())
	if got := fired.Load(); got != 2 {
		t.Fatalf("OnAuthExpired fired %d times after re-login, want 2", got)
	}
}

func TestScanHistoryNewestFirstAndCapped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scans.json")
	history := NewScanHistory(path)

	for i := 0; i < MaxScanHistory+5; i++ {
		rec := ScanRecord{
			Code:      fmt.Sprintf("code-%d", i),
			Outcome:   gate.OutcomeValid,
			ScannedAt: time.Now(),
		}
		if err := history.Record(rec); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	records, err := history.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != MaxScanHistory {
		t.Fatalf("len = %d, want %d", len(records), MaxScanHistory)
	}
	if records[0].Code != fmt.Sprintf("code-%d", MaxScanHistory+4) {
		t.Errorf("newest record = %q, want the last one recorded", records[0].Code)
	}
}

func TestScanHistoryMissingFile(t *testing.T) {
	history := NewScanHistory(filepath.Join(t.TempDir(), "absent.json"))
	records, err := history.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Errorf("expected empty history, got %d records", len(records))
	}
}
