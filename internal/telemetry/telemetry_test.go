package telemetry

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"
)

// mockStore implements SettingsStore for testing.
type mockStore struct {
	mu   sync.Mutex
	data map[string]string
}

func newMockStore() *mockStore {
	return &mockStore{data: make(map[string]string)}
}

func (m *mockStore) GetSetting(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return "", fmt.Errorf("not found")
	}
	return v, nil
}

func (m *mockStore) SetSetting(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, nil))
}

func TestResolveInstanceID_GeneratesAndPersists(t *testing.T) {
	store := newMockStore()
	ctx := context.Background()

	id := resolveInstanceID(ctx, store)
	if id == "" {
		t.Fatal("expected non-empty instance ID")
	}

	// Should be persisted
	stored, err := store.GetSetting(ctx, "instance_id")
	if err != nil {
		t.Fatalf("expected instance_id in store: %v", err)
	}
	if stored != id {
		t.Errorf("stored ID %q != returned ID %q", stored, id)
	}

	// Second call should return same ID
	id2 := resolveInstanceID(ctx, store)
	if id2 != id {
		t.Errorf("expected same ID on second call, got %q vs %q", id2, id)
	}
}

func TestResolveInstanceID_NilStore(t *testing.T) {
	id := resolveInstanceID(context.Background(), nil)
	if id == "" {
		t.Fatal("expected non-empty instance ID even with nil store")
	}
}

func TestNew_DisabledViaSetting(t *testing.T) {
	store := newMockStore()
	store.data["telemetry.enabled"] = "false"

	tracker := New(context.Background(), store, testLogger(&bytes.Buffer{}), func() Properties { return Properties{} })
	if tracker != nil {
		t.Fatal("expected nil tracker when the heartbeat is disabled via setting")
	}
}

func TestNew_DisabledViaEnv(t *testing.T) {
	for _, val := range []string{"0", "false", "off"} {
		t.Run(val, func(t *testing.T) {
			t.Setenv("VMS_TELEMETRY", val)
			store := newMockStore()
			tracker := New(context.Background(), store, testLogger(&bytes.Buffer{}), func() Properties { return Properties{} })
			if tracker != nil {
				t.Fatalf("expected nil tracker when VMS_TELEMETRY=%s", val)
			}
		})
	}
}

func TestNew_EnabledByDefault(t *testing.T) {
	store := newMockStore()
	tracker := New(context.Background(), store, testLogger(&bytes.Buffer{}), func() Properties { return Properties{} })
	if tracker == nil {
		t.Fatal("expected non-nil tracker by default")
	}
	if tracker.instanceID == "" {
		t.Fatal("expected non-empty instance ID")
	}

	// Verify the instance ID was persisted
	id, err := store.GetSetting(context.Background(), "instance_id")
	if err != nil {
		t.Fatalf("instance_id not persisted: %v", err)
	}
	if id != tracker.instanceID {
		t.Errorf("persisted ID %q != tracker ID %q", id, tracker.instanceID)
	}
}

func TestTracker_HeartbeatLogged(t *testing.T) {
	var buf bytes.Buffer
	store := newMockStore()
	tracker := New(context.Background(), store, testLogger(&buf), func() Properties {
		return Properties{
			Version:    "0.1.2",
			GoVersion:  "go1.25.0",
			OS:         "linux",
			Arch:       "amd64",
			Driver:     "sqlite",
			Identities: 3,
			Requests:   10,
		}
	})

	tracker.Start()
	time.Sleep(50 * time.Millisecond)
	tracker.Shutdown()

	out := buf.String()
	if !bytes.Contains(buf.Bytes(), []byte("usage heartbeat")) {
		t.Fatalf("expected heartbeat line in log, got %q", out)
	}
	if !bytes.Contains(buf.Bytes(), []byte("identity_count=3")) {
		t.Errorf("expected identity_count in log, got %q", out)
	}
}

func TestStartShutdown_NilTracker(t *testing.T) {
	// Ensure nil tracker doesn't panic
	var tracker *Tracker
	tracker.Start()
	tracker.Shutdown()
}
