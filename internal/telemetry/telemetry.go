// Package telemetry emits a periodic anonymous usage heartbeat into the
// server log. Operators aggregate these lines however they collect logs;
// nothing leaves the host.
package telemetry

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

const flushInterval = 1 * time.Hour

// SettingsStore is the interface this package needs from the store.
type SettingsStore interface {
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

// Properties holds the heartbeat payload.
type Properties struct {
	Version    string  `json:"version"`
	GoVersion  string  `json:"go_version"`
	OS         string  `json:"os"`
	Arch       string  `json:"arch"`
	Driver     string  `json:"driver"`
	Identities int     `json:"identity_count"`
	Requests   int     `json:"request_count"`
	UptimeHrs  float64 `json:"uptime_hours"`
}

// PropertiesFunc is called each flush to gather current state.
type PropertiesFunc func() Properties

// Tracker manages the usage heartbeat loop.
type Tracker struct {
	instanceID string
	propsFn    PropertiesFunc
	logger     *slog.Logger
	startedAt  time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Tracker. It resolves (or generates) the instance ID from the
// settings store. Returns nil if the heartbeat is disabled via env var or
// settings; a nil Tracker is safe to Start and Shutdown.
func New(ctx context.Context, store SettingsStore, logger *slog.Logger, propsFn PropertiesFunc) *Tracker {
	if envVal := os.Getenv("VMS_TELEMETRY"); envVal == "0" || envVal == "false" || envVal == "off" {
		return nil
	}

	if store != nil {
		val, err := store.GetSetting(ctx, "telemetry.enabled")
		if err == nil && (val == "false" || val == "0") {
			return nil
		}
	}

	return &Tracker{
		instanceID: resolveInstanceID(ctx, store),
		propsFn:    propsFn,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// Start begins the background heartbeat loop. It emits an initial heartbeat
// immediately and then repeats every hour. Non-blocking.
func (t *Tracker) Start() {
	if t == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()

		t.flush()

		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				t.flush()
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Shutdown stops the background loop and emits a final heartbeat.
func (t *Tracker) Shutdown() {
	if t == nil {
		return
	}
	if t.cancel != nil {
		t.cancel()
	}
	t.wg.Wait()
	t.flush()
}

func (t *Tracker) flush() {
	props := t.propsFn()
	props.UptimeHrs = time.Since(t.startedAt).Hours()

	t.logger.Info("usage heartbeat",
		"instance_id", t.instanceID,
		"version", props.Version,
		"go_version", props.GoVersion,
		"os", props.OS,
		"arch", props.Arch,
		"driver", props.Driver,
		"identity_count", props.Identities,
		"request_count", props.Requests,
		"uptime_hours", props.UptimeHrs,
	)
}

// resolveInstanceID loads or generates a persistent anonymous instance ID.
func resolveInstanceID(ctx context.Context, store SettingsStore) string {
	if store != nil {
		id, err := store.GetSetting(ctx, "instance_id")
		if err == nil && id != "" {
			return id
		}
	}

	id := uuid.New().String()

	if store != nil {
		_ = store.SetSetting(ctx, "instance_id", id)
	}
	return id
}
