package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/JeffCSZ/vms/internal/gate"
)

// MaxScanHistory caps the retained scan records. The history is a display
// aid for the guard, not an audit log.
const MaxScanHistory = 20

// ScanRecord is one remembered scan result.
type ScanRecord struct {
	Code         string       `json:"code"`
	Outcome      gate.Outcome `json:"outcome"`
	VisitorName  string       `json:"visitor_name,omitempty"`
	VehiclePlate string       `json:"vehicle_plate,omitempty"`
	ScannedAt    time.Time    `json:"scanned_at"`
}

// ScanSink receives scan results as they happen.
type ScanSink interface {
	Record(rec ScanRecord) error
}

// ScanHistory keeps the most recent scans in a JSON file, newest first.
// Records past MaxScanHistory are dropped.
type ScanHistory struct {
	mu   sync.Mutex
	path string
}

// NewScanHistory creates a ScanHistory backed by the given file. The file is
// created on first Record.
func NewScanHistory(path string) *ScanHistory {
	return &ScanHistory{path: path}
}

// Record prepends rec and rewrites the file.
func (h *ScanHistory) Record(rec ScanRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	records, err := h.load()
	if err != nil {
		return err
	}
	records = append([]ScanRecord{rec}, records...)
	if len(records) > MaxScanHistory {
		records = records[:MaxScanHistory]
	}

	buf, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal scan history: %w", err)
	}
	if err := os.WriteFile(h.path, buf, 0o600); err != nil {
		return fmt.Errorf("write scan history: %w", err)
	}
	return nil
}

// List returns the remembered scans, newest first.
func (h *ScanHistory) List() ([]ScanRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load()
}

func (h *ScanHistory) load() ([]ScanRecord, error) {
	buf, err := os.ReadFile(h.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read scan history: %w", err)
	}
	var records []ScanRecord
	if err := json.Unmarshal(buf, &records); err != nil {
		// A corrupt history file is not worth failing a scan over.
		return nil, nil
	}
	return records, nil
}
