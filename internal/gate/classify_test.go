package gate

import (
	"testing"
	"time"
)

// A fixed reference day keeps the calendar-date checks deterministic.
var (
	day14h = time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC) // scheduled start, "today" 14:00
	day18h = time.Date(2025, 6, 10, 18, 0, 0, 0, time.UTC) // valid until, "today" 18:00
)

func TestClassifyValid(t *testing.T) {
	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	if got := Classify(now, day14h, day18h); got != OutcomeValid {
		t.Errorf("got %q, want %q", got, OutcomeValid)
	}
}

func TestClassifyExpired(t *testing.T) {
	now := time.Date(2025, 6, 10, 19, 0, 0, 0, time.UTC)
	if got := Classify(now, day14h, day18h); got != OutcomeExpired {
		t.Errorf("got %q, want %q", got, OutcomeExpired)
	}
}

func TestClassifyExpiryBoundary(t *testing.T) {
	// Exactly at valid_until the request is already expired...
	if got := Classify(day18h, day14h, day18h); got != OutcomeExpired {
		t.Errorf("at valid_until: got %q, want %q", got, OutcomeExpired)
	}
	// ...one second earlier it is still valid.
	if got := Classify(day18h.Add(-time.Second), day14h, day18h); got != OutcomeValid {
		t.Errorf("one second before: got %q, want %q", got, OutcomeValid)
	}
}

func TestClassifyWrongDay(t *testing.T) {
	// Scheduled tomorrow, expiry far in the future, scanned today.
	tomorrow := day14h.Add(24 * time.Hour)
	farFuture := day14h.Add(72 * time.Hour)
	now := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	if got := Classify(now, tomorrow, farFuture); got != OutcomeWrongDay {
		t.Errorf("got %q, want %q", got, OutcomeWrongDay)
	}

	// Scheduled yesterday but somehow still unexpired is also wrong-day.
	yesterday := day14h.Add(-24 * time.Hour)
	if got := Classify(now, yesterday, farFuture); got != OutcomeWrongDay {
		t.Errorf("yesterday: got %q, want %q", got, OutcomeWrongDay)
	}
}

func TestClassifyExpiryDominatesWrongDay(t *testing.T) {
	// Scheduled today but already expired: expiry wins over the date check.
	now := time.Date(2025, 6, 10, 19, 0, 0, 0, time.UTC)
	if got := Classify(now, day14h, day18h); got != OutcomeExpired {
		t.Errorf("got %q, want %q", got, OutcomeExpired)
	}

	// Scheduled on a different day AND expired: still expired, never
	// wrong-day.
	tomorrow := day14h.Add(24 * time.Hour)
	expired := now.Add(-time.Hour)
	if got := Classify(now, tomorrow, expired); got != OutcomeExpired {
		t.Errorf("different day + expired: got %q, want %q", got, OutcomeExpired)
	}
}

func TestClassifyComparesDatesInNowLocation(t *testing.T) {
	// 23:30 UTC on June 10 is already June 11 in UTC+2. A request scheduled
	// for 01:00 UTC+2 on June 11 is "today" from the verifier's zone.
	zone := time.FixedZone("UTC+2", 2*3600)
	now := time.Date(2025, 6, 11, 1, 30, 0, 0, zone)
	start := time.Date(2025, 6, 10, 23, 0, 0, 0, time.UTC) // 01:00 June 11 in UTC+2
	until := start.Add(6 * time.Hour)
	if got := Classify(now, start, until); got != OutcomeValid {
		t.Errorf("got %q, want %q", got, OutcomeValid)
	}
}

func TestParseScannedCode(t *testing.T) {
	const code = "3b241101-e2bb-4255-8caf-4136c566a962"

	for _, tc := range []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"bare code", code, code, true},
		{"uppercase normalized", "3B241101-E2BB-4255-8CAF-4136C566A962", code, true},
		{"url payload", "https://vms.example.com/visitor/" + code, code, true},
		{"trailing whitespace", code + "\n", code, true},
		{"missing hyphens", "3b241101e2bb42558caf4136c566a962", "", false},
		{"wrong variant nibble", "3b241101-e2bb-4255-0caf-4136c566a962", "", false},
		{"not a uuid", "hello-world", "", false},
		{"url with junk segment", "https://vms.example.com/visitor/nope", "", false},
		{"empty", "", "", false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseScannedCode(tc.in)
			if tc.ok {
				if err != nil {
					t.Fatalf("ParseScannedCode(%q): %v", tc.in, err)
				}
				if got != tc.want {
					t.Errorf("got %q, want %q", got, tc.want)
				}
				return
			}
			if err == nil {
				t.Errorf("ParseScannedCode(%q): expected error, got %q", tc.in, got)
			}
		})
	}
}
