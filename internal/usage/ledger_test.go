package usage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"appforge/internal/tester"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l := New(filepath.Join(t.TempDir(), "usage.json"))
	l.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	}
	return l
}

func TestRecordAggregatesByDayAndModel(t *testing.T) {
	l := newTestLedger(t)

	tester.NoErr(t, l.Record("Anthropic:claude", 100, false))
	tester.NoErr(t, l.Record("Anthropic:claude", 200, true))
	tester.NoErr(t, l.Record("Gemini:flash", 50, false))

	day, ok, err := l.DayStats("2025-06-01")
	tester.NoErr(t, err)
	tester.True(t, ok)
	tester.Eq(t, day.Requests, int64(3))
	tester.Eq(t, day.Tokens, int64(350))
	tester.Eq(t, day.Errors, int64(1))
	tester.Eq(t, day.Models["Anthropic:claude"], Stat{Requests: 2, Tokens: 300, Errors: 1})
	tester.Eq(t, day.Models["Gemini:flash"], Stat{Requests: 1, Tokens: 50, Errors: 0})
}

func TestRecordSplitsAcrossDays(t *testing.T) {
	l := newTestLedger(t)
	tester.NoErr(t, l.Record("m", 10, false))

	l.now = func() time.Time {
		return time.Date(2025, 6, 2, 0, 0, 1, 0, time.UTC)
	}
	tester.NoErr(t, l.Record("m", 20, false))

	totals, err := l.Totals()
	tester.NoErr(t, err)
	tester.Eq(t, totals, Stat{Requests: 2, Tokens: 30, Errors: 0})

	_, ok, err := l.DayStats("2025-06-01")
	tester.NoErr(t, err)
	tester.True(t, ok)
	_, ok, err = l.DayStats("2025-06-02")
	tester.NoErr(t, err)
	tester.True(t, ok)
}

func TestRecordNormalizesInputs(t *testing.T) {
	l := newTestLedger(t)
	tester.NoErr(t, l.Record("", 0, false))

	day, ok, err := l.DayStats("2025-06-01")
	tester.NoErr(t, err)
	tester.True(t, ok)
	tester.Eq(t, day.Models["unknown"], Stat{Requests: 1, Tokens: 1, Errors: 0})
}

func TestLedgerSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "usage.json")

	l := New(path)
	l.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	tester.NoErr(t, l.Record("m", 10, false))

	reopened := New(path)
	reopened.now = l.now
	tester.NoErr(t, reopened.Record("m", 5, true))

	totals, err := reopened.Totals()
	tester.NoErr(t, err)
	tester.Eq(t, totals, Stat{Requests: 2, Tokens: 15, Errors: 1})
}

func TestLedgerFileIsWellFormed(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "usage.json")

	l := New(path)
	l.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	tester.NoErr(t, l.Record("m", 10, false))

	b, err := os.ReadFile(path)
	tester.NoErr(t, err)

	var f struct {
		UpdatedAt string         `json:"updated_at"`
		Days      map[string]Day `json:"days"`
	}
	tester.NoErr(t, json.Unmarshal(b, &f))
	tester.True(t, f.UpdatedAt != "")
	tester.Eq(t, len(f.Days), 1)

	// No leftover temp file from the atomic rename.
	_, err = os.Stat(path + ".tmp")
	tester.True(t, os.IsNotExist(err))
}

func TestNilLedgerIsNoop(t *testing.T) {
	var l *Ledger
	tester.NoErr(t, l.Record("m", 1, false))
	totals, err := l.Totals()
	tester.NoErr(t, err)
	tester.Eq(t, totals, Stat{})
	tester.NoErr(t, l.Close())
}
