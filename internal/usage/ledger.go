// Package usage tracks generation usage statistics so runs can be audited
// against provider budgets after the fact. Counts are bucketed per UTC day
// and per model, persisted to a JSON ledger file by default or to Postgres
// when a DSN is configured.
package usage

import (
	"database/sql"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Stat is an aggregate request/token/error count.
type Stat struct {
	Requests int64 `json:"requests"`
	Tokens   int64 `json:"tokens"`
	Errors   int64 `json:"errors"`
}

// Day is one UTC day of usage, broken down by model.
type Day struct {
	Requests int64           `json:"requests"`
	Tokens   int64           `json:"tokens"`
	Errors   int64           `json:"errors"`
	Models   map[string]Stat `json:"models"`
}

// Ledger persists usage counters. When db is set the file path is ignored.
type Ledger struct {
	mu   sync.Mutex
	path string
	db   *sql.DB

	schemaOnce sync.Once
	schemaErr  error

	now func() time.Time
}

// New returns a file-backed ledger that writes to path.
func New(path string) *Ledger {
	return &Ledger{path: path, now: time.Now}
}

// NewPostgres returns a Postgres-backed ledger.
func NewPostgres(dsn string) (*Ledger, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Ledger{db: db, now: time.Now}, nil
}

// Open picks the backend: Postgres when dsn is non-empty and reachable,
// falling back to the file ledger otherwise.
func Open(path, dsn string) *Ledger {
	if strings.TrimSpace(dsn) != "" {
		if l, err := NewPostgres(dsn); err == nil {
			return l
		}
	}
	return New(path)
}

// Record adds one call to the current day's counters.
func (l *Ledger) Record(model string, tokens int64, hasErr bool) error {
	if l == nil {
		return nil
	}
	if model == "" {
		model = "unknown"
	}
	if tokens < 1 {
		tokens = 1
	}
	day := l.now().UTC().Format("2006-01-02")
	if l.db != nil {
		return l.recordDB(day, model, tokens, hasErr)
	}
	return l.recordFile(day, model, tokens, hasErr)
}

// Totals aggregates every day in the ledger.
func (l *Ledger) Totals() (Stat, error) {
	if l == nil {
		return Stat{}, nil
	}
	if l.db != nil {
		return l.totalsDB()
	}
	return l.totalsFile()
}

// DayStats returns the counters for one UTC day (format 2006-01-02).
func (l *Ledger) DayStats(day string) (Day, bool, error) {
	if l == nil {
		return Day{}, false, nil
	}
	if l.db != nil {
		return l.dayStatsDB(day)
	}
	return l.dayStatsFile(day)
}

// Close releases the database handle, if any.
func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}
