package usage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

type ledgerFile struct {
	UpdatedAt string         `json:"updated_at"`
	Days      map[string]Day `json:"days"`
}

func (l *Ledger) readFile() ledgerFile {
	f := ledgerFile{Days: map[string]Day{}}
	if b, err := os.ReadFile(l.path); err == nil {
		_ = json.Unmarshal(b, &f)
		if f.Days == nil {
			f.Days = map[string]Day{}
		}
	}
	return f
}

func (l *Ledger) recordFile(day, model string, tokens int64, hasErr bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f := l.readFile()
	d := f.Days[day]
	if d.Models == nil {
		d.Models = map[string]Stat{}
	}
	d.Requests++
	d.Tokens += tokens
	if hasErr {
		d.Errors++
	}
	m := d.Models[model]
	m.Requests++
	m.Tokens += tokens
	if hasErr {
		m.Errors++
	}
	d.Models[model] = m
	f.Days[day] = d
	f.UpdatedAt = l.now().UTC().Format(time.RFC3339)

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}

func (l *Ledger) totalsFile() (Stat, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var sum Stat
	for _, d := range l.readFile().Days {
		sum.Requests += d.Requests
		sum.Tokens += d.Tokens
		sum.Errors += d.Errors
	}
	return sum, nil
}

func (l *Ledger) dayStatsFile(day string) (Day, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	d, ok := l.readFile().Days[day]
	return d, ok, nil
}
