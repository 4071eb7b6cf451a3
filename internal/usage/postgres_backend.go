package usage

func (l *Ledger) ensureSchema() error {
	if l == nil || l.db == nil {
		return nil
	}
	l.schemaOnce.Do(func() {
		_, l.schemaErr = l.db.Exec(`
CREATE TABLE IF NOT EXISTS usage_days (
  day TEXT NOT NULL,
  model TEXT NOT NULL,
  requests BIGINT NOT NULL DEFAULT 0,
  tokens BIGINT NOT NULL DEFAULT 0,
  errors BIGINT NOT NULL DEFAULT 0,
  PRIMARY KEY (day, model)
);
CREATE INDEX IF NOT EXISTS idx_usage_days_day ON usage_days (day);
`)
	})
	return l.schemaErr
}

func (l *Ledger) recordDB(day, model string, tokens int64, hasErr bool) error {
	if err := l.ensureSchema(); err != nil {
		return err
	}
	errInc := int64(0)
	if hasErr {
		errInc = 1
	}
	_, err := l.db.Exec(`
INSERT INTO usage_days (day, model, requests, tokens, errors)
VALUES ($1,$2,1,$3,$4)
ON CONFLICT (day, model)
DO UPDATE SET requests = usage_days.requests + 1,
  tokens = usage_days.tokens + EXCLUDED.tokens,
  errors = usage_days.errors + EXCLUDED.errors`,
		day, model, tokens, errInc)
	return err
}

func (l *Ledger) totalsDB() (Stat, error) {
	if err := l.ensureSchema(); err != nil {
		return Stat{}, err
	}
	row := l.db.QueryRow(`
SELECT COALESCE(SUM(requests), 0), COALESCE(SUM(tokens), 0), COALESCE(SUM(errors), 0)
FROM usage_days`)
	var sum Stat
	if err := row.Scan(&sum.Requests, &sum.Tokens, &sum.Errors); err != nil {
		return Stat{}, err
	}
	return sum, nil
}

func (l *Ledger) dayStatsDB(day string) (Day, bool, error) {
	if err := l.ensureSchema(); err != nil {
		return Day{}, false, err
	}
	rows, err := l.db.Query(`
SELECT model, requests, tokens, errors FROM usage_days WHERE day = $1`, day)
	if err != nil {
		return Day{}, false, err
	}
	defer rows.Close()

	d := Day{Models: map[string]Stat{}}
	found := false
	for rows.Next() {
		var model string
		var s Stat
		if err := rows.Scan(&model, &s.Requests, &s.Tokens, &s.Errors); err != nil {
			return Day{}, false, err
		}
		found = true
		d.Requests += s.Requests
		d.Tokens += s.Tokens
		d.Errors += s.Errors
		d.Models[model] = s
	}
	return d, found, rows.Err()
}
