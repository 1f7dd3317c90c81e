// Package storage is the relational persistence layer (§4.15, §4.20): a
// single-writer, ACID SQLite database reached through database/sql and the
// pure-Go modernc.org/sqlite driver, holding the six core tables
// (earnings_calendar, historical_moves, sentiment_cache, vrp_cache,
// job_status, budget). Write discipline follows the teacher's JSONStorage
// pattern (internal/storage/storage.go: a single mutex guarding every
// mutation, atomic all-or-nothing commits) translated from whole-file
// temp-then-rename writes to short SQL transactions.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/eddiefleurent/vrpscanner/internal/budget"
	"github.com/eddiefleurent/vrpscanner/internal/historical"
	"github.com/eddiefleurent/vrpscanner/internal/models"
	"github.com/eddiefleurent/vrpscanner/internal/money"
	"github.com/eddiefleurent/vrpscanner/internal/provider"
	"github.com/eddiefleurent/vrpscanner/internal/scheduler"
)

const schema = `
CREATE TABLE IF NOT EXISTS earnings_calendar (
	ticker        TEXT NOT NULL,
	earnings_date TEXT NOT NULL,
	timing        TEXT NOT NULL,
	confirmed     INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (ticker, earnings_date)
);

CREATE TABLE IF NOT EXISTS historical_moves (
	ticker             TEXT NOT NULL,
	earnings_date      TEXT NOT NULL,
	prev_close         REAL NOT NULL,
	earnings_close     REAL NOT NULL,
	close_move_pct     REAL NOT NULL,
	gap_move_pct       REAL NOT NULL,
	intraday_move_pct  REAL NOT NULL,
	PRIMARY KEY (ticker, earnings_date)
);

CREATE TABLE IF NOT EXISTS sentiment_cache (
	ticker        TEXT NOT NULL,
	earnings_date TEXT NOT NULL,
	payload       BLOB NOT NULL,
	inserted_at   TEXT NOT NULL,
	PRIMARY KEY (ticker, earnings_date)
);

CREATE TABLE IF NOT EXISTS vrp_cache (
	ticker      TEXT NOT NULL,
	expiration  TEXT NOT NULL,
	payload     BLOB NOT NULL,
	inserted_at TEXT NOT NULL,
	PRIMARY KEY (ticker, expiration)
);

CREATE TABLE IF NOT EXISTS job_status (
	date        TEXT NOT NULL,
	job         TEXT NOT NULL,
	status      TEXT NOT NULL,
	started_at  TEXT,
	finished_at TEXT,
	error       TEXT,
	PRIMARY KEY (date, job)
);

CREATE TABLE IF NOT EXISTS budget (
	service TEXT NOT NULL,
	day     TEXT NOT NULL,
	month   TEXT NOT NULL,
	calls   INTEGER NOT NULL DEFAULT 0,
	cost    TEXT NOT NULL DEFAULT '0',
	PRIMARY KEY (service, day)
);
`

// Store is the relational store. All mutations run under mu, mirroring the
// teacher's JSONStorage single-writer discipline; reads do not take mu since
// SQLite's own connection serializes them safely for a single-process
// single-writer.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

var (
	_ scheduler.StatusStore = (*Store)(nil)
	_ budget.Store          = (*Store)(nil)
)

// Open creates or opens a SQLite database at path and migrates its schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer; serialize all access through one connection

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection is reachable, for health checks.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func dateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// UpsertEarnings records or updates one issuer's earnings-calendar entry.
func (s *Store) UpsertEarnings(ctx context.Context, ticker string, date time.Time, timing provider.Timing, confirmed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO earnings_calendar (ticker, earnings_date, timing, confirmed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (ticker, earnings_date) DO UPDATE SET timing = excluded.timing, confirmed = excluded.confirmed
	`, ticker, dateKey(date), string(timing), boolToInt(confirmed))
	return err
}

// GetEarnings returns the stored earnings event for (ticker, date), if any.
func (s *Store) GetEarnings(ctx context.Context, ticker string, date time.Time) (*provider.EarningsEvent, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT timing, confirmed FROM earnings_calendar WHERE ticker = ? AND earnings_date = ?
	`, ticker, dateKey(date))

	var timing string
	var confirmed int
	if err := row.Scan(&timing, &confirmed); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, err
	}
	return &provider.EarningsEvent{Ticker: ticker, Date: date, Timing: provider.Timing(timing)}, true, nil
}

// AppendMove records one earnings-day move, once. Duplicate (ticker, date)
// inserts are ignored rather than erroring, since a move is append-only and
// immutable once observed (§4.15).
func (s *Store) AppendMove(ctx context.Context, m historical.Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO historical_moves
			(ticker, earnings_date, prev_close, earnings_close, close_move_pct, gap_move_pct, intraday_move_pct)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (ticker, earnings_date) DO NOTHING
	`, m.Ticker, dateKey(m.EarningsDate), m.PrevClose, m.EarningsClose, m.CloseMovePct, m.GapMovePct, m.IntradayMovePct)
	return err
}

// ListMoves returns up to limit moves for ticker, most recent first.
func (s *Store) ListMoves(ctx context.Context, ticker string, limit int) ([]historical.Move, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, earnings_date, prev_close, earnings_close, close_move_pct, gap_move_pct, intraday_move_pct
		FROM historical_moves WHERE ticker = ? ORDER BY earnings_date DESC LIMIT ?
	`, ticker, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []historical.Move
	for rows.Next() {
		var m historical.Move
		var dateStr string
		if err := rows.Scan(&m.Ticker, &dateStr, &m.PrevClose, &m.EarningsClose, &m.CloseMovePct, &m.GapMovePct, &m.IntradayMovePct); err != nil {
			return nil, err
		}
		m.EarningsDate, err = time.Parse("2006-01-02", dateStr)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetSentimentCache returns a cached sentiment payload and its insertion
// time; the domain layer (cache.Cache / provider) applies TTL semantics.
func (s *Store) GetSentimentCache(ctx context.Context, ticker string, earningsDate time.Time) ([]byte, time.Time, bool, error) {
	return s.getCache(ctx, "sentiment_cache", "earnings_date", ticker, dateKey(earningsDate))
}

// SetSentimentCache upserts a sentiment payload.
func (s *Store) SetSentimentCache(ctx context.Context, ticker string, earningsDate time.Time, payload []byte) error {
	return s.setCache(ctx, "sentiment_cache", "earnings_date", ticker, dateKey(earningsDate), payload)
}

// GetVRPCache returns a cached VRP result payload and its insertion time.
func (s *Store) GetVRPCache(ctx context.Context, ticker string, expiration time.Time) ([]byte, time.Time, bool, error) {
	return s.getCache(ctx, "vrp_cache", "expiration", ticker, dateKey(expiration))
}

// SetVRPCache upserts a VRP result payload.
func (s *Store) SetVRPCache(ctx context.Context, ticker string, expiration time.Time, payload []byte) error {
	return s.setCache(ctx, "vrp_cache", "expiration", ticker, dateKey(expiration), payload)
}

func (s *Store) getCache(ctx context.Context, table, keyCol, ticker, key string) ([]byte, time.Time, bool, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT payload, inserted_at FROM %s WHERE ticker = ? AND %s = ?
	`, table, keyCol), ticker, key)

	var payload []byte
	var insertedAtStr string
	if err := row.Scan(&payload, &insertedAtStr); err != nil {
		if err == sql.ErrNoRows {
			return nil, time.Time{}, false, nil
		}
		return nil, time.Time{}, false, err
	}
	insertedAt, err := time.Parse(time.RFC3339, insertedAtStr)
	if err != nil {
		return nil, time.Time{}, false, err
	}
	return payload, insertedAt, true, nil
}

func (s *Store) setCache(ctx context.Context, table, keyCol, ticker, key string, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, fmt.Sprintf(`
		INSERT INTO %s (ticker, %s, payload, inserted_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (ticker, %s) DO UPDATE SET payload = excluded.payload, inserted_at = excluded.inserted_at
	`, table, keyCol, keyCol), ticker, key, payload, time.Now().UTC().Format(time.RFC3339))
	return err
}

// Load implements scheduler.StatusStore, returning the persisted job status
// for (date, job), or nil if none exists yet.
func (s *Store) Load(ctx context.Context, date time.Time, job scheduler.JobName) (*models.JobStatus, error) {
	return s.loadJobStatus(ctx, date, string(job))
}

// LoadJobStatus is the string-keyed counterpart used directly by callers
// that don't carry a scheduler.JobName (e.g. the CLI's status inspector).
func (s *Store) LoadJobStatus(ctx context.Context, date time.Time, job string) (*models.JobStatus, error) {
	return s.loadJobStatus(ctx, date, job)
}

func (s *Store) loadJobStatus(ctx context.Context, date time.Time, job string) (*models.JobStatus, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT status, started_at, finished_at, error FROM job_status WHERE date = ? AND job = ?
	`, dateKey(date), job)

	var status, errMsg string
	var startedAt, finishedAt sql.NullString
	if err := row.Scan(&status, &startedAt, &finishedAt, &errMsg); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}

	js := models.NewJobStatus(job, date)
	// Replay the persisted terminal/running state through the public DAG so
	// JobStatus's own invariants (terminal immutability) stay enforced.
	switch models.Status(status) {
	case models.StatusRunning:
		_ = js.Transition(models.StatusRunning, parseOrZero(startedAt.String))
	case models.StatusSuccess:
		_ = js.Transition(models.StatusRunning, parseOrZero(startedAt.String))
		_ = js.Transition(models.StatusSuccess, parseOrZero(finishedAt.String))
	case models.StatusFailed:
		_ = js.Transition(models.StatusRunning, parseOrZero(startedAt.String))
		_ = js.MarkFailed(parseOrZero(finishedAt.String), errMsg)
	case models.StatusSkipped:
		_ = js.Transition(models.StatusSkipped, parseOrZero(finishedAt.String))
	}
	return js, nil
}

func parseOrZero(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Save implements scheduler.StatusStore, durably persisting a JobStatus row.
func (s *Store) Save(ctx context.Context, js *models.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	startedAt := ""
	if !js.StartedAt.IsZero() {
		startedAt = js.StartedAt.UTC().Format(time.RFC3339)
	}
	finishedAt := ""
	if !js.FinishedAt.IsZero() {
		finishedAt = js.FinishedAt.UTC().Format(time.RFC3339)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_status (date, job, status, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (date, job) DO UPDATE SET
			status = excluded.status, started_at = excluded.started_at,
			finished_at = excluded.finished_at, error = excluded.error
	`, dateKey(js.Date), js.JobName, string(js.Status()), startedAt, finishedAt, js.Error)
	return err
}

// LoadDailyCalls and the three methods below implement budget.Store,
// reached through context.Background() since budget.Store predates
// context-threading in this tree; the relational store is the only
// implementation and every call site already holds a short-lived context
// upstream.
func (s *Store) LoadDailyCalls(service string, day time.Time) (int64, error) {
	row := s.db.QueryRowContext(context.Background(), `SELECT calls FROM budget WHERE service = ? AND day = ?`, service, dateKey(day))
	var calls int64
	if err := row.Scan(&calls); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil
		}
		return 0, err
	}
	return calls, nil
}

func (s *Store) IncrDailyCalls(service string, day time.Time, delta int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	month := day.UTC().Format("2006-01")
	_, err := s.db.ExecContext(context.Background(), `
		INSERT INTO budget (service, day, month, calls, cost)
		VALUES (?, ?, ?, ?, '0')
		ON CONFLICT (service, day) DO UPDATE SET calls = calls + excluded.calls
	`, service, dateKey(day), month, delta)
	return err
}

func (s *Store) LoadMonthlyCost(service string, month time.Time) (money.Money, error) {
	monthKey := month.UTC().Format("2006-01")
	rows, err := s.db.QueryContext(context.Background(), `SELECT cost FROM budget WHERE service = ? AND month = ?`, service, monthKey)
	if err != nil {
		return money.Zero, err
	}
	defer rows.Close()

	total := money.Zero
	for rows.Next() {
		var costStr string
		if err := rows.Scan(&costStr); err != nil {
			return money.Zero, err
		}
		m, err := money.NewMoneyFromString(costStr)
		if err != nil {
			return money.Zero, err
		}
		total = total.Add(m)
	}
	return total, rows.Err()
}

func (s *Store) AddMonthlyCost(service string, month time.Time, delta money.Money) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	monthKey := month.UTC().Format("2006-01")
	dayKey := monthKey + "-01"
	row := s.db.QueryRowContext(context.Background(), `SELECT cost FROM budget WHERE service = ? AND day = ?`, service, dayKey)
	var costStr string
	err := row.Scan(&costStr)
	current := money.Zero
	if err == nil {
		current, err = money.NewMoneyFromString(costStr)
		if err != nil {
			return err
		}
	} else if err != sql.ErrNoRows {
		return err
	}
	updated := current.Add(delta)

	_, err = s.db.ExecContext(context.Background(), `
		INSERT INTO budget (service, day, month, calls, cost)
		VALUES (?, ?, ?, 0, ?)
		ON CONFLICT (service, day) DO UPDATE SET cost = excluded.cost, month = excluded.month
	`, service, dayKey, monthKey, updated.String())
	return err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
