package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "modernc.org/sqlite"

	"ecosort/internal/waste"
)

const (
	TimestampLayout = "2006-01-02 15:04:05"
	DateLayout      = "2006-01-02"
)

// Store wraps SQLite access for classification events and their daily
// rollups. All access goes through a single connection, so writers are
// serialised.
type Store struct {
	db  *sql.DB
	loc *time.Location
}

type Option func(*Store)

// WithLocation sets the zone stored timestamps are read back in. It should
// match the zone events are created in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		if loc != nil {
			s.loc = loc
		}
	}
}

func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	s := &Store{db: db, loc: time.UTC}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	stmts := []string{
		`PRAGMA busy_timeout = 5000;`,
		`CREATE TABLE IF NOT EXISTS classifications (
			id TEXT PRIMARY KEY,
			occurred_at TEXT NOT NULL,
			event_date TEXT NOT NULL,
			input_type TEXT NOT NULL,
			input_data TEXT,
			predicted_category TEXT NOT NULL,
			confidence REAL NOT NULL,
			sustainability_score REAL NOT NULL,
			disposal_tips TEXT
		);`,
		`CREATE INDEX IF NOT EXISTS idx_classifications_date ON classifications(event_date);`,
		`CREATE INDEX IF NOT EXISTS idx_classifications_occurred ON classifications(occurred_at);`,
		`CREATE TABLE IF NOT EXISTS daily_aggregates (
			date TEXT PRIMARY KEY,
			biodegradable INTEGER NOT NULL DEFAULT 0,
			recyclable INTEGER NOT NULL DEFAULT 0,
			hazardous INTEGER NOT NULL DEFAULT 0,
			total INTEGER NOT NULL DEFAULT 0,
			updated_at TEXT
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Event is one finished classification. It is never updated once written.
type Event struct {
	ID                  string          `json:"id"`
	Timestamp           time.Time       `json:"timestamp"`
	InputKind           waste.InputKind `json:"input_type"`
	Input               string          `json:"input_data"`
	Category            waste.Category  `json:"predicted_category"`
	Confidence          float64         `json:"confidence"`
	SustainabilityScore float64         `json:"sustainability_score"`
	Tips                []string        `json:"disposal_tips"`
}

// Date is the calendar day the event counts towards.
func (e Event) Date() string { return e.Timestamp.Format(DateLayout) }

// DailyAggregate is the per-day rollup derived from the event log.
type DailyAggregate struct {
	Date          string `json:"date"`
	Biodegradable int    `json:"biodegradable"`
	Recyclable    int    `json:"recyclable"`
	Hazardous     int    `json:"hazardous"`
	Total         int    `json:"total"`
}

func (a *DailyAggregate) add(c waste.Category, n int) {
	switch c {
	case waste.Biodegradable:
		a.Biodegradable += n
	case waste.Recyclable:
		a.Recyclable += n
	case waste.Hazardous:
		a.Hazardous += n
	}
	a.Total += n
}

// RecordEvent appends e and recounts its day inside one transaction, so the
// returned aggregate always matches the event log.
func (s *Store) RecordEvent(ctx context.Context, e Event) (DailyAggregate, error) {
	tips, err := json.Marshal(e.Tips)
	if err != nil {
		return DailyAggregate{}, fmt.Errorf("encode tips: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DailyAggregate{}, err
	}
	defer tx.Rollback()

	insert, args, err := sq.Insert("classifications").
		Columns("id", "occurred_at", "event_date", "input_type", "input_data", "predicted_category", "confidence", "sustainability_score", "disposal_tips").
		Values(e.ID, e.Timestamp.Format(TimestampLayout), e.Date(), string(e.InputKind), e.Input, string(e.Category), e.Confidence, e.SustainabilityScore, string(tips)).
		ToSql()
	if err != nil {
		return DailyAggregate{}, err
	}
	if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
		return DailyAggregate{}, fmt.Errorf("insert event: %w", err)
	}

	agg, err := recount(ctx, tx, e.Date())
	if err != nil {
		return DailyAggregate{}, err
	}
	if err := tx.Commit(); err != nil {
		return DailyAggregate{}, err
	}
	return agg, nil
}

// RecomputeDay rebuilds one day's aggregate from the event log.
func (s *Store) RecomputeDay(ctx context.Context, date string) (DailyAggregate, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return DailyAggregate{}, err
	}
	defer tx.Rollback()
	agg, err := recount(ctx, tx, date)
	if err != nil {
		return DailyAggregate{}, err
	}
	return agg, tx.Commit()
}

func recount(ctx context.Context, tx *sql.Tx, date string) (DailyAggregate, error) {
	query, args, err := sq.Select("predicted_category", "COUNT(*)").
		From("classifications").
		Where(sq.Eq{"event_date": date}).
		GroupBy("predicted_category").
		ToSql()
	if err != nil {
		return DailyAggregate{}, err
	}
	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return DailyAggregate{}, fmt.Errorf("count events: %w", err)
	}
	agg := DailyAggregate{Date: date}
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			rows.Close()
			return DailyAggregate{}, err
		}
		agg.add(waste.Category(cat), n)
	}
	if err := rows.Close(); err != nil {
		return DailyAggregate{}, err
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO daily_aggregates(date, biodegradable, recyclable, hazardous, total, updated_at)
		VALUES(?, ?, ?, ?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET biodegradable=excluded.biodegradable, recyclable=excluded.recyclable, hazardous=excluded.hazardous, total=excluded.total, updated_at=excluded.updated_at`,
		agg.Date, agg.Biodegradable, agg.Recyclable, agg.Hazardous, agg.Total, time.Now().UTC().Format(TimestampLayout))
	if err != nil {
		return DailyAggregate{}, fmt.Errorf("upsert aggregate: %w", err)
	}
	return agg, nil
}

// DailyAggregates returns stored rollups with start <= date <= end, oldest
// first.
func (s *Store) DailyAggregates(ctx context.Context, start, end string) ([]DailyAggregate, error) {
	query, args, err := sq.Select("date", "biodegradable", "recyclable", "hazardous", "total").
		From("daily_aggregates").
		Where(sq.And{sq.GtOrEq{"date": start}, sq.LtOrEq{"date": end}}).
		OrderBy("date ASC").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []DailyAggregate
	for rows.Next() {
		var a DailyAggregate
		if err := rows.Scan(&a.Date, &a.Biodegradable, &a.Recyclable, &a.Hazardous, &a.Total); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// EventFilter narrows CountEvents and CategoryCounts. Zero fields match
// everything. From and To bound occurred_at inclusively; FromDate and
// ToDate bound event_date inclusively.
type EventFilter struct {
	Date     string
	FromDate string
	ToDate   string
	From     time.Time
	To       time.Time
	Category waste.Category
}

func (f EventFilter) where() sq.And {
	cond := sq.And{}
	if f.Date != "" {
		cond = append(cond, sq.Eq{"event_date": f.Date})
	}
	if f.FromDate != "" {
		cond = append(cond, sq.GtOrEq{"event_date": f.FromDate})
	}
	if f.ToDate != "" {
		cond = append(cond, sq.LtOrEq{"event_date": f.ToDate})
	}
	if !f.From.IsZero() {
		cond = append(cond, sq.GtOrEq{"occurred_at": f.From.Format(TimestampLayout)})
	}
	if !f.To.IsZero() {
		cond = append(cond, sq.LtOrEq{"occurred_at": f.To.Format(TimestampLayout)})
	}
	if f.Category != "" {
		cond = append(cond, sq.Eq{"predicted_category": string(f.Category)})
	}
	return cond
}

func (s *Store) CountEvents(ctx context.Context, f EventFilter) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From("classifications").Where(f.where()).ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// CategoryCounts returns per-category event counts. Categories with no events
// are absent.
func (s *Store) CategoryCounts(ctx context.Context, f EventFilter) (map[waste.Category]int, error) {
	query, args, err := sq.Select("predicted_category", "COUNT(*)").
		From("classifications").
		Where(f.where()).
		GroupBy("predicted_category").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[waste.Category]int{}
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		out[waste.Category(cat)] = n
	}
	return out, rows.Err()
}

// EventDates lists every day that has at least one event.
func (s *Store) EventDates(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT event_date FROM classifications ORDER BY event_date ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var dates []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}
	return dates, rows.Err()
}

// ListEvents returns the most recent events, newest first.
func (s *Store) ListEvents(ctx context.Context, limit int) ([]Event, error) {
	query, args, err := sq.Select("id", "occurred_at", "input_type", "input_data", "predicted_category", "confidence", "sustainability_score", "disposal_tips").
		From("classifications").
		OrderBy("occurred_at DESC", "id DESC").
		Limit(uint64(max(limit, 0))).
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		var (
			e               Event
			occurred, kind  string
			category        string
			input, tipsJSON sql.NullString
		)
		if err := rows.Scan(&e.ID, &occurred, &kind, &input, &category, &e.Confidence, &e.SustainabilityScore, &tipsJSON); err != nil {
			return nil, err
		}
		ts, err := time.ParseInLocation(TimestampLayout, occurred, s.loc)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", e.ID, err)
		}
		e.Timestamp = ts
		e.InputKind = waste.InputKind(kind)
		e.Input = input.String
		e.Category = waste.Category(category)
		if tipsJSON.Valid && tipsJSON.String != "" {
			if err := json.Unmarshal([]byte(tipsJSON.String), &e.Tips); err != nil {
				return nil, fmt.Errorf("event %s tips: %w", e.ID, err)
			}
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// Health returns err if DB not reachable.
func (s *Store) Health(ctx context.Context) error {
	row := s.db.QueryRowContext(ctx, `SELECT 1`)
	var v int
	if err := row.Scan(&v); err != nil {
		return fmt.Errorf("db health: %w", err)
	}
	return nil
}
