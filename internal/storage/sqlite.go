package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/danieldreier/kanji-srs/internal/srs"
	"github.com/google/uuid"
	"go.uber.org/zap"

	// Pure Go SQLite driver (no CGO).
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS cards (
	id          TEXT PRIMARY KEY,
	character   TEXT NOT NULL,
	meaning     TEXT NOT NULL DEFAULT '',
	reading_on  TEXT NOT NULL DEFAULT '',
	reading_kun TEXT NOT NULL DEFAULT '',
	frequency   INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS review_states (
	card_id       TEXT NOT NULL,
	facet         TEXT NOT NULL,
	interval      INTEGER NOT NULL DEFAULT 0,
	repetitions   INTEGER NOT NULL DEFAULT 0,
	easiness      REAL NOT NULL,
	due           TEXT NOT NULL,
	learning_step INTEGER NOT NULL DEFAULT 0,
	lapses        INTEGER NOT NULL DEFAULT 0,
	leech         INTEGER NOT NULL DEFAULT 0,
	last_review   TEXT NOT NULL DEFAULT '',
	stability     REAL NOT NULL DEFAULT 0,
	difficulty    REAL NOT NULL DEFAULT 0,
	fsrs_state    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (card_id, facet)
);

CREATE TABLE IF NOT EXISTS reviews (
	id        TEXT PRIMARY KEY,
	card_id   TEXT NOT NULL,
	facet     TEXT NOT NULL,
	quality   INTEGER NOT NULL,
	passed    INTEGER NOT NULL,
	was_new   INTEGER NOT NULL,
	timestamp TEXT NOT NULL,
	interval  INTEGER NOT NULL,
	easiness  REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_reviews_key ON reviews (card_id, facet);
CREATE INDEX IF NOT EXISTS idx_reviews_timestamp ON reviews (timestamp);
`

const stateColumns = `card_id, facet, interval, repetitions, easiness, due, learning_step,
	lapses, leech, last_review, stability, difficulty, fsrs_state`

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	cfg    srs.Config
	logger *zap.Logger
	// mu serializes read-modify-write transactions.
	mu sync.Mutex
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens or creates the database at path and applies the schema.
// Use ":memory:" for an in-memory database.
func OpenSQLite(ctx context.Context, path string, cfg srs.Config, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path != ":memory:" {
		if err := ensureDir(path); err != nil {
			return nil, persistErr("create database directory", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, persistErr("open database", err)
	}
	if path == ":memory:" {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := applyPragmas(ctx, db); err != nil {
		db.Close()
		return nil, persistErr("apply pragmas", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, persistErr("create schema", err)
	}

	logger.Debug("SQLite store ready", zap.String("path", path))
	return &SQLiteStore{db: db, cfg: cfg, logger: logger}, nil
}

// applyPragmas configures SQLite for single-user use.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the database file path in priority order:
// 1. KANJISRS_DB environment variable
// 2. $XDG_DATA_HOME/kanjisrs/kanjisrs.db
// 3. ~/.local/share/kanjisrs/kanjisrs.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("KANJISRS_DB"); p != "" {
		return p, nil
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "kanjisrs", "kanjisrs.db"), nil
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}

// Close implements StateStore.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ListCards implements CardStore.
func (s *SQLiteStore) ListCards(ctx context.Context) ([]srs.Card, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, character, meaning, reading_on, reading_kun, frequency FROM cards`)
	if err != nil {
		return nil, persistErr("query cards", err)
	}
	defer rows.Close()

	var cards []srs.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, persistErr("scan card", err)
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate cards", err)
	}
	sortCards(cards)
	return cards, nil
}

// GetCard implements CardStore.
func (s *SQLiteStore) GetCard(ctx context.Context, id string) (srs.Card, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, character, meaning, reading_on, reading_kun, frequency FROM cards WHERE id = ?`, id)
	c, err := scanCard(row)
	if errors.Is(err, sql.ErrNoRows) {
		return srs.Card{}, fmt.Errorf("%w: %s", ErrCardNotFound, id)
	}
	if err != nil {
		return srs.Card{}, persistErr("get card", err)
	}
	return c, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCard(sc scanner) (srs.Card, error) {
	var (
		c                  srs.Card
		meaning, onR, kunR string
	)
	if err := sc.Scan(&c.ID, &c.Character, &meaning, &onR, &kunR, &c.Frequency); err != nil {
		return srs.Card{}, err
	}
	c.Facets = make(map[srs.FacetKind]string)
	for f, v := range map[srs.FacetKind]string{
		srs.FacetMeaning:    meaning,
		srs.FacetReadingOn:  onR,
		srs.FacetReadingKun: kunR,
	} {
		if v != "" {
			c.Facets[f] = v
		}
	}
	return c, nil
}

// ImportCards implements CardImporter and returns the number of new cards.
func (s *SQLiteStore) ImportCards(ctx context.Context, cards []srs.Card) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, persistErr("begin import", err)
	}
	defer tx.Rollback()

	added := 0
	for _, c := range cards {
		if c.ID == "" {
			return 0, srs.ErrMissingCardID
		}
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM cards WHERE id = ?`, c.ID).Scan(&exists); err != nil {
			return 0, persistErr("check card", err)
		}
		if exists == 0 {
			added++
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO cards (id, character, meaning, reading_on, reading_kun, frequency)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				character = excluded.character,
				meaning = excluded.meaning,
				reading_on = excluded.reading_on,
				reading_kun = excluded.reading_kun,
				frequency = excluded.frequency`,
			c.ID, c.Character, c.Facets[srs.FacetMeaning], c.Facets[srs.FacetReadingOn],
			c.Facets[srs.FacetReadingKun], c.Frequency)
		if err != nil {
			return 0, persistErr("upsert card "+c.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, persistErr("commit import", err)
	}
	s.logger.Info("Imported cards", zap.Int("received", len(cards)), zap.Int("added", added))
	return added, nil
}

// Get implements StateStore.
func (s *SQLiteStore) Get(ctx context.Context, key srs.Key) (srs.ReviewState, bool, error) {
	if err := key.Validate(); err != nil {
		return srs.ReviewState{}, false, err
	}
	rs, ok, err := getState(ctx, s.db, key)
	if err != nil || !ok {
		return srs.ReviewState{}, ok, err
	}
	return rs.Normalize(s.cfg), true, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getState(ctx context.Context, q queryRower, key srs.Key) (srs.ReviewState, bool, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+stateColumns+` FROM review_states WHERE card_id = ? AND facet = ?`,
		key.CardID, string(key.Facet))
	rs, err := scanState(row)
	if errors.Is(err, sql.ErrNoRows) {
		return srs.ReviewState{}, false, nil
	}
	if err != nil {
		return srs.ReviewState{}, false, persistErr("get state "+key.String(), err)
	}
	return rs, true, nil
}

func scanState(sc scanner) (srs.ReviewState, error) {
	var (
		rs              srs.ReviewState
		facet           string
		due, lastReview string
		leech           int
	)
	err := sc.Scan(&rs.CardID, &facet, &rs.Interval, &rs.Repetitions, &rs.Easiness, &due,
		&rs.LearningStep, &rs.Lapses, &leech, &lastReview, &rs.Stability, &rs.Difficulty, &rs.FSRSState)
	if err != nil {
		return srs.ReviewState{}, err
	}
	rs.Facet = srs.FacetKind(facet)
	rs.Leech = leech != 0
	if rs.Due, err = parseTime(due); err != nil {
		return srs.ReviewState{}, err
	}
	if rs.LastReview, err = parseTime(lastReview); err != nil {
		return srs.ReviewState{}, err
	}
	return rs, nil
}

// Put implements StateStore.
func (s *SQLiteStore) Put(ctx context.Context, state srs.ReviewState) error {
	_, err := s.Update(ctx, state.Key(), func(srs.ReviewState, bool) (srs.ReviewState, error) {
		return state, nil
	})
	return err
}

// Update implements StateStore inside one transaction.
func (s *SQLiteStore) Update(ctx context.Context, key srs.Key, fn UpdateFunc) (srs.ReviewState, error) {
	if err := key.Validate(); err != nil {
		return srs.ReviewState{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return srs.ReviewState{}, persistErr("begin update", err)
	}
	defer tx.Rollback()

	cur, ok, err := getState(ctx, tx, key)
	if err != nil {
		return srs.ReviewState{}, err
	}
	next, err := applyUpdate(key, s.cfg, cur, ok, fn)
	if err != nil {
		return srs.ReviewState{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO review_states (`+stateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(card_id, facet) DO UPDATE SET
			interval = excluded.interval,
			repetitions = excluded.repetitions,
			easiness = excluded.easiness,
			due = excluded.due,
			learning_step = excluded.learning_step,
			lapses = excluded.lapses,
			leech = excluded.leech,
			last_review = excluded.last_review,
			stability = excluded.stability,
			difficulty = excluded.difficulty,
			fsrs_state = excluded.fsrs_state`,
		next.CardID, string(next.Facet), next.Interval, next.Repetitions, next.Easiness,
		formatTime(next.Due), next.LearningStep, next.Lapses, boolInt(next.Leech),
		formatTime(next.LastReview), next.Stability, next.Difficulty, next.FSRSState)
	if err != nil {
		return srs.ReviewState{}, persistErr("write state "+key.String(), err)
	}
	if err := tx.Commit(); err != nil {
		s.logger.Error("Failed to commit review state", zap.String("key", key.String()), zap.Error(err))
		return srs.ReviewState{}, persistErr("commit state "+key.String(), err)
	}
	return next, nil
}

// List implements StateStore.
func (s *SQLiteStore) List(ctx context.Context) (map[srs.Key]srs.ReviewState, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+stateColumns+` FROM review_states`)
	if err != nil {
		return nil, persistErr("query states", err)
	}
	defer rows.Close()

	out := make(map[srs.Key]srs.ReviewState)
	for rows.Next() {
		rs, err := scanState(rows)
		if err != nil {
			return nil, persistErr("scan state", err)
		}
		out[rs.Key()] = rs.Normalize(s.cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate states", err)
	}
	return out, nil
}

// Reset implements StateStore. Cards are kept.
func (s *SQLiteStore) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return persistErr("begin reset", err)
	}
	defer tx.Rollback()

	for _, stmt := range []string{`DELETE FROM review_states`, `DELETE FROM reviews`} {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return persistErr(stmt, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return persistErr("commit reset", err)
	}
	s.logger.Info("Reset review progress")
	return nil
}

// AddReview implements ReviewLog.
func (s *SQLiteStore) AddReview(ctx context.Context, r Review) error {
	if err := srs.KeyOf(r.CardID, r.Facet).Validate(); err != nil {
		return err
	}
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reviews (id, card_id, facet, quality, passed, was_new, timestamp, interval, easiness)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.CardID, string(r.Facet), r.Quality, boolInt(r.Passed), boolInt(r.WasNew),
		formatTime(r.Timestamp), r.Interval, r.Easiness)
	if err != nil {
		return persistErr("insert review", err)
	}
	return nil
}

// ReviewsFor implements ReviewLog.
func (s *SQLiteStore) ReviewsFor(ctx context.Context, key srs.Key) ([]Review, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, card_id, facet, quality, passed, was_new, timestamp, interval, easiness
		FROM reviews WHERE card_id = ? AND facet = ? ORDER BY timestamp`,
		key.CardID, string(key.Facet))
	if err != nil {
		return nil, persistErr("query reviews", err)
	}
	defer rows.Close()

	var out []Review
	for rows.Next() {
		var (
			r              Review
			facet, ts      string
			passed, wasNew int
		)
		if err := rows.Scan(&r.ID, &r.CardID, &facet, &r.Quality, &passed, &wasNew, &ts, &r.Interval, &r.Easiness); err != nil {
			return nil, persistErr("scan review", err)
		}
		r.Facet = srs.FacetKind(facet)
		r.Passed = passed != 0
		r.WasNew = wasNew != 0
		if r.Timestamp, err = parseTime(ts); err != nil {
			return nil, persistErr("parse review time", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("iterate reviews", err)
	}
	return out, nil
}

// IntroducedSince implements ReviewLog.
func (s *SQLiteStore) IntroducedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviews WHERE was_new = 1 AND timestamp >= ?`, formatTime(since)).Scan(&n)
	if err != nil {
		return 0, persistErr("count introduced", err)
	}
	return n, nil
}

// Timestamps are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
