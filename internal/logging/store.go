package logging

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS take_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	take_id       INTEGER NOT NULL,
	reason        TEXT NOT NULL,
	objective     TEXT NOT NULL,
	intent        TEXT NOT NULL,
	hotspot       TEXT,
	rationale     TEXT,
	analyzed      INTEGER NOT NULL,
	flags_json    TEXT,
	metrics_json  TEXT,
	feedback_id   TEXT,
	created_at    TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS decision_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	at_ms         REAL NOT NULL,
	mode          TEXT NOT NULL,
	backoff       TEXT NOT NULL,
	initiate      INTEGER NOT NULL,
	reason        TEXT NOT NULL,
	modality      TEXT,
	pulse_count   INTEGER NOT NULL,
	signals_json  TEXT,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_take_log_session ON take_log(session_id);
CREATE INDEX IF NOT EXISTS idx_decision_log_session ON decision_log(session_id);
`

// #endregion schema

// #region store-struct
// Store keeps session provenance in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion constructor

// #region log-take
// LogTake writes one resolved take.
func (s *Store) LogTake(rec TakeRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO take_log (session_id, take_id, reason, objective, intent, hotspot, rationale, analyzed, flags_json, metrics_json, feedback_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID,
		int64(rec.TakeID),
		rec.Reason,
		rec.Objective,
		rec.Intent,
		nullIfEmpty(rec.Hotspot),
		nullIfEmpty(rec.Rationale),
		boolInt(rec.Analyzed),
		nullIfEmpty(rec.FlagsJSON),
		nullIfEmpty(rec.MetricsJSON),
		nullIfEmpty(rec.FeedbackID),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log take: %w", err)
	}
	return nil
}

// #endregion log-take

// #region log-decision
// LogDecision writes one gate decision.
func (s *Store) LogDecision(rec DecisionRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO decision_log (session_id, at_ms, mode, backoff, initiate, reason, modality, pulse_count, signals_json, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID,
		rec.AtMs,
		rec.Mode,
		rec.Backoff,
		boolInt(rec.Initiate),
		rec.Reason,
		nullIfEmpty(rec.Modality),
		rec.PulseCount,
		nullIfEmpty(rec.SignalsJSON),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log decision: %w", err)
	}
	return nil
}

// #endregion log-decision

// #region list
// ListTakes returns takes in insertion order, optionally filtered by session (empty = all).
func (s *Store) ListTakes(sessionID string) ([]TakeRecord, error) {
	rows, err := s.db.Query(
		`SELECT session_id, take_id, reason, objective, intent, hotspot, rationale, analyzed, flags_json, metrics_json, feedback_id, created_at
		 FROM take_log WHERE (? = '' OR session_id = ?) ORDER BY id`, sessionID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list takes: %w", err)
	}
	defer rows.Close()

	var out []TakeRecord
	for rows.Next() {
		var rec TakeRecord
		var takeID int64
		var analyzed int
		var hotspot, rationale, flags, metrics, feedbackID sql.NullString
		var created string
		if err := rows.Scan(&rec.SessionID, &takeID, &rec.Reason, &rec.Objective, &rec.Intent,
			&hotspot, &rationale, &analyzed, &flags, &metrics, &feedbackID, &created); err != nil {
			return nil, fmt.Errorf("scan take: %w", err)
		}
		rec.TakeID = uint64(takeID)
		rec.Analyzed = analyzed != 0
		rec.Hotspot = hotspot.String
		rec.Rationale = rationale.String
		rec.FlagsJSON = flags.String
		rec.MetricsJSON = metrics.String
		rec.FeedbackID = feedbackID.String
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListDecisions returns decisions in insertion order, optionally filtered by session (empty = all).
func (s *Store) ListDecisions(sessionID string) ([]DecisionRecord, error) {
	rows, err := s.db.Query(
		`SELECT session_id, at_ms, mode, backoff, initiate, reason, modality, pulse_count, signals_json, created_at
		 FROM decision_log WHERE (? = '' OR session_id = ?) ORDER BY id`, sessionID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var out []DecisionRecord
	for rows.Next() {
		var rec DecisionRecord
		var initiate int
		var modality, signals sql.NullString
		var created string
		if err := rows.Scan(&rec.SessionID, &rec.AtMs, &rec.Mode, &rec.Backoff, &initiate, &rec.Reason,
			&modality, &rec.PulseCount, &signals, &created); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		rec.Initiate = initiate != 0
		rec.Modality = modality.String
		rec.SignalsJSON = signals.String
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion list

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers
