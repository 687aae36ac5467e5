package logging

import "time"

// #region take-record
// TakeRecord is a single row in the take_log table.
type TakeRecord struct {
	SessionID   string
	TakeID      uint64
	Reason      string // segmenter finalize reason
	Objective   string
	Intent      string
	Hotspot     string
	Rationale   string
	Analyzed    bool
	FlagsJSON   string
	MetricsJSON string
	FeedbackID  string
	CreatedAt   time.Time
}

// #endregion take-record

// #region decision-record
// DecisionRecord is a single row in the decision_log table. The signals are stored as JSON
// exactly as evaluated so a decision can be replayed.
type DecisionRecord struct {
	SessionID   string
	AtMs        float64
	Mode        string
	Backoff     string
	Initiate    bool
	Reason      string
	Modality    string
	PulseCount  int
	SignalsJSON string
	CreatedAt   time.Time
}

// #endregion decision-record
