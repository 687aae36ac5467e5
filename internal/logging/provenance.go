package logging

import (
	"encoding/json"
	"fmt"

	"github.com/danielpatrickdp/strum-coach/internal/orchestrator"
)

// #region records-from-session
// NewTakeRecord flattens a take outcome into a take_log row.
func NewTakeRecord(sessionID string, oc orchestrator.TakeOutcome) (TakeRecord, error) {
	flags, err := json.Marshal(oc.Finalized.Flags)
	if err != nil {
		return TakeRecord{}, fmt.Errorf("marshal flags: %w", err)
	}
	rec := TakeRecord{
		SessionID: sessionID,
		TakeID:    oc.Finalized.TakeID,
		Reason:    string(oc.Finalized.Reason),
		Objective: oc.Resolution.Objective.String(),
		Intent:    oc.Resolution.Intent.String(),
		Hotspot:   string(oc.Resolution.Hotspot),
		Rationale: oc.Resolution.Rationale,
		Analyzed:  oc.Analyzed,
		FlagsJSON: string(flags),
	}
	if oc.Analyzed {
		metrics, err := json.Marshal(oc.Analysis.Metrics)
		if err != nil {
			return TakeRecord{}, fmt.Errorf("marshal metrics: %w", err)
		}
		rec.MetricsJSON = string(metrics)
	}
	if oc.Feedback != nil {
		rec.FeedbackID = oc.Feedback.FeedbackID
	}
	return rec, nil
}

// NewDecisionRecord flattens an intervention into a decision_log row.
func NewDecisionRecord(sessionID string, iv orchestrator.Intervention) (DecisionRecord, error) {
	sig, err := json.Marshal(iv.Signals)
	if err != nil {
		return DecisionRecord{}, fmt.Errorf("marshal signals: %w", err)
	}
	rec := DecisionRecord{
		SessionID:   sessionID,
		AtMs:        iv.AtMs,
		Mode:        string(iv.Decision.Mode),
		Backoff:     iv.Decision.Backoff.String(),
		Initiate:    iv.Decision.ShouldInitiate,
		Reason:      string(iv.Decision.Reason),
		Modality:    string(iv.Decision.Modality),
		SignalsJSON: string(sig),
	}
	if iv.Envelope != nil {
		rec.PulseCount = len(iv.Envelope.Events)
	}
	return rec, nil
}

// #endregion records-from-session
