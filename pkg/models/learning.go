package models

import "time"

// MaxStoredLevels caps the support/resistance lists carried in a
// LearningRecord. Oldest levels are evicted first.
const MaxStoredLevels = 8

// LearningRecord is the only persisted entity of the analysis core.
// One record per symbol, owned exclusively by the learning store.
type LearningRecord struct {
	Symbol             string    `json:"symbol"`
	SamplesCollected   int64     `json:"samples_collected"`
	VolatilityEMA      float64   `json:"volatility_ema"`
	VelocityEMA        float64   `json:"velocity_ema"`
	SupportLevels      []float64 `json:"support_levels"`
	ResistanceLevels   []float64 `json:"resistance_levels"`
	BiasChangeCount    int64     `json:"bias_change_count"`
	CorrectPredictions int64     `json:"correct_predictions"`
	TotalPredictions   int64     `json:"total_predictions"`
	// ConfidenceAdjust is a bounded scalar in percentage points,
	// clamped to [-MaxConfidenceAdjust, +MaxConfidenceAdjust].
	ConfidenceAdjust float64   `json:"confidence_adjust"`
	LastBias         Direction `json:"last_bias"`
	LastUpdated      time.Time `json:"last_updated"`
}

// NewLearningRecord synthesizes the default record for a symbol's
// first observation (also used when a stored record is corrupt).
// LastBias stays empty until the first analysis is observed, so the
// first bias never counts as a change.
func NewLearningRecord(symbol string) *LearningRecord {
	return &LearningRecord{
		Symbol: symbol,
	}
}

// Accuracy returns the fraction of correct predictions, or 0.5 when
// no feedback has been recorded yet.
func (r *LearningRecord) Accuracy() float64 {
	if r.TotalPredictions == 0 {
		return 0.5
	}
	return float64(r.CorrectPredictions) / float64(r.TotalPredictions)
}

// PushLevel appends a level to a capped list, evicting the oldest.
func PushLevel(levels []float64, level float64) []float64 {
	for _, l := range levels {
		if l == level {
			return levels
		}
	}
	levels = append(levels, level)
	if len(levels) > MaxStoredLevels {
		levels = levels[len(levels)-MaxStoredLevels:]
	}
	return levels
}

// FeedbackEvent is a user-provided correctness signal for a past
// ConsensusResult, recorded through the feedback boundary.
type FeedbackEvent struct {
	ResultID      string    `json:"result_id"`
	Symbol        string    `json:"symbol"`
	PredictedBias Direction `json:"predicted_bias"`
	ActualOutcome Direction `json:"actual_outcome"`
	SubmittedAt   time.Time `json:"submitted_at"`
}
