package domain

import "time"

// ReviewRecord is the scheduling state of one question.
type ReviewRecord struct {
	QuestionID          string    `json:"question_id"`
	LastReviewed        time.Time `json:"last_reviewed"`
	NextReview          time.Time `json:"next_review"`
	RepetitionCount     int       `json:"repetition_count"`
	EaseFactor          float64   `json:"ease_factor"`
	LastIntervalSeconds int64     `json:"last_interval_seconds"`
}

// IsDue reports whether the record should be reviewed at asOf.
func (r ReviewRecord) IsDue(asOf time.Time) bool {
	return !r.NextReview.After(asOf)
}

// IntervalDays returns the current interval in whole days.
func (r ReviewRecord) IntervalDays() int {
	return int(r.LastIntervalSeconds / SecondsPerDay)
}

const (
	// SecondsPerDay converts between the stored interval unit and days.
	SecondsPerDay = 24 * 60 * 60
	// MatureIntervalDays is the interval from which a question counts as mature.
	MatureIntervalDays = 21
)

// Stats summarises the review state for UI display.
type Stats struct {
	Records  int     `json:"records"`
	Due      int     `json:"due"`
	Mature   int     `json:"mature"`
	Reviews  int     `json:"reviews"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}
