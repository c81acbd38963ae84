package sm2

import (
	"math"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/part5srs/internal/domain"
)

// Params holds the parameters for the SM-2 algorithm.
type Params struct {
	PassThreshold      int     `koanf:"pass_threshold" validate:"gte=1,lte=5"`
	InitialEase        float64 `koanf:"initial_ease" validate:"gtefield=MinEase"`
	MinEase            float64 `koanf:"min_ease" validate:"gt=0"`
	FailurePenalty     float64 `koanf:"failure_penalty" validate:"gte=0"`
	RelearnDays        int     `koanf:"relearn_days" validate:"gte=1"`
	FirstIntervalDays  int     `koanf:"first_interval_days" validate:"gte=1"`
	SecondIntervalDays int     `koanf:"second_interval_days" validate:"gtefield=FirstIntervalDays"`
	MaxIntervalDays    int     `koanf:"max_interval_days" validate:"gte=0"` // 0 = unbounded
}

// DefaultParams returns the textbook SM-2 parameters.
func DefaultParams() *Params {
	return &Params{
		PassThreshold:      3,
		InitialEase:        2.5,
		MinEase:            1.3,
		FailurePenalty:     0.2,
		RelearnDays:        1,
		FirstIntervalDays:  1,
		SecondIntervalDays: 6,
		MaxIntervalDays:    0,
	}
}

var validate = validator.New()

// Validate checks the parameters for consistency.
func (p *Params) Validate() error {
	return validate.Struct(p)
}

// NextState computes the record that results from answering questionID with
// the given quality at now. rec may be nil for a question that has never
// been reviewed. NextState has no side effects.
func (p *Params) NextState(questionID string, rec *domain.ReviewRecord, quality Quality, now time.Time) (domain.ReviewRecord, error) {
	const op = "sm2.NextState"
	if questionID == "" {
		return domain.ReviewRecord{}, domain.InvalidArgument(op, "empty question id")
	}
	if !quality.Valid() {
		return domain.ReviewRecord{}, domain.InvalidArgument(op, "quality %d outside [%d,%d]", quality, QualityBlackout, QualityPerfect)
	}

	next := domain.ReviewRecord{QuestionID: questionID, EaseFactor: p.InitialEase}
	if rec != nil {
		if rec.QuestionID != questionID {
			return domain.ReviewRecord{}, domain.InvalidArgument(op, "record for %q passed for question %q", rec.QuestionID, questionID)
		}
		next = *rec
	}
	if next.RepetitionCount < 0 {
		next.RepetitionCount = 0
	}
	ease := math.Max(p.MinEase, next.EaseFactor)

	var days int
	if !quality.Passed(p.PassThreshold) {
		next.RepetitionCount = 0
		days = p.RelearnDays
		next.EaseFactor = math.Max(p.MinEase, ease-p.FailurePenalty)
	} else {
		next.RepetitionCount++
		switch next.RepetitionCount {
		case 1:
			days = p.FirstIntervalDays
		case 2:
			days = p.SecondIntervalDays
		default:
			prevDays := float64(next.LastIntervalSeconds) / domain.SecondsPerDay
			days = max(1, int(math.Round(prevDays*ease)))
		}
		if p.MaxIntervalDays > 0 && days > p.MaxIntervalDays {
			days = p.MaxIntervalDays
		}
		next.EaseFactor = math.Max(p.MinEase, ease+easeDelta(quality))
	}

	next.LastReviewed = now
	next.NextReview = startOfDay(now).AddDate(0, 0, days)
	next.LastIntervalSeconds = int64(days) * domain.SecondsPerDay
	return next, nil
}

// easeDelta is the SM-2 ease factor adjustment for a passing quality.
func easeDelta(q Quality) float64 {
	d := float64(QualityPerfect - q)
	return 0.1 - d*(0.08+d*0.02)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// IsMature reports whether the record has reached a long review interval.
func IsMature(rec domain.ReviewRecord) bool {
	return rec.IntervalDays() >= domain.MatureIntervalDays
}
