// Package history materializes completed attempts into durable,
// append-only exam results.
package history

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iqralabs/iqra/internal/exam"
	"github.com/iqralabs/iqra/internal/gateway"
	"github.com/iqralabs/iqra/internal/syncer"
)

// noAnswer is the detail text recorded for an unanswered question.
const noAnswer = "No Answer"

// Recorder builds exam results and appends them to history through the
// persistence gateway. All history writes run on the update loop.
type Recorder struct {
	gw    *gateway.Gateway
	loop  *syncer.Loop
	now   func() time.Time
	newID func() string
}

// Option configures a Recorder.
type Option func(*Recorder)

// WithNow overrides the timestamp source. Used in tests.
func WithNow(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

// WithIDFunc overrides the result ID generator. Used in tests.
func WithIDFunc(fn func() string) Option {
	return func(r *Recorder) { r.newID = fn }
}

// New creates a recorder. Result IDs are UUIDv7, time-sortable and safe
// against concurrent attempt creation across devices.
func New(gw *gateway.Gateway, loop *syncer.Loop, opts ...Option) *Recorder {
	r := &Recorder{
		gw:   gw,
		loop: loop,
		now:  time.Now,
		newID: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// History returns all recorded results, most recent first.
func (r *Recorder) History() []exam.Result {
	return r.gw.History()
}

// Record expands the attempt into an immutable Result, prepends it to the
// history, and writes the full history through the gateway. The gateway
// pushes the capped history to the mirror when one is connected;
// that push is fire-and-forget and never affects the returned result.
//
// The built result is returned even when persistence fails, so callers
// can still show the learner their score.
func (r *Recorder) Record(data *exam.Data, answers exam.Answers, studentName string, mode exam.Mode, lang string) (exam.Result, error) {
	result := r.build(data, answers, studentName, mode, lang)

	var saveErr error
	err := r.loop.Do(func() {
		updated := append([]exam.Result{result}, r.gw.History()...)
		saveErr = r.gw.SaveHistory(updated)
	})
	if err != nil {
		return result, err
	}
	if saveErr != nil {
		return result, fmt.Errorf("record result: %w", saveErr)
	}
	return result, nil
}

// build computes the per-question detail records in attempt order:
// section order, then in-section order.
func (r *Recorder) build(data *exam.Data, answers exam.Answers, studentName string, mode exam.Mode, lang string) exam.Result {
	all := data.Flatten()
	score, _, total := exam.Score(data, answers)

	details := make([]exam.ResultDetail, 0, len(all))
	for _, q := range all {
		detail := exam.ResultDetail{
			QuestionText:  q.Text,
			UserAnswer:    noAnswer,
			CorrectAnswer: q.Options[q.CorrectIndex],
		}
		if idx, ok := answers[q.ID]; ok && idx >= 0 && idx < len(q.Options) {
			detail.UserAnswer = q.Options[idx]
			detail.IsCorrect = idx == q.CorrectIndex
		}
		details = append(details, detail)
	}

	return exam.Result{
		ID:             r.newID(),
		StudentName:    studentName,
		Level:          data.Level,
		Score:          score,
		TotalQuestions: total,
		Date:           r.now().UTC().Format(time.RFC3339),
		Mode:           mode,
		Language:       lang,
		Details:        details,
	}
}
