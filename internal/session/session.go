// Package session drives the per-attempt exam lifecycle: level selection,
// setup, content loading, answer collection, timed auto-submit, scoring,
// and progression.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/iqralabs/iqra/internal/exam"
	"github.com/iqralabs/iqra/internal/generator"
	"github.com/iqralabs/iqra/internal/history"
	"github.com/iqralabs/iqra/internal/progress"
)

// State is the session lifecycle state.
type State string

const (
	// Idle: no attempt in progress.
	Idle State = "idle"
	// SettingUp: a level is selected, waiting for name and timing mode.
	SettingUp State = "setting_up"
	// Loading: the content generator is producing the exam.
	Loading State = "loading"
	// Active: the learner is answering.
	Active State = "active"
	// Submitted: the attempt is scored and recorded.
	Submitted State = "submitted"
	// Failed: content generation failed; the only way out is Exit.
	Failed State = "failed"
)

var (
	// ErrInvalidName rejects setup with an empty or too-short name.
	ErrInvalidName = errors.New("student name must have at least 2 characters")
	// ErrBadTransition reports an operation invalid in the current state.
	ErrBadTransition = errors.New("operation not valid in current state")
	// ErrUnanswered rejects an explicit submit with open questions.
	ErrUnanswered = errors.New("all questions must be answered before submitting")
	// ErrCannotAdvance rejects NextLevel without a pass or at the cap.
	ErrCannotAdvance = errors.New("next level is not unlocked by this attempt")
)

// tickerFactory abstracts the 1 Hz countdown source so tests can drive
// ticks deterministically. It returns the tick channel and a stop func.
type tickerFactory func() (<-chan time.Time, func())

func realTicker() (<-chan time.Time, func()) {
	t := time.NewTicker(time.Second)
	return t.C, t.Stop
}

// Option configures a Session.
type Option func(*Session)

// WithTicker replaces the countdown tick source.
func WithTicker(f func() (<-chan time.Time, func())) Option {
	return func(s *Session) { s.newTicker = f }
}

// Session is one learner's exam session state machine. Transitions are
// strictly sequential: every mutation happens under one mutex, and the
// terminal Submitted state guards submit against running twice.
//
// ExamData and answers are owned exclusively by the session; history and
// progress are shared state reached only through their owner components.
type Session struct {
	gen      generator.Generator
	recorder *history.Recorder
	tracker  *progress.Tracker

	newTicker tickerFactory

	mu          sync.Mutex
	state       State
	lang        string
	level       int
	studentName string
	mode        exam.Mode
	data        *exam.Data
	answers     exam.Answers
	result      *exam.Result
	remaining   int
	loadErr     error

	// attempt correlates async completions (generator responses, timer
	// ticks) with the attempt that started them; stale ones are ignored.
	attempt   int
	stopTimer chan struct{}
}

// New creates an idle session for the given content-language.
func New(gen generator.Generator, recorder *history.Recorder, tracker *progress.Tracker, lang string, opts ...Option) *Session {
	s := &Session{
		gen:       gen,
		recorder:  recorder,
		tracker:   tracker,
		newTicker: realTicker,
		state:     Idle,
		lang:      lang,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot is a point-in-time view of the session for presentation.
type Snapshot struct {
	State       State
	Language    string
	Level       int
	StudentName string
	Mode        exam.Mode
	Data        *exam.Data
	Answers     exam.Answers
	Result      *exam.Result
	Remaining   int
	Err         error
}

// Snapshot returns the current view. The exam data pointer is shared but
// immutable once generated; answers are copied.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	answers := make(exam.Answers, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	return Snapshot{
		State:       s.state,
		Language:    s.lang,
		Level:       s.level,
		StudentName: s.studentName,
		Mode:        s.mode,
		Data:        s.data,
		Answers:     answers,
		Result:      s.result,
		Remaining:   s.remaining,
		Err:         s.loadErr,
	}
}

// SetLanguage swaps the active content-language, discarding any attempt
// in progress. Each language has its own unlock ledger.
func (s *Session) SetLanguage(lang string) {
	s.Exit()
	s.mu.Lock()
	s.lang = lang
	s.mu.Unlock()
}

// SelectLevel enters setup for a level. Locked levels are rejected
// silently: the call reports false and the session stays idle.
func (s *Session) SelectLevel(level int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Idle {
		return false
	}
	if level < 1 || level > s.tracker.Progress(s.lang).MaxUnlockedLevel {
		return false
	}

	s.state = SettingUp
	s.level = level
	s.studentName = ""
	s.mode = exam.Timed
	return true
}

// CompleteSetup records the student name and timing mode and starts
// content generation. The name must have at least 2 characters after
// trimming.
func (s *Session) CompleteSetup(name string, mode exam.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != SettingUp {
		return ErrBadTransition
	}
	trimmed := strings.TrimSpace(name)
	if utf8.RuneCountInString(trimmed) < 2 {
		return ErrInvalidName
	}

	s.studentName = trimmed
	s.mode = mode
	s.startLoadLocked()
	return nil
}

// skippedAnswer marks a question deliberately left unanswered. Never a
// valid option index, so scoring and details treat it as no answer.
const skippedAnswer = -1

// Answer upserts the learner's choice for a question. A later answer for
// the same question overwrites the earlier one. Ignored outside Active
// (in particular once Submitted), for unknown question IDs, and for
// option indexes outside the question's options: answer keys stay a
// subset of the attempt's question IDs.
func (s *Session) Answer(questionID, optionIndex int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Active {
		return
	}
	// IDs are a dense 1..N sequence, so the flatten position is the ID.
	all := s.data.Flatten()
	if questionID < 1 || questionID > len(all) {
		return
	}
	if optionIndex < 0 || optionIndex >= len(all[questionID-1].Options) {
		return
	}
	s.answers[questionID] = optionIndex
}

// Skip records a question as deliberately left unanswered. It satisfies
// the all-answered submit gate while still scoring as unanswered.
func (s *Session) Skip(questionID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Active {
		return
	}
	if questionID < 1 || questionID > s.data.QuestionCount() {
		return
	}
	s.answers[questionID] = skippedAnswer
}

// AllAnswered reports whether every question has an answer.
func (s *Session) AllAnswered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == Active && len(s.answers) == s.data.QuestionCount()
}

// Submit scores the attempt explicitly. Valid only from Active with
// every question answered; the timed auto-submit has no such
// restriction. A second submit is a no-op guarded by the Submitted
// state.
func (s *Session) Submit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Active {
		return ErrBadTransition
	}
	if len(s.answers) != s.data.QuestionCount() {
		return ErrUnanswered
	}
	s.submitLocked()
	return nil
}

// Retry regenerates a brand-new exam for the same level, discarding the
// previous attempt's content entirely.
func (s *Session) Retry() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Submitted {
		return ErrBadTransition
	}
	s.startLoadLocked()
	return nil
}

// NextLevel advances to the next level after a passing attempt. Enabled
// only when the recorded score met the threshold and a next level
// exists.
func (s *Session) NextLevel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != Submitted {
		return ErrBadTransition
	}
	if s.result == nil || s.result.Score < exam.PassingScore || s.level >= exam.TotalLevels {
		return ErrCannotAdvance
	}

	s.level++
	s.startLoadLocked()
	return nil
}

// Exit returns to Idle from any state, discarding in-progress exam data.
// The countdown is cancelled; a generator response that arrives after
// exit is ignored via the attempt token.
func (s *Session) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.attempt++ // invalidates in-flight loads and ticks
	s.stopTimerLocked()
	s.state = Idle
	s.data = nil
	s.answers = nil
	s.result = nil
	s.loadErr = nil
	s.remaining = 0
}

// startLoadLocked begins a fresh generation attempt. Callers hold s.mu.
func (s *Session) startLoadLocked() {
	s.attempt++
	token := s.attempt

	s.stopTimerLocked()
	s.state = Loading
	s.data = nil
	s.answers = nil
	s.result = nil
	s.loadErr = nil
	s.remaining = 0

	level, lang := s.level, s.lang
	go func() {
		// Deliberately not tied to Exit: a late response is ignored by
		// the token check rather than suppressed.
		data, err := s.gen.Generate(context.Background(), level, lang)
		s.finishLoad(token, data, err)
	}()
}

// finishLoad applies a generator outcome, unless the attempt has since
// been exited or restarted.
func (s *Session) finishLoad(token int, data *exam.Data, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.attempt || s.state != Loading {
		slog.Debug("ignoring stale generator response", "token", token)
		return
	}

	if err != nil {
		slog.Warn("exam generation failed", "level", s.level, "lang", s.lang, "error", err)
		s.state = Failed
		s.loadErr = err
		return
	}

	s.data = data
	s.answers = make(exam.Answers)
	s.state = Active

	if s.mode == exam.Timed {
		limit := data.TimeLimit
		if limit <= 0 {
			limit = exam.DefaultTimeLimit
		}
		s.remaining = limit
		s.startTimerLocked(token)
	}
}

// startTimerLocked starts the 1 Hz countdown goroutine for this attempt.
func (s *Session) startTimerLocked(token int) {
	stop := make(chan struct{})
	s.stopTimer = stop

	tickC, stopTicker := s.newTicker()
	go func() {
		defer stopTicker()
		for {
			select {
			case <-stop:
				return
			case <-tickC:
				if !s.tick(token) {
					return
				}
			}
		}
	}()
}

// tick consumes one countdown second. Returns false once the countdown
// is no longer live. Reaching zero triggers the submit exactly once; the
// Submitted guard makes a racing explicit submit a no-op.
func (s *Session) tick(token int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if token != s.attempt || s.state != Active {
		return false
	}

	s.remaining--
	if s.remaining > 0 {
		return true
	}

	s.remaining = 0
	s.submitLocked()
	return false
}

// submitLocked scores and records the attempt. Callers hold s.mu and
// have verified state == Active. Side-effect order: stop the countdown,
// record history, evaluate progression, then transition to Submitted.
func (s *Session) submitLocked() {
	s.stopTimerLocked()

	result, err := s.recorder.Record(s.data, s.answers, s.studentName, s.mode, s.lang)
	if err != nil {
		// Local persistence failed; the attempt outcome is still shown.
		slog.Error("recording attempt failed", "error", err)
	}

	if _, err := s.tracker.RecordAttempt(s.level, result.Score, s.lang); err != nil {
		slog.Error("updating progress failed", "error", err)
	}

	s.result = &result
	s.state = Submitted
}

func (s *Session) stopTimerLocked() {
	if s.stopTimer != nil {
		close(s.stopTimer)
		s.stopTimer = nil
	}
}
