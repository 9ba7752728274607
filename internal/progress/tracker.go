// Package progress owns the per content-language unlock ledger.
package progress

import (
	"fmt"

	"github.com/iqralabs/iqra/internal/exam"
	"github.com/iqralabs/iqra/internal/gateway"
	"github.com/iqralabs/iqra/internal/syncer"
)

// Tracker computes and persists frontier advancement. Each
// content-language has a fully independent ledger; switching language
// swaps the active ledger wholesale.
type Tracker struct {
	gw   *gateway.Gateway
	loop *syncer.Loop
}

// New creates a tracker persisting through the gateway. All writes run on
// the update loop.
func New(gw *gateway.Gateway, loop *syncer.Loop) *Tracker {
	return &Tracker{gw: gw, loop: loop}
}

// Progress returns the current ledger for a content-language.
func (t *Tracker) Progress(lang string) exam.UserProgress {
	return t.gw.Progress(lang)
}

// RecordAttempt applies one attempt outcome to the ledger and returns the
// resulting progress. The ledger is unchanged unless the attempt passed
// exactly at the frontier level with room to advance, in which case the
// frontier moves up by one.
func (t *Tracker) RecordAttempt(level, score int, lang string) (exam.UserProgress, error) {
	var (
		result  exam.UserProgress
		saveErr error
	)
	err := t.loop.Do(func() {
		p := t.gw.Progress(lang)
		next := Advance(p, level, score)
		if next != p {
			if err := t.gw.SaveProgress(lang, next); err != nil {
				saveErr = fmt.Errorf("persist progress %q: %w", lang, err)
				result = p
				return
			}
		}
		result = next
	})
	if err != nil {
		return exam.UserProgress{}, err
	}
	return result, saveErr
}

// Advance is the pure advancement rule: maxUnlockedLevel increases by
// exactly 1 only when the attempt's level equals the current frontier,
// the score meets the passing threshold, and the frontier is below the
// level cap. It never decreases.
func Advance(p exam.UserProgress, level, score int) exam.UserProgress {
	if exam.CanAdvance(p, level, score) {
		p.MaxUnlockedLevel++
	}
	return p
}
