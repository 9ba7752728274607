// Package generator produces exam documents for a difficulty level and
// content-language. Generation is asynchronous from the session's point
// of view, may fail with an opaque error, and is never retried
// automatically.
package generator

import (
	"context"
	"errors"

	"github.com/iqralabs/iqra/internal/exam"
)

// ErrMalformed marks generator output that failed schema validation.
// Malformed output is rejected before any exam state is built.
var ErrMalformed = errors.New("generator returned malformed exam data")

// Generator is the content-generator contract.
// Implemented by LLM (remote model) and Static (canned, offline).
type Generator interface {
	// Generate produces a fresh exam for the level (1..12) and
	// content-language tag. Every call produces new content; callers
	// rely on this for retry semantics.
	Generate(ctx context.Context, level int, lang string) (*exam.Data, error)
}

// finalize applies the post-generation fixups shared by all
// implementations: force the requested level, fall back to the default
// time budget, renumber question IDs to a dense 1..N sequence, and check
// the structural invariants.
func finalize(d *exam.Data, level int) (*exam.Data, error) {
	d.Level = level
	if d.TimeLimit <= 0 {
		d.TimeLimit = exam.DefaultTimeLimit
	}
	d.Renumber()
	if err := d.Validate(); err != nil {
		return nil, errors.Join(ErrMalformed, err)
	}
	return d, nil
}
