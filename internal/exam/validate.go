package exam

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaCUE string

var (
	schemaOnce sync.Once
	schemaVal  cue.Value
)

func examSchema() cue.Value {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		schemaVal = ctx.CompileString(schemaCUE).LookupPath(cue.ParsePath("#ExamData"))
	})
	return schemaVal
}

// ValidateJSON checks raw generator output against the exam schema before
// it is decoded into Data. Malformed output is rejected here so that no
// partial exam ever reaches the answering state.
func ValidateJSON(raw []byte) error {
	schema := examSchema()
	if err := schema.Err(); err != nil {
		return fmt.Errorf("exam schema: %w", err)
	}

	ctx := schema.Context()
	doc := ctx.CompileBytes(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("parse generated exam: %w", err)
	}

	unified := schema.Unify(doc)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("generated exam violates schema: %w", err)
	}
	return nil
}

// Validate enforces the structural invariants on decoded Data: at least
// one section and one question, IDs a dense 1..N sequence, option lists of
// the required size, and every correct-option index in range.
func (d *Data) Validate() error {
	if d.Level < 1 || d.Level > TotalLevels {
		return fmt.Errorf("level %d out of range 1..%d", d.Level, TotalLevels)
	}
	if len(d.Sections) == 0 {
		return fmt.Errorf("exam has no sections")
	}

	wantID := 1
	for _, s := range d.Sections {
		if len(s.Questions) == 0 {
			return fmt.Errorf("section %d has no questions", s.ID)
		}
		for _, q := range s.Questions {
			if q.ID != wantID {
				return fmt.Errorf("question IDs not dense: got %d, want %d", q.ID, wantID)
			}
			wantID++

			if len(q.Options) < 2 {
				return fmt.Errorf("question %d: need at least 2 options, got %d", q.ID, len(q.Options))
			}
			if q.Type == TrueFalse && len(q.Options) != 2 {
				return fmt.Errorf("question %d: true/false needs exactly 2 options, got %d", q.ID, len(q.Options))
			}
			if q.CorrectIndex < 0 || q.CorrectIndex >= len(q.Options) {
				return fmt.Errorf("question %d: correct index %d out of range", q.ID, q.CorrectIndex)
			}
		}
	}
	return nil
}
