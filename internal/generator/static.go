package generator

import (
	"context"
	"fmt"
	"sync"

	"github.com/iqralabs/iqra/internal/exam"
)

// Static is an offline generator producing small deterministic exams.
// Each call yields distinct content (an attempt counter is woven into
// the passage), preserving the contract that a retry never reuses the
// previous attempt's questions.
type Static struct {
	mu    sync.Mutex
	calls int
}

// NewStatic creates an offline generator.
func NewStatic() *Static {
	return &Static{}
}

// Generate builds a canned exam for the level and content-language.
func (g *Static) Generate(ctx context.Context, level int, lang string) (*exam.Data, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if level < 1 || level > exam.TotalLevels {
		return nil, fmt.Errorf("level %d out of range 1..%d", level, exam.TotalLevels)
	}

	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()

	title := fmt.Sprintf("Practice Reading %d-%d", level, n)
	passage := fmt.Sprintf(
		"Reading passage %d for level %d. Mariam walks to the library every afternoon. She reads one new book each week and writes what she learned.",
		n, level)
	trueFalse := []string{"True", "False"}
	if lang == "ar" {
		title = fmt.Sprintf("اختبار القراءة %d-%d", level, n)
		passage = fmt.Sprintf(
			"نص القراءة رقم %d للمستوى %d. تذهب مريم إلى المكتبة كل يوم، وتقرأ كتاباً جديداً في كل أسبوع.",
			n, level)
		trueFalse = []string{"صواب", "خطأ"}
	}

	d := &exam.Data{
		Level:     level,
		Title:     title,
		TimeLimit: SuggestedTime(level),
		Sections: []exam.Section{{
			ID:      1,
			Title:   title,
			Content: passage,
			Questions: []exam.Question{
				{
					Type:         exam.MultipleChoice,
					Text:         fmt.Sprintf("Where does Mariam go? (set %d)", n),
					Options:      []string{"the library", "the market", "the beach"},
					CorrectIndex: 0,
				},
				{
					Type:         exam.TrueFalse,
					Text:         fmt.Sprintf("Mariam reads one book each week. (set %d)", n),
					Options:      trueFalse,
					CorrectIndex: 0,
				},
				{
					Type:         exam.FillBlank,
					Text:         fmt.Sprintf("Mariam writes what she _______. (set %d)", n),
					Options:      []string{"learned", "cooked", "lost"},
					CorrectIndex: 0,
				},
			},
		}},
	}

	return finalize(d, level)
}

// Scripted returns queued exams (or errors) in order. It drives session
// tests deterministically, in the spirit of a fixed token generator:
// exhausting the queue panics to surface test misconfiguration.
type Scripted struct {
	mu    sync.Mutex
	queue []scriptedStep
}

type scriptedStep struct {
	data *exam.Data
	err  error
}

// NewScripted creates an empty scripted generator.
func NewScripted() *Scripted {
	return &Scripted{}
}

// PushExam queues a successful generation result.
func (g *Scripted) PushExam(d *exam.Data) {
	g.mu.Lock()
	g.queue = append(g.queue, scriptedStep{data: d})
	g.mu.Unlock()
}

// PushErr queues a generation failure.
func (g *Scripted) PushErr(err error) {
	g.mu.Lock()
	g.queue = append(g.queue, scriptedStep{err: err})
	g.mu.Unlock()
}

// Generate pops the next queued step.
func (g *Scripted) Generate(ctx context.Context, level int, lang string) (*exam.Data, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.queue) == 0 {
		panic("Scripted: generation queue exhausted")
	}
	step := g.queue[0]
	g.queue = g.queue[1:]

	if step.err != nil {
		return nil, step.err
	}
	return finalize(step.data, level)
}
