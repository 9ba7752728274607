package exam

import "math"

// Flatten returns all questions in attempt order: section order first,
// then in-section order. This is the order used for scoring and for the
// per-question detail records.
func (d *Data) Flatten() []Question {
	var all []Question
	for _, s := range d.Sections {
		all = append(all, s.Questions...)
	}
	return all
}

// QuestionCount returns the total number of questions across all sections.
func (d *Data) QuestionCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Questions)
	}
	return n
}

// Score computes the attempt score as round(100 * correct / total).
// Unanswered questions count as incorrect. An exam with no questions
// scores 0.
func Score(d *Data, answers Answers) (score, correct, total int) {
	all := d.Flatten()
	total = len(all)
	if total == 0 {
		return 0, 0, 0
	}
	for _, q := range all {
		if idx, ok := answers[q.ID]; ok && idx == q.CorrectIndex {
			correct++
		}
	}
	score = int(math.Round(100 * float64(correct) / float64(total)))
	return score, correct, total
}

// Renumber reassigns question IDs to a dense 1..N sequence across all
// sections, in attempt order. Generators call this before handing out
// Data so that IDs are unique within the attempt regardless of what the
// upstream model produced.
func (d *Data) Renumber() {
	next := 1
	for si := range d.Sections {
		for qi := range d.Sections[si].Questions {
			d.Sections[si].Questions[qi].ID = next
			next++
		}
	}
}

// CanAdvance reports whether a passing attempt at the frontier level
// unlocks the next one.
func CanAdvance(p UserProgress, level, score int) bool {
	return score >= PassingScore && level == p.MaxUnlockedLevel && p.MaxUnlockedLevel < TotalLevels
}
