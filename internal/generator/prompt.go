package generator

import (
	"fmt"
	"strings"
)

// profile describes how an exam at one level band should look: target
// passage length, difficulty register, and the section/question mix.
type profile struct {
	wordCount  int
	difficulty string
	structure  string
}

// SuggestedTime returns the suggested time budget in seconds for a level.
func SuggestedTime(level int) int {
	return 300 + level*60
}

// levelProfile encodes the per-level generation configuration for each
// content-language. Arabic targets native readers (with full diacritics
// at the foundation levels); English targets second-language learners.
func levelProfile(level int, lang string) profile {
	if lang == "ar" {
		switch {
		case level <= 4:
			// Foundation levels use strict word counts: 15, 30, 45, 60.
			words := level * 15
			return profile{
				wordCount:  words,
				difficulty: fmt.Sprintf("Foundation level for children. Strict target of %d words. Very short, simple sentences. ALL Arabic text (passage, questions, options) must carry full diacritics (tashkeel).", words),
				structure:  "Create 1 section with a very short story. Questions: exactly 2 MCQ, 2 TF, 1 FILL_BLANK.",
			}
		case level <= 8:
			return profile{
				wordCount:  100 + (level-4)*25,
				difficulty: "Informational or scientific text, intermediate vocabulary, compound sentences.",
				structure:  "Create 1 section with a scientific or historical article. Questions: exactly 2 MCQ, 2 TF, 2 FILL_BLANK with 3 options each.",
			}
		default:
			return profile{
				wordCount:  300 + level*30,
				difficulty: "Advanced Arabic: rhetoric, deep literary or intellectual texts.",
				structure:  "Create 2 fully separate sections. Section 1: a literary text with 3 inference MCQ. Section 2: a critical essay with 2 TF and 2 FILL_BLANK.",
			}
		}
	}

	// English as a second language.
	switch {
	case level <= 4:
		return profile{
			wordCount:  60 + level*10,
			difficulty: "ESL Beginner: simple present tense, high-frequency vocabulary, short sentences. Topics: family, school, daily routine.",
			structure:  "Create 1 section with a simple story or dialogue. Questions: exactly 2 MCQ, 2 TF, 1 FILL_BLANK.",
		}
	case level <= 8:
		return profile{
			wordCount:  120 + level*15,
			difficulty: "ESL Intermediate: mixed past/future tenses, compound sentences. Topics: travel, hobbies, nature, culture.",
			structure:  "Create 1 section with an informational text. Questions: exactly 2 MCQ, 2 TF, 2 FILL_BLANK.",
		}
	default:
		return profile{
			wordCount:  250 + level*25,
			difficulty: "ESL Advanced: conditionals, passive voice, richer vocabulary. Topics: technology, environment, social issues.",
			structure:  "Create 2 separate sections. Section 1: a narrative or opinion piece with 3 inference MCQ. Section 2: an educational article with 2 TF and 2 FILL_BLANK.",
		}
	}
}

// buildPrompt assembles the generation prompt for one attempt.
func buildPrompt(level int, lang string) string {
	p := levelProfile(level, lang)

	subject := "an English reading exam (ESL - English as a second language); all content must be in English"
	trueFalse := `["True", "False"]`
	if lang == "ar" {
		subject = "an Arabic reading exam for native readers; all content must be in Arabic"
		trueFalse = `["صواب", "خطأ"]`
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Create %s for level %d of %d.\n\n", subject, level, 12)
	fmt.Fprintf(&b, "Target word count: %d words.\n", p.wordCount)
	fmt.Fprintf(&b, "Difficulty: %s\n\n", p.difficulty)
	fmt.Fprintf(&b, "Structure requirements:\n%s\n\n", p.structure)
	fmt.Fprintf(&b, "Suggested time: %d seconds.\n\n", SuggestedTime(level))
	b.WriteString("Rules for questions:\n")
	b.WriteString("1. Type \"MCQ\": \"options\" must have 3-4 choices.\n")
	fmt.Fprintf(&b, "2. Type \"TF\": \"options\" must be exactly %s.\n", trueFalse)
	b.WriteString("3. Type \"FILL_BLANK\": \"options\" must have 3 choices (1 correct, 2 distractors) and \"text\" must contain '_______' for the blank.\n\n")
	b.WriteString("Return ONLY a JSON object with this shape:\n")
	b.WriteString(`{"level": int, "title": string, "timeLimit": int, "sections": [{"id": int, "title": string, "content": string, "questions": [{"id": int, "type": "MCQ"|"TF"|"FILL_BLANK", "text": string, "options": [string, ...], "correctIndex": int}]}]}`)
	return b.String()
}
