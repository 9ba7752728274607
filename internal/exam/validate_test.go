package exam

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validExamJSON = `{
	"level": 2,
	"title": "A Day at School",
	"timeLimit": 420,
	"sections": [{
		"id": 1,
		"title": "The Story",
		"content": "Sami goes to school every day.",
		"questions": [
			{"id": 1, "type": "MCQ", "text": "Where does Sami go?", "options": ["school", "home", "park"], "correctIndex": 0},
			{"id": 2, "type": "TF", "text": "Sami stays home.", "options": ["True", "False"], "correctIndex": 1}
		]
	}]
}`

func TestValidateJSON_Accepts(t *testing.T) {
	require.NoError(t, ValidateJSON([]byte(validExamJSON)))
}

func TestValidateJSON_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{"level": `},
		{"level out of range", `{"level": 13, "title": "t", "timeLimit": 60, "sections": [{"id": 1, "title": "s", "content": "c", "questions": [{"id": 1, "type": "TF", "text": "q", "options": ["True", "False"], "correctIndex": 0}]}]}`},
		{"no sections", `{"level": 1, "title": "t", "timeLimit": 60, "sections": []}`},
		{"single option", `{"level": 1, "title": "t", "timeLimit": 60, "sections": [{"id": 1, "title": "s", "content": "c", "questions": [{"id": 1, "type": "MCQ", "text": "q", "options": ["only"], "correctIndex": 0}]}]}`},
		{"tf with three options", `{"level": 1, "title": "t", "timeLimit": 60, "sections": [{"id": 1, "title": "s", "content": "c", "questions": [{"id": 1, "type": "TF", "text": "q", "options": ["True", "False", "Maybe"], "correctIndex": 0}]}]}`},
		{"unknown type", `{"level": 1, "title": "t", "timeLimit": 60, "sections": [{"id": 1, "title": "s", "content": "c", "questions": [{"id": 1, "type": "ESSAY", "text": "q", "options": ["a", "b"], "correctIndex": 0}]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, ValidateJSON([]byte(tt.raw)))
		})
	}
}

func TestDataValidate_CorrectIndexRange(t *testing.T) {
	d := twoSectionExam()
	d.Sections[0].Questions[0].CorrectIndex = 7
	assert.Error(t, d.Validate())
}

func TestDataValidate_SparseIDs(t *testing.T) {
	d := twoSectionExam()
	d.Sections[1].Questions[0].ID = 99
	assert.Error(t, d.Validate())
}
