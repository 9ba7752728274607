package exam

import "golang.org/x/text/language"

// Fixed assessment constants. These are design constants, not runtime
// configuration.
const (
	// PassingScore is the minimum score (0-100) that counts as a pass.
	PassingScore = 85

	// TotalLevels is the number of difficulty levels.
	TotalLevels = 12

	// RemoteHistoryCap is the maximum number of results pushed to the
	// realtime mirror. Local history is unbounded.
	RemoteHistoryCap = 500

	// DefaultTimeLimit is the fallback time budget in seconds when a
	// generated exam carries none.
	DefaultTimeLimit = 300
)

// QuestionType distinguishes the three supported question shapes.
type QuestionType string

const (
	MultipleChoice QuestionType = "MCQ"
	TrueFalse      QuestionType = "TF"
	FillBlank      QuestionType = "FILL_BLANK"
)

// Mode selects whether an attempt runs under a countdown.
type Mode string

const (
	Timed   Mode = "TIMED"
	Untimed Mode = "UNTIMED"
)

// Question is a single question within a section.
//
// IDs are assigned by renumbering across all sections at generation time
// and form a dense 1..N sequence within one attempt.
type Question struct {
	ID           int          `json:"id"`
	Type         QuestionType `json:"type"`
	Text         string       `json:"text"`
	Options      []string     `json:"options"`
	CorrectIndex int          `json:"correctIndex"`
}

// Section is one ordered passage unit: a reading text plus its questions.
// Immutable once generated.
type Section struct {
	ID        int        `json:"id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Questions []Question `json:"questions"`
}

// Data is a complete generated exam. Created once per attempt by the
// content generator and never mutated afterwards.
type Data struct {
	Level     int       `json:"level"`
	Title     string    `json:"title"`
	TimeLimit int       `json:"timeLimit"` // suggested budget in seconds
	Sections  []Section `json:"sections"`
}

// Answers maps question ID to the chosen option index. Built incrementally
// while answering; keys are a subset of all question IDs until submission.
type Answers map[int]int

// ResultDetail is the per-question record inside a Result.
type ResultDetail struct {
	QuestionText  string `json:"questionText"`
	UserAnswer    string `json:"userAnswer"`
	CorrectAnswer string `json:"correctAnswer"`
	IsCorrect     bool   `json:"isCorrect"`
}

// Result is one completed attempt. Created exactly once at submission and
// immutable thereafter.
type Result struct {
	ID             string         `json:"id"`
	StudentName    string         `json:"studentName"`
	Level          int            `json:"level"`
	Score          int            `json:"score"` // 0-100
	TotalQuestions int            `json:"totalQuestions"`
	Date           string         `json:"date"` // RFC 3339
	Mode           Mode           `json:"mode"`
	Language       string         `json:"language"` // content-language tag
	Details        []ResultDetail `json:"details"`
}

// UserProgress is the per content-language unlock ledger.
// MaxUnlockedLevel only ever increases, by exactly 1 at a time.
type UserProgress struct {
	CurrentLevel     int `json:"currentLevel"`
	MaxUnlockedLevel int `json:"maxUnlockedLevel"`
}

// NewProgress returns the starting ledger for a fresh content-language.
func NewProgress() UserProgress {
	return UserProgress{CurrentLevel: 1, MaxUnlockedLevel: 1}
}

// NewsItem is a shared announcement record kept in sync with the mirror.
type NewsItem struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Date     string `json:"date"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Settings holds the shared, mirrored application settings.
type Settings struct {
	LogoURL      string `json:"logoUrl,omitempty"`
	HeroBgURL    string `json:"heroBgUrl,omitempty"`
	SchoolNameAr string `json:"schoolNameAr"`
	SchoolNameEn string `json:"schoolNameEn"`
}

// ParseLanguage validates a content-language tag ("ar", "en", ...) and
// returns its canonical base form. The content-language is the language of
// the passage and questions, independent of any display language.
func ParseLanguage(tag string) (string, error) {
	t, err := language.Parse(tag)
	if err != nil {
		return "", err
	}
	base, _ := t.Base()
	return base.String(), nil
}
