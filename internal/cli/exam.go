package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/iqralabs/iqra/internal/exam"
	"github.com/iqralabs/iqra/internal/generator"
	"github.com/iqralabs/iqra/internal/session"
)

const answerAttempts = 3

// ExamOptions holds flags for the exam command.
type ExamOptions struct {
	*RootOptions
	Level    int
	Name     string
	Language string
	Timed    bool

	// Generator overrides the configured content source (for testing).
	Generator generator.Generator
}

// NewExamCommand creates the exam command.
func NewExamCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExamOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exam",
		Short: "Take a reading exam at an unlocked level",
		Long: `Take an adaptive reading exam.

The exam is generated for the requested level and content-language,
answered interactively, then scored and recorded. Passing an exam at
the highest unlocked level unlocks the next one.

Example:
  iqra exam --level 1 --name Omar
  iqra exam --level 3 --name Omar --lang ar --timed`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExam(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.Level, "level", 1, "exam level (1-12)")
	cmd.Flags().StringVar(&opts.Name, "name", "", "student name (required)")
	cmd.Flags().StringVar(&opts.Language, "lang", "", "content-language tag (defaults to config)")
	cmd.Flags().BoolVar(&opts.Timed, "timed", false, "enforce the level's time limit")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runExam(cmd *cobra.Command, opts *ExamOptions) error {
	a, err := openApp(cmd.Context(), opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	lang := opts.Language
	if lang == "" {
		lang = a.cfg.Language
	}
	parsed, err := exam.ParseLanguage(lang)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("unrecognized language %q", lang), err)
	}

	gen := opts.Generator
	if gen == nil {
		gen = a.gen
	}

	out := cmd.OutOrStdout()
	s := session.New(gen, a.recorder, a.tracker, parsed)

	if !s.SelectLevel(opts.Level) {
		frontier := a.tracker.Progress(parsed).MaxUnlockedLevel
		return WrapExitError(ExitFailure,
			fmt.Sprintf("level %d is locked (highest unlocked: %d)", opts.Level, frontier), nil)
	}

	mode := exam.Untimed
	if opts.Timed {
		mode = exam.Timed
	}
	if err := s.CompleteSetup(opts.Name, mode); err != nil {
		return WrapExitError(ExitCommandError, "setup rejected", err)
	}

	fmt.Fprintln(out, "Generating exam...")
	snap, err := awaitExam(s)
	if err != nil {
		return WrapExitError(ExitFailure, "exam generation failed", err)
	}

	printExamHeader(out, snap)
	answerQuestions(s, snap, bufio.NewReader(cmd.InOrStdin()), out)

	// The countdown may have expired mid-answer; only submit if still
	// collecting.
	if s.Snapshot().State == session.Active {
		if err := s.Submit(); err != nil {
			return WrapExitError(ExitFailure, "submit failed", err)
		}
	}

	final := s.Snapshot()
	printResult(out, final)

	formatter := &OutputFormatter{Format: opts.Format, Writer: out}
	if opts.Format == "json" {
		return formatter.Success(final.Result)
	}
	return nil
}

// awaitExam waits for generation to settle into Active or Failed.
func awaitExam(s *session.Session) (session.Snapshot, error) {
	for {
		snap := s.Snapshot()
		switch snap.State {
		case session.Active:
			return snap, nil
		case session.Failed:
			return snap, snap.Err
		}
		time.Sleep(50 * time.Millisecond)
	}
}

func printExamHeader(out io.Writer, snap session.Snapshot) {
	fmt.Fprintf(out, "\n%s (level %d)\n", snap.Data.Title, snap.Data.Level)
	if snap.Mode == exam.Timed {
		fmt.Fprintf(out, "Time limit: %d seconds\n", snap.Data.TimeLimit)
	}
}

func answerQuestions(s *session.Session, snap session.Snapshot, reader *bufio.Reader, out io.Writer) {
	number := 0
	for _, section := range snap.Data.Sections {
		fmt.Fprintf(out, "\n--- %s ---\n%s\n", section.Title, section.Content)
		for _, q := range section.Questions {
			number++
			if s.Snapshot().State != session.Active {
				return // time expired
			}
			fmt.Fprintf(out, "\nQ%d: %s\n", number, q.Text)
			for i, option := range q.Options {
				fmt.Fprintf(out, "%c. %s\n", 'A'+i, option)
			}
			if idx, ok := readAnswer(reader, out, len(q.Options)); ok {
				s.Answer(q.ID, idx)
			} else {
				fmt.Fprintln(out, "Skipping question.")
				s.Skip(q.ID)
			}
		}
	}
}

func readAnswer(reader *bufio.Reader, out io.Writer, optionCount int) (int, bool) {
	if optionCount < 1 {
		return -1, false
	}
	maxLetter := byte('A' + optionCount - 1)

	for attempt := 1; attempt <= answerAttempts; attempt++ {
		line, err := reader.ReadString('\n')
		if err != nil && line == "" {
			return -1, false
		}

		line = strings.ToUpper(strings.TrimSpace(line))
		if len(line) == 1 {
			letter := line[0]
			if letter >= 'A' && letter <= maxLetter {
				return int(letter - 'A'), true
			}
		}

		if attempt < answerAttempts {
			fmt.Fprintf(out, "Invalid input. Please enter a letter A-%c.\n", maxLetter)
		}
		if err != nil {
			return -1, false
		}
	}
	return -1, false
}

func printResult(out io.Writer, snap session.Snapshot) {
	if snap.Result == nil {
		fmt.Fprintln(out, "\nNo result recorded.")
		return
	}
	r := snap.Result

	correct := 0
	for _, d := range r.Details {
		if d.IsCorrect {
			correct++
		}
	}
	fmt.Fprintf(out, "\nScore: %d (%d/%d correct)\n", r.Score, correct, r.TotalQuestions)
	if r.Score >= exam.PassingScore {
		fmt.Fprintln(out, "Passed!")
		if snap.Level < exam.TotalLevels {
			fmt.Fprintf(out, "Level %d is now available.\n", snap.Level+1)
		}
	} else {
		fmt.Fprintf(out, "Not passed (need %d). Try this level again.\n", exam.PassingScore)
	}
}
