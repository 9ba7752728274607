package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iqralabs/iqra/internal/exam"
)

// ProgressOptions holds flags for the progress command.
type ProgressOptions struct {
	*RootOptions
	Language string
}

// NewProgressCommand creates the progress command.
func NewProgressCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ProgressOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:           "progress",
		Short:         "Show unlocked levels for a content-language",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProgress(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Language, "lang", "", "content-language tag (defaults to config)")

	return cmd
}

func runProgress(cmd *cobra.Command, opts *ProgressOptions) error {
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

	p := a.tracker.Progress(parsed)

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		formatter := &OutputFormatter{Format: opts.Format, Writer: out}
		return formatter.Success(p)
	}

	fmt.Fprintf(out, "Language: %s\n", parsed)
	fmt.Fprintf(out, "Levels unlocked: 1-%d of %d\n", p.MaxUnlockedLevel, exam.TotalLevels)
	return nil
}
