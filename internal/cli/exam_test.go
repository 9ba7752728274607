package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExamCommand_FullPass(t *testing.T) {
	cfg := testConfig(t)

	// The offline generator's correct answers are always option A.
	out, err := execute(t, "A\nA\nA\n", "--config", cfg, "exam", "--name", "Omar", "--level", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Score: 100 (3/3 correct)")
	assert.Contains(t, out, "Passed!")
	assert.Contains(t, out, "Level 2 is now available.")

	// The attempt is persisted across command invocations.
	out, err = execute(t, "", "--config", cfg, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "Omar")
	assert.Contains(t, out, "score 100")

	out, err = execute(t, "", "--config", cfg, "progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Levels unlocked: 1-2")
}

func TestExamCommand_FailingScore(t *testing.T) {
	cfg := testConfig(t)

	out, err := execute(t, "A\nB\nB\n", "--config", cfg, "exam", "--name", "Omar", "--level", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Score: 33 (1/3 correct)")
	assert.Contains(t, out, "Not passed")

	out, err = execute(t, "", "--config", cfg, "progress")
	require.NoError(t, err)
	assert.Contains(t, out, "Levels unlocked: 1-1")
}

func TestExamCommand_SkippedQuestionsCountAsWrong(t *testing.T) {
	cfg := testConfig(t)

	// Only the first question is answered; stdin then runs dry.
	out, err := execute(t, "A\n", "--config", cfg, "exam", "--name", "Omar", "--level", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Skipping question.")
	assert.Contains(t, out, "Score: 33 (1/3 correct)")
}

func TestExamCommand_LockedLevelRejected(t *testing.T) {
	_, err := execute(t, "", "--config", testConfig(t), "exam", "--name", "Omar", "--level", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "level 5 is locked")
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestExamCommand_InvalidNameRejected(t *testing.T) {
	_, err := execute(t, "", "--config", testConfig(t), "exam", "--name", "X", "--level", "1")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
