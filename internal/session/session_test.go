package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iqralabs/iqra/internal/exam"
	"github.com/iqralabs/iqra/internal/gateway"
	"github.com/iqralabs/iqra/internal/generator"
	"github.com/iqralabs/iqra/internal/history"
	"github.com/iqralabs/iqra/internal/progress"
	"github.com/iqralabs/iqra/internal/store"
	"github.com/iqralabs/iqra/internal/syncer"
	"github.com/iqralabs/iqra/internal/testutil"
)

type fixture struct {
	gw       *gateway.Gateway
	gen      *generator.Scripted
	tracker  *progress.Tracker
	recorder *history.Recorder
	session  *Session
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	local, err := store.Open(filepath.Join(t.TempDir(), "iqra.db"))
	require.NoError(t, err)
	t.Cleanup(func() { local.Close() })

	loop := syncer.NewLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = loop.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	gw := gateway.New(local)
	gen := generator.NewScripted()
	tracker := progress.New(gw, loop)
	recorder := history.New(gw, loop)
	return &fixture{
		gw:       gw,
		gen:      gen,
		tracker:  tracker,
		recorder: recorder,
		session:  New(gen, recorder, tracker, "en", opts...),
	}
}

// threeQuestionExam builds a minimal valid exam. All correct answers are
// option 0.
func threeQuestionExam(timeLimit int) *exam.Data {
	return &exam.Data{
		Title:     "Morning at the Harbor",
		TimeLimit: timeLimit,
		Sections: []exam.Section{{
			ID:      1,
			Title:   "Morning at the Harbor",
			Content: "Omar helps his uncle load crates of fish before school.",
			Questions: []exam.Question{
				{
					Type:         exam.MultipleChoice,
					Text:         "What does Omar load?",
					Options:      []string{"crates of fish", "bags of rice", "boxes of books"},
					CorrectIndex: 0,
				},
				{
					Type:         exam.TrueFalse,
					Text:         "Omar helps before school.",
					Options:      []string{"True", "False"},
					CorrectIndex: 0,
				},
				{
					Type:         exam.FillBlank,
					Text:         "Omar helps his _______.",
					Options:      []string{"uncle", "teacher", "neighbor"},
					CorrectIndex: 0,
				},
			},
		}},
	}
}

func waitState(t *testing.T, s *Session, want State) Snapshot {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Snapshot().State == want
	}, 2*time.Second, time.Millisecond)
	return s.Snapshot()
}

// startActive drives the session from Idle to Active at level 1 with the
// next queued exam.
func startActive(t *testing.T, f *fixture, mode exam.Mode) {
	t.Helper()
	require.True(t, f.session.SelectLevel(1))
	require.NoError(t, f.session.CompleteSetup("Omar", mode))
	waitState(t, f.session, Active)
}

func TestSelectLevel_LockedLevelRejectedSilently(t *testing.T) {
	f := newFixture(t)

	// Only level 1 is unlocked initially.
	assert.False(t, f.session.SelectLevel(2))
	assert.False(t, f.session.SelectLevel(0))
	assert.Equal(t, Idle, f.session.Snapshot().State)

	assert.True(t, f.session.SelectLevel(1))
	assert.Equal(t, SettingUp, f.session.Snapshot().State)

	// Already in setup: a second selection is rejected.
	assert.False(t, f.session.SelectLevel(1))
}

func TestSelectLevel_HonorsPerLanguageFrontier(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.gw.SaveProgress("ar", exam.UserProgress{CurrentLevel: 1, MaxUnlockedLevel: 4}))

	assert.False(t, f.session.SelectLevel(4))

	f.session.SetLanguage("ar")
	assert.True(t, f.session.SelectLevel(4))
}

func TestCompleteSetup_NameValidation(t *testing.T) {
	f := newFixture(t)
	require.True(t, f.session.SelectLevel(1))

	assert.ErrorIs(t, f.session.CompleteSetup("", exam.Untimed), ErrInvalidName)
	assert.ErrorIs(t, f.session.CompleteSetup("A", exam.Untimed), ErrInvalidName)
	assert.ErrorIs(t, f.session.CompleteSetup("  B  ", exam.Untimed), ErrInvalidName)

	// Session stays in setup after a rejected name.
	assert.Equal(t, SettingUp, f.session.Snapshot().State)

	// Two runes suffice regardless of byte length.
	f.gen.PushExam(threeQuestionExam(0))
	require.NoError(t, f.session.CompleteSetup("نور", exam.Untimed))
	snap := waitState(t, f.session, Active)
	assert.Equal(t, "نور", snap.StudentName)
}

func TestSubmit_FullPassRecordsAndAdvances(t *testing.T) {
	f := newFixture(t)
	f.gen.PushExam(threeQuestionExam(0))
	startActive(t, f, exam.Untimed)

	f.session.Answer(1, 0)
	f.session.Answer(2, 0)
	assert.False(t, f.session.AllAnswered())
	f.session.Answer(3, 0)
	assert.True(t, f.session.AllAnswered())

	require.NoError(t, f.session.Submit())

	snap := f.session.Snapshot()
	assert.Equal(t, Submitted, snap.State)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 100, snap.Result.Score)

	history := f.gw.History()
	require.Len(t, history, 1)
	assert.Equal(t, "Omar", history[0].StudentName)

	assert.Equal(t, 2, f.tracker.Progress("en").MaxUnlockedLevel)
}

func TestSubmit_RequiresAllAnswered(t *testing.T) {
	f := newFixture(t)
	f.gen.PushExam(threeQuestionExam(0))
	startActive(t, f, exam.Untimed)

	f.session.Answer(1, 0)
	assert.ErrorIs(t, f.session.Submit(), ErrUnanswered)
	assert.Equal(t, Active, f.session.Snapshot().State)
}

func TestAnswer_UpsertsAndFreezesAfterSubmit(t *testing.T) {
	f := newFixture(t)
	f.gen.PushExam(threeQuestionExam(0))
	startActive(t, f, exam.Untimed)

	f.session.Answer(1, 2)
	f.session.Answer(1, 0) // overwrites
	f.session.Answer(2, 0)
	f.session.Answer(3, 0)
	require.NoError(t, f.session.Submit())

	f.session.Answer(1, 1) // ignored once submitted
	assert.Equal(t, 100, f.session.Snapshot().Result.Score)
}

func TestAnswer_UnknownQuestionIDsDoNotOpenSubmitGate(t *testing.T) {
	f := newFixture(t)
	f.gen.PushExam(threeQuestionExam(0))
	startActive(t, f, exam.Untimed)

	// Answers for IDs the exam does not have are dropped, so three of
	// them must not satisfy the all-answered requirement.
	f.session.Answer(97, 0)
	f.session.Answer(98, 0)
	f.session.Answer(99, 0)

	assert.False(t, f.session.AllAnswered())
	assert.Empty(t, f.session.Snapshot().Answers)
	assert.ErrorIs(t, f.session.Submit(), ErrUnanswered)
	assert.Equal(t, Active, f.session.Snapshot().State)
}

func TestAnswer_RejectsOutOfRangeOptionIndex(t *testing.T) {
	f := newFixture(t)
	f.gen.PushExam(threeQuestionExam(0))
	startActive(t, f, exam.Untimed)

	f.session.Answer(1, -1)
	f.session.Answer(2, 5) // true/false question has 2 options
	assert.Empty(t, f.session.Snapshot().Answers)

	f.session.Answer(2, 1)
	assert.Equal(t, exam.Answers{2: 1}, f.session.Snapshot().Answers)
}

func TestSkip_SatisfiesSubmitGateAndScoresUnanswered(t *testing.T) {
	f := newFixture(t)
	f.gen.PushExam(threeQuestionExam(0))
	startActive(t, f, exam.Untimed)

	f.session.Answer(1, 0)
	f.session.Skip(2)
	f.session.Skip(3)
	f.session.Skip(99) // unknown ID ignored

	require.True(t, f.session.AllAnswered())
	require.NoError(t, f.session.Submit())

	snap := f.session.Snapshot()
	assert.Equal(t, 33, snap.Result.Score)
	assert.Equal(t, "No Answer", snap.Result.Details[1].UserAnswer)
	assert.Equal(t, "No Answer", snap.Result.Details[2].UserAnswer)
}

func TestTimedExpiry_AutoSubmitsWithOpenQuestions(t *testing.T) {
	ticker := testutil.NewManualTicker()
	f := newFixture(t, WithTicker(ticker.Factory))
	f.gen.PushExam(threeQuestionExam(3))
	startActive(t, f, exam.Timed)

	f.session.Answer(1, 0)

	require.True(t, ticker.Tick())
	require.Eventually(t, func() bool {
		return f.session.Snapshot().Remaining == 2
	}, time.Second, time.Millisecond)
	require.True(t, ticker.Tick())
	require.True(t, ticker.Tick())

	snap := waitState(t, f.session, Submitted)
	assert.Equal(t, 0, snap.Remaining)
	require.NotNil(t, snap.Result)
	assert.Equal(t, 33, snap.Result.Score)

	// The countdown released its ticker.
	require.Eventually(t, ticker.Stopped, time.Second, time.Millisecond)

	// One question answered, two recorded as unanswered.
	recorded := f.gw.History()
	require.Len(t, recorded, 1)
	assert.Equal(t, "No Answer", recorded[0].Details[1].UserAnswer)
	assert.Equal(t, "No Answer", recorded[0].Details[2].UserAnswer)

	// A racing explicit submit after expiry is a no-op.
	assert.ErrorIs(t, f.session.Submit(), ErrBadTransition)
	assert.Len(t, f.gw.History(), 1)
}

func TestUntimedMode_NoCountdown(t *testing.T) {
	ticker := testutil.NewManualTicker()
	f := newFixture(t, WithTicker(ticker.Factory))
	f.gen.PushExam(threeQuestionExam(3))
	startActive(t, f, exam.Untimed)

	assert.Equal(t, 0, f.session.Snapshot().Remaining)
	assert.False(t, ticker.Stopped())
}

func TestGenerationFailure_EntersFailed(t *testing.T) {
	f := newFixture(t)
	genErr := errors.New("model unavailable")
	f.gen.PushErr(genErr)

	require.True(t, f.session.SelectLevel(1))
	require.NoError(t, f.session.CompleteSetup("Omar", exam.Untimed))

	snap := waitState(t, f.session, Failed)
	assert.ErrorIs(t, snap.Err, genErr)

	// Failed only exits.
	assert.ErrorIs(t, f.session.Submit(), ErrBadTransition)
	assert.ErrorIs(t, f.session.Retry(), ErrBadTransition)

	f.session.Exit()
	assert.Equal(t, Idle, f.session.Snapshot().State)
}

func TestRetry_LoadsFreshContentAndClearsAnswers(t *testing.T) {
	f := newFixture(t)
	f.gen.PushExam(threeQuestionExam(0))
	startActive(t, f, exam.Untimed)

	f.session.Answer(1, 1)
	f.session.Answer(2, 1)
	f.session.Answer(3, 1)
	require.NoError(t, f.session.Submit())

	fresh := threeQuestionExam(0)
	fresh.Sections[0].Content = "Omar sails with his uncle on Friday mornings."
	f.gen.PushExam(fresh)
	require.NoError(t, f.session.Retry())

	snap := waitState(t, f.session, Active)
	assert.Equal(t, 1, snap.Level)
	assert.Empty(t, snap.Answers)
	assert.Nil(t, snap.Result)
	assert.Contains(t, snap.Data.Sections[0].Content, "sails")
}

func TestNextLevel_RequiresPassingScore(t *testing.T) {
	f := newFixture(t)
	f.gen.PushExam(threeQuestionExam(0))
	startActive(t, f, exam.Untimed)

	// One of three correct: 33, below the threshold.
	f.session.Answer(1, 0)
	f.session.Answer(2, 1)
	f.session.Answer(3, 1)
	require.NoError(t, f.session.Submit())

	assert.ErrorIs(t, f.session.NextLevel(), ErrCannotAdvance)
	assert.Equal(t, Submitted, f.session.Snapshot().State)
}

func TestNextLevel_AdvancesAfterPass(t *testing.T) {
	f := newFixture(t)
	f.gen.PushExam(threeQuestionExam(0))
	startActive(t, f, exam.Untimed)

	f.session.Answer(1, 0)
	f.session.Answer(2, 0)
	f.session.Answer(3, 0)
	require.NoError(t, f.session.Submit())

	f.gen.PushExam(threeQuestionExam(0))
	require.NoError(t, f.session.NextLevel())

	snap := waitState(t, f.session, Active)
	assert.Equal(t, 2, snap.Level)
	assert.Equal(t, 2, snap.Data.Level)
}

func TestNextLevel_CappedAtTopLevel(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.gw.SaveProgress("en", exam.UserProgress{CurrentLevel: 12, MaxUnlockedLevel: 12}))

	f.gen.PushExam(threeQuestionExam(0))
	require.True(t, f.session.SelectLevel(12))
	require.NoError(t, f.session.CompleteSetup("Omar", exam.Untimed))
	waitState(t, f.session, Active)

	f.session.Answer(1, 0)
	f.session.Answer(2, 0)
	f.session.Answer(3, 0)
	require.NoError(t, f.session.Submit())
	require.Equal(t, 100, f.session.Snapshot().Result.Score)

	assert.ErrorIs(t, f.session.NextLevel(), ErrCannotAdvance)
}

// blockingGenerator parks Generate until released, to simulate a
// response that arrives after the learner left the session.
type blockingGenerator struct {
	release chan struct{}
	inner   *generator.Scripted
}

func (g *blockingGenerator) Generate(ctx context.Context, level int, lang string) (*exam.Data, error) {
	<-g.release
	return g.inner.Generate(ctx, level, lang)
}

func TestExit_IgnoresLateGeneratorResponse(t *testing.T) {
	f := newFixture(t)
	f.gen.PushExam(threeQuestionExam(0))
	gen := &blockingGenerator{release: make(chan struct{}), inner: f.gen}

	s := New(gen, f.recorder, f.tracker, "en")

	require.True(t, s.SelectLevel(1))
	require.NoError(t, s.CompleteSetup("Omar", exam.Untimed))
	assert.Equal(t, Loading, s.Snapshot().State)

	s.Exit()
	close(gen.release)

	// The late response must not resurrect the attempt.
	time.Sleep(20 * time.Millisecond)
	snap := s.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Nil(t, snap.Data)
}

func TestExit_DuringActiveCancelsCountdown(t *testing.T) {
	ticker := testutil.NewManualTicker()
	f := newFixture(t, WithTicker(ticker.Factory))
	f.gen.PushExam(threeQuestionExam(10))
	startActive(t, f, exam.Timed)

	f.session.Exit()

	require.Eventually(t, ticker.Stopped, time.Second, time.Millisecond)
	assert.Equal(t, Idle, f.session.Snapshot().State)
	assert.Empty(t, f.gw.History())
}

func TestSetLanguage_DiscardsAttempt(t *testing.T) {
	f := newFixture(t)
	f.gen.PushExam(threeQuestionExam(0))
	startActive(t, f, exam.Untimed)

	f.session.SetLanguage("ar")

	snap := f.session.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Equal(t, "ar", snap.Language)
	assert.Empty(t, f.gw.History())
}
