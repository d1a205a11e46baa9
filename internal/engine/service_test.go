package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand"
	"sort"
	"testing"
	"time"

	"github.com/linguaprep/assessment-engine/internal/ability"
	"github.com/linguaprep/assessment-engine/internal/attempt"
	"github.com/linguaprep/assessment-engine/internal/calibration"
	"github.com/linguaprep/assessment-engine/internal/examconfig"
	"github.com/linguaprep/assessment-engine/internal/faults"
	"github.com/linguaprep/assessment-engine/internal/itembank"
	"github.com/linguaprep/assessment-engine/internal/selector"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	svc      *Service
	clk      *clock
	items    itembank.Store
	attempts attempt.Store
	profiles ability.Store
	configs  examconfig.Store
	queue    calibration.Queue
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	items := itembank.NewMemoryStore()
	ctx := context.Background()
	for i := 0; i < 24; i++ {
		it := itembank.Item{
			ID:      fmt.Sprintf("g-%02d", i),
			Section: itembank.SectionGrammar,
			Topic:   "verb tenses",
			Prompt:  fmt.Sprintf("question %d", i),
			Choices: []itembank.Choice{
				{Key: "A", Text: "right"}, {Key: "B", Text: "wrong"},
				{Key: "C", Text: "wrong"}, {Key: "D", Text: "wrong"},
			},
			CorrectChoice: "A",
			Level:         itembank.LevelMedium,
			Status:        itembank.StatusApproved,
			Stats:         itembank.Stats{Guessing: 0.25},
		}
		if err := items.PutItem(ctx, it); err != nil {
			t.Fatalf("seed item: %v", err)
		}
	}

	f := &fixture{
		clk:      &clock{t: time.Unix(1_700_000_000, 0)},
		items:    items,
		attempts: attempt.NewMemoryStore(),
		profiles: ability.NewMemoryStore(),
		configs:  examconfig.NewMemoryStore(),
		queue:    calibration.NewMemoryQueue(),
	}
	f.svc = New(Deps{
		Configs:  f.configs,
		Items:    f.items,
		Attempts: f.attempts,
		Profiles: f.profiles,
		Queue:    f.queue,
		Selector: selector.New(items, rand.New(rand.NewSource(1))),
	}, f.clk.now, WithLogger(log.New(io.Discard, "", 0)))
	return f
}

func (f *fixture) startedPractice(t *testing.T, user string, count int) attempt.Attempt {
	t.Helper()
	ctx := context.Background()
	a, err := f.svc.CreateSectionPractice(ctx, user, itembank.SectionGrammar, count, itembank.LevelMedium)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	a, err = f.svc.StartExam(ctx, user, a.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	return a
}

// answerQuestions submits correct answers for the first correct questions and
// a deliberate miss for the rest, going through the presented-letter mapping.
func (f *fixture) answerQuestions(t *testing.T, user string, a attempt.Attempt, correct int) {
	t.Helper()
	ctx := context.Background()
	view, err := f.svc.GetExamQuestions(ctx, user, a.ID)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	for i, q := range view.Questions {
		perm := attempt.OptionPermutation(a.ID, q.ID, len(q.Choices))
		letter := attempt.PresentedLetter(perm, "A")
		if i >= correct {
			if letter == "A" {
				letter = "B"
			} else {
				letter = "A"
			}
		}
		if err := f.svc.SubmitAnswer(ctx, user, a.ID, q.ID, letter, 30, false); err != nil {
			t.Fatalf("submit %s: %v", q.ID, err)
		}
	}
}

func TestCompleteExam_SevenOfTenScoresSection(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.startedPractice(t, "u1", 10)
	f.answerQuestions(t, "u1", a, 7)

	done, err := f.svc.CompleteExam(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	res := done.Result
	if res == nil || len(res.Sections) != 1 {
		t.Fatalf("expected one section result, got %+v", res)
	}
	sr := res.Sections[0]
	if sr.Accuracy != 70 || sr.Score != 105 {
		t.Fatalf("got accuracy=%.1f score=%d, want 70/105", sr.Accuracy, sr.Score)
	}
	if res.TotalScore != 105 || res.Level != "beginner" {
		t.Fatalf("got total=%d level=%q", res.TotalScore, res.Level)
	}
}

func TestSubmitAnswer_RejectedWhilePaused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.startedPractice(t, "u1", 5)
	if _, err := f.svc.PauseExam(ctx, "u1", a.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}

	qid := a.Sections[0].QuestionIDs[0]
	err := f.svc.SubmitAnswer(ctx, "u1", a.ID, qid, "A", 10, false)
	if !faults.IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	got, _ := f.svc.GetAttempt(ctx, "u1", a.ID)
	if len(got.Answers) != 0 {
		t.Fatalf("answer recorded despite rejection: %+v", got.Answers)
	}
}

func TestCompleteExam_SecondCompleteRejectedWithoutMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.startedPractice(t, "u1", 4)
	f.answerQuestions(t, "u1", a, 4)

	first, err := f.svc.CompleteExam(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	f.clk.advance(time.Minute)
	if _, err := f.svc.CompleteExam(ctx, "u1", a.ID); !faults.IsInvalidTransition(err) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	res, err := f.svc.GetResult(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.CompletedAt != first.Result.CompletedAt || res.TotalScore != first.Result.TotalScore {
		t.Fatalf("stored result changed after rejected retry")
	}
}

func TestPauseResume_TracksPausedTimeAndShiftsDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.startedPractice(t, "u1", 5)
	deadline := a.ExpiresAt

	f.clk.advance(2 * time.Minute)
	if _, err := f.svc.PauseExam(ctx, "u1", a.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	f.clk.advance(5 * time.Minute)
	resumed, err := f.svc.ResumeExam(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if resumed.TotalPausedSec != 300 {
		t.Fatalf("totalPausedSec=%d, want 300", resumed.TotalPausedSec)
	}
	if resumed.ExpiresAt != deadline+300 {
		t.Fatalf("deadline did not shift by the paused span: got %d want %d", resumed.ExpiresAt, deadline+300)
	}
	if resumed.Status != attempt.StatusInProgress {
		t.Fatalf("status=%s", resumed.Status)
	}
}

func TestResumeExam_PauseBudgetExceededExpires(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.startedPractice(t, "u1", 5)
	if _, err := f.svc.PauseExam(ctx, "u1", a.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}
	f.clk.advance(31 * time.Minute)

	_, err := f.svc.ResumeExam(ctx, "u1", a.ID)
	if !faults.IsExpired(err) {
		t.Fatalf("expected expiry, got %v", err)
	}
	got, _ := f.svc.GetAttempt(ctx, "u1", a.ID)
	if got.Status != attempt.StatusExpired {
		t.Fatalf("status=%s, want expired", got.Status)
	}
}

func TestSubmitAnswer_LazyExpiryPastDeadline(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.startedPractice(t, "u1", 5)
	f.clk.advance(time.Duration(a.ExpiresAt-f.clk.t.Unix()+1) * time.Second)

	qid := a.Sections[0].QuestionIDs[0]
	err := f.svc.SubmitAnswer(ctx, "u1", a.ID, qid, "A", 10, false)
	if !faults.IsExpired(err) {
		t.Fatalf("expected expiry, got %v", err)
	}
	got, _ := f.svc.GetAttempt(ctx, "u1", a.ID)
	if got.Status != attempt.StatusExpired {
		t.Fatalf("status=%s, want expired", got.Status)
	}
}

func TestCompleteExam_DefersCalibrationToQueue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.startedPractice(t, "u1", 3)
	f.answerQuestions(t, "u1", a, 3)
	if _, err := f.svc.CompleteExam(ctx, "u1", a.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	// Stats untouched until the applier sweeps.
	qid := a.Sections[0].QuestionIDs[0]
	it, _ := f.items.GetItem(ctx, qid)
	if it.Stats.ExposureCount != 0 {
		t.Fatalf("exposure applied synchronously: %+v", it.Stats)
	}
	pending, err := f.queue.Next(ctx, 10)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("expected 3 queued exposures, got %d", len(pending))
	}

	applier := calibration.NewApplier(f.queue, f.items, 0, log.New(io.Discard, "", 0))
	if n, err := applier.Sweep(ctx); err != nil || n != 3 {
		t.Fatalf("sweep applied %d (err=%v), want 3", n, err)
	}
	it, _ = f.items.GetItem(ctx, qid)
	if it.Stats.ExposureCount != 1 {
		t.Fatalf("exposure not applied after sweep: %+v", it.Stats)
	}
}

func TestSubmitPracticeAnswer_CalibratesImmediately(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.SubmitPracticeAnswer(ctx, "u1", "g-00", "A", 25)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if !out.Correct || out.CorrectChoice != "A" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	it, _ := f.items.GetItem(ctx, "g-00")
	if it.Stats.ExposureCount != 1 || it.Stats.CorrectCount != 1 {
		t.Fatalf("stats not updated inline: %+v", it.Stats)
	}
	p, _ := f.svc.GetProfile(ctx, "u1")
	if len(p.History) != 1 {
		t.Fatalf("history not recorded: %+v", p.History)
	}
	if p.AbilityFor(itembank.SectionGrammar) <= 0 {
		t.Fatalf("correct answer should nudge the estimate up, got %f", p.AbilityFor(itembank.SectionGrammar))
	}
}

func TestCompleteExam_UpdatesProfileAndConfigUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.startedPractice(t, "u1", 10)
	f.answerQuestions(t, "u1", a, 9)
	done, err := f.svc.CompleteExam(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}

	p, _ := f.svc.GetProfile(ctx, "u1")
	if p.Overall != done.Result.Ability {
		t.Fatalf("overall=%f, want %f", p.Overall, done.Result.Ability)
	}
	if len(p.History) != 10 {
		t.Fatalf("history=%d entries, want 10", len(p.History))
	}
	cfg, err := f.configs.Get(ctx, a.ConfigID)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	if cfg.UsageCount != 1 || cfg.AvgScore != float64(done.Result.TotalScore) {
		t.Fatalf("usage not recorded: count=%d avg=%f", cfg.UsageCount, cfg.AvgScore)
	}
}

func TestAbandonExam_EndsWithoutScoring(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.startedPractice(t, "u1", 3)

	got, err := f.svc.AbandonExam(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("abandon: %v", err)
	}
	if got.Status != attempt.StatusAbandoned || got.Result != nil {
		t.Fatalf("abandoned attempt should carry no result: %+v", got)
	}
	if pending, _ := f.queue.Next(ctx, 10); len(pending) != 0 {
		t.Fatalf("abandon must not queue exposures, got %d", len(pending))
	}
	if _, err := f.svc.CompleteExam(ctx, "u1", a.ID); !faults.IsInvalidTransition(err) {
		t.Fatalf("complete after abandon should fail, got %v", err)
	}
}

func TestAttemptAccess_OwnershipEnforced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.startedPractice(t, "u1", 3)

	var authErr *faults.AuthorizationError
	if _, err := f.svc.GetAttempt(ctx, "intruder", a.ID); !errors.As(err, &authErr) {
		t.Fatalf("expected authorization error, got %v", err)
	}
	if err := f.svc.SubmitAnswer(ctx, "intruder", a.ID, a.Sections[0].QuestionIDs[0], "A", 5, false); !errors.As(err, &authErr) {
		t.Fatalf("expected authorization error, got %v", err)
	}
}

func TestGetExamQuestions_StripsAnswersAndShufflesDeterministically(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.startedPractice(t, "u1", 5)

	v1, err := f.svc.GetExamQuestions(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	v2, _ := f.svc.GetExamQuestions(ctx, "u1", a.ID)
	for i, q := range v1.Questions {
		if len(q.Choices) != 4 {
			t.Fatalf("question %s served %d choices", q.ID, len(q.Choices))
		}
		for j, c := range q.Choices {
			if c != v2.Questions[i].Choices[j] {
				t.Fatalf("option order not stable across reloads for %s", q.ID)
			}
		}
	}
}

func TestReportActivity_LatchesSuspicion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.startedPractice(t, "u1", 3)

	for i := 0; i < 5; i++ {
		if err := f.svc.ReportActivity(ctx, "u1", a.ID, attempt.ActivityTabSwitch); err != nil {
			t.Fatalf("report: %v", err)
		}
	}
	got, _ := f.svc.GetAttempt(ctx, "u1", a.ID)
	if got.TabSwitches != 5 || !got.SuspiciousActivity {
		t.Fatalf("suspicion not latched: %+v", got)
	}

	f.answerQuestions(t, "u1", got, 3)
	if _, err := f.svc.CompleteExam(ctx, "u1", a.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if err := f.svc.ReportActivity(ctx, "u1", a.ID, attempt.ActivityTabSwitch); !faults.IsInvalidTransition(err) {
		t.Fatalf("activity on terminal attempt should fail, got %v", err)
	}
}

func TestCreateItem_RejectsOutOfOrderChoiceKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	it := itembank.Item{
		Section: itembank.SectionGrammar,
		Prompt:  "pick one",
		Choices: []itembank.Choice{
			{Key: "B", Text: "right"}, {Key: "A", Text: "wrong"},
		},
		CorrectChoice: "B",
		Level:         itembank.LevelMedium,
	}

	// A shuffled attempt resolves letters by position, so an item keyed B,A
	// would grade the right text as the wrong letter. It must never enter
	// the bank.
	_, err := f.svc.CreateItem(ctx, it)
	var vErr *faults.ValidationError
	if !errors.As(err, &vErr) || vErr.Field != "choices" {
		t.Fatalf("expected choices validation error, got %v", err)
	}

	it.Choices = []itembank.Choice{
		{Key: "A", Text: "right"}, {Key: "B", Text: "wrong"},
	}
	it.CorrectChoice = "A"
	if _, err := f.svc.CreateItem(ctx, it); err != nil {
		t.Fatalf("positional keys rejected: %v", err)
	}
}

func TestCreateFromConfig_FixedOrderWithoutQuestionShuffle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := examconfig.SectionPractice(itembank.SectionGrammar, 8, itembank.LevelMedium)
	cfg.Rules.ShuffleQuestions = false

	a, err := f.svc.createFromConfig(ctx, "u1", cfg, "practice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	ids := a.Sections[0].QuestionIDs
	if len(ids) != 8 {
		t.Fatalf("snapshot has %d questions, want 8", len(ids))
	}
	// Seeded items share one difficulty, so the fixed order is by id.
	if !sort.StringsAreSorted(ids) {
		t.Fatalf("expected a fixed question order, got %v", ids)
	}
}

func TestExpiry_AutoSubmitScoresSubmittedAnswers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cfg := examconfig.SectionPractice(itembank.SectionGrammar, 4, itembank.LevelMedium)
	cfg.Rules.AutoSubmit = true

	a, err := f.svc.createFromConfig(ctx, "u1", cfg, "practice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	a, err = f.svc.StartExam(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	f.answerQuestions(t, "u1", a, 3)
	deadline := a.ExpiresAt
	f.clk.advance(time.Duration(deadline-f.clk.t.Unix()+1) * time.Second)

	qid := a.Sections[0].QuestionIDs[0]
	if err := f.svc.SubmitAnswer(ctx, "u1", a.ID, qid, "A", 10, false); !faults.IsExpired(err) {
		t.Fatalf("expected expiry, got %v", err)
	}

	got, _ := f.svc.GetAttempt(ctx, "u1", a.ID)
	if got.Status != attempt.StatusCompleted {
		t.Fatalf("status=%s, want completed", got.Status)
	}
	res, err := f.svc.GetResult(ctx, "u1", a.ID)
	if err != nil {
		t.Fatalf("result: %v", err)
	}
	if res.Sections[0].Accuracy != 75 {
		t.Fatalf("accuracy=%.1f, want 75 from the 3 of 4 answers on file", res.Sections[0].Accuracy)
	}
	if res.CompletedAt != deadline {
		t.Fatalf("completedAt=%d, want the deadline %d", res.CompletedAt, deadline)
	}
	if pending, _ := f.queue.Next(ctx, 10); len(pending) != 4 {
		t.Fatalf("auto-submit should queue the 4 exposures, got %d", len(pending))
	}
}

func TestCreateOfficialExam_FailsWhenBankIsShort(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	// Only grammar is seeded; the official template needs all four sections.
	_, err := f.svc.CreateOfficialExam(ctx, "u1", "")
	var cErr *faults.CreationError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected creation error, got %v", err)
	}
	if cErr.Requested != 20 {
		t.Fatalf("creation error detail %+v", cErr)
	}
}
