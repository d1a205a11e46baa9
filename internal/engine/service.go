// Package engine composes the item bank, selector, ability profiles, attempt
// state machine and scoring into the operations the transport exposes.
package engine

import (
	"context"
	"errors"
	"log"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/linguaprep/assessment-engine/internal/ability"
	"github.com/linguaprep/assessment-engine/internal/attempt"
	"github.com/linguaprep/assessment-engine/internal/calibration"
	"github.com/linguaprep/assessment-engine/internal/examconfig"
	"github.com/linguaprep/assessment-engine/internal/faults"
	"github.com/linguaprep/assessment-engine/internal/itembank"
	"github.com/linguaprep/assessment-engine/internal/scoring"
	"github.com/linguaprep/assessment-engine/internal/selector"
)

const (
	// How long a created attempt may sit unstarted before lazy expiry.
	notStartedTTL = 24 * time.Hour

	defaultMaxPause = 30 * time.Minute

	// Upper bound for a single answer's reported think time.
	maxAnswerSeconds = 7200

	// Practice mode: recency window (history entries) and the ELO-style
	// nudge applied to the section estimate after each response.
	practiceRecencyWindow = 50
	practiceK             = 0.3
)

type Deps struct {
	Configs  examconfig.Store
	Items    itembank.Store
	Attempts attempt.Store
	Profiles ability.Store
	Queue    calibration.Queue
	Selector *selector.Selector
}

type Option func(*Service)

func WithMaxPause(d time.Duration) Option { return func(s *Service) { s.maxPause = d } }
func WithLogger(l *log.Logger) Option     { return func(s *Service) { s.logger = l } }

type Service struct {
	configs  examconfig.Store
	items    itembank.Store
	attempts attempt.Store
	profiles ability.Store
	queue    calibration.Queue
	sel      *selector.Selector

	now      func() time.Time
	maxPause time.Duration
	logger   *log.Logger
}

func New(d Deps, now func() time.Time, opts ...Option) *Service {
	if now == nil {
		now = time.Now
	}
	s := &Service{
		configs:  d.Configs,
		items:    d.Items,
		attempts: d.Attempts,
		profiles: d.Profiles,
		queue:    d.Queue,
		sel:      d.Selector,
		now:      now,
		maxPause: defaultMaxPause,
		logger:   log.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

/* ------------------------------- creation ------------------------------- */

func (s *Service) CreateOfficialExam(ctx context.Context, userID string, difficulty itembank.Level) (attempt.Attempt, error) {
	if difficulty != "" && !itembank.ValidLevel(difficulty) {
		return attempt.Attempt{}, &faults.ValidationError{Field: "difficulty", Reason: "unknown level"}
	}
	return s.createFromConfig(ctx, userID, examconfig.Official(difficulty), "official")
}

func (s *Service) CreateMicroLearning(ctx context.Context, userID string, durationMinutes int, section *itembank.Section) (attempt.Attempt, error) {
	if durationMinutes < 1 || durationMinutes > 120 {
		return attempt.Attempt{}, &faults.ValidationError{Field: "duration_minutes", Reason: "must be between 1 and 120"}
	}
	if section != nil && !itembank.ValidSection(*section) {
		return attempt.Attempt{}, &faults.ValidationError{Field: "section", Reason: "unknown section"}
	}
	return s.createFromConfig(ctx, userID, examconfig.MicroLearning(durationMinutes, section), "micro")
}

func (s *Service) CreateSectionPractice(ctx context.Context, userID string, section itembank.Section, questionCount int, difficulty itembank.Level) (attempt.Attempt, error) {
	if !itembank.ValidSection(section) {
		return attempt.Attempt{}, &faults.ValidationError{Field: "section", Reason: "unknown section"}
	}
	if questionCount < 1 || questionCount > 100 {
		return attempt.Attempt{}, &faults.ValidationError{Field: "question_count", Reason: "must be between 1 and 100"}
	}
	if difficulty != "" && !itembank.ValidLevel(difficulty) {
		return attempt.Attempt{}, &faults.ValidationError{Field: "difficulty", Reason: "unknown level"}
	}
	return s.createFromConfig(ctx, userID, examconfig.SectionPractice(section, questionCount, difficulty), "practice")
}

// createFromConfig snapshots the question-id list per section via the
// selector and persists config + attempt. The snapshot is frozen here; later
// config edits never reach this attempt.
func (s *Service) createFromConfig(ctx context.Context, userID string, cfg examconfig.Config, mode string) (attempt.Attempt, error) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return attempt.Attempt{}, err
	}

	now := s.now()
	a := attempt.Attempt{
		ID:        uuid.NewString(),
		UserID:    userID,
		ConfigID:  cfg.ID,
		Mode:      mode,
		Status:    attempt.StatusNotStarted,
		CreatedAt: now.Unix(),
		ExpiresAt: now.Add(notStartedTTL).Unix(),
	}

	for _, spec := range cfg.Sections {
		theta := profile.AbilityFor(spec.Section)
		if cfg.Difficulty != "" {
			theta = cfg.Difficulty.NominalDifficulty()
		}
		items, err := s.sel.SelectForSection(ctx, spec.Section, theta, spec.QuestionCount)
		if err != nil {
			// CreationError is fatal: no partial or short exam is ever returned.
			return attempt.Attempt{}, err
		}
		if !cfg.Rules.ShuffleQuestions {
			// Selection order is randomized; configs that opt out of
			// shuffling get a fixed easiest-first presentation.
			sort.Slice(items, func(i, j int) bool {
				if items[i].Stats.Difficulty != items[j].Stats.Difficulty {
					return items[i].Stats.Difficulty < items[j].Stats.Difficulty
				}
				return items[i].ID < items[j].ID
			})
		}
		ids := make([]string, len(items))
		for i, it := range items {
			ids[i] = it.ID
		}
		a.Sections = append(a.Sections, attempt.SectionSnapshot{
			Section:      spec.Section,
			QuestionIDs:  ids,
			TimeLimitSec: spec.TimeLimitSec,
		})
	}

	if err := s.configs.Put(ctx, cfg); err != nil {
		return attempt.Attempt{}, err
	}
	if err := s.attempts.Create(ctx, a); err != nil {
		return attempt.Attempt{}, err
	}
	return a, nil
}

/* ----------------------------- state machine ---------------------------- */

func (s *Service) StartExam(ctx context.Context, userID, attemptID string) (attempt.Attempt, error) {
	a, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return attempt.Attempt{}, err
	}
	if err := s.expireIfDue(ctx, &a); err != nil {
		return attempt.Attempt{}, err
	}
	if a.Status != attempt.StatusNotStarted && a.Status != attempt.StatusPaused {
		return attempt.Attempt{}, &faults.InvalidTransitionError{Current: string(a.Status), Attempted: "start"}
	}

	cfg, err := s.configs.Get(ctx, a.ConfigID)
	if err != nil {
		return attempt.Attempt{}, err
	}

	from := a.Status
	now := s.now()
	if a.StartedAt == 0 {
		a.StartedAt = now.Unix()
		a.ExpiresAt = now.Add(time.Duration(cfg.TotalTimeLimitSec) * time.Second).Unix()
	}
	if from == attempt.StatusPaused {
		return s.resume(ctx, a, now)
	}
	a.Status = attempt.StatusInProgress
	return s.update(ctx, a, from, "start")
}

func (s *Service) SubmitAnswer(ctx context.Context, userID, attemptID, questionID, answer string, timeSpentSec int, flagged bool) error {
	if timeSpentSec < 0 || timeSpentSec > maxAnswerSeconds {
		return &faults.ValidationError{Field: "time_spent_seconds", Reason: "out of range"}
	}
	a, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return err
	}
	if err := s.expireIfDue(ctx, &a); err != nil {
		return err
	}
	if a.Status != attempt.StatusInProgress {
		return &faults.InvalidTransitionError{Current: string(a.Status), Attempted: "submit answer"}
	}
	section, ok := a.SectionOf(questionID)
	if !ok {
		return &faults.NotFoundError{Resource: "question in attempt", ID: questionID}
	}

	item, err := s.items.GetItem(ctx, questionID)
	if err != nil {
		return err
	}
	cfg, err := s.configs.Get(ctx, a.ConfigID)
	if err != nil {
		return err
	}

	canonical := answer
	if cfg.Rules.ShuffleOptions {
		perm := attempt.OptionPermutation(a.ID, questionID, len(item.Choices))
		canonical = attempt.CanonicalLetter(perm, answer)
	}
	if !validChoice(item, canonical) {
		return &faults.ValidationError{Field: "answer", Reason: "not one of the presented options"}
	}

	a.UpsertAnswer(attempt.Answer{
		QuestionID:   questionID,
		Section:      section,
		Selected:     canonical,
		Correct:      canonical == item.CorrectChoice,
		TimeSpentSec: timeSpentSec,
		Flagged:      flagged,
		SubmittedAt:  s.now().Unix(),
	})
	// Exam-context exposures are deferred to completion so mid-session
	// submissions never skew calibration.
	_, err = s.update(ctx, a, attempt.StatusInProgress, "submit answer")
	return err
}

func (s *Service) PauseExam(ctx context.Context, userID, attemptID string) (attempt.Attempt, error) {
	a, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return attempt.Attempt{}, err
	}
	if err := s.expireIfDue(ctx, &a); err != nil {
		return attempt.Attempt{}, err
	}
	if a.Status != attempt.StatusInProgress {
		return attempt.Attempt{}, &faults.InvalidTransitionError{Current: string(a.Status), Attempted: "pause"}
	}
	cfg, err := s.configs.Get(ctx, a.ConfigID)
	if err != nil {
		return attempt.Attempt{}, err
	}
	if !cfg.Rules.AllowPause {
		return attempt.Attempt{}, &faults.ValidationError{Field: "pause", Reason: "this exam format does not allow pausing"}
	}
	a.Status = attempt.StatusPaused
	a.PausedAt = s.now().Unix()
	return s.update(ctx, a, attempt.StatusInProgress, "pause")
}

func (s *Service) ResumeExam(ctx context.Context, userID, attemptID string) (attempt.Attempt, error) {
	a, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return attempt.Attempt{}, err
	}
	if a.Status != attempt.StatusPaused {
		return attempt.Attempt{}, &faults.InvalidTransitionError{Current: string(a.Status), Attempted: "resume"}
	}
	return s.resume(ctx, a, s.now())
}

// resume enforces the pause budget: a pause longer than maxPause expires the
// attempt rather than silently preserving the gap. Otherwise the paused span
// is added to totalPausedSec and the deadline shifts by the same amount so
// the exam clock stops while paused.
func (s *Service) resume(ctx context.Context, a attempt.Attempt, now time.Time) (attempt.Attempt, error) {
	pausedFor := now.Unix() - a.PausedAt
	if pausedFor < 0 {
		pausedFor = 0
	}
	if time.Duration(pausedFor)*time.Second > s.maxPause {
		expired := a
		expired.Status = attempt.StatusExpired
		if _, err := s.update(ctx, expired, attempt.StatusPaused, "expire"); err != nil {
			return attempt.Attempt{}, err
		}
		return attempt.Attempt{}, &faults.ExpiredAttemptError{AttemptID: a.ID, ExpiredAt: now}
	}
	a.TotalPausedSec += pausedFor
	a.ExpiresAt += pausedFor
	a.PausedAt = 0
	a.Status = attempt.StatusInProgress
	return s.update(ctx, a, attempt.StatusPaused, "resume")
}

func (s *Service) CompleteExam(ctx context.Context, userID, attemptID string) (attempt.Attempt, error) {
	a, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return attempt.Attempt{}, err
	}
	if err := s.expireIfDue(ctx, &a); err != nil {
		return attempt.Attempt{}, err
	}
	// Paused attempts may be force-completed; anything else off-graph fails.
	if a.Status != attempt.StatusInProgress && a.Status != attempt.StatusPaused {
		return attempt.Attempt{}, &faults.InvalidTransitionError{Current: string(a.Status), Attempted: "complete"}
	}
	from := a.Status

	now := s.now()
	result := scoring.Score(s.tally(a), now.Unix())
	a.Result = &result
	a.CompletedAt = now.Unix()
	a.Status = attempt.StatusCompleted

	a, err = s.update(ctx, a, from, "complete")
	if err != nil {
		return attempt.Attempt{}, err
	}

	// Post-completion projections are best-effort: the stored Result is the
	// source of truth and failures here must not fail the call.
	s.afterCompletion(ctx, a, result)
	return a, nil
}

// AbandonExam ends an attempt without scoring it. No result is computed and
// no exposures are queued.
func (s *Service) AbandonExam(ctx context.Context, userID, attemptID string) (attempt.Attempt, error) {
	a, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return attempt.Attempt{}, err
	}
	if a.Status.Terminal() {
		return attempt.Attempt{}, &faults.InvalidTransitionError{Current: string(a.Status), Attempted: "abandon"}
	}
	from := a.Status
	a.Status = attempt.StatusAbandoned
	return s.update(ctx, a, from, "abandon")
}

func (s *Service) GetResult(ctx context.Context, userID, attemptID string) (attempt.Result, error) {
	a, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return attempt.Result{}, err
	}
	// Lazy expiry may auto-submit the attempt, in which case the result it
	// produced is readable right away.
	if expErr := s.expireIfDue(ctx, &a); expErr != nil && !faults.IsExpired(expErr) {
		return attempt.Result{}, expErr
	}
	if a.Status != attempt.StatusCompleted || a.Result == nil {
		return attempt.Result{}, &faults.InvalidTransitionError{Current: string(a.Status), Attempted: "read result"}
	}
	return *a.Result, nil
}

func (s *Service) ReportActivity(ctx context.Context, userID, attemptID string, kind attempt.ActivityKind) error {
	if kind != attempt.ActivityTabSwitch && kind != attempt.ActivityFullscreenExit {
		return &faults.ValidationError{Field: "type", Reason: "unknown activity type"}
	}
	a, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return err
	}
	if a.Status.Terminal() {
		return &faults.InvalidTransitionError{Current: string(a.Status), Attempted: "report activity"}
	}
	from := a.Status
	a.RecordActivity(kind)
	_, err = s.update(ctx, a, from, "report activity")
	return err
}

func (s *Service) GetAttempt(ctx context.Context, userID, attemptID string) (attempt.Attempt, error) {
	a, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return attempt.Attempt{}, err
	}
	// Surface expiry on read, but a terminal read is not an error.
	if expErr := s.expireIfDue(ctx, &a); expErr != nil {
		if refreshed, err := s.attempts.Get(ctx, attemptID); err == nil {
			return refreshed, nil
		}
	}
	return a, nil
}

/* ------------------------------ questions ------------------------------- */

// ExamQuestion is the student-safe projection of one item: option order per
// the attempt's permutation, correct answer stripped.
type ExamQuestion struct {
	ID       string            `json:"id"`
	Section  itembank.Section  `json:"section"`
	Topic    string            `json:"topic,omitempty"`
	Prompt   string            `json:"prompt"`
	Choices  []itembank.Choice `json:"choices"`
	Answered bool              `json:"answered"`
	Flagged  bool              `json:"flagged,omitempty"`
}

type ExamView struct {
	Config    examconfig.Config `json:"config"`
	Questions []ExamQuestion    `json:"questions"`
}

func (s *Service) GetExamQuestions(ctx context.Context, userID, attemptID string) (ExamView, error) {
	a, err := s.load(ctx, userID, attemptID)
	if err != nil {
		return ExamView{}, err
	}
	if err := s.expireIfDue(ctx, &a); err != nil {
		return ExamView{}, err
	}
	cfg, err := s.configs.Get(ctx, a.ConfigID)
	if err != nil {
		return ExamView{}, err
	}

	view := ExamView{Config: cfg}
	for _, snap := range a.Sections {
		items, err := s.items.GetItems(ctx, snap.QuestionIDs)
		if err != nil {
			return ExamView{}, err
		}
		for _, it := range items {
			q := ExamQuestion{
				ID:      it.ID,
				Section: it.Section,
				Topic:   it.Topic,
				Prompt:  it.Prompt,
				Choices: presentChoices(a.ID, it, cfg.Rules.ShuffleOptions),
			}
			if ans, ok := a.AnswerFor(it.ID); ok {
				q.Answered = true
				q.Flagged = ans.Flagged
			}
			view.Questions = append(view.Questions, q)
		}
	}
	return view, nil
}

// presentChoices re-letters options through the attempt's permutation without
// touching the canonical record, so grading stays unambiguous.
func presentChoices(attemptID string, it itembank.Item, shuffle bool) []itembank.Choice {
	if !shuffle {
		out := make([]itembank.Choice, len(it.Choices))
		copy(out, it.Choices)
		return out
	}
	perm := attempt.OptionPermutation(attemptID, it.ID, len(it.Choices))
	out := make([]itembank.Choice, len(it.Choices))
	for presented, canonical := range perm {
		out[presented] = itembank.Choice{
			Key:  string(rune('A' + presented)),
			Text: it.Choices[canonical].Text,
		}
	}
	return out
}

/* ------------------------------- practice ------------------------------- */

// PracticeQuestion is the single-item adaptive mode's payload.
type PracticeQuestion struct {
	ID      string            `json:"id"`
	Section itembank.Section  `json:"section"`
	Topic   string            `json:"topic,omitempty"`
	Prompt  string            `json:"prompt"`
	Choices []itembank.Choice `json:"choices"`
}

type PracticeOutcome struct {
	Correct       bool    `json:"correct"`
	CorrectChoice string  `json:"correct_choice"`
	Ability       float64 `json:"ability"`
}

func (s *Service) NextPracticeQuestion(ctx context.Context, userID string, section itembank.Section) (PracticeQuestion, error) {
	if !itembank.ValidSection(section) {
		return PracticeQuestion{}, &faults.ValidationError{Field: "section", Reason: "unknown section"}
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return PracticeQuestion{}, err
	}
	it, err := s.sel.NextItem(ctx, section, profile.AbilityFor(section), profile.RecentItemIDs(practiceRecencyWindow))
	if err != nil {
		return PracticeQuestion{}, err
	}
	return PracticeQuestion{
		ID: it.ID, Section: it.Section, Topic: it.Topic, Prompt: it.Prompt,
		Choices: append([]itembank.Choice(nil), it.Choices...),
	}, nil
}

// SubmitPracticeAnswer grades one standalone practice response. Unlike exam
// submissions, the exposure feeds calibration immediately; a storage failure
// falls back onto the deferred queue.
func (s *Service) SubmitPracticeAnswer(ctx context.Context, userID, itemID, answer string, timeSpentSec int) (PracticeOutcome, error) {
	if timeSpentSec < 0 || timeSpentSec > maxAnswerSeconds {
		return PracticeOutcome{}, &faults.ValidationError{Field: "time_spent_seconds", Reason: "out of range"}
	}
	it, err := s.items.GetItem(ctx, itemID)
	if err != nil {
		return PracticeOutcome{}, err
	}
	if !validChoice(it, answer) {
		return PracticeOutcome{}, &faults.ValidationError{Field: "answer", Reason: "not one of the presented options"}
	}
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		return PracticeOutcome{}, err
	}

	correct := answer == it.CorrectChoice
	observer := observerScore(profile.Overall)
	if err := s.items.RecordExposure(ctx, itemID, correct, timeSpentSec, observer); err != nil {
		s.logger.Printf("practice exposure for item %s deferred: %v", itemID, err)
		exposure := []calibration.Exposure{{ItemID: itemID, Correct: correct, TimeSpentSec: timeSpentSec, ObserverScore: observer}}
		if qErr := s.queue.Enqueue(ctx, "practice:"+userID, exposure); qErr != nil {
			s.logger.Printf("practice exposure enqueue failed: %v", qErr)
		}
	}

	theta := nudgeAbility(profile.AbilityFor(it.Section), it.Stats, correct)
	profile.SetAbility(it.Section, theta)
	profile.SetOverall(meanSectionAbility(profile))
	profile.Record(ability.Entry{
		ItemID: itemID, Section: it.Section, Topic: it.Topic,
		Correct: correct, TimeSpentSec: timeSpentSec, RecordedAt: s.now().Unix(),
	})
	if err := s.profiles.Put(ctx, profile); err != nil {
		return PracticeOutcome{}, err
	}
	return PracticeOutcome{Correct: correct, CorrectChoice: it.CorrectChoice, Ability: theta}, nil
}

func (s *Service) GetProfile(ctx context.Context, userID string) (ability.Profile, error) {
	return s.profiles.Get(ctx, userID)
}

/* ------------------------------ item admin ------------------------------ */

func (s *Service) CreateItem(ctx context.Context, it itembank.Item) (itembank.Item, error) {
	if !itembank.ValidSection(it.Section) {
		return itembank.Item{}, &faults.ValidationError{Field: "section", Reason: "unknown section"}
	}
	if !itembank.ValidLevel(it.Level) {
		return itembank.Item{}, &faults.ValidationError{Field: "level", Reason: "unknown level"}
	}
	if len(it.Choices) < 2 {
		return itembank.Item{}, &faults.ValidationError{Field: "choices", Reason: "need at least two options"}
	}
	// The option permutation translates letters by slice position, so keys
	// must be the positional letters or shuffled grading would resolve the
	// wrong canonical choice.
	for i, c := range it.Choices {
		if c.Key != string(rune('A'+i)) {
			return itembank.Item{}, &faults.ValidationError{Field: "choices", Reason: "keys must be sequential letters starting at A"}
		}
	}
	if !validChoice(it, it.CorrectChoice) {
		return itembank.Item{}, &faults.ValidationError{Field: "correct_choice", Reason: "must match one of the options"}
	}
	if it.ID == "" {
		it.ID = uuid.NewString()
	}
	if it.Status == "" {
		it.Status = itembank.StatusDraft
	}
	if it.Stats.Guessing == 0 {
		it.Stats.Guessing = 1 / float64(len(it.Choices))
		if it.Stats.Guessing > 0.25 {
			it.Stats.Guessing = 0.25
		}
	}
	it.Stats.Difficulty = it.Level.NominalDifficulty()
	it.CreatedAt = s.now().Unix()
	if err := s.items.PutItem(ctx, it); err != nil {
		return itembank.Item{}, err
	}
	return it, nil
}

/* ------------------------------- internals ------------------------------ */

func (s *Service) load(ctx context.Context, userID, attemptID string) (attempt.Attempt, error) {
	a, err := s.attempts.Get(ctx, attemptID)
	if err != nil {
		return attempt.Attempt{}, err
	}
	// Ownership is an invariant, not a transport concern.
	if a.UserID != userID {
		return attempt.Attempt{}, &faults.AuthorizationError{UserID: userID, Resource: "attempt " + attemptID}
	}
	return a, nil
}

// expireIfDue applies lazy expiry: past expiresAt a non-terminal attempt is
// CAS-transitioned to Expired and the access fails with ExpiredAttempt.
// Paused attempts are exempt here; the pause budget is enforced on resume.
// Configs with AutoSubmit score the answers submitted so far instead of
// discarding them: the attempt lands in Completed as if the student had
// submitted at the deadline, and the triggering access still fails expired.
func (s *Service) expireIfDue(ctx context.Context, a *attempt.Attempt) error {
	if a.Status.Terminal() || a.Status == attempt.StatusPaused {
		return nil
	}
	now := s.now()
	if now.Unix() <= a.ExpiresAt {
		return nil
	}
	from := a.Status
	if from == attempt.StatusInProgress {
		if cfg, err := s.configs.Get(ctx, a.ConfigID); err == nil && cfg.Rules.AutoSubmit {
			final := *a
			result := scoring.Score(s.tally(final), a.ExpiresAt)
			final.Result = &result
			final.CompletedAt = a.ExpiresAt
			final.Status = attempt.StatusCompleted
			if err := s.attempts.UpdateIf(ctx, final, from); err == nil {
				s.afterCompletion(ctx, final, result)
			} else if !errors.Is(err, attempt.ErrConflict) {
				return err
			}
			*a = final
			return &faults.ExpiredAttemptError{AttemptID: a.ID, ExpiredAt: time.Unix(a.ExpiresAt, 0)}
		}
	}
	expired := *a
	expired.Status = attempt.StatusExpired
	if err := s.attempts.UpdateIf(ctx, expired, from); err != nil && !errors.Is(err, attempt.ErrConflict) {
		return err
	}
	*a = expired
	return &faults.ExpiredAttemptError{AttemptID: a.ID, ExpiredAt: time.Unix(a.ExpiresAt, 0)}
}

// update persists a transition as a compare-and-set; a lost race is reported
// as an invalid transition from the state that actually won.
func (s *Service) update(ctx context.Context, a attempt.Attempt, expect attempt.Status, op string) (attempt.Attempt, error) {
	if a.Status != expect && !attempt.CanTransition(expect, a.Status) {
		return attempt.Attempt{}, &faults.InvalidTransitionError{Current: string(expect), Attempted: op}
	}
	err := s.attempts.UpdateIf(ctx, a, expect)
	if err == nil {
		return a, nil
	}
	if errors.Is(err, attempt.ErrConflict) {
		current, gErr := s.attempts.Get(ctx, a.ID)
		if gErr != nil {
			return attempt.Attempt{}, gErr
		}
		return attempt.Attempt{}, &faults.InvalidTransitionError{Current: string(current.Status), Attempted: op}
	}
	return attempt.Attempt{}, err
}

func (s *Service) tally(a attempt.Attempt) []scoring.SectionOutcome {
	outcomes := make([]scoring.SectionOutcome, 0, len(a.Sections))
	for _, snap := range a.Sections {
		o := scoring.SectionOutcome{Section: snap.Section, Total: len(snap.QuestionIDs)}
		for _, qid := range snap.QuestionIDs {
			if ans, ok := a.AnswerFor(qid); ok {
				if ans.Correct {
					o.Correct++
				}
				o.TimeSpentSec += ans.TimeSpentSec
			}
		}
		outcomes = append(outcomes, o)
	}
	return outcomes
}

// afterCompletion updates the learner profile, the config aggregates, and
// enqueues the deferred calibration exposures. Everything here is logged on
// failure and never propagated.
func (s *Service) afterCompletion(ctx context.Context, a attempt.Attempt, result attempt.Result) {
	profile, err := s.profiles.Get(ctx, a.UserID)
	if err != nil {
		s.logger.Printf("attempt %s: load profile: %v", a.ID, err)
	} else {
		profile.SetOverall(result.Ability)
		for _, sr := range result.Sections {
			profile.SetAbility(sr.Section, sectionTheta(sr.Score))
		}
		entries := make([]ability.Entry, 0, len(a.Answers))
		for _, ans := range a.Answers {
			topic := ""
			if it, iErr := s.items.GetItem(ctx, ans.QuestionID); iErr == nil {
				topic = it.Topic
			}
			entries = append(entries, ability.Entry{
				ItemID: ans.QuestionID, Section: ans.Section, Topic: topic,
				Correct: ans.Correct, TimeSpentSec: ans.TimeSpentSec, RecordedAt: a.CompletedAt,
			})
		}
		profile.Record(entries...)
		if err := s.profiles.Put(ctx, profile); err != nil {
			s.logger.Printf("attempt %s: save profile: %v", a.ID, err)
		}
	}

	exposures := make([]calibration.Exposure, 0, len(a.Answers))
	for _, ans := range a.Answers {
		exposures = append(exposures, calibration.Exposure{
			ItemID: ans.QuestionID, Correct: ans.Correct,
			TimeSpentSec: ans.TimeSpentSec, ObserverScore: result.TotalScore,
		})
	}
	if len(exposures) > 0 {
		if err := s.queue.Enqueue(ctx, a.ID, exposures); err != nil {
			s.logger.Printf("attempt %s: enqueue calibration: %v", a.ID, err)
		}
	}

	duration := int(a.CompletedAt - a.StartedAt - a.TotalPausedSec)
	if duration < 0 {
		duration = 0
	}
	if err := s.configs.RecordUsage(ctx, a.ConfigID, result.TotalScore, duration); err != nil {
		s.logger.Printf("attempt %s: record config usage: %v", a.ID, err)
	}
}

func validChoice(it itembank.Item, letter string) bool {
	for _, c := range it.Choices {
		if c.Key == letter {
			return true
		}
	}
	return false
}

// sectionTheta is the per-section analogue of the linear total-score mapping:
// 75/150 is the midpoint, 25 points per logit.
func sectionTheta(score int) float64 {
	theta := (float64(score) - 75) / 25
	if theta < -3 {
		return -3
	}
	if theta > 3 {
		return 3
	}
	return theta
}

// observerScore projects an ability estimate back onto the score scale for
// bucketing practice exposures.
func observerScore(theta float64) int {
	return int(math.Round(300 + 100*theta))
}

// nudgeAbility moves the estimate toward the observed outcome, scaled by how
// surprising the outcome was under the 3PL model.
func nudgeAbility(theta float64, st itembank.Stats, correct bool) float64 {
	a := st.Discrimination
	if a <= 0 {
		a = 1
	}
	p := st.Guessing + (1-st.Guessing)/(1+math.Exp(-1.7*a*(theta-st.Difficulty)))
	outcome := 0.0
	if correct {
		outcome = 1.0
	}
	return theta + practiceK*(outcome-p)
}

func meanSectionAbility(p ability.Profile) float64 {
	if len(p.Sections) == 0 {
		return p.Overall
	}
	var sum float64
	for _, v := range p.Sections {
		sum += v
	}
	return sum / float64(len(p.Sections))
}
