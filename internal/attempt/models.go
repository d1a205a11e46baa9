// Package attempt holds the exam-attempt aggregate and its state machine.
package attempt

import (
	"github.com/linguaprep/assessment-engine/internal/itembank"
)

type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusPaused     Status = "paused"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
	StatusExpired    Status = "expired"
)

func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusAbandoned, StatusExpired:
		return true
	}
	return false
}

// Anti-cheat thresholds: once crossed, suspiciousActivity latches on and is
// never cleared for the rest of the attempt.
const (
	maxTabSwitches     = 5
	maxFullscreenExits = 3
)

type ActivityKind string

const (
	ActivityTabSwitch      ActivityKind = "tab_switch"
	ActivityFullscreenExit ActivityKind = "fullscreen_exit"
)

// Answer is the value record for one question. At most one live answer per
// question per attempt; resubmission overwrites.
type Answer struct {
	QuestionID   string           `json:"question_id"`
	Section      itembank.Section `json:"section"`
	Selected     string           `json:"selected"` // canonical letter
	Correct      bool             `json:"correct"`
	TimeSpentSec int              `json:"time_spent_sec"`
	Flagged      bool             `json:"flagged,omitempty"` // marked for review
	SubmittedAt  int64            `json:"submitted_at"`
}

// SectionSnapshot freezes the question-id list of one section at creation
// time. Later config edits never reach an in-flight attempt.
type SectionSnapshot struct {
	Section      itembank.Section `json:"section"`
	QuestionIDs  []string         `json:"question_ids"`
	TimeLimitSec int              `json:"time_limit_sec"`
}

type SectionResult struct {
	Section      itembank.Section `json:"section"`
	Correct      int              `json:"correct"`
	Total        int              `json:"total"`
	Accuracy     float64          `json:"accuracy"` // percent
	Score        int              `json:"score"`    // [0,150]
	TimeSpentSec int              `json:"time_spent_sec"`
}

// Judgement is one strength or weakness entry with its measured accuracy.
type Judgement struct {
	Section  itembank.Section `json:"section"`
	Accuracy float64          `json:"accuracy"`
}

type Result struct {
	Sections        []SectionResult `json:"sections"`
	TotalScore      int             `json:"total_score"` // [0,600]
	Ability         float64         `json:"ability"`     // derived, [-3,3]
	Level           string          `json:"level"`
	Strengths       []Judgement     `json:"strengths,omitempty"`
	Weaknesses      []Judgement     `json:"weaknesses,omitempty"`
	Recommendations []string        `json:"recommendations,omitempty"`
	CompletedAt     int64           `json:"completed_at"`
}

// Attempt is one exam instance for one user. Owned exclusively by that user;
// mutated only through the state machine; never deleted, only transitioned.
type Attempt struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	ConfigID string `json:"config_id"`
	Mode     string `json:"mode"` // official|micro|practice

	Sections []SectionSnapshot `json:"sections"`
	Answers  []Answer          `json:"answers,omitempty"`

	Status Status `json:"status"`

	CreatedAt   int64 `json:"created_at"`
	StartedAt   int64 `json:"started_at,omitempty"`
	PausedAt    int64 `json:"paused_at,omitempty"`
	CompletedAt int64 `json:"completed_at,omitempty"`
	ExpiresAt   int64 `json:"expires_at"`

	TotalPausedSec int64 `json:"total_paused_sec"`

	TabSwitches        int  `json:"tab_switches"`
	FullscreenExits    int  `json:"fullscreen_exits"`
	SuspiciousActivity bool `json:"suspicious_activity"`

	Result *Result `json:"result,omitempty"`

	// answerIdx maps question id to its slot in Answers. Rebuilt on load;
	// kept off the wire.
	answerIdx map[string]int
}

// UpsertAnswer inserts or overwrites the answer for its question id.
func (a *Attempt) UpsertAnswer(ans Answer) {
	a.ensureIndex()
	if i, ok := a.answerIdx[ans.QuestionID]; ok {
		a.Answers[i] = ans
		return
	}
	a.answerIdx[ans.QuestionID] = len(a.Answers)
	a.Answers = append(a.Answers, ans)
}

// AnswerFor returns the live answer for a question, if any.
func (a *Attempt) AnswerFor(questionID string) (Answer, bool) {
	a.ensureIndex()
	i, ok := a.answerIdx[questionID]
	if !ok {
		return Answer{}, false
	}
	return a.Answers[i], true
}

// SectionOf locates the snapshot section containing the question id.
func (a *Attempt) SectionOf(questionID string) (itembank.Section, bool) {
	for _, s := range a.Sections {
		for _, qid := range s.QuestionIDs {
			if qid == questionID {
				return s.Section, true
			}
		}
	}
	return "", false
}

// QuestionCount is the total snapshot size across sections.
func (a *Attempt) QuestionCount() int {
	n := 0
	for _, s := range a.Sections {
		n += len(s.QuestionIDs)
	}
	return n
}

// RecordActivity bumps the anti-cheat counter for kind and latches
// suspiciousActivity once a threshold is crossed.
func (a *Attempt) RecordActivity(kind ActivityKind) {
	switch kind {
	case ActivityTabSwitch:
		a.TabSwitches++
	case ActivityFullscreenExit:
		a.FullscreenExits++
	}
	if a.TabSwitches >= maxTabSwitches || a.FullscreenExits >= maxFullscreenExits {
		a.SuspiciousActivity = true
	}
}

func (a *Attempt) ensureIndex() {
	if a.answerIdx != nil {
		return
	}
	a.answerIdx = make(map[string]int, len(a.Answers))
	for i, ans := range a.Answers {
		a.answerIdx[ans.QuestionID] = i
	}
}
