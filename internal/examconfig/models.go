// Package examconfig defines reusable exam templates: section composition,
// timing, and presentation rules. Configs are immutable blueprints; only the
// aggregate usage counters change after creation.
package examconfig

import (
	"time"

	"github.com/google/uuid"

	"github.com/linguaprep/assessment-engine/internal/itembank"
)

type SectionSpec struct {
	Section       itembank.Section `json:"section"`
	QuestionCount int              `json:"question_count"`
	TimeLimitSec  int              `json:"time_limit_sec"`
}

type Rules struct {
	AllowPause       bool `json:"allow_pause"`
	ShuffleQuestions bool `json:"shuffle_questions"`
	ShuffleOptions   bool `json:"shuffle_options"`
	AutoSubmit       bool `json:"auto_submit"`
	OfficialFormat   bool `json:"official_format"`
}

type Config struct {
	ID                string         `json:"id"`
	Name              string         `json:"name"`
	Sections          []SectionSpec  `json:"sections"`
	TotalTimeLimitSec int            `json:"total_time_limit_sec"`
	Rules             Rules          `json:"rules"`
	Difficulty        itembank.Level `json:"difficulty,omitempty"` // target band override; empty means adapt to the learner

	// Aggregates, maintained by RecordUsage.
	UsageCount     int     `json:"usage_count"`
	AvgScore       float64 `json:"avg_score"`
	AvgDurationSec float64 `json:"avg_duration_sec"`

	CreatedAt int64 `json:"created_at"`
}

// Official builds the full four-section simulation template in the official
// format: fixed section order, no pausing, auto-submit on expiry.
func Official(difficulty itembank.Level) Config {
	const perSection = 20
	const perSectionTime = 30 * 60
	sections := make([]SectionSpec, 0, len(itembank.Sections))
	for _, s := range itembank.Sections {
		sections = append(sections, SectionSpec{Section: s, QuestionCount: perSection, TimeLimitSec: perSectionTime})
	}
	return Config{
		ID:                uuid.NewString(),
		Name:              "official simulation",
		Sections:          sections,
		TotalTimeLimitSec: perSectionTime * len(sections),
		Rules: Rules{
			AllowPause:       false,
			ShuffleQuestions: true,
			ShuffleOptions:   true,
			AutoSubmit:       true,
			OfficialFormat:   true,
		},
		Difficulty: difficulty,
		CreatedAt:  time.Now().Unix(),
	}
}

// MicroLearning builds a short timed session sized to the requested duration,
// roughly one question per minute. With no section it rotates through all
// four, weighting the count evenly.
func MicroLearning(durationMinutes int, section *itembank.Section) Config {
	total := durationMinutes
	if total < 1 {
		total = 1
	}
	var sections []SectionSpec
	if section != nil {
		sections = []SectionSpec{{Section: *section, QuestionCount: total, TimeLimitSec: durationMinutes * 60}}
	} else {
		per := total / len(itembank.Sections)
		if per < 1 {
			per = 1
		}
		for _, s := range itembank.Sections {
			sections = append(sections, SectionSpec{Section: s, QuestionCount: per, TimeLimitSec: durationMinutes * 60 / len(itembank.Sections)})
		}
	}
	return Config{
		ID:                uuid.NewString(),
		Name:              "micro learning",
		Sections:          sections,
		TotalTimeLimitSec: durationMinutes * 60,
		Rules: Rules{
			AllowPause:       true,
			ShuffleQuestions: true,
			ShuffleOptions:   true,
		},
		CreatedAt: time.Now().Unix(),
	}
}

// SectionPractice builds a single-section drill at a fixed difficulty band.
func SectionPractice(section itembank.Section, questionCount int, difficulty itembank.Level) Config {
	const secPerQuestion = 90
	return Config{
		ID:                uuid.NewString(),
		Name:              "section practice",
		Sections:          []SectionSpec{{Section: section, QuestionCount: questionCount, TimeLimitSec: questionCount * secPerQuestion}},
		TotalTimeLimitSec: questionCount * secPerQuestion,
		Rules: Rules{
			AllowPause:       true,
			ShuffleQuestions: true,
			ShuffleOptions:   true,
		},
		Difficulty: difficulty,
		CreatedAt:  time.Now().Unix(),
	}
}
