// Package ability maintains per-user ability estimates and the bounded
// performance history they are derived from.
package ability

import (
	"sort"

	"github.com/linguaprep/assessment-engine/internal/itembank"
)

// historyCap bounds the performance log; appending past it evicts the oldest
// entries.
const historyCap = 500

// Topic derivation defaults. A topic only qualifies once it has enough
// attempts to make the rate meaningful.
const (
	defaultMinTopicAttempts = 5
	defaultWeakThreshold    = 0.4 // error rate above this is weak
	defaultStrongThreshold  = 0.8 // success rate at or above this is strong
)

// Entry is one recorded response.
type Entry struct {
	ItemID       string           `json:"item_id"`
	Section      itembank.Section `json:"section"`
	Topic        string           `json:"topic,omitempty"`
	Correct      bool             `json:"correct"`
	TimeSpentSec int              `json:"time_spent_sec"`
	RecordedAt   int64            `json:"recorded_at"`
}

// TopicStat is one derived weak/strong topic with its measured rate.
type TopicStat struct {
	Topic    string  `json:"topic"`
	Rate     float64 `json:"rate"` // error rate for weak, success rate for strong
	Attempts int     `json:"attempts"`
}

// Profile is the per-user ability vector plus its supporting history.
// Ability values are bounded to [-3,3].
type Profile struct {
	UserID   string                       `json:"user_id"`
	Overall  float64                      `json:"overall"`
	Sections map[itembank.Section]float64 `json:"sections"`

	History      []Entry     `json:"history,omitempty"`
	WeakTopics   []TopicStat `json:"weak_topics,omitempty"`
	StrongTopics []TopicStat `json:"strong_topics,omitempty"`

	UpdatedAt int64 `json:"updated_at"`
}

func NewProfile(userID string) Profile {
	return Profile{UserID: userID, Sections: map[itembank.Section]float64{}}
}

// AbilityFor returns the section estimate, falling back to the overall one
// for sections with no history yet.
func (p *Profile) AbilityFor(section itembank.Section) float64 {
	if v, ok := p.Sections[section]; ok {
		return v
	}
	return p.Overall
}

// SetAbility clamps and stores a section estimate.
func (p *Profile) SetAbility(section itembank.Section, theta float64) {
	if p.Sections == nil {
		p.Sections = map[itembank.Section]float64{}
	}
	p.Sections[section] = clampTheta(theta)
}

// SetOverall clamps and stores the overall estimate.
func (p *Profile) SetOverall(theta float64) {
	p.Overall = clampTheta(theta)
}

// Record appends responses to the history, evicting the oldest past the cap,
// and recomputes the weak/strong topic lists from scratch. Lists are always
// rebuilt, never patched incrementally.
func (p *Profile) Record(entries ...Entry) {
	p.History = append(p.History, entries...)
	if over := len(p.History) - historyCap; over > 0 {
		p.History = append([]Entry(nil), p.History[over:]...)
	}
	p.recomputeTopics()
}

// RecentItemIDs returns ids of items answered within the last n history
// entries. The adaptive single-item mode uses this as its recency window.
func (p *Profile) RecentItemIDs(n int) map[string]bool {
	out := map[string]bool{}
	start := len(p.History) - n
	if start < 0 {
		start = 0
	}
	for _, e := range p.History[start:] {
		out[e.ItemID] = true
	}
	return out
}

func (p *Profile) recomputeTopics() {
	type agg struct{ attempts, errors int }
	byTopic := map[string]*agg{}
	for _, e := range p.History {
		if e.Topic == "" {
			continue
		}
		a := byTopic[e.Topic]
		if a == nil {
			a = &agg{}
			byTopic[e.Topic] = a
		}
		a.attempts++
		if !e.Correct {
			a.errors++
		}
	}

	p.WeakTopics = nil
	p.StrongTopics = nil
	for topic, a := range byTopic {
		if a.attempts < defaultMinTopicAttempts {
			continue
		}
		errRate := float64(a.errors) / float64(a.attempts)
		if errRate > defaultWeakThreshold {
			p.WeakTopics = append(p.WeakTopics, TopicStat{Topic: topic, Rate: errRate, Attempts: a.attempts})
		} else if 1-errRate >= defaultStrongThreshold {
			p.StrongTopics = append(p.StrongTopics, TopicStat{Topic: topic, Rate: 1 - errRate, Attempts: a.attempts})
		}
	}
	// Map iteration order leaks into the lists otherwise; serve them most
	// pronounced first.
	sortTopicStats(p.WeakTopics)
	sortTopicStats(p.StrongTopics)
}

func sortTopicStats(stats []TopicStat) {
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Rate != stats[j].Rate {
			return stats[i].Rate > stats[j].Rate
		}
		return stats[i].Topic < stats[j].Topic
	})
}

func clampTheta(theta float64) float64 {
	if theta < -3 {
		return -3
	}
	if theta > 3 {
		return 3
	}
	return theta
}
