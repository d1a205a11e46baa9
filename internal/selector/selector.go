// Package selector picks items from the bank matched to a learner's ability.
package selector

import (
	"context"
	"math/rand"

	"github.com/linguaprep/assessment-engine/internal/faults"
	"github.com/linguaprep/assessment-engine/internal/itembank"
)

// oversampleFactor: bulk selection draws this many times the requested count
// from the band, then samples back down, so repeated attempts do not see the
// same items in the same order.
const oversampleFactor = 2

// Selector chooses items for exam creation and for single-item practice.
type Selector struct {
	items itembank.Store
	rng   *rand.Rand
}

// New wires a selector over the item bank. rng may be nil, in which case the
// global source is used; tests inject a seeded one.
func New(items itembank.Store, rng *rand.Rand) *Selector {
	return &Selector{items: items, rng: rng}
}

// BandFor maps an ability estimate onto authored difficulty levels using the
// five fixed cut points.
func BandFor(theta float64) []itembank.Level {
	switch {
	case theta <= -1.5:
		return []itembank.Level{itembank.LevelVeryEasy, itembank.LevelEasy}
	case theta <= -0.5:
		return []itembank.Level{itembank.LevelEasy, itembank.LevelMedium}
	case theta <= 0.5:
		return []itembank.Level{itembank.LevelMedium}
	case theta <= 1.5:
		return []itembank.Level{itembank.LevelMedium, itembank.LevelHard}
	default:
		return []itembank.Level{itembank.LevelHard, itembank.LevelVeryHard}
	}
}

// Widen adds the levels adjacent to the band on the ordered scale. Calling it
// repeatedly converges on the full scale.
func Widen(levels []itembank.Level) []itembank.Level {
	in := map[itembank.Level]bool{}
	for _, l := range levels {
		in[l] = true
	}
	lo, hi := len(itembank.Levels), -1
	for i, l := range itembank.Levels {
		if in[l] {
			if i < lo {
				lo = i
			}
			if i > hi {
				hi = i
			}
		}
	}
	if hi < 0 {
		return levels
	}
	if lo > 0 {
		lo--
	}
	if hi < len(itembank.Levels)-1 {
		hi++
	}
	return append([]itembank.Level(nil), itembank.Levels[lo:hi+1]...)
}

// SelectForSection returns exactly count approved items for the section,
// matched to theta's band. If the band is short it widens to adjacent levels
// before failing; it never silently returns fewer items than requested.
func (s *Selector) SelectForSection(ctx context.Context, section itembank.Section, theta float64, count int) ([]itembank.Item, error) {
	if count <= 0 {
		return nil, &faults.ValidationError{Field: "question_count", Reason: "must be positive"}
	}

	levels := BandFor(theta)
	pool, err := s.items.ListApproved(ctx, section, levels)
	if err != nil {
		return nil, err
	}
	for len(pool) < count {
		widened := Widen(levels)
		if len(widened) == len(levels) {
			// full scale reached and still short
			return nil, &faults.CreationError{Section: string(section), Requested: count, Available: len(pool)}
		}
		levels = widened
		pool, err = s.items.ListApproved(ctx, section, levels)
		if err != nil {
			return nil, err
		}
	}

	// Oversample 2x, then sample without replacement down to count.
	s.shuffle(pool)
	sample := pool
	if n := oversampleFactor * count; len(sample) > n {
		sample = sample[:n]
	}
	s.shuffle(sample)
	return sample[:count], nil
}

// NextItem is the single-item adaptive mode: among approved items in the
// section not seen within the caller's recency window, it returns the one
// with the highest Fisher information at theta.
func (s *Selector) NextItem(ctx context.Context, section itembank.Section, theta float64, recent map[string]bool) (itembank.Item, error) {
	pool, err := s.items.ListApproved(ctx, section, nil)
	if err != nil {
		return itembank.Item{}, err
	}
	var best itembank.Item
	bestInfo := -1.0
	for _, it := range pool {
		if recent[it.ID] {
			continue
		}
		if info := it.Stats.Information(theta); info > bestInfo {
			best, bestInfo = it, info
		}
	}
	if bestInfo < 0 {
		return itembank.Item{}, &faults.CreationError{Section: string(section), Requested: 1, Available: 0}
	}
	return best, nil
}

func (s *Selector) shuffle(items []itembank.Item) {
	swap := func(i, j int) { items[i], items[j] = items[j], items[i] }
	if s.rng != nil {
		s.rng.Shuffle(len(items), swap)
		return
	}
	rand.Shuffle(len(items), swap)
}
