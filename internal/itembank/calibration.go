package itembank

import "math"

// minExposures is the number of live exposures below which an item keeps its
// authored nominal difficulty: fewer observations carry too little signal.
const minExposures = 10

// minBucketsForDiscrimination is how many observer-score bands must have data
// before the spread between them says anything about discrimination.
const minBucketsForDiscrimination = 3

// ScoreBand buckets an observer's total score into the band key used by the
// per-ability correct-rate table: 0-200, 201-300, 301-400, 401-500, 501-600.
func ScoreBand(totalScore int) string {
	switch {
	case totalScore <= 200:
		return "0-200"
	case totalScore <= 300:
		return "201-300"
	case totalScore <= 400:
		return "301-400"
	case totalScore <= 500:
		return "401-500"
	default:
		return "501-600"
	}
}

// CalculateDifficulty derives the item difficulty b from observed outcomes.
// Below minExposures the authored level stands unchanged. Otherwise the
// guessing-adjusted log-odds of the observed correct rate is used:
//
//	b = -ln((p - c) / (1 - p))
//
// clamped to [-3,3]. When p sits at or below the guessing floor the item is
// treated as maximally hard; at p >= 1, maximally easy.
func (s Stats) CalculateDifficulty(authored Level) float64 {
	if s.ExposureCount < minExposures {
		return authored.NominalDifficulty()
	}
	p := float64(s.CorrectCount) / float64(s.ExposureCount)
	if p >= 1 {
		return -3
	}
	if p <= s.Guessing {
		return 3
	}
	b := -math.Log((p - s.Guessing) / (1 - p))
	return clamp(b, -3, 3)
}

// Apply folds one exposure into the statistics and recomputes the derived
// calibration fields. observerScore is the responder's most recent total
// score, used to key the correct-rate bucket.
func (s *Stats) Apply(correct bool, timeSpentSec, observerScore int, authored Level) {
	s.ExposureCount++
	if correct {
		s.CorrectCount++
	} else {
		s.IncorrectCount++
	}
	// running mean of response time
	s.AvgResponseSec += (float64(timeSpentSec) - s.AvgResponseSec) / float64(s.ExposureCount)

	if s.Buckets == nil {
		s.Buckets = map[string]Bucket{}
	}
	band := ScoreBand(observerScore)
	b := s.Buckets[band]
	b.Total++
	if correct {
		b.Correct++
	}
	s.Buckets[band] = b

	s.Recalibrate(authored)
}

// Recalibrate recomputes difficulty and discrimination from the current
// counters. Safe to call after storage-layer atomic increments.
func (s *Stats) Recalibrate(authored Level) {
	s.Difficulty = s.CalculateDifficulty(authored)
	if len(s.Buckets) >= minBucketsForDiscrimination {
		rates := make([]float64, 0, len(s.Buckets))
		for _, b := range s.Buckets {
			rates = append(rates, b.Rate())
		}
		s.Discrimination = math.Min(2, 2*variance(rates))
	}
}

// Information is the Fisher information of the 3PL model at ability theta.
// The single-item adaptive mode picks the unexposed item maximizing this.
func (s Stats) Information(theta float64) float64 {
	a := s.Discrimination
	if a <= 0 {
		a = 1 // uncalibrated items fall back to unit discrimination
	}
	c := s.Guessing
	d := 1.7 * a * (theta - s.Difficulty)
	p := c + (1-c)/(1+math.Exp(-d))
	if p <= 0 || p >= 1 {
		return 0
	}
	q := 1 - p
	return (1.7 * a) * (1.7 * a) * (q / p) * ((p - c) / (1 - c)) * ((p - c) / (1 - c))
}

func variance(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var mean float64
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))
	var v float64
	for _, x := range xs {
		v += (x - mean) * (x - mean)
	}
	return v / float64(len(xs))
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
