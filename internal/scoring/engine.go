// Package scoring turns a completed attempt's answers into a Result.
//
// finalAbility uses the documented linear mapping (totalScore-300)/100 rather
// than a maximum-likelihood re-estimation over the administered items'
// parameters; the IRT parameters drive calibration and selection only.
package scoring

import (
	"fmt"
	"math"

	"github.com/linguaprep/assessment-engine/internal/attempt"
	"github.com/linguaprep/assessment-engine/internal/itembank"
)

const (
	maxSectionScore = 150

	strengthAccuracy = 80 // percent, inclusive
	weaknessAccuracy = 60 // percent, exclusive upper bound
)

// SectionOutcome is the raw tally for one section.
type SectionOutcome struct {
	Section      itembank.Section
	Correct      int
	Total        int
	TimeSpentSec int
}

// Score computes the full Result from per-section tallies.
func Score(outcomes []SectionOutcome, completedAt int64) attempt.Result {
	res := attempt.Result{CompletedAt: completedAt}

	for _, o := range outcomes {
		sr := attempt.SectionResult{
			Section:      o.Section,
			Correct:      o.Correct,
			Total:        o.Total,
			TimeSpentSec: o.TimeSpentSec,
		}
		if o.Total > 0 {
			sr.Accuracy = float64(o.Correct) / float64(o.Total) * 100
		}
		sr.Score = int(math.Round(sr.Accuracy / 100 * maxSectionScore))
		res.Sections = append(res.Sections, sr)
		res.TotalScore += sr.Score

		if sr.Accuracy >= strengthAccuracy {
			res.Strengths = append(res.Strengths, attempt.Judgement{Section: o.Section, Accuracy: sr.Accuracy})
		} else if sr.Accuracy < weaknessAccuracy {
			res.Weaknesses = append(res.Weaknesses, attempt.Judgement{Section: o.Section, Accuracy: sr.Accuracy})
		}
	}

	res.Ability = Ability(res.TotalScore)
	res.Level = LevelLabel(res.TotalScore)
	res.Recommendations = recommendations(res)
	return res
}

// Ability is the documented linear score→theta approximation, bounded to [-3,3].
func Ability(totalScore int) float64 {
	theta := (float64(totalScore) - 300) / 100
	if theta < -3 {
		return -3
	}
	if theta > 3 {
		return 3
	}
	return theta
}

// LevelLabel discretizes the total score with the fixed 200/300/400/500 cuts.
func LevelLabel(totalScore int) string {
	switch {
	case totalScore <= 200:
		return "beginner"
	case totalScore <= 300:
		return "elementary"
	case totalScore <= 400:
		return "intermediate"
	case totalScore <= 500:
		return "advanced"
	default:
		return "proficient"
	}
}

func recommendations(res attempt.Result) []string {
	var recs []string
	for _, w := range res.Weaknesses {
		recs = append(recs, fmt.Sprintf("Prioritize %s drills: accuracy was %.0f%%, below the %d%% mark.",
			w.Section, w.Accuracy, weaknessAccuracy))
	}
	if res.TotalScore < 400 {
		recs = append(recs, "Schedule full-length timed simulations to build score above 400.")
	}
	recs = append(recs, "Keep a consistent daily practice routine; short regular sessions beat cramming.")
	return recs
}
