package scoring

import (
	"math"
	"testing"

	"github.com/linguaprep/assessment-engine/internal/itembank"
)

func TestScore_SingleSectionSeventyPercent(t *testing.T) {
	res := Score([]SectionOutcome{
		{Section: itembank.SectionGrammar, Correct: 7, Total: 10, TimeSpentSec: 400},
	}, 1234)

	if len(res.Sections) != 1 {
		t.Fatalf("expected one section result, got %d", len(res.Sections))
	}
	sr := res.Sections[0]
	if sr.Accuracy != 70 {
		t.Fatalf("expected accuracy 70, got %v", sr.Accuracy)
	}
	if sr.Score != 105 {
		t.Fatalf("expected score 105, got %d", sr.Score)
	}
	if res.TotalScore != 105 {
		t.Fatalf("expected total 105, got %d", res.TotalScore)
	}
	if res.CompletedAt != 1234 {
		t.Fatalf("completedAt not carried: %d", res.CompletedAt)
	}
}

func TestScore_TotalIsSumOfSectionsAndBounded(t *testing.T) {
	outcomes := []SectionOutcome{
		{Section: itembank.SectionListening, Correct: 20, Total: 20},
		{Section: itembank.SectionGrammar, Correct: 20, Total: 20},
		{Section: itembank.SectionReading, Correct: 20, Total: 20},
		{Section: itembank.SectionVocabulary, Correct: 20, Total: 20},
	}
	res := Score(outcomes, 0)
	sum := 0
	for _, sr := range res.Sections {
		if sr.Score < 0 || sr.Score > 150 {
			t.Fatalf("section score %d out of [0,150]", sr.Score)
		}
		sum += sr.Score
	}
	if res.TotalScore != sum {
		t.Fatalf("total %d != sum of sections %d", res.TotalScore, sum)
	}
	if res.TotalScore != 600 {
		t.Fatalf("perfect exam should score 600, got %d", res.TotalScore)
	}
	if res.Ability != 3 {
		t.Fatalf("perfect exam ability should be 3, got %v", res.Ability)
	}
}

func TestScore_EmptySections(t *testing.T) {
	res := Score([]SectionOutcome{{Section: itembank.SectionReading, Correct: 0, Total: 0}}, 0)
	if res.Sections[0].Score != 0 || res.TotalScore != 0 {
		t.Fatalf("empty section must score zero, got %+v", res.Sections[0])
	}
	if res.Ability != -3 {
		t.Fatalf("zero total should floor ability at -3, got %v", res.Ability)
	}
}

func TestAbility_LinearMapping(t *testing.T) {
	cases := map[int]float64{0: -3, 200: -1, 300: 0, 450: 1.5, 600: 3}
	for total, want := range cases {
		if got := Ability(total); math.Abs(got-want) > 1e-9 {
			t.Errorf("Ability(%d) = %v, want %v", total, got, want)
		}
	}
}

func TestLevelLabel_CutPoints(t *testing.T) {
	cases := map[int]string{
		0: "beginner", 200: "beginner",
		201: "elementary", 300: "elementary",
		301: "intermediate", 400: "intermediate",
		401: "advanced", 500: "advanced",
		501: "proficient", 600: "proficient",
	}
	for total, want := range cases {
		if got := LevelLabel(total); got != want {
			t.Errorf("LevelLabel(%d) = %q, want %q", total, got, want)
		}
	}
}

func TestScore_StrengthsWeaknessesAndRecommendations(t *testing.T) {
	res := Score([]SectionOutcome{
		{Section: itembank.SectionListening, Correct: 18, Total: 20}, // 90% strength
		{Section: itembank.SectionGrammar, Correct: 8, Total: 20},    // 40% weakness
		{Section: itembank.SectionReading, Correct: 14, Total: 20},   // 70% neither
	}, 0)

	if len(res.Strengths) != 1 || res.Strengths[0].Section != itembank.SectionListening {
		t.Fatalf("expected listening strength, got %+v", res.Strengths)
	}
	if res.Strengths[0].Accuracy != 90 {
		t.Fatalf("strength entry must carry measured accuracy, got %v", res.Strengths[0].Accuracy)
	}
	if len(res.Weaknesses) != 1 || res.Weaknesses[0].Section != itembank.SectionGrammar {
		t.Fatalf("expected grammar weakness, got %+v", res.Weaknesses)
	}
	if len(res.Recommendations) < 3 {
		// weakness rec + sub-400 rec + general consistency rec
		t.Fatalf("expected at least 3 recommendations, got %v", res.Recommendations)
	}
	last := res.Recommendations[len(res.Recommendations)-1]
	if last == "" {
		t.Fatalf("general recommendation missing")
	}
}

func TestScore_HighScorerGetsOnlyConsistencyRecommendation(t *testing.T) {
	res := Score([]SectionOutcome{
		{Section: itembank.SectionListening, Correct: 19, Total: 20},
		{Section: itembank.SectionGrammar, Correct: 18, Total: 20},
		{Section: itembank.SectionReading, Correct: 19, Total: 20},
		{Section: itembank.SectionVocabulary, Correct: 18, Total: 20},
	}, 0)
	if len(res.Weaknesses) != 0 {
		t.Fatalf("no weaknesses expected, got %+v", res.Weaknesses)
	}
	if len(res.Recommendations) != 1 {
		t.Fatalf("expected only the consistency recommendation, got %v", res.Recommendations)
	}
}
