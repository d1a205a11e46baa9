package itembank

// Section identifies one of the four exam sections.
type Section string

const (
	SectionListening  Section = "listening"
	SectionGrammar    Section = "grammar"
	SectionReading    Section = "reading"
	SectionVocabulary Section = "vocabulary"
)

// Sections lists every section in canonical exam order.
var Sections = []Section{SectionListening, SectionGrammar, SectionReading, SectionVocabulary}

func ValidSection(s Section) bool {
	for _, sec := range Sections {
		if sec == s {
			return true
		}
	}
	return false
}

// Level is the authored difficulty label assigned by content authors.
type Level string

const (
	LevelVeryEasy Level = "very_easy"
	LevelEasy     Level = "easy"
	LevelMedium   Level = "medium"
	LevelHard     Level = "hard"
	LevelVeryHard Level = "very_hard"
)

// Levels is the ordered difficulty scale, easiest first.
var Levels = []Level{LevelVeryEasy, LevelEasy, LevelMedium, LevelHard, LevelVeryHard}

func ValidLevel(l Level) bool {
	for _, lv := range Levels {
		if lv == l {
			return true
		}
	}
	return false
}

// NominalDifficulty places an authored level on the IRT difficulty scale.
// Used until an item has seen enough live exposures to calibrate.
func (l Level) NominalDifficulty() float64 {
	switch l {
	case LevelVeryEasy:
		return -2
	case LevelEasy:
		return -1
	case LevelMedium:
		return 0
	case LevelHard:
		return 1
	case LevelVeryHard:
		return 2
	default:
		return 0
	}
}

type ItemStatus string

const (
	StatusDraft    ItemStatus = "draft"
	StatusApproved ItemStatus = "approved"
	StatusRetired  ItemStatus = "retired"
)

// Choice is one answer option, keyed by its canonical letter ("A".."D").
type Choice struct {
	Key  string `json:"key"`
	Text string `json:"text"`
}

// Item is one exam question together with its live statistics.
type Item struct {
	ID            string     `json:"id"`
	Section       Section    `json:"section"`
	Topic         string     `json:"topic"`
	Prompt        string     `json:"prompt"`
	Choices       []Choice   `json:"choices"`
	CorrectChoice string     `json:"correct_choice,omitempty"` // canonical letter; stripped when served to students
	Level         Level      `json:"level"`
	Status        ItemStatus `json:"status"`
	Stats         Stats      `json:"stats"`
	CreatedAt     int64      `json:"created_at"`
}

// Bucket accumulates the correct rate of one observer-score band.
type Bucket struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

func (b Bucket) Rate() float64 {
	if b.Total == 0 {
		return 0
	}
	return float64(b.Correct) / float64(b.Total)
}

// Stats holds the IRT-style calibration state of an item. Counters are
// incremented atomically at the storage layer; Difficulty and Discrimination
// are derived projections recomputed from the counters.
type Stats struct {
	ExposureCount  int     `json:"exposure_count"`
	CorrectCount   int     `json:"correct_count"`
	IncorrectCount int     `json:"incorrect_count"`
	AvgResponseSec float64 `json:"avg_response_sec"`

	Difficulty     float64 `json:"difficulty"`     // b, [-3,3]
	Discrimination float64 `json:"discrimination"` // a, [0,2]
	Guessing       float64 `json:"guessing"`       // c, [0,0.25]

	// Buckets keys observer total-score bands to correct-rate accumulators.
	Buckets map[string]Bucket `json:"buckets,omitempty"`
}
