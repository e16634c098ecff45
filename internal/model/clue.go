package model

// Clue is one trivia item: a category, a dollar value, the displayed clue
// text, and the canonical expected response. Clues are created by ingestion
// and never mutated by grading.
type Clue struct {
	ID            int64    `json:"id" yaml:"id"`
	Category      string   `json:"category" yaml:"category"`
	ClueText      string   `json:"clue_text" yaml:"clue_text"`
	Expected      string   `json:"expected_response" yaml:"expected_response"`
	Alternates    []string `json:"alternates,omitempty" yaml:"alternates,omitempty"`
	Value         int      `json:"value" yaml:"value"`
	Round         int      `json:"round" yaml:"round"`
	IsDailyDouble bool     `json:"is_daily_double" yaml:"is_daily_double"`
	AirDate       string   `json:"air_date,omitempty" yaml:"air_date,omitempty"`
}

// DailyChallenge is a day's fixed content: two five-clue categories plus one
// final clue. Created once per date by a separate generation process and
// read-only to the grading core.
type DailyChallenge struct {
	ChallengeDate      string  `json:"challenge_date" yaml:"challenge_date"`
	SingleCategoryName string  `json:"single_category_name" yaml:"single_category_name"`
	SingleClueIDs      []int64 `json:"single_clue_ids" yaml:"single_clue_ids"`
	DoubleCategoryName string  `json:"double_category_name" yaml:"double_category_name"`
	DoubleClueIDs      []int64 `json:"double_clue_ids" yaml:"double_clue_ids"`
	FinalCategoryName  string  `json:"final_category_name" yaml:"final_category_name"`
	FinalClueID        int64   `json:"final_clue_id" yaml:"final_clue_id"`
}

// ClueID returns the clue id for a board slot.
func (c *DailyChallenge) ClueID(stage Stage, index int) (int64, bool) {
	switch stage {
	case StageSingle:
		if index >= 0 && index < len(c.SingleClueIDs) {
			return c.SingleClueIDs[index], true
		}
	case StageDouble:
		if index >= 0 && index < len(c.DoubleClueIDs) {
			return c.DoubleClueIDs[index], true
		}
	case StageFinal:
		return c.FinalClueID, true
	}
	return 0, false
}
