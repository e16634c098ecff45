package daily

import (
	"context"

	"github.com/cluegrid/cluegrid/internal/model"
)

// ClueView is one board cell as shown to the player. Expected responses only
// appear inside the answer record once the slot is resolved.
type ClueView struct {
	Index       int                 `json:"index"`
	ClueID      int64               `json:"clue_id"`
	Value       int                 `json:"value"`
	ClueText    string              `json:"clue_text"`
	DailyDouble bool                `json:"daily_double,omitempty"`
	Answered    *model.AnswerRecord `json:"answered,omitempty"`
}

// CategoryView is one five-clue column.
type CategoryView struct {
	Name  string     `json:"name"`
	Clues []ClueView `json:"clues"`
}

// Payload is the read view for a player's day: the board, their progress, and
// what to do next. The final clue text stays hidden until the wager locks.
type Payload struct {
	ChallengeDate     string             `json:"challenge_date"`
	Single            CategoryView       `json:"single"`
	Double            CategoryView       `json:"double"`
	FinalCategoryName string             `json:"final_category_name"`
	FinalClueText     string             `json:"final_clue_text,omitempty"`
	Score             int                `json:"score"`
	FinalWagerLocked  bool               `json:"final_wager_locked"`
	FinalWager        *int               `json:"final_wager,omitempty"`
	Final             *model.FinalRecord `json:"final,omitempty"`
	Next              model.NextStep     `json:"next"`
	Completed         bool               `json:"completed"`
}

// Payload assembles the read view. Reads never create a progress row; a new
// player sees an empty board.
func (s *Service) Payload(ctx context.Context, challengeDate, playerToken string) (*Payload, error) {
	ch, err := s.challenge(ctx, challengeDate)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, 2*model.BoardSize+1)
	ids = append(ids, ch.SingleClueIDs...)
	ids = append(ids, ch.DoubleClueIDs...)
	ids = append(ids, ch.FinalClueID)
	clues, err := s.store.GetClues(ctx, ids)
	if err != nil {
		return nil, err
	}

	progress, err := s.store.GetProgress(ctx, challengeDate, playerToken)
	if err != nil {
		return nil, err
	}
	if progress == nil {
		progress = &model.PlayerProgress{ChallengeDate: challengeDate, PlayerToken: playerToken}
	}

	p := &Payload{
		ChallengeDate:     ch.ChallengeDate,
		Single:            categoryView(ch.SingleCategoryName, ch.SingleClueIDs, model.SingleValues, clues, progress.Answers.Single),
		Double:            categoryView(ch.DoubleCategoryName, ch.DoubleClueIDs, model.DoubleValues, clues, progress.Answers.Double),
		FinalCategoryName: ch.FinalCategoryName,
		Score:             progress.CurrentScore,
		FinalWagerLocked:  progress.FinalWager != nil,
		FinalWager:        progress.FinalWager,
		Final:             progress.Final,
		Next:              progress.Next(),
		Completed:         progress.Completed(),
	}
	if p.FinalWagerLocked {
		if finalClue, ok := clues[ch.FinalClueID]; ok {
			p.FinalClueText = finalClue.ClueText
		}
	}
	return p, nil
}

func categoryView(name string, ids []int64, values [model.BoardSize]int, clues map[int64]*model.Clue, answers [model.BoardSize]*model.AnswerRecord) CategoryView {
	view := CategoryView{Name: name, Clues: make([]ClueView, 0, len(ids))}
	for i, id := range ids {
		cv := ClueView{Index: i, ClueID: id}
		if i < model.BoardSize {
			cv.Value = values[i]
			cv.Answered = answers[i]
		}
		if c, ok := clues[id]; ok {
			cv.ClueText = c.ClueText
			// The Daily Double marker is a spoiler; surface it only once the
			// slot is resolved.
			if cv.Answered != nil {
				cv.DailyDouble = c.IsDailyDouble
			}
		}
		view.Clues = append(view.Clues, cv)
	}
	return view
}
