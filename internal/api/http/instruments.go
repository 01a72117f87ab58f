package http

import (
	"github.com/motivlab/platform-backend/internal/attempt"
	"github.com/motivlab/platform-backend/internal/catalog"
)

// Instruments builds engine instruments for request-scoped quiz ids and
// survey stages.
type Instruments struct {
	Questions    *catalog.QuestionStore
	SurveyItems  *catalog.SurveyItemStore
	QuizMaxItems int
}

func (f Instruments) Quiz(quizID string) attempt.Instrument {
	return attempt.QuizInstrument{
		QuizID:   quizID,
		Catalog:  catalog.QuizCatalog{Questions: f.Questions},
		MaxItems: f.QuizMaxItems,
	}
}

func (f Instruments) Survey(stage string) attempt.Instrument {
	return attempt.SurveyInstrument{
		Stage:   stage,
		Catalog: catalog.StageCatalog{Items: f.SurveyItems, Stage: stage},
	}
}
