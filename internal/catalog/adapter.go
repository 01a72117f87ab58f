package catalog

import (
	"context"

	"github.com/motivlab/platform-backend/internal/attempt"
)

// QuizCatalog exposes the question table through the engine's Catalog
// interface. Quiz questions are always required.
type QuizCatalog struct {
	Questions *QuestionStore
}

func (c QuizCatalog) ListItems(ctx context.Context, activeOnly bool) ([]attempt.Item, error) {
	qs, err := c.Questions.List(ctx, activeOnly, -1)
	if err != nil {
		return nil, err
	}
	out := make([]attempt.Item, 0, len(qs))
	for _, q := range qs {
		out = append(out, questionToItem(q))
	}
	return out, nil
}

func (c QuizCatalog) GetItem(ctx context.Context, itemID string) (attempt.Item, error) {
	q, err := c.Questions.Get(ctx, itemID)
	if err != nil {
		return attempt.Item{}, err
	}
	return questionToItem(q), nil
}

func questionToItem(q Question) attempt.Item {
	choices := make([]attempt.Choice, 0, len(q.Choices))
	for _, c := range q.Choices {
		choices = append(choices, attempt.Choice{ID: c.ID, Label: c.Label})
	}
	return attempt.Item{
		ID:       q.ID,
		Type:     "choice",
		Prompt:   q.Stem,
		Subtitle: q.Subtitle,
		Required: true,
		Active:   q.Active,
		Choices:  choices,
	}
}

// StageCatalog binds one survey stage to the engine's Catalog interface.
type StageCatalog struct {
	Items *SurveyItemStore
	Stage string
}

func (c StageCatalog) ListItems(ctx context.Context, activeOnly bool) ([]attempt.Item, error) {
	its, err := c.Items.List(ctx, c.Stage, activeOnly)
	if err != nil {
		return nil, err
	}
	out := make([]attempt.Item, 0, len(its))
	for _, it := range its {
		out = append(out, surveyItemToItem(it))
	}
	return out, nil
}

func (c StageCatalog) GetItem(ctx context.Context, itemID string) (attempt.Item, error) {
	it, err := c.Items.Get(ctx, itemID)
	if err != nil {
		return attempt.Item{}, err
	}
	return surveyItemToItem(it), nil
}

func surveyItemToItem(it SurveyItem) attempt.Item {
	var scale *attempt.Scale
	if it.Scale != nil {
		scale = &attempt.Scale{Min: it.Scale.Min, Max: it.Scale.Max, Anchors: it.Scale.Anchors}
	}
	choices := make([]attempt.Choice, 0, len(it.Options))
	for _, o := range it.Options {
		choices = append(choices, attempt.Choice{ID: o.ID, Label: o.Label})
	}
	return attempt.Item{
		ID:       it.ID,
		Type:     it.Type,
		Prompt:   it.Prompt,
		Required: it.Required,
		Active:   it.Active,
		Order:    it.Order,
		Choices:  choices,
		Scale:    scale,
	}
}
