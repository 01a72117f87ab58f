package attempt

import (
	"context"
	"encoding/json"
	"math/rand"
)

// Catalog is the read-only item source an instrument draws from. Adapters in
// the catalog package bind a concrete table (questions, survey items of one
// stage) to this interface.
type Catalog interface {
	ListItems(ctx context.Context, activeOnly bool) ([]Item, error)
	GetItem(ctx context.Context, itemID string) (Item, error)
}

// Instrument is the capability the engine is parameterized over: how to
// assign an item order to a new attempt, how to resolve an item for
// presentation, and how to validate a submitted value.
type Instrument interface {
	InstrumentID() string
	Assign(ctx context.Context) ([]string, error)
	Item(ctx context.Context, itemID string) (Item, error)
	ValidateValue(item Item, value json.RawMessage) error
	Required(item Item) bool
}

// QuizInstrument assigns a random permutation of the question catalog,
// truncated to MaxItems. Every question is required.
type QuizInstrument struct {
	QuizID   string
	Catalog  Catalog
	MaxItems int
	// Perm returns a permutation of [0,n); injectable for deterministic
	// tests. Defaults to rand.Perm.
	Perm func(n int) []int
}

func (q QuizInstrument) InstrumentID() string { return "quiz:" + q.QuizID }

func (q QuizInstrument) Assign(ctx context.Context) ([]string, error) {
	items, err := q.Catalog.ListItems(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNoItemsAvailable
	}
	perm := q.Perm
	if perm == nil {
		perm = rand.Perm
	}
	order := make([]string, 0, len(items))
	for _, i := range perm(len(items)) {
		order = append(order, items[i].ID)
	}
	if q.MaxItems > 0 && len(order) > q.MaxItems {
		order = order[:q.MaxItems]
	}
	return order, nil
}

func (q QuizInstrument) Item(ctx context.Context, itemID string) (Item, error) {
	return q.Catalog.GetItem(ctx, itemID)
}

func (q QuizInstrument) ValidateValue(item Item, value json.RawMessage) error {
	return validateValue(item, value)
}

func (q QuizInstrument) Required(Item) bool { return true }

// SurveyInstrument assigns all active items of one stage in their declared
// order (catalog adapters return them already sorted, ties by insertion).
type SurveyInstrument struct {
	Stage   string
	Catalog Catalog
}

func (s SurveyInstrument) InstrumentID() string { return "survey:" + s.Stage }

func (s SurveyInstrument) Assign(ctx context.Context) ([]string, error) {
	items, err := s.Catalog.ListItems(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ErrNoItemsAvailable
	}
	order := make([]string, 0, len(items))
	for _, it := range items {
		order = append(order, it.ID)
	}
	return order, nil
}

func (s SurveyInstrument) Item(ctx context.Context, itemID string) (Item, error) {
	return s.Catalog.GetItem(ctx, itemID)
}

func (s SurveyInstrument) ValidateValue(item Item, value json.RawMessage) error {
	return validateValue(item, value)
}

func (s SurveyInstrument) Required(item Item) bool { return item.Required }
