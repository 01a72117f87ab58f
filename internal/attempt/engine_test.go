package attempt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"go.uber.org/zap"
)

/* ---------------- in-memory fakes ---------------- */

type fakeStore struct {
	attempts map[string]Attempt // key: userID|instrumentID
	byID     map[string]string  // attemptID -> key
	writes   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{attempts: map[string]Attempt{}, byID: map[string]string{}}
}

func skey(userID, instrumentID string) string { return userID + "|" + instrumentID }

func (s *fakeStore) Get(_ context.Context, userID, instrumentID string) (Attempt, error) {
	a, ok := s.attempts[skey(userID, instrumentID)]
	if !ok {
		return Attempt{}, ErrAttemptNotFound
	}
	// deep-ish copy so callers cannot mutate the store
	cp := a
	cp.Entries = make(map[string]ResponseEntry, len(a.Entries))
	for k, v := range a.Entries {
		cp.Entries[k] = v
	}
	cp.ItemOrder = append([]string(nil), a.ItemOrder...)
	return cp, nil
}

func (s *fakeStore) Create(_ context.Context, a Attempt) error {
	k := skey(a.UserID, a.InstrumentID)
	if _, ok := s.attempts[k]; ok {
		return ErrDuplicateAttempt
	}
	if a.Entries == nil {
		a.Entries = map[string]ResponseEntry{}
	}
	s.attempts[k] = a
	s.byID[a.ID] = k
	s.writes++
	return nil
}

func (s *fakeStore) InsertShown(_ context.Context, attemptID, itemID string, at time.Time) (bool, error) {
	a, ok := s.attempts[s.byID[attemptID]]
	if !ok {
		return false, fmt.Errorf("unknown attempt %s", attemptID)
	}
	if _, exists := a.Entries[itemID]; exists {
		return false, nil
	}
	t := at
	a.Entries[itemID] = ResponseEntry{ItemID: itemID, ShownAt: &t}
	a.UpdatedAt = at
	s.attempts[s.byID[attemptID]] = a
	s.writes++
	return true, nil
}

func (s *fakeStore) UpsertAnswer(_ context.Context, attemptID, itemID string, value json.RawMessage, at time.Time) error {
	a, ok := s.attempts[s.byID[attemptID]]
	if !ok {
		return fmt.Errorf("unknown attempt %s", attemptID)
	}
	if a.Status != StatusInProgress {
		return ErrAttemptCompleted
	}
	t := at
	e, exists := a.Entries[itemID]
	if !exists {
		e = ResponseEntry{ItemID: itemID, ShownAt: &t}
	}
	e.AnsweredAt = &t
	e.Value = value
	a.Entries[itemID] = e
	a.UpdatedAt = at
	s.attempts[s.byID[attemptID]] = a
	s.writes++
	return nil
}

func (s *fakeStore) MarkCompleted(_ context.Context, attemptID string, at time.Time) (bool, error) {
	a, ok := s.attempts[s.byID[attemptID]]
	if !ok {
		return false, fmt.Errorf("unknown attempt %s", attemptID)
	}
	if a.Status != StatusInProgress {
		return false, nil
	}
	t := at
	a.Status = StatusCompleted
	a.CompletedAt = &t
	a.UpdatedAt = at
	s.attempts[s.byID[attemptID]] = a
	s.writes++
	return true, nil
}

type fakeCatalog struct {
	items []Item
}

func (c *fakeCatalog) ListItems(_ context.Context, activeOnly bool) ([]Item, error) {
	out := []Item{}
	for _, it := range c.items {
		if activeOnly && !it.Active {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (c *fakeCatalog) GetItem(_ context.Context, id string) (Item, error) {
	for _, it := range c.items {
		if it.ID == id {
			return it, nil
		}
	}
	return Item{}, fmt.Errorf("item %q not found", id)
}

/* ---------------- helpers ---------------- */

func identityPerm(n int) []int {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return p
}

func choiceItem(id string) Item {
	return Item{
		ID: id, Type: "choice", Prompt: "stem " + id, Required: true, Active: true,
		Choices: []Choice{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}},
	}
}

func newQuizEngine(t *testing.T, items ...Item) (*Engine, *fakeStore, QuizInstrument) {
	t.Helper()
	store := newFakeStore()
	eng := NewEngine(store, zap.NewNop(), nil)
	eng.now = func() time.Time { return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC) }
	inst := QuizInstrument{
		QuizID:   "main",
		Catalog:  &fakeCatalog{items: items},
		MaxItems: 10,
		Perm:     identityPerm,
	}
	return eng, store, inst
}

/* ---------------- tests ---------------- */

func TestStateCreatesAttemptAndIsIdempotent(t *testing.T) {
	eng, store, inst := newQuizEngine(t, choiceItem("q1"), choiceItem("q2"), choiceItem("q3"))
	ctx := context.Background()

	first, err := eng.State(ctx, inst, "u1", "u1@example.com", true)
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if first.Status != StatusInProgress || first.TotalItems != 3 || first.AnsweredCount != 0 {
		t.Fatalf("unexpected first state: %+v", first)
	}
	if first.CurrentItem == nil || first.CurrentItem.ID != "q1" {
		t.Fatalf("expected current item q1, got %+v", first.CurrentItem)
	}

	writes := store.writes
	second, err := eng.State(ctx, inst, "u1", "u1@example.com", true)
	if err != nil {
		t.Fatalf("second state: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("state not idempotent:\nfirst  %+v\nsecond %+v", first, second)
	}
	if store.writes != writes {
		t.Fatalf("second fetch wrote %d times", store.writes-writes)
	}
}

func TestEmptyCatalogPersistsNothing(t *testing.T) {
	eng, store, inst := newQuizEngine(t)
	_, err := eng.State(context.Background(), inst, "u1", "u1@example.com", true)
	if !errors.Is(err, ErrNoItemsAvailable) {
		t.Fatalf("expected ErrNoItemsAvailable, got %v", err)
	}
	if len(store.attempts) != 0 {
		t.Fatalf("attempt persisted despite empty catalog")
	}
}

func TestAssignUsesAllItemsWhenFewerThanMax(t *testing.T) {
	eng, _, inst := newQuizEngine(t, choiceItem("q1"), choiceItem("q2"), choiceItem("q3"))
	a, err := eng.LoadOrCreate(context.Background(), inst, "u1", "u1@example.com")
	if err != nil {
		t.Fatalf("loadOrCreate: %v", err)
	}
	if len(a.ItemOrder) != 3 {
		t.Fatalf("expected 3 assigned items, got %d", len(a.ItemOrder))
	}
	seen := map[string]bool{}
	for _, id := range a.ItemOrder {
		if seen[id] {
			t.Fatalf("duplicate id %s in order", id)
		}
		seen[id] = true
	}
	for _, id := range []string{"q1", "q2", "q3"} {
		if !seen[id] {
			t.Fatalf("id %s missing from order", id)
		}
	}
}

func TestAnswerOutsideOrderDoesNotMutate(t *testing.T) {
	eng, store, inst := newQuizEngine(t, choiceItem("q1"), choiceItem("q2"))
	ctx := context.Background()
	if _, err := eng.State(ctx, inst, "u1", "u1@example.com", true); err != nil {
		t.Fatal(err)
	}
	before, _ := store.Get(ctx, "u1", inst.InstrumentID())

	_, err := eng.SubmitAnswer(ctx, inst, "u1", "intruder", []byte(`"a"`))
	if !errors.Is(err, ErrItemNotInAttempt) {
		t.Fatalf("expected ErrItemNotInAttempt, got %v", err)
	}
	after, _ := store.Get(ctx, "u1", inst.InstrumentID())
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("attempt mutated by rejected answer")
	}
}

func TestInvalidValueRejectedBeforeWrite(t *testing.T) {
	eng, store, inst := newQuizEngine(t, choiceItem("q1"))
	ctx := context.Background()
	if _, err := eng.State(ctx, inst, "u1", "u1@example.com", true); err != nil {
		t.Fatal(err)
	}
	writes := store.writes
	_, err := eng.SubmitAnswer(ctx, inst, "u1", "q1", []byte(`"zzz"`))
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	if store.writes != writes {
		t.Fatalf("rejected answer still wrote")
	}
}

func TestReanswerOverwritesSingleEntry(t *testing.T) {
	eng, store, inst := newQuizEngine(t, choiceItem("q1"), choiceItem("q2"))
	ctx := context.Background()
	if _, err := eng.State(ctx, inst, "u1", "u1@example.com", true); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.SubmitAnswer(ctx, inst, "u1", "q1", []byte(`"a"`)); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.SubmitAnswer(ctx, inst, "u1", "q1", []byte(`"b"`)); err != nil {
		t.Fatal(err)
	}
	a, _ := store.Get(ctx, "u1", inst.InstrumentID())
	entry, ok := a.Entries["q1"]
	if !ok {
		t.Fatalf("entry missing")
	}
	if string(entry.Value) != `"b"` {
		t.Fatalf("expected overwrite to b, got %s", entry.Value)
	}
	if len(a.Entries) != 2 { // q1 answered + q2 shown
		t.Fatalf("expected 2 entries, got %d", len(a.Entries))
	}
}

func TestOutOfOrderAnswersAndCurrentItem(t *testing.T) {
	eng, _, inst := newQuizEngine(t, choiceItem("q1"), choiceItem("q2"), choiceItem("q3"))
	ctx := context.Background()
	if _, err := eng.State(ctx, inst, "u1", "u1@example.com", true); err != nil {
		t.Fatal(err)
	}
	// answer the third item before the first
	if _, err := eng.SubmitAnswer(ctx, inst, "u1", "q3", []byte(`"a"`)); err != nil {
		t.Fatal(err)
	}
	view, err := eng.SubmitAnswer(ctx, inst, "u1", "q2", []byte(`"a"`))
	if err != nil {
		t.Fatal(err)
	}
	if view.AnsweredCount != 2 {
		t.Fatalf("expected 2 answered, got %d", view.AnsweredCount)
	}
	if view.CurrentItem == nil || view.CurrentItem.ID != "q1" {
		t.Fatalf("expected earliest unanswered q1, got %+v", view.CurrentItem)
	}
}

func TestLastAnswerFlipsCompletedInSameCall(t *testing.T) {
	eng, store, inst := newQuizEngine(t, choiceItem("q1"), choiceItem("q2"))
	ctx := context.Background()
	if _, err := eng.State(ctx, inst, "u1", "u1@example.com", true); err != nil {
		t.Fatal(err)
	}
	if _, err := eng.SubmitAnswer(ctx, inst, "u1", "q1", []byte(`"a"`)); err != nil {
		t.Fatal(err)
	}
	view, err := eng.SubmitAnswer(ctx, inst, "u1", "q2", []byte(`"b"`))
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", view.Status)
	}
	if view.CurrentItem != nil {
		t.Fatalf("completed view still has a current item")
	}
	a, _ := store.Get(ctx, "u1", inst.InstrumentID())
	if a.CompletedAt == nil {
		t.Fatalf("completed_at not stamped")
	}

	// terminal: further answers rejected, attempt unchanged
	before := a
	_, err = eng.SubmitAnswer(ctx, inst, "u1", "q1", []byte(`"a"`))
	if !errors.Is(err, ErrAttemptCompleted) {
		t.Fatalf("expected ErrAttemptCompleted, got %v", err)
	}
	after, _ := store.Get(ctx, "u1", inst.InstrumentID())
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("completed attempt mutated")
	}
}

func TestOptionalSurveyItemsDoNotBlockCompletion(t *testing.T) {
	required := Item{ID: "s1", Type: "likert", Prompt: "p1", Required: true, Active: true, Order: 1}
	optional := Item{ID: "s2", Type: "text", Prompt: "p2", Required: false, Active: true, Order: 2}
	store := newFakeStore()
	eng := NewEngine(store, zap.NewNop(), nil)
	inst := SurveyInstrument{Stage: "pre", Catalog: &fakeCatalog{items: []Item{required, optional}}}
	ctx := context.Background()

	view, err := eng.State(ctx, inst, "u1", "u1@example.com", false)
	if err != nil {
		t.Fatal(err)
	}
	if view.TotalItems != 2 {
		t.Fatalf("expected 2 items, got %d", view.TotalItems)
	}
	view, err = eng.SubmitAnswer(ctx, inst, "u1", "s1", []byte(`3`))
	if err != nil {
		t.Fatal(err)
	}
	if view.Status != StatusCompleted {
		t.Fatalf("expected completed with optional item unanswered, got %s", view.Status)
	}
}

func TestSurveyBatchValidatesBeforeAnyWrite(t *testing.T) {
	a := Item{ID: "s1", Type: "likert", Prompt: "p1", Required: true, Active: true}
	b := Item{ID: "s2", Type: "likert", Prompt: "p2", Required: true, Active: true}
	store := newFakeStore()
	eng := NewEngine(store, zap.NewNop(), nil)
	inst := SurveyInstrument{Stage: "pre", Catalog: &fakeCatalog{items: []Item{a, b}}}
	ctx := context.Background()

	if _, err := eng.State(ctx, inst, "u1", "u1@example.com", false); err != nil {
		t.Fatal(err)
	}
	_, err := eng.SubmitAnswers(ctx, inst, "u1", []Answer{
		{ItemID: "s1", Value: []byte(`3`)},
		{ItemID: "s2", Value: []byte(`99`)}, // out of scale
	})
	if !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("expected ErrInvalidValue, got %v", err)
	}
	got, _ := store.Get(ctx, "u1", inst.InstrumentID())
	if got.AnsweredCount() != 0 {
		t.Fatalf("partial write happened: %d answers", got.AnsweredCount())
	}
}

func TestExplicitRecordShownIsIdempotent(t *testing.T) {
	item := Item{ID: "s1", Type: "likert", Prompt: "p", Required: true, Active: true}
	store := newFakeStore()
	eng := NewEngine(store, zap.NewNop(), nil)
	inst := SurveyInstrument{Stage: "pre", Catalog: &fakeCatalog{items: []Item{item}}}
	ctx := context.Background()

	if _, err := eng.State(ctx, inst, "u1", "u1@example.com", false); err != nil {
		t.Fatal(err)
	}
	if err := eng.RecordShown(ctx, inst, "u1", "s1"); err != nil {
		t.Fatal(err)
	}
	writes := store.writes
	if err := eng.RecordShown(ctx, inst, "u1", "s1"); err != nil {
		t.Fatal(err)
	}
	if store.writes != writes {
		t.Fatalf("repeated record_shown wrote again")
	}
	a, _ := store.Get(ctx, "u1", inst.InstrumentID())
	e := a.Entries["s1"]
	if e.ShownAt == nil || e.AnsweredAt != nil {
		t.Fatalf("unexpected entry state %+v", e)
	}
}

func TestRecordShownRejectsItemOutsideOrder(t *testing.T) {
	item := Item{ID: "s1", Type: "likert", Prompt: "p", Required: true, Active: true}
	store := newFakeStore()
	eng := NewEngine(store, zap.NewNop(), nil)
	inst := SurveyInstrument{Stage: "pre", Catalog: &fakeCatalog{items: []Item{item}}}
	ctx := context.Background()

	if _, err := eng.State(ctx, inst, "u1", "u1@example.com", false); err != nil {
		t.Fatal(err)
	}
	err := eng.RecordShown(ctx, inst, "u1", "stray")
	if !errors.Is(err, ErrItemNotInAttempt) {
		t.Fatalf("expected ErrItemNotInAttempt, got %v", err)
	}
	a, _ := store.Get(ctx, "u1", inst.InstrumentID())
	if len(a.Entries) != 0 {
		t.Fatalf("orphan entry recorded: %+v", a.Entries)
	}
	view, err := eng.State(ctx, inst, "u1", "u1@example.com", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(view.Entries) != 0 {
		t.Fatalf("state payload carries orphan entries: %+v", view.Entries)
	}
}

func TestAnswerWithoutShownCreatesAnsweredEntry(t *testing.T) {
	eng, store, inst := newQuizEngine(t, choiceItem("q1"), choiceItem("q2"))
	ctx := context.Background()
	if _, err := eng.LoadOrCreate(ctx, inst, "u1", "u1@example.com"); err != nil {
		t.Fatal(err)
	}
	// No state fetch, no shown event beforehand.
	if _, err := eng.SubmitAnswer(ctx, inst, "u1", "q2", []byte(`"a"`)); err != nil {
		t.Fatal(err)
	}
	a, _ := store.Get(ctx, "u1", inst.InstrumentID())
	e, ok := a.Entries["q2"]
	if !ok || !e.Answered() {
		t.Fatalf("expected answered entry, got %+v", e)
	}
	if a.AnsweredCount() > len(a.ItemOrder) {
		t.Fatalf("answered_count exceeds total_items")
	}
}

func TestCreationRaceLoserLoads(t *testing.T) {
	eng, store, inst := newQuizEngine(t, choiceItem("q1"))
	ctx := context.Background()

	winner, err := eng.LoadOrCreate(ctx, inst, "u1", "u1@example.com")
	if err != nil {
		t.Fatal(err)
	}
	// simulate a racing creator: direct Create must hit the constraint
	err = store.Create(ctx, Attempt{ID: "other", UserID: "u1", InstrumentID: inst.InstrumentID()})
	if !errors.Is(err, ErrDuplicateAttempt) {
		t.Fatalf("expected ErrDuplicateAttempt, got %v", err)
	}
	again, err := eng.LoadOrCreate(ctx, inst, "u1", "u1@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if again.ID != winner.ID {
		t.Fatalf("second loadOrCreate produced a different attempt")
	}
}
