package attempt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// EventSink receives best-effort telemetry events. Implementations must not
// fail the caller; errors stay inside the sink.
type EventSink interface {
	Emit(ctx context.Context, typ, key string, data any)
}

// Engine drives attempt state for one request at a time. It holds no state
// between requests; everything lives in the Store.
type Engine struct {
	store  Store
	log    *zap.Logger
	events EventSink

	now func() time.Time
}

func NewEngine(store Store, log *zap.Logger, events EventSink) *Engine {
	return &Engine{store: store, log: log, events: events, now: time.Now}
}

// LoadOrCreate returns the caller's attempt for the instrument, creating it
// (with a freshly assigned item order) on first touch. A creation race is
// resolved by the store's uniqueness constraint; the loser re-loads.
func (e *Engine) LoadOrCreate(ctx context.Context, inst Instrument, userID, userEmail string) (Attempt, error) {
	a, err := e.store.Get(ctx, userID, inst.InstrumentID())
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, ErrAttemptNotFound) {
		return Attempt{}, err
	}

	order, err := inst.Assign(ctx)
	if err != nil {
		return Attempt{}, err
	}
	now := e.now().UTC()
	a = Attempt{
		ID:           uuid.NewString(),
		UserID:       userID,
		UserEmail:    userEmail,
		InstrumentID: inst.InstrumentID(),
		Status:       StatusInProgress,
		ItemOrder:    order,
		Entries:      map[string]ResponseEntry{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := e.store.Create(ctx, a); err != nil {
		if errors.Is(err, ErrDuplicateAttempt) {
			return e.store.Get(ctx, userID, inst.InstrumentID())
		}
		return Attempt{}, err
	}
	e.emit(ctx, "AttemptCreated", a.ID, map[string]any{
		"user_id": userID, "instrument_id": a.InstrumentID, "items": len(order),
	})
	return a, nil
}

// State projects the attempt for the client, creating it on first call. When
// markShown is set and an unanswered item is being revealed, its shown event
// is recorded before re-projecting, so a repeated fetch returns identical
// state.
func (e *Engine) State(ctx context.Context, inst Instrument, userID, userEmail string, markShown bool) (StateView, error) {
	a, err := e.LoadOrCreate(ctx, inst, userID, userEmail)
	if err != nil {
		return StateView{}, err
	}
	view, err := e.project(ctx, inst, a)
	if err != nil {
		return StateView{}, err
	}
	if markShown && view.CurrentItem != nil {
		if _, err := e.recordShown(ctx, a, view.CurrentItem.ID); err != nil {
			return StateView{}, err
		}
		a, err = e.store.Get(ctx, userID, inst.InstrumentID())
		if err != nil {
			return StateView{}, err
		}
		return e.project(ctx, inst, a)
	}
	return view, nil
}

// RecordShown records an item-shown event for the caller's attempt. The item
// must be part of the attempt's order; no-op when an entry already exists.
func (e *Engine) RecordShown(ctx context.Context, inst Instrument, userID, itemID string) error {
	a, err := e.store.Get(ctx, userID, inst.InstrumentID())
	if err != nil {
		return err
	}
	if !a.inOrder(itemID) {
		return fmt.Errorf("%w: %s", ErrItemNotInAttempt, itemID)
	}
	_, err = e.recordShown(ctx, a, itemID)
	return err
}

func (e *Engine) recordShown(ctx context.Context, a Attempt, itemID string) (bool, error) {
	if _, ok := a.Entries[itemID]; ok {
		return false, nil
	}
	return e.store.InsertShown(ctx, a.ID, itemID, e.now().UTC())
}

// SubmitAnswer records a single answer and returns the re-projected state.
func (e *Engine) SubmitAnswer(ctx context.Context, inst Instrument, userID, itemID string, value []byte) (StateView, error) {
	return e.SubmitAnswers(ctx, inst, userID, []Answer{{ItemID: itemID, Value: value}})
}

// SubmitAnswers records a batch of answers. Every answer is validated before
// any write happens: an invalid batch leaves the attempt untouched. Existing
// entries are overwritten (last write wins) while the attempt is in
// progress; completion is recomputed from the persisted entries afterwards,
// so answers arriving out of order or corrections still flip status exactly
// when the last required item is answered.
func (e *Engine) SubmitAnswers(ctx context.Context, inst Instrument, userID string, answers []Answer) (StateView, error) {
	a, err := e.store.Get(ctx, userID, inst.InstrumentID())
	if err != nil {
		return StateView{}, err
	}
	if a.Status == StatusCompleted {
		return StateView{}, ErrAttemptCompleted
	}

	// Validate everything up front: no partial writes on invalid input.
	items := make([]Item, len(answers))
	for i, ans := range answers {
		if !a.inOrder(ans.ItemID) {
			return StateView{}, fmt.Errorf("%w: %s", ErrItemNotInAttempt, ans.ItemID)
		}
		item, err := inst.Item(ctx, ans.ItemID)
		if err != nil {
			return StateView{}, fmt.Errorf("%w: %s: %v", ErrItemLookupFailed, ans.ItemID, err)
		}
		if err := inst.ValidateValue(item, ans.Value); err != nil {
			return StateView{}, err
		}
		items[i] = item
	}

	now := e.now().UTC()
	for _, ans := range answers {
		if err := e.store.UpsertAnswer(ctx, a.ID, ans.ItemID, ans.Value, now); err != nil {
			return StateView{}, err
		}
	}

	a, err = e.store.Get(ctx, userID, inst.InstrumentID())
	if err != nil {
		return StateView{}, err
	}
	done, err := e.completionSatisfied(ctx, inst, a)
	if err != nil {
		return StateView{}, err
	}
	if done {
		flipped, err := e.store.MarkCompleted(ctx, a.ID, e.now().UTC())
		if err != nil {
			return StateView{}, err
		}
		if flipped {
			e.emit(ctx, "AttemptCompleted", a.ID, map[string]any{
				"user_id": userID, "instrument_id": a.InstrumentID,
			})
		}
		a, err = e.store.Get(ctx, userID, inst.InstrumentID())
		if err != nil {
			return StateView{}, err
		}
	}
	return e.project(ctx, inst, a)
}

// completionSatisfied reports whether every required item of the fixed order
// has been answered. Items that no longer resolve in the catalog cannot be
// presented or answered anymore and are treated as optional, so an attempt
// stays completable after a catalog edit.
func (e *Engine) completionSatisfied(ctx context.Context, inst Instrument, a Attempt) (bool, error) {
	for _, id := range a.ItemOrder {
		if entry, ok := a.Entries[id]; ok && entry.Answered() {
			continue
		}
		item, err := inst.Item(ctx, id)
		if err != nil {
			e.log.Warn("completion scan: item missing from catalog",
				zap.String("attempt_id", a.ID), zap.String("item_id", id))
			continue
		}
		if inst.Required(item) {
			return false, nil
		}
	}
	return true, nil
}

// project derives the client-facing view: progress counters and the earliest
// not-yet-answered item by assignment order. A completed attempt (or one
// with nothing left to answer) carries no current item.
func (e *Engine) project(ctx context.Context, inst Instrument, a Attempt) (StateView, error) {
	view := StateView{
		InstrumentID:  a.InstrumentID,
		Status:        a.Status,
		TotalItems:    len(a.ItemOrder),
		AnsweredCount: a.AnsweredCount(),
		Entries:       sortedEntries(a),
	}
	if a.Status == StatusCompleted {
		return view, nil
	}
	for _, id := range a.ItemOrder {
		if entry, ok := a.Entries[id]; ok && entry.Answered() {
			continue
		}
		item, err := inst.Item(ctx, id)
		if err != nil {
			return StateView{}, fmt.Errorf("%w: %s: %v", ErrItemLookupFailed, id, err)
		}
		view.CurrentItem = &item
		return view, nil
	}
	// Everything answered but status not flipped yet; callers treat this as
	// effectively complete.
	return view, nil
}

func (e *Engine) emit(ctx context.Context, typ, key string, data any) {
	if e.events != nil {
		e.events.Emit(ctx, typ, key, data)
	}
}

// sortedEntries returns entries in item-order position, which keeps survey
// state payloads stable across fetches.
func sortedEntries(a Attempt) []ResponseEntry {
	pos := make(map[string]int, len(a.ItemOrder))
	for i, id := range a.ItemOrder {
		pos[id] = i
	}
	out := make([]ResponseEntry, 0, len(a.Entries))
	for _, e := range a.Entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, iok := pos[out[i].ItemID]
		pj, jok := pos[out[j].ItemID]
		if iok != jok {
			return iok
		}
		if pi != pj {
			return pi < pj
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out
}
