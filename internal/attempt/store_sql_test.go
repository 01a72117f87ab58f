package attempt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/motivlab/platform-backend/internal/db"
)

var memSeq int

func openTestDB(t *testing.T) *SQLStore {
	t.Helper()
	memSeq++
	dsn := fmt.Sprintf("file:attempt_test_%d?mode=memory&cache=shared", memSeq)
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return NewSQLStore(dbh)
}

func testAttempt(user, instrument string, order ...string) Attempt {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	return Attempt{
		ID:           "att-" + user + "-" + instrument,
		UserID:       user,
		UserEmail:    user + "@example.com",
		InstrumentID: instrument,
		Status:       StatusInProgress,
		ItemOrder:    order,
		Entries:      map[string]ResponseEntry{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestSQLStoreCreateEnforcesUniqueness(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()

	a := testAttempt("u1", "quiz:main", "q1", "q2")
	if err := store.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}
	dup := testAttempt("u1", "quiz:main", "q2", "q1")
	dup.ID = "other"
	if err := store.Create(ctx, dup); !errors.Is(err, ErrDuplicateAttempt) {
		t.Fatalf("expected ErrDuplicateAttempt, got %v", err)
	}
	// a different instrument for the same user is fine
	if err := store.Create(ctx, testAttempt("u1", "survey:pre", "s1")); err != nil {
		t.Fatalf("create second instrument: %v", err)
	}

	got, err := store.Get(ctx, "u1", "quiz:main")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != a.ID || len(got.ItemOrder) != 2 || got.ItemOrder[0] != "q1" {
		t.Fatalf("round trip mismatch: %+v", got)
	}
	if got.Status != StatusInProgress || got.CompletedAt != nil {
		t.Fatalf("unexpected status: %+v", got)
	}
}

func TestSQLStoreGetMissing(t *testing.T) {
	store := openTestDB(t)
	_, err := store.Get(context.Background(), "nobody", "quiz:main")
	if !errors.Is(err, ErrAttemptNotFound) {
		t.Fatalf("expected ErrAttemptNotFound, got %v", err)
	}
}

func TestSQLStoreInsertShownIdempotent(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	a := testAttempt("u1", "quiz:main", "q1", "q2")
	if err := store.Create(ctx, a); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2025, 3, 10, 12, 5, 0, 0, time.UTC)

	inserted, err := store.InsertShown(ctx, a.ID, "q1", at)
	if err != nil || !inserted {
		t.Fatalf("first insert: inserted=%v err=%v", inserted, err)
	}
	inserted, err = store.InsertShown(ctx, a.ID, "q1", at.Add(time.Minute))
	if err != nil || inserted {
		t.Fatalf("second insert should be no-op: inserted=%v err=%v", inserted, err)
	}

	got, _ := store.Get(ctx, "u1", "quiz:main")
	e := got.Entries["q1"]
	if e.ShownAt == nil || !e.ShownAt.Equal(at) {
		t.Fatalf("shown_at overwritten or missing: %+v", e)
	}
	if e.AnsweredAt != nil {
		t.Fatalf("answered_at set by shown insert")
	}
}

func TestSQLStoreUpsertAnswer(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	a := testAttempt("u1", "quiz:main", "q1", "q2")
	if err := store.Create(ctx, a); err != nil {
		t.Fatal(err)
	}
	shownAt := time.Date(2025, 3, 10, 12, 5, 0, 0, time.UTC)
	if _, err := store.InsertShown(ctx, a.ID, "q1", shownAt); err != nil {
		t.Fatal(err)
	}

	t1 := shownAt.Add(time.Minute)
	if err := store.UpsertAnswer(ctx, a.ID, "q1", json.RawMessage(`"a"`), t1); err != nil {
		t.Fatal(err)
	}
	t2 := shownAt.Add(2 * time.Minute)
	if err := store.UpsertAnswer(ctx, a.ID, "q1", json.RawMessage(`"b"`), t2); err != nil {
		t.Fatal(err)
	}
	// answer without a prior shown event creates the entry directly
	if err := store.UpsertAnswer(ctx, a.ID, "q2", json.RawMessage(`"a"`), t2); err != nil {
		t.Fatal(err)
	}

	got, _ := store.Get(ctx, "u1", "quiz:main")
	if len(got.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got.Entries))
	}
	q1 := got.Entries["q1"]
	if string(q1.Value) != `"b"` || q1.AnsweredAt == nil || !q1.AnsweredAt.Equal(t2) {
		t.Fatalf("last write did not win: %+v", q1)
	}
	if q1.ShownAt == nil || !q1.ShownAt.Equal(shownAt) {
		t.Fatalf("original shown_at lost on upsert: %+v", q1)
	}
	q2 := got.Entries["q2"]
	if q2.ShownAt == nil || q2.AnsweredAt == nil {
		t.Fatalf("direct-answer entry incomplete: %+v", q2)
	}
	if !got.UpdatedAt.Equal(t2) {
		t.Fatalf("updated_at not bumped: %v", got.UpdatedAt)
	}
}

func TestSQLStoreUpsertAnswerStopsAfterCompletion(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	a := testAttempt("u1", "quiz:main", "q1", "q2")
	if err := store.Create(ctx, a); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2025, 3, 10, 12, 5, 0, 0, time.UTC)
	if err := store.UpsertAnswer(ctx, a.ID, "q1", json.RawMessage(`"a"`), at); err != nil {
		t.Fatal(err)
	}
	if _, err := store.MarkCompleted(ctx, a.ID, at.Add(time.Minute)); err != nil {
		t.Fatal(err)
	}

	// a submit racing the flip must not land once the attempt is completed
	err := store.UpsertAnswer(ctx, a.ID, "q2", json.RawMessage(`"b"`), at.Add(2*time.Minute))
	if !errors.Is(err, ErrAttemptCompleted) {
		t.Fatalf("expected ErrAttemptCompleted, got %v", err)
	}
	err = store.UpsertAnswer(ctx, a.ID, "q1", json.RawMessage(`"b"`), at.Add(2*time.Minute))
	if !errors.Is(err, ErrAttemptCompleted) {
		t.Fatalf("overwrite after completion: expected ErrAttemptCompleted, got %v", err)
	}

	got, _ := store.Get(ctx, "u1", "quiz:main")
	if len(got.Entries) != 1 {
		t.Fatalf("entry written on completed attempt: %+v", got.Entries)
	}
	if string(got.Entries["q1"].Value) != `"a"` {
		t.Fatalf("completed answer overwritten: %s", got.Entries["q1"].Value)
	}
}

func TestSQLStoreMarkCompletedIsConditional(t *testing.T) {
	store := openTestDB(t)
	ctx := context.Background()
	a := testAttempt("u1", "quiz:main", "q1")
	if err := store.Create(ctx, a); err != nil {
		t.Fatal(err)
	}
	at := time.Date(2025, 3, 10, 12, 30, 0, 0, time.UTC)

	flipped, err := store.MarkCompleted(ctx, a.ID, at)
	if err != nil || !flipped {
		t.Fatalf("first flip: flipped=%v err=%v", flipped, err)
	}
	flipped, err = store.MarkCompleted(ctx, a.ID, at.Add(time.Hour))
	if err != nil || flipped {
		t.Fatalf("second flip should be a no-op: flipped=%v err=%v", flipped, err)
	}

	got, _ := store.Get(ctx, "u1", "quiz:main")
	if got.Status != StatusCompleted {
		t.Fatalf("status not completed")
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(at) {
		t.Fatalf("completed_at wrong: %v", got.CompletedAt)
	}
}
