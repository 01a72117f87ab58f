package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/motivlab/platform-backend/internal/db"
)

var memSeq int

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	memSeq++
	dsn := fmt.Sprintf("file:catalog_test_%d?mode=memory&cache=shared", memSeq)
	dbh, err := db.Open(context.Background(), db.DriverSQLite, dsn)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = dbh.Close() })
	return dbh
}

func TestQuestionCRUD(t *testing.T) {
	store := NewQuestionStore(openTestDB(t))
	ctx := context.Background()

	created, err := store.Create(ctx, Question{
		Stem:     "Which gas do plants absorb?",
		Subtitle: "Pick one",
		Choices:  []Choice{{ID: "a", Label: "Oxygen"}, {ID: "b", Label: "Carbon dioxide"}},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" || !created.Active {
		t.Fatalf("create did not fill defaults: %+v", created)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Stem != created.Stem || len(got.Choices) != 2 || got.Choices[1].Label != "Carbon dioxide" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	got.Stem = "Which gas do plants take in?"
	got.Choices = got.Choices[:1]
	updated, err := store.Update(ctx, got)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Stem != got.Stem || len(updated.Choices) != 1 {
		t.Fatalf("update not applied: %+v", updated)
	}

	if err := store.Delete(ctx, created.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete should report ErrNotFound, got %v", err)
	}
}

func TestQuizCatalogSeesWholeQuestionPool(t *testing.T) {
	store := NewQuestionStore(openTestDB(t))
	ctx := context.Background()

	for i := 0; i < 120; i++ {
		_, err := store.Create(ctx, Question{
			Stem:    fmt.Sprintf("question %d", i),
			Choices: []Choice{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}},
		})
		if err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	// default listing stays paged
	page, err := store.List(ctx, true, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(page) != 100 {
		t.Fatalf("default page size = %d, want 100", len(page))
	}

	// the assignment path must draw from every question
	items, err := (QuizCatalog{Questions: store}).ListItems(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 120 {
		t.Fatalf("assignment pool = %d of 120 questions", len(items))
	}
}

func TestQuestionUpdateMissing(t *testing.T) {
	store := NewQuestionStore(openTestDB(t))
	_, err := store.Update(context.Background(), Question{ID: "missing", Stem: "x"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSurveyItemListOrderingAndFilters(t *testing.T) {
	store := NewSurveyItemStore(openTestDB(t))
	ctx := context.Background()

	mk := func(id, stage string, ord int, active bool) {
		t.Helper()
		_, err := store.Create(ctx, SurveyItem{
			ID: id, Stage: stage, Prompt: "p-" + id, Type: "likert",
			Required: true, Order: ord, Active: active,
			Scale: &Scale{Min: 1, Max: 5},
		})
		if err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}
	mk("s3", "pre", 3, true)
	mk("s1", "pre", 1, true)
	mk("s2", "pre", 2, false)
	mk("p1", "post", 1, true)

	all, err := store.List(ctx, "pre", false)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 || all[0].ID != "s1" || all[1].ID != "s2" || all[2].ID != "s3" {
		t.Fatalf("wrong order: %v", ids(all))
	}

	active, err := store.List(ctx, "pre", true)
	if err != nil {
		t.Fatal(err)
	}
	if len(active) != 2 || active[0].ID != "s1" || active[1].ID != "s3" {
		t.Fatalf("active filter wrong: %v", ids(active))
	}

	everything, err := store.List(ctx, "", false)
	if err != nil {
		t.Fatal(err)
	}
	if len(everything) != 4 {
		t.Fatalf("expected 4 items across stages, got %d", len(everything))
	}
}

func TestSurveyItemPatchLeavesUnsetFieldsAlone(t *testing.T) {
	store := NewSurveyItemStore(openTestDB(t))
	ctx := context.Background()

	created, err := store.Create(ctx, SurveyItem{
		Stage: "pre", Prompt: "I felt engaged.", Type: "likert",
		Required: true, Order: 5, Active: true,
		Category: "engagement", Scale: &Scale{Min: 1, Max: 7},
	})
	if err != nil {
		t.Fatal(err)
	}

	newPrompt := "I felt deeply engaged."
	inactive := false
	updated, err := store.Update(ctx, created.ID, SurveyItemPatch{
		Prompt: &newPrompt,
		Active: &inactive,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Prompt != newPrompt || updated.Active {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if updated.Order != 5 || updated.Category != "engagement" || updated.Scale == nil || updated.Scale.Max != 7 {
		t.Fatalf("untouched fields changed: %+v", updated)
	}

	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Prompt != newPrompt || got.Active || got.Scale.Max != 7 {
		t.Fatalf("persisted state mismatch: %+v", got)
	}
}

func ids(items []SurveyItem) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}
