package store

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/nag/internal/model"
)

func TestCompletionLastPicksMostRecent(t *testing.T) {
	db := setupTestDB(t)
	cs := NewChoreStore(db)
	comps := NewCompletionStore(db)

	c := testChore("Change sheets", model.Schedule{Kind: model.ScheduleInterval, IntervalDays: 14})
	if err := cs.Create(c); err != nil {
		t.Fatalf("create chore: %v", err)
	}

	none, err := comps.Last(c.ID)
	if err != nil {
		t.Fatalf("last with no completions: %v", err)
	}
	if none != nil {
		t.Error("last returned a completion for a never-completed chore")
	}

	// Insert out of order; Last must pick by completed_at, not insertion
	// order, since backdating is allowed.
	times := []time.Time{
		time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC),
		time.Date(2025, 1, 8, 9, 0, 0, 0, time.UTC),
	}
	for _, at := range times {
		if err := comps.Create(&model.Completion{
			ID: uuid.New(), ChoreID: c.ID, CompletedAt: at, CreatedAt: at,
		}); err != nil {
			t.Fatalf("create completion at %v: %v", at, err)
		}
	}

	last, err := comps.Last(c.ID)
	if err != nil {
		t.Fatalf("last: %v", err)
	}
	if last == nil {
		t.Fatal("last returned nil")
	}
	want := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	if !last.CompletedAt.Equal(want) {
		t.Errorf("last.completed_at = %v, want %v", last.CompletedAt, want)
	}
}

func TestCompletionListAndDelete(t *testing.T) {
	db := setupTestDB(t)
	cs := NewChoreStore(db)
	comps := NewCompletionStore(db)

	c := testChore("Wipe counters", model.Schedule{Kind: model.ScheduleInterval, IntervalDays: 1})
	if err := cs.Create(c); err != nil {
		t.Fatalf("create chore: %v", err)
	}

	notes := "used the new spray"
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		comp := &model.Completion{
			ID:          uuid.New(),
			ChoreID:     c.ID,
			CompletedAt: time.Date(2025, 1, 1+i, 18, 0, 0, 0, time.UTC),
			CreatedAt:   time.Date(2025, 1, 1+i, 18, 0, 0, 0, time.UTC),
		}
		if i == 0 {
			comp.Notes = &notes
		}
		if err := comps.Create(comp); err != nil {
			t.Fatalf("create completion %d: %v", i, err)
		}
		ids = append(ids, comp.ID)
	}

	page, err := comps.List(c.ID, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("page size = %d, want 2", len(page))
	}
	// Most recent first.
	if !page[0].CompletedAt.After(page[1].CompletedAt) {
		t.Errorf("list not ordered most-recent-first: %v, %v", page[0].CompletedAt, page[1].CompletedAt)
	}

	rest, err := comps.List(c.ID, 2, 2)
	if err != nil {
		t.Fatalf("list offset: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("second page size = %d, want 1", len(rest))
	}
	if rest[0].Notes == nil || *rest[0].Notes != notes {
		t.Errorf("oldest completion notes = %v, want %q", rest[0].Notes, notes)
	}

	if err := comps.Delete(ids[0]); err != nil {
		t.Fatalf("delete: %v", err)
	}
	all, err := comps.List(c.ID, 10, 0)
	if err != nil {
		t.Fatalf("list after delete: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("%d completions after delete, want 2", len(all))
	}
}
