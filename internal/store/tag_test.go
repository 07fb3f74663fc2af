package store

import (
	"testing"

	"github.com/google/uuid"

	"github.com/dukerupert/nag/internal/model"
)

func strPtr(s string) *string { return &s }

func TestTagAttachDetach(t *testing.T) {
	db := setupTestDB(t)
	cs := NewChoreStore(db)
	ts := NewTagStore(db)

	c := testChore("Sweep porch", model.Schedule{Kind: model.ScheduleInterval, IntervalDays: 7})
	if err := cs.Create(c); err != nil {
		t.Fatalf("create chore: %v", err)
	}

	outdoor := &model.Tag{ID: uuid.New(), Name: "outdoor", Color: strPtr("green")}
	weekly := &model.Tag{ID: uuid.New(), Name: "weekly"}
	for _, tag := range []*model.Tag{outdoor, weekly} {
		if err := ts.Create(tag); err != nil {
			t.Fatalf("create tag %s: %v", tag.Name, err)
		}
	}

	if err := ts.Attach(c.ID, outdoor.ID); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if err := ts.Attach(c.ID, weekly.ID); err != nil {
		t.Fatalf("attach: %v", err)
	}

	got, err := ts.ForChore(c.ID)
	if err != nil {
		t.Fatalf("for chore: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("chore has %d tags, want 2", len(got))
	}

	if err := ts.Detach(c.ID, weekly.ID); err != nil {
		t.Fatalf("detach: %v", err)
	}
	got, err = ts.ForChore(c.ID)
	if err != nil {
		t.Fatalf("for chore after detach: %v", err)
	}
	if len(got) != 1 || got[0].Name != "outdoor" {
		t.Errorf("tags after detach = %v, want just outdoor", got)
	}
}

func TestTagDeleteRemovesAssociation(t *testing.T) {
	db := setupTestDB(t)
	cs := NewChoreStore(db)
	ts := NewTagStore(db)

	c := testChore("Dust shelves", model.Schedule{Kind: model.ScheduleInterval, IntervalDays: 14})
	if err := cs.Create(c); err != nil {
		t.Fatalf("create chore: %v", err)
	}
	tag := &model.Tag{ID: uuid.New(), Name: "indoor"}
	if err := ts.Create(tag); err != nil {
		t.Fatalf("create tag: %v", err)
	}
	if err := ts.Attach(c.ID, tag.ID); err != nil {
		t.Fatalf("attach: %v", err)
	}

	if err := ts.Delete(tag.ID); err != nil {
		t.Fatalf("delete tag: %v", err)
	}

	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM chore_tags").Scan(&n); err != nil {
		t.Fatalf("count chore_tags: %v", err)
	}
	if n != 0 {
		t.Errorf("%d chore_tags rows after tag delete, want 0", n)
	}

	// The chore itself survives.
	got, err := cs.Get(c.ID)
	if err != nil || got == nil {
		t.Fatalf("chore missing after tag delete: %v", err)
	}
}

func TestTagUniqueName(t *testing.T) {
	db := setupTestDB(t)
	ts := NewTagStore(db)

	if err := ts.Create(&model.Tag{ID: uuid.New(), Name: "kitchen"}); err != nil {
		t.Fatalf("create tag: %v", err)
	}
	if err := ts.Create(&model.Tag{ID: uuid.New(), Name: "kitchen"}); err == nil {
		t.Error("duplicate tag name accepted")
	}
}
