package store

import (
	"context"
	"testing"
)

type widget struct {
	ID    int    `json:"id"`
	Group string `json:"group"`
	Rank  int    `json:"rank"`
	Name  string `json:"name"`
}

func TestMemStorePutAssignsIds(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	a := &widget{Group: "g1", Name: "a"}
	b := &widget{Group: "g1", Name: "b"}
	if err := s.Put(ctx, EntityTaskInstance, a); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, EntityTaskInstance, b); err != nil {
		t.Fatal(err)
	}
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("expected autoincrement ids 1,2 got %d,%d", a.ID, b.ID)
	}
}

func TestMemStorePutReplacesById(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	w := &widget{Group: "g1", Name: "before"}
	if err := s.Put(ctx, EntityTaskInstance, w); err != nil {
		t.Fatal(err)
	}
	w.Name = "after"
	if err := s.Put(ctx, EntityTaskInstance, w); err != nil {
		t.Fatal(err)
	}

	var got widget
	if err := s.Get(ctx, EntityTaskInstance, &got, Conds{"id": w.ID}); err != nil {
		t.Fatal(err)
	}
	if got.Name != "after" {
		t.Fatalf("expected replaced record, got %q", got.Name)
	}

	var all []*widget
	if err := s.List(ctx, EntityTaskInstance, &all, nil, "id"); err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 {
		t.Fatalf("expected one record after replace, got %d", len(all))
	}
}

func TestMemStoreGetNotFound(t *testing.T) {
	s := NewMemStore()
	var got widget
	err := s.Get(context.Background(), EntityTaskInstance, &got, Conds{"id": 99})
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemStoreListFilterAndOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	for _, w := range []*widget{
		{Group: "g1", Rank: 3},
		{Group: "g2", Rank: 1},
		{Group: "g1", Rank: 1},
		{Group: "g1", Rank: 2},
	} {
		if err := s.Put(ctx, EntityTaskInstance, w); err != nil {
			t.Fatal(err)
		}
	}

	var got []*widget
	if err := s.List(ctx, EntityTaskInstance, &got, Conds{"group": "g1"}, "rank"); err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	for i, want := range []int{1, 2, 3} {
		if got[i].Rank != want {
			t.Fatalf("position %d: expected rank %d, got %d", i, want, got[i].Rank)
		}
	}

	if err := s.List(ctx, EntityTaskInstance, &got, Conds{"group": "g1"}, "rank DESC"); err != nil {
		t.Fatal(err)
	}
	if got[0].Rank != 3 || got[2].Rank != 1 {
		t.Fatalf("expected descending order, got %v %v %v", got[0].Rank, got[1].Rank, got[2].Rank)
	}
}

func TestMemStoreAppendOnlyRejectsDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	first := &widget{Group: "g1", Rank: 1}
	if err := s.AppendOnly(ctx, EntityKPIRecord, first, "group", "rank"); err != nil {
		t.Fatal(err)
	}
	dup := &widget{Group: "g1", Rank: 1}
	if err := s.AppendOnly(ctx, EntityKPIRecord, dup, "group", "rank"); err != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	next := &widget{Group: "g1", Rank: 2}
	if err := s.AppendOnly(ctx, EntityKPIRecord, next, "group", "rank"); err != nil {
		t.Fatalf("distinct key should append: %v", err)
	}
}
