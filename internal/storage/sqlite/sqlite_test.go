package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mmynk/splitsmart/internal/models"
	"github.com/mmynk/splitsmart/internal/storage"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func float64p(v float64) *float64 { return &v }

const testOwner = "owner-1"

func dinner() *models.SavedSplit {
	return &models.SavedSplit{
		Owner: testOwner,
		Receipt: models.Receipt{
			Items: []models.ReceiptItem{
				{ID: "1", Description: "Pizza", Price: 20, Quantity: 1},
				{ID: "2", Description: "Beer", Price: 10, Quantity: 2},
			},
			Subtotal: 30, Tax: 3, Tip: 6, Total: 39, Currency: "€",
		},
		Assignments:        models.AssignmentMap{"1": {"Bob", "Alice"}, "2": {"Bob"}},
		ManualSplits:       models.ItemManualSplitsMap{"1": {"Alice": 15, "Bob": 5}},
		Overrides:          models.ItemOverridesMap{"2": {Tip: float64p(1.5)}},
		DistributionMethod: models.Manual,
		Participants:       []string{"Bob", "Alice"},
		Payments:           map[string]float64{"Alice": 39},
		Total:              39,
		Currency:           "€",
	}
}

func TestSQLiteStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	t.Run("SaveSplit generates ID and title", func(t *testing.T) {
		split := dinner()
		if err := store.SaveSplit(ctx, split); err != nil {
			t.Fatalf("SaveSplit failed: %v", err)
		}
		if split.ID == "" {
			t.Error("Expected split ID to be generated")
		}
		if split.Title != "Split with Bob, Alice" {
			t.Errorf("Title = %q, want %q", split.Title, "Split with Bob, Alice")
		}
		if split.Timestamp == 0 {
			t.Error("Expected Timestamp to be set")
		}
		if split.ItemCount != 2 {
			t.Errorf("ItemCount = %d, want 2", split.ItemCount)
		}
	})

	t.Run("GetSplit retrieves complete split", func(t *testing.T) {
		original := dinner()
		original.Title = "Friday dinner"
		if err := store.SaveSplit(ctx, original); err != nil {
			t.Fatalf("SaveSplit failed: %v", err)
		}

		got, err := store.GetSplit(ctx, testOwner, original.ID)
		if err != nil {
			t.Fatalf("GetSplit failed: %v", err)
		}

		if got.Title != "Friday dinner" || got.DistributionMethod != models.Manual {
			t.Errorf("header = %q/%s", got.Title, got.DistributionMethod)
		}
		if got.Receipt.Currency != "€" || got.Receipt.Total != 39 || got.Receipt.Tip != 6 {
			t.Errorf("receipt totals = %+v", got.Receipt)
		}
		if len(got.Receipt.Items) != 2 || got.Receipt.Items[0].Description != "Pizza" || got.Receipt.Items[1].Quantity != 2 {
			t.Errorf("items = %+v", got.Receipt.Items)
		}
		if names := got.Assignments["1"]; len(names) != 2 || names[0] != "Bob" || names[1] != "Alice" {
			t.Errorf("assignment order lost: %v", names)
		}
		if got.ManualSplits["1"]["Alice"] != 15 || got.ManualSplits["1"]["Bob"] != 5 {
			t.Errorf("manual splits = %+v", got.ManualSplits)
		}
		o := got.Overrides["2"]
		if o.Tax != nil || o.Tip == nil || *o.Tip != 1.5 {
			t.Errorf("override = %+v, want tip only", o)
		}
		if got.Payments["Alice"] != 39 {
			t.Errorf("payments = %+v", got.Payments)
		}
		if len(got.Participants) != 2 || got.Participants[0] != "Bob" {
			t.Errorf("participants = %v", got.Participants)
		}
	})

	t.Run("SaveSplit replaces existing split", func(t *testing.T) {
		split := dinner()
		if err := store.SaveSplit(ctx, split); err != nil {
			t.Fatalf("SaveSplit failed: %v", err)
		}
		split.Assignments = models.AssignmentMap{"1": {"Carol"}}
		split.Participants = []string{"Carol"}
		split.ManualSplits = nil
		if err := store.SaveSplit(ctx, split); err != nil {
			t.Fatalf("second SaveSplit failed: %v", err)
		}

		got, err := store.GetSplit(ctx, testOwner, split.ID)
		if err != nil {
			t.Fatalf("GetSplit failed: %v", err)
		}
		if len(got.Assignments) != 1 || got.Assignments["1"][0] != "Carol" {
			t.Errorf("assignments = %+v", got.Assignments)
		}
		if len(got.ManualSplits) != 0 {
			t.Errorf("stale manual splits = %+v", got.ManualSplits)
		}
	})

	t.Run("GetSplit returns ErrNotFound", func(t *testing.T) {
		_, err := store.GetSplit(ctx, testOwner, "non-existent-id")
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetSplit error = %v, want ErrNotFound", err)
		}
	})
}

func TestSQLiteStore_ListDeleteClear(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 19, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		split := dinner()
		split.Timestamp = base.Add(time.Duration(i) * time.Hour).Unix()
		if err := store.SaveSplit(ctx, split); err != nil {
			t.Fatalf("SaveSplit failed: %v", err)
		}
		ids = append(ids, split.ID)
	}

	list, err := store.ListSplits(ctx, testOwner, 0)
	if err != nil {
		t.Fatalf("ListSplits failed: %v", err)
	}
	if len(list) != 3 || list[0].ID != ids[2] || list[2].ID != ids[0] {
		t.Fatalf("ListSplits should be newest first, got %d entries", len(list))
	}
	if list[0].Total != 39 || list[0].Currency != "€" || len(list[0].Participants) != 2 {
		t.Errorf("header = %+v", list[0])
	}

	limited, err := store.ListSplits(ctx, testOwner, 2)
	if err != nil || len(limited) != 2 {
		t.Fatalf("ListSplits(2) = %d, %v", len(limited), err)
	}

	if err := store.DeleteSplit(ctx, testOwner, ids[1]); err != nil {
		t.Fatalf("DeleteSplit failed: %v", err)
	}
	if err := store.DeleteSplit(ctx, testOwner, ids[1]); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second DeleteSplit error = %v, want ErrNotFound", err)
	}

	n, err := store.ClearSplits(ctx, testOwner)
	if err != nil || n != 2 {
		t.Fatalf("ClearSplits() = %d, %v; want 2", n, err)
	}
	if list, _ := store.ListSplits(ctx, testOwner, 0); len(list) != 0 {
		t.Errorf("history not cleared: %d left", len(list))
	}
}

func TestSQLiteStore_OwnerScoping(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mine := dinner()
	if err := store.SaveSplit(ctx, mine); err != nil {
		t.Fatalf("SaveSplit failed: %v", err)
	}
	theirs := dinner()
	theirs.Owner = "owner-2"
	if err := store.SaveSplit(ctx, theirs); err != nil {
		t.Fatalf("SaveSplit failed: %v", err)
	}

	tests := []struct {
		name         string
		validateFunc func(t *testing.T)
	}{
		{
			name: "list shows only own splits",
			validateFunc: func(t *testing.T) {
				list, err := store.ListSplits(ctx, "owner-2", 0)
				if err != nil || len(list) != 1 || list[0].ID != theirs.ID {
					t.Errorf("ListSplits(owner-2) = %d entries, %v", len(list), err)
				}
			},
		},
		{
			name: "get of another owner's split is not found",
			validateFunc: func(t *testing.T) {
				if _, err := store.GetSplit(ctx, "owner-2", mine.ID); !errors.Is(err, storage.ErrNotFound) {
					t.Errorf("GetSplit error = %v, want ErrNotFound", err)
				}
			},
		},
		{
			name: "delete of another owner's split is not found",
			validateFunc: func(t *testing.T) {
				if err := store.DeleteSplit(ctx, "owner-2", mine.ID); !errors.Is(err, storage.ErrNotFound) {
					t.Errorf("DeleteSplit error = %v, want ErrNotFound", err)
				}
			},
		},
		{
			name: "save over another owner's split is refused",
			validateFunc: func(t *testing.T) {
				hijack := dinner()
				hijack.ID = mine.ID
				hijack.Owner = "owner-2"
				hijack.Title = "mine now"
				if err := store.SaveSplit(ctx, hijack); !errors.Is(err, storage.ErrNotOwner) {
					t.Errorf("SaveSplit error = %v, want ErrNotOwner", err)
				}
			},
		},
		{
			name: "clear only removes own splits",
			validateFunc: func(t *testing.T) {
				n, err := store.ClearSplits(ctx, "owner-2")
				if err != nil || n != 1 {
					t.Fatalf("ClearSplits(owner-2) = %d, %v; want 1", n, err)
				}
				got, err := store.GetSplit(ctx, testOwner, mine.ID)
				if err != nil {
					t.Fatalf("own split gone: %v", err)
				}
				if got.Title == "mine now" || got.Owner != testOwner {
					t.Errorf("own split modified: %+v", got)
				}
			},
		},
		{
			name: "owner is required",
			validateFunc: func(t *testing.T) {
				orphan := dinner()
				orphan.Owner = ""
				if err := store.SaveSplit(ctx, orphan); err == nil {
					t.Error("SaveSplit without owner should fail")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.validateFunc)
	}
}

func TestSQLiteStore_ReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "splits.db")
	store, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	split := dinner()
	if err := store.SaveSplit(context.Background(), split); err != nil {
		t.Fatalf("SaveSplit failed: %v", err)
	}
	store.Close()

	reopened, err := New(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.GetSplit(context.Background(), testOwner, split.ID); err != nil {
		t.Errorf("GetSplit after reopen: %v", err)
	}
}

func TestGenerateTitle(t *testing.T) {
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		participants []string
		want         string
	}{
		{nil, "Split - Mar 1, 2025"},
		{[]string{"Alice"}, "Split with Alice"},
		{[]string{"Alice", "Bob", "Carol"}, "Split with Alice, Bob, Carol"},
		{[]string{"Alice", "Bob", "Carol", "Dan", "Eve"}, "Split with Alice, Bob and 3 others"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.participants, "+"), func(t *testing.T) {
			if got := generateTitle(tt.participants, at); got != tt.want {
				t.Errorf("generateTitle() = %q, want %q", got, tt.want)
			}
		})
	}
}
