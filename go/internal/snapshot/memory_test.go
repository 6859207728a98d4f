package snapshot

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	userID := uuid.New()

	t.Run("load before save returns nothing", func(t *testing.T) {
		data, err := store.Load(ctx, userID)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if data != nil {
			t.Error("expected nil for a missing snapshot")
		}
	})

	t.Run("save then load round-trips", func(t *testing.T) {
		if err := store.Save(ctx, userID, []byte(`{"is_running":true}`)); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		data, err := store.Load(ctx, userID)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if string(data) != `{"is_running":true}` {
			t.Errorf("unexpected snapshot: %s", data)
		}
	})

	t.Run("stored bytes are isolated from caller mutation", func(t *testing.T) {
		payload := []byte("original")
		if err := store.Save(ctx, userID, payload); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
		payload[0] = 'X'

		data, err := store.Load(ctx, userID)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if string(data) != "original" {
			t.Errorf("mutating the caller's slice must not change the stored snapshot, got %s", data)
		}
	})

	t.Run("clear removes the snapshot", func(t *testing.T) {
		if err := store.Clear(ctx, userID); err != nil {
			t.Fatalf("Clear failed: %v", err)
		}
		data, err := store.Load(ctx, userID)
		if err != nil {
			t.Fatalf("Load failed: %v", err)
		}
		if data != nil {
			t.Error("expected snapshot gone after Clear")
		}
	})
}
