package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/treasury-tracker/internal/types"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "snapshots.jsonl")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	return store, path
}

func TestFileStore_AppendAndLatest(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	rows := []types.Row{{"name": "Alpha", "coins": 10.0}}

	snap, err := store.Append(ctx, rows, types.CoinTag("bitcoin"))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if snap.ID == "" || snap.Timestamp == "" {
		t.Fatal("Expected snapshot to carry an ID and timestamp")
	}

	latest, err := store.Latest(ctx, types.CoinTag("bitcoin"))
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest == nil || latest.ID != snap.ID {
		t.Fatalf("Expected latest to return the appended snapshot")
	}
}

func TestFileStore_LatestIsInsertionOrder(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	first, _ := store.Append(ctx, []types.Row{{"n": 1.0}}, types.CoinTag("bitcoin"))
	second, _ := store.Append(ctx, []types.Row{{"n": 2.0}}, types.CoinTag("bitcoin"))
	_ = first

	latest, err := store.Latest(ctx, types.CoinTag("bitcoin"))
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.ID != second.ID {
		t.Errorf("Expected the last appended snapshot, got %s", latest.ID)
	}
}

func TestFileStore_LatestFiltersByCoin(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	btc, _ := store.Append(ctx, []types.Row{{"n": 1.0}}, types.CoinTag("bitcoin"))
	eth, _ := store.Append(ctx, []types.Row{{"n": 2.0}}, types.CoinTag("ethereum"))

	latest, err := store.Latest(ctx, types.CoinTag("bitcoin"))
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest.ID != btc.ID {
		t.Errorf("Expected bitcoin snapshot, got coin %s", latest.Coin)
	}

	// Empty tag means overall latest
	overall, err := store.Latest(ctx, "")
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if overall.ID != eth.ID {
		t.Errorf("Expected overall latest to be the last append, got %s", overall.ID)
	}
}

func TestFileStore_LatestMissReturnsNil(t *testing.T) {
	store, _ := newTestFileStore(t)

	latest, err := store.Latest(context.Background(), types.CoinTag("bitcoin"))
	if err != nil {
		t.Fatalf("Latest failed: %v", err)
	}
	if latest != nil {
		t.Fatal("Expected nil for a coin with no snapshots")
	}
}

func TestFileStore_LoadAllPreservesOrder(t *testing.T) {
	store, _ := newTestFileStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 5; i++ {
		coin := types.CoinTag("bitcoin")
		if i%2 == 1 {
			coin = types.CoinTag("ethereum")
		}
		snap, err := store.Append(ctx, []types.Row{{"i": float64(i)}}, coin)
		if err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		ids = append(ids, snap.ID)
	}

	snaps, err := store.LoadAll(ctx)
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(snaps) != len(ids) {
		t.Fatalf("Expected %d snapshots, got %d", len(ids), len(snaps))
	}
	for i, snap := range snaps {
		if snap.ID != ids[i] {
			t.Errorf("Snapshot %d out of order: expected %s, got %s", i, ids[i], snap.ID)
		}
	}
}

func TestFileStore_ReopenRebuildsIndex(t *testing.T) {
	store, path := newTestFileStore(t)
	ctx := context.Background()

	want, err := store.Append(ctx, []types.Row{{"name": "Alpha"}}, types.CoinTag("bitcoin"))
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	store.Close()

	reopened, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer reopened.Close()

	latest, err := reopened.Latest(ctx, types.CoinTag("bitcoin"))
	if err != nil {
		t.Fatalf("Latest after reopen failed: %v", err)
	}
	if latest == nil || latest.ID != want.ID {
		t.Fatal("Expected the persisted snapshot after reopen")
	}
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.jsonl")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("Expected missing file to be treated as empty, got %v", err)
	}
	defer store.Close()

	snaps, err := store.LoadAll(context.Background())
	if err != nil {
		t.Fatalf("LoadAll failed: %v", err)
	}
	if len(snaps) != 0 {
		t.Fatalf("Expected no snapshots, got %d", len(snaps))
	}
}

func TestFileStore_CorruptLineIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.jsonl")
	if err := os.WriteFile(path, []byte("{not json}\n"), 0o644); err != nil {
		t.Fatalf("Failed to seed corrupt file: %v", err)
	}

	_, err := NewFileStore(path)
	if err == nil {
		t.Fatal("Expected corruption error")
	}
	if !types.IsStoreCorrupt(err) {
		t.Fatalf("Expected StoreCorruptError, got %v", err)
	}
}

func TestFileStore_TruncatedTrailingLineIsFatal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshots.jsonl")
	store, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}
	if _, err := store.Append(context.Background(), []types.Row{{"name": "Alpha"}}, types.CoinTag("bitcoin")); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	store.Close()

	// Chop the trailing newline and some bytes to simulate a torn write
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read store file: %v", err)
	}
	if err := os.WriteFile(path, data[:len(data)-10], 0o644); err != nil {
		t.Fatalf("Failed to truncate store file: %v", err)
	}

	if _, err := NewFileStore(path); !types.IsStoreCorrupt(err) {
		t.Fatalf("Expected StoreCorruptError for torn trailing line, got %v", err)
	}
}
