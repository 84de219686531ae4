package artifact

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"reelforge/internal/services"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	return store
}

func TestPutIsIdempotent(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	payload := []byte("keyframe bytes")

	first, err := store.Put(ctx, payload, PutOptions{Kind: KindImage, Ext: "png"})
	if err != nil {
		t.Fatalf("first put: %v", err)
	}
	second, err := store.Put(ctx, payload, PutOptions{Kind: KindImage, Ext: "png"})
	if err != nil {
		t.Fatalf("second put: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("content addressing broken: %s != %s", first.ID, second.ID)
	}
	if first.Path != second.Path || first.CreatedAt != second.CreatedAt {
		t.Fatalf("second put should return the existing record unchanged: %+v vs %+v", first, second)
	}

	entries, err := os.ReadDir(store.Root())
	if err != nil {
		t.Fatalf("read store dir: %v", err)
	}
	payloads := 0
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".json") || strings.HasSuffix(name, ".lock") {
			continue
		}
		payloads++
	}
	if payloads != 1 {
		t.Fatalf("expected exactly one stored payload, found %d", payloads)
	}
}

func TestPutDistinctPayloadsGetDistinctIDs(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	a, err := store.Put(ctx, []byte("frame a"), PutOptions{Kind: KindImage, Ext: "jpg"})
	if err != nil {
		t.Fatalf("put a: %v", err)
	}
	b, err := store.Put(ctx, []byte("frame b"), PutOptions{Kind: KindImage, Ext: "jpg"})
	if err != nil {
		t.Fatalf("put b: %v", err)
	}
	if a.ID == b.ID {
		t.Fatal("distinct payloads must hash to distinct ids")
	}
}

func TestConcurrentPutSamePayload(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	payload := []byte("contended payload")

	const workers = 16
	ids := make([]string, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(slot int) {
			defer wg.Done()
			record, err := store.Put(ctx, payload, PutOptions{Kind: KindVideo, Ext: "mp4"})
			if err != nil {
				t.Errorf("concurrent put: %v", err)
				return
			}
			ids[slot] = record.ID
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("concurrent puts produced divergent ids: %v", ids)
		}
	}
	record, err := store.Get(ctx, ids[0])
	if err != nil {
		t.Fatalf("get after concurrent puts: %v", err)
	}
	data, err := os.ReadFile(record.Path)
	if err != nil {
		t.Fatalf("read payload: %v", err)
	}
	if string(data) != string(payload) {
		t.Fatalf("payload corrupted under concurrency: %q", data)
	}
}

func TestGetMissingArtifact(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	_, err := store.Get(context.Background(), HashPayload([]byte("never stored")))
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
}

func TestResolvePath(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	record, err := store.Put(ctx, []byte("segment video"), PutOptions{Kind: KindVideo, Ext: "mp4"})
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	path, err := store.ResolvePath(record.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if path != record.Path {
		t.Fatalf("resolved path mismatch: %q vs %q", path, record.Path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("resolved path should exist: %v", err)
	}
}

func TestStatsCountsEntries(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()
	if _, err := store.Put(ctx, []byte("one"), PutOptions{Kind: KindImage, Ext: "png"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := store.Put(ctx, []byte("two"), PutOptions{Kind: KindImage, Ext: "png"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Entries != 2 {
		t.Fatalf("expected 2 entries, got %d", stats.Entries)
	}
	if stats.TotalBytes != int64(len("one")+len("two")) {
		t.Fatalf("unexpected total bytes: %d", stats.TotalBytes)
	}
}
