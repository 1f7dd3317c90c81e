package storage

import (
	"context"
	"testing"
)

func TestMemBlobStorePutThenGetRoundTrip(t *testing.T) {
	store := NewMemBlobStore()
	ctx := context.Background()

	gen, err := store.Put(ctx, "calendar/2026-07.json", []byte(`{"a":1}`), "")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if gen == "" {
		t.Fatalf("expected a non-empty generation token")
	}

	data, got, err := store.Get(ctx, "calendar/2026-07.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(data) != `{"a":1}` || got != gen {
		t.Fatalf("unexpected roundtrip: data=%s gen=%s want gen=%s", data, got, gen)
	}
}

func TestMemBlobStorePutRejectsStaleGeneration(t *testing.T) {
	store := NewMemBlobStore()
	ctx := context.Background()

	gen, err := store.Put(ctx, "k", []byte("v1"), "")
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Writer A reads gen, writer B updates first.
	if _, err := store.Put(ctx, "k", []byte("v2"), gen); err != nil {
		t.Fatalf("Put by writer B: %v", err)
	}
	// Writer A retries its stale write.
	if _, err := store.Put(ctx, "k", []byte("v1-retry"), gen); err != ErrGenerationConflict {
		t.Fatalf("expected ErrGenerationConflict, got %v", err)
	}
}

func TestMemBlobStorePutRequiresEmptyGenerationForNewKey(t *testing.T) {
	store := NewMemBlobStore()
	ctx := context.Background()

	if _, err := store.Put(ctx, "new-key", []byte("v"), "stale"); err != ErrGenerationConflict {
		t.Fatalf("expected ErrGenerationConflict for a nonexistent key with a nonempty expected generation, got %v", err)
	}
}

func TestMemBlobStoreGetMissingKey(t *testing.T) {
	store := NewMemBlobStore()
	if _, _, err := store.Get(context.Background(), "missing"); err == nil {
		t.Fatalf("expected an error for a missing key")
	}
}
