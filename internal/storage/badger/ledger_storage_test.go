package badger

import (
	"context"
	"io/ioutil"
	"os"
	"testing"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/timshannon/badgerhold/v4"

	"github.com/ternarybob/dlq-recover/internal/models"
)

func newTestBadgerDB(t *testing.T) (*BadgerDB, func()) {
	tmpDir, err := ioutil.TempDir("", "badger-ledger-test")
	if err != nil {
		t.Fatal(err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = tmpDir
	options.ValueDir = tmpDir

	store, err := badgerhold.Open(options)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatal(err)
	}

	db := &BadgerDB{store: store}
	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return db, cleanup
}

func TestLedgerStorage_UpsertFirstSightingThenSecond(t *testing.T) {
	db, cleanup := newTestBadgerDB(t)
	defer cleanup()

	logger := arbor.NewLogger()
	storage := NewLedgerStorage(db, logger, 7*24*time.Hour)
	ctx := context.Background()

	entry, err := storage.Upsert(ctx, "orders-dlq", "m1", func(existing *models.LedgerEntry) *models.LedgerEntry {
		if existing != nil {
			t.Fatal("expected nil existing entry on first sighting")
		}
		return &models.LedgerEntry{RetryCount: 0}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", entry.RetryCount)
	}

	entry2, err := storage.Upsert(ctx, "orders-dlq", "m1", func(existing *models.LedgerEntry) *models.LedgerEntry {
		if existing == nil {
			t.Fatal("expected existing entry on second sighting")
		}
		existing.RetryCount++
		return existing
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry2.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", entry2.RetryCount)
	}
}

func TestLedgerStorage_GetReturnsNotFoundWhenAbsent(t *testing.T) {
	db, cleanup := newTestBadgerDB(t)
	defer cleanup()

	storage := NewLedgerStorage(db, arbor.NewLogger(), time.Hour)
	_, err := storage.Get(context.Background(), "orders-dlq", "missing")
	if err == nil {
		t.Fatal("expected error for missing ledger entry")
	}
}

func TestLedgerStorage_ExpiredEntryTreatedAsAbsent(t *testing.T) {
	db, cleanup := newTestBadgerDB(t)
	defer cleanup()

	// A negative TTL means every entry is already expired by the time it's written.
	storage := NewLedgerStorage(db, arbor.NewLogger(), -time.Hour)
	ctx := context.Background()

	if _, err := storage.Upsert(ctx, "orders-dlq", "m1", func(existing *models.LedgerEntry) *models.LedgerEntry {
		return &models.LedgerEntry{RetryCount: 3}
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The next Upsert must see it as expired and treat it as first-seen again.
	entry, err := storage.Upsert(ctx, "orders-dlq", "m1", func(existing *models.LedgerEntry) *models.LedgerEntry {
		if existing != nil {
			t.Fatal("expected expired entry to be treated as absent")
		}
		return &models.LedgerEntry{RetryCount: 0}
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if entry.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0 after expiry reset", entry.RetryCount)
	}
}
