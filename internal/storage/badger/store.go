package badger

import (
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/dlq-recover/internal/common"
	"github.com/ternarybob/dlq-recover/internal/interfaces"
)

// Store bundles the four BadgerDB-backed adapters the pipeline shares: the
// dedup Ledger, the classification Record store, the Semantic-Cache and the
// generic KV store. All four live in the same database, distinguished by
// badgerhold's per-type bucketing.
type Store struct {
	db     *BadgerDB
	Ledger interfaces.LedgerStore
	Record interfaces.RecordStore
	Cache  interfaces.SemanticCacheStore
	KV     interfaces.KeyValueStorage
}

// NewStore opens the BadgerDB database at config.Path and wires the Ledger,
// Record, Cache and KV adapters against it.
func NewStore(logger arbor.ILogger, config *common.BadgerConfig, ledgerTTL, recordTTL, cacheTTL time.Duration) (*Store, error) {
	db, err := NewBadgerDB(logger, config)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:     db,
		Ledger: NewLedgerStorage(db, logger, ledgerTTL),
		Record: NewRecordStorage(db, logger, recordTTL),
		Cache:  NewCacheStorage(db, logger, cacheTTL),
		KV:     NewKVStorage(db, logger),
	}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
