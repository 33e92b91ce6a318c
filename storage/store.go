// Package storage adapts core/rawdb's key/value schema into the durable
// transaction shape the blockchain tree expects (core/blocktree.Database,
// core/blocktree.Tx): one batched write per Tx, committed or rolled back
// as a unit.
package storage

import (
	"fmt"

	"github.com/eth2030/eth2030/core/blocktree"
	"github.com/eth2030/eth2030/core/rawdb"
	"github.com/eth2030/eth2030/core/types"
)

// Store is a blocktree.Database backed by a rawdb key/value store. It wraps
// a ChainDB for the read paths (ReadBlock, ReadHeader, ...) that tooling and
// tests use to inspect what the tree has persisted.
type Store struct {
	db    rawdb.Database
	chain *rawdb.ChainDB
}

// NewMemoryStore creates a Store backed by an in-memory map, for tests and
// short-lived tooling.
func NewMemoryStore() *Store {
	db := rawdb.NewMemoryDB()
	return &Store{db: db, chain: rawdb.NewChainDB(db)}
}

// NewPebbleStore opens (or creates) a Store backed by a Pebble LSM-tree
// database at dir.
func NewPebbleStore(dir string) (*Store, error) {
	db, err := rawdb.OpenPebbleDB(dir)
	if err != nil {
		return nil, fmt.Errorf("opening pebble store: %w", err)
	}
	return &Store{db: db, chain: rawdb.NewChainDB(db)}, nil
}

// ChainDB exposes the underlying ChainDB for read-only inspection (by
// tooling and tests); the tree itself never reads through it.
func (s *Store) ChainDB() *rawdb.ChainDB { return s.chain }

// Close releases the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// TxMut opens a new batched transaction. The batch is buffered in memory
// and flushed atomically to the store on Commit.
func (s *Store) TxMut() (blocktree.Tx, error) {
	return &Transaction{db: s.db, batch: s.db.NewBatch()}, nil
}

// Transaction buffers writes in a rawdb.Batch and flushes them atomically
// on Commit. It implements blocktree.Tx. Reads needed to stage a delete
// (e.g. resolving the hash at a canonical number before removing it) go
// against db directly, since a Batch is write-only.
type Transaction struct {
	db    rawdb.Database
	batch rawdb.Batch
	done  bool
}

// PutPendingBlock stages a side-chain block for write, keyed by hash alone.
func (tx *Transaction) PutPendingBlock(hash types.Hash, block *types.Block) error {
	data, err := block.EncodeRLP()
	if err != nil {
		return fmt.Errorf("encoding pending block: %w", err)
	}
	return rawdb.WritePendingBlock(tx.batch, [32]byte(hash), data)
}

// DeletePendingBlock stages removal of a parked side-chain block.
func (tx *Transaction) DeletePendingBlock(hash types.Hash) error {
	return rawdb.DeletePendingBlock(tx.batch, [32]byte(hash))
}

// WriteCanonical stages header, body, and canonical-hash-pointer writes for
// a block being promoted to canonical history.
func (tx *Transaction) WriteCanonical(number uint64, hash types.Hash, block *types.Block) error {
	headerData, err := block.Header().EncodeRLP()
	if err != nil {
		return fmt.Errorf("encoding header: %w", err)
	}
	if err := rawdb.WriteHeader(tx.batch, number, [32]byte(hash), headerData); err != nil {
		return fmt.Errorf("staging header: %w", err)
	}

	bodyData, err := rawdb.EncodeBlockBody(block)
	if err != nil {
		return fmt.Errorf("encoding body: %w", err)
	}
	if err := rawdb.WriteBody(tx.batch, number, [32]byte(hash), bodyData); err != nil {
		return fmt.Errorf("staging body: %w", err)
	}

	if err := rawdb.WriteCanonicalHash(tx.batch, number, [32]byte(hash)); err != nil {
		return fmt.Errorf("staging canonical hash: %w", err)
	}
	return rawdb.WriteHeadBlockHash(tx.batch, [32]byte(hash))
}

// DeleteCanonical stages removal of the canonical header, body, and
// canonical-hash pointer at number, used to unwind history during a reorg.
func (tx *Transaction) DeleteCanonical(number uint64) error {
	hash, err := rawdb.ReadCanonicalHash(tx.db, number)
	if err == nil {
		if delErr := rawdb.DeleteHeader(tx.batch, number, hash); delErr != nil {
			return fmt.Errorf("staging header delete: %w", delErr)
		}
		if delErr := rawdb.DeleteBody(tx.batch, number, hash); delErr != nil {
			return fmt.Errorf("staging body delete: %w", delErr)
		}
	}
	return rawdb.DeleteCanonicalHash(tx.batch, number)
}

// Commit flushes the batch atomically to the store.
func (tx *Transaction) Commit() error {
	if tx.done {
		return fmt.Errorf("transaction already closed")
	}
	tx.done = true
	return tx.batch.Write()
}

// Rollback discards the batch without touching the store.
func (tx *Transaction) Rollback() error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.batch.Reset()
	return nil
}
