package rawdb

import (
	"bytes"

	"github.com/cockroachdb/pebble"
)

// PebbleDB is a Database backed by a Pebble LSM-tree store on disk. It is
// the durable backend a BlockchainTree persists canonical blocks (when
// MakeCanonical commits) and parked side-chain blocks to; MemoryDB covers
// tests and short-lived tooling.
type PebbleDB struct {
	db *pebble.DB
}

// OpenPebbleDB opens (or creates) a Pebble database at the given directory.
func OpenPebbleDB(dir string) (*PebbleDB, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &PebbleDB{db: db}, nil
}

func (p *PebbleDB) Has(key []byte) (bool, error) {
	v, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	closer.Close()
	_ = v
	return true, nil
}

func (p *PebbleDB) Get(key []byte) ([]byte, error) {
	v, closer, err := p.db.Get(key)
	if err == pebble.ErrNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (p *PebbleDB) Put(key, value []byte) error {
	return p.db.Set(key, value, pebble.Sync)
}

func (p *PebbleDB) Delete(key []byte) error {
	return p.db.Delete(key, pebble.Sync)
}

func (p *PebbleDB) Close() error {
	return p.db.Close()
}

// NewBatch returns a batch writer that flushes atomically via Pebble's
// native batch support.
func (p *PebbleDB) NewBatch() Batch {
	return &pebbleBatch{db: p.db, batch: p.db.NewBatch()}
}

// NewIterator returns a key-ordered iterator over all keys with the given
// prefix.
func (p *PebbleDB) NewIterator(prefix []byte) Iterator {
	upper := upperBound(prefix)
	it, _ := p.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: upper})
	it.First()
	return &pebbleIterator{it: it, started: true}
}

// upperBound computes the smallest key that is strictly greater than every
// key sharing the given prefix, bounding a prefix scan.
func upperBound(prefix []byte) []byte {
	end := bytes.Clone(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] != 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil // prefix is all 0xff bytes: unbounded above
}

type pebbleBatch struct {
	db    *pebble.DB
	batch *pebble.Batch
	size  int
}

func (b *pebbleBatch) Put(key, value []byte) error {
	b.size += len(key) + len(value)
	return b.batch.Set(key, value, nil)
}

func (b *pebbleBatch) Delete(key []byte) error {
	b.size += len(key)
	return b.batch.Delete(key, nil)
}

func (b *pebbleBatch) ValueSize() int { return b.size }

func (b *pebbleBatch) Write() error {
	return b.batch.Commit(pebble.Sync)
}

func (b *pebbleBatch) Reset() {
	b.batch.Reset()
	b.size = 0
}

type pebbleIterator struct {
	it      *pebble.Iterator
	started bool
}

func (it *pebbleIterator) Next() bool {
	if it.started {
		it.started = false
		return it.it.Valid()
	}
	return it.it.Next()
}

func (it *pebbleIterator) Key() []byte {
	if !it.it.Valid() {
		return nil
	}
	return bytes.Clone(it.it.Key())
}

func (it *pebbleIterator) Value() []byte {
	if !it.it.Valid() {
		return nil
	}
	return bytes.Clone(it.it.Value())
}

func (it *pebbleIterator) Release() { it.it.Close() }
