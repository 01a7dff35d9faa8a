// Package storage implements the node's durable chain storage: an
// AtomicStore backed by cockroachdb/pebble satisfying
// consensus.AtomicStorage. Writes accumulate in a pebble.Batch (the
// "uncommitted" staging area) and only become visible to a fresh open,
// or to GetBlock, once Commit flushes that batch with pebble.Sync —
// matching the atomicity/durability contract exercised by
// original_source/tests/atomic_storage.rs.
package storage

import (
	"fmt"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/uhyunpark/hyperlicked/pkg/consensus"
)

// viewEntry is the gob-encoded record stored per decided view.
type viewEntry struct {
	Leaf consensus.Leaf
	QC   consensus.Certificate
}

type AtomicStore struct {
	mu    sync.Mutex
	db    *pebble.DB
	batch *pebble.Batch
}

func NewAtomicStore(path string) (*AtomicStore, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open pebble store: %w", err)
	}
	return &AtomicStore{db: db, batch: db.NewBatch()}, nil
}

func (s *AtomicStore) Close() error { return s.db.Close() }

func kView(v consensus.View) []byte        { return append([]byte("v:"), viewKey(v)...) }
func kBlock(h consensus.Commitment) []byte { return append([]byte("blk:"), h[:]...) }

// AppendSingleView stages a decided leaf, its justifying certificate and
// its block payload for the next Commit. It does not touch disk.
func (s *AtomicStore) AppendSingleView(view consensus.View, leaf consensus.Leaf, qc consensus.Certificate, block consensus.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entryBytes, err := encodeGob(viewEntry{Leaf: leaf, QC: qc})
	if err != nil {
		return fmt.Errorf("encode view entry: %w", err)
	}
	if err := s.batch.Set(kView(view), entryBytes, nil); err != nil {
		return fmt.Errorf("stage view entry: %w", err)
	}

	blockBytes, err := encodeGob(block)
	if err != nil {
		return fmt.Errorf("encode block: %w", err)
	}
	if err := s.batch.Set(kBlock(leaf.Header.PayloadCommitment), blockBytes, nil); err != nil {
		return fmt.Errorf("stage block: %w", err)
	}
	return nil
}

// CleanupStorageUpToView stages deletion of every view entry strictly
// below the given view — the anchor no longer needs them once the
// corresponding leaves are GC'd from the in-memory chain (§6.2).
func (s *AtomicStore) CleanupStorageUpToView(upTo consensus.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte("v:"),
		UpperBound: []byte("v;"), // ';' follows ':' so this bounds the "v:" prefix
	})
	if err != nil {
		return fmt.Errorf("cleanup iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) < 2+8 {
			continue
		}
		v := consensus.View(beUint64(key[2:10]))
		if v < upTo {
			if err := s.batch.Delete(append([]byte(nil), key...), nil); err != nil {
				return fmt.Errorf("stage delete: %w", err)
			}
		}
	}
	return nil
}

func beUint64(b []byte) uint64 {
	var v uint64
	for _, c := range b {
		v = v<<8 | uint64(c)
	}
	return v
}

// Commit atomically and durably flushes every staged write since the
// last Commit, then starts a fresh batch.
func (s *AtomicStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.batch.Count() == 0 {
		return nil
	}
	if err := s.batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	s.batch = s.db.NewBatch()
	return nil
}

// GetBlock returns a committed block by its payload commitment.
// Uncommitted writes are not visible.
func (s *AtomicStore) GetBlock(h consensus.Commitment) (consensus.Block, bool) {
	val, closer, err := s.db.Get(kBlock(h))
	if err != nil {
		return consensus.Block{}, false
	}
	defer closer.Close()

	var out consensus.Block
	if err := decodeGob(val, &out); err != nil {
		return consensus.Block{}, false
	}
	return out, true
}

// GetView returns the committed leaf/QC pair for a view, if any.
func (s *AtomicStore) GetView(v consensus.View) (consensus.Leaf, consensus.Certificate, bool) {
	val, closer, err := s.db.Get(kView(v))
	if err != nil {
		return consensus.Leaf{}, consensus.Certificate{}, false
	}
	defer closer.Close()

	var entry viewEntry
	if err := decodeGob(val, &entry); err != nil {
		return consensus.Leaf{}, consensus.Certificate{}, false
	}
	return entry.Leaf, entry.QC, true
}

// UncommittedChangeCount reports the number of staged writes not yet
// flushed by Commit.
func (s *AtomicStore) UncommittedChangeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int(s.batch.Count())
}

var _ consensus.AtomicStorage = (*AtomicStore)(nil)
