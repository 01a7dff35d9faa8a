package storage

import (
	"sync"

	"github.com/uhyunpark/hyperlicked/pkg/consensus"
)

// InMemoryStore is a non-durable AtomicStorage used by tests and
// single-process demos: Commit only moves staged entries into the
// in-memory committed maps rather than fsync'ing anything, but it honours the same
// stage-then-commit visibility contract so tests can exercise the
// uncommitted/committed distinction without touching disk.
type InMemoryStore struct {
	mu sync.Mutex

	committedViews map[consensus.View]viewEntry
	committedBlock map[consensus.Commitment]consensus.Block

	stagedViews map[consensus.View]viewEntry
	stagedBlock map[consensus.Commitment]consensus.Block
	stagedDel   map[consensus.View]bool
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		committedViews: make(map[consensus.View]viewEntry),
		committedBlock: make(map[consensus.Commitment]consensus.Block),
		stagedViews:    make(map[consensus.View]viewEntry),
		stagedBlock:    make(map[consensus.Commitment]consensus.Block),
		stagedDel:      make(map[consensus.View]bool),
	}
}

func (s *InMemoryStore) AppendSingleView(view consensus.View, leaf consensus.Leaf, qc consensus.Certificate, block consensus.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stagedViews[view] = viewEntry{Leaf: leaf, QC: qc}
	s.stagedBlock[leaf.Header.PayloadCommitment] = block
	return nil
}

func (s *InMemoryStore) CleanupStorageUpToView(upTo consensus.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for v := range s.committedViews {
		if v < upTo {
			s.stagedDel[v] = true
		}
	}
	return nil
}

func (s *InMemoryStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for v, e := range s.stagedViews {
		s.committedViews[v] = e
	}
	for h, b := range s.stagedBlock {
		s.committedBlock[h] = b
	}
	for v := range s.stagedDel {
		delete(s.committedViews, v)
	}
	s.stagedViews = make(map[consensus.View]viewEntry)
	s.stagedBlock = make(map[consensus.Commitment]consensus.Block)
	s.stagedDel = make(map[consensus.View]bool)
	return nil
}

func (s *InMemoryStore) GetBlock(h consensus.Commitment) (consensus.Block, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.committedBlock[h]
	return b, ok
}

func (s *InMemoryStore) GetView(v consensus.View) (consensus.Leaf, consensus.Certificate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.committedViews[v]
	return e.Leaf, e.QC, ok
}

func (s *InMemoryStore) UncommittedChangeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stagedViews) + len(s.stagedBlock) + len(s.stagedDel)
}

var _ consensus.AtomicStorage = (*InMemoryStore)(nil)
