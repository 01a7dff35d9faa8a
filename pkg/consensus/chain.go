package consensus

import "sync"

// Chain is the total map from leaf_commitment -> Leaf, plus the
// highest-QC leaf and the anchor (last decided) leaf. Leaves are stored in
// an arena keyed by commitment (§9's "Cyclic references" design note):
// edges between leaves are commitments, never ownership handles, so the
// chain is a DAG trivially garbage-collectable below the anchor.
type Chain struct {
	mu sync.RWMutex

	leaves map[Commitment]Leaf

	highQC Certificate

	anchorView       View
	anchorCommitment Commitment
}

// NewChain seeds the arena with the genesis leaf and its certificate as
// both the initial highest-QC and the initial anchor.
func NewChain(genesis Leaf) *Chain {
	c := &Chain{leaves: make(map[Commitment]Leaf)}
	gc := genesis.Commitment()
	c.leaves[gc] = genesis
	c.highQC = genesis.JustifyQC
	c.anchorView = genesis.View
	c.anchorCommitment = gc
	return c
}

// Insert adds a leaf to the arena. Invariant (§3): for every non-genesis
// leaf L, chain contains L.parent and L.justify_qc.leaf_commitment ==
// L.parent. Returns ChainGapError if the parent is not yet known — the
// caller is responsible for bounded buffering of such leaves (§7).
func (c *Chain) Insert(l Leaf) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if l.View != 0 {
		if _, ok := c.leaves[l.ParentCommitment]; !ok {
			return ChainGapError(l.ParentCommitment)
		}
	}
	c.leaves[l.Commitment()] = l
	return nil
}

func (c *Chain) Get(commitment Commitment) (Leaf, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	l, ok := c.leaves[commitment]
	return l, ok
}

// UpdateHighQC replaces the tracked highest-QC if the new certificate is
// for a strictly later view.
func (c *Chain) UpdateHighQC(qc Certificate) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if qc.View > c.highQC.View {
		c.highQC = qc
	}
}

func (c *Chain) HighQC() Certificate {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.highQC
}

func (c *Chain) AnchorView() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.anchorView
}

// TryAdvance applies the three-chain commit rule: after updating
// highest_qc to qc, let L = leaves[qc.commitment]; if L, L.parent, and
// L.parent.parent form three consecutive-view ancestors (each justified
// by the next's QC), then L.parent.parent is decided. All undecided
// ancestors of the decided leaf (back to the previous anchor) are
// returned newest first (the decided leaf at index 0), the anchor advances
// to the decided leaf, and leaves/accumulators below the new anchor become
// eligible for GC (the caller invokes GCBelowView on its AccumulatorSet
// and calls GC here after consuming the Decide event).
func (c *Chain) TryAdvance(qc Certificate) (decided []Leaf, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if qc.View > c.highQC.View {
		c.highQC = qc
	}

	l, have := c.leaves[qc.Commitment]
	if !have {
		return nil, false
	}
	parent, have := c.leaves[l.ParentCommitment]
	if !have {
		return nil, false
	}
	grandparent, have := c.leaves[parent.ParentCommitment]
	if !have {
		return nil, false
	}

	// Three consecutive views, each justified by the next's QC.
	if parent.View != grandparent.View+1 || l.View != parent.View+1 {
		return nil, false
	}
	if l.JustifyQC.Commitment != parent.Commitment() {
		return nil, false
	}
	if parent.JustifyQC.Commitment != grandparent.Commitment() {
		return nil, false
	}

	if grandparent.View <= c.anchorView {
		return nil, false // already decided at or before this point
	}

	// Walk back from grandparent to (but not including) the previous
	// anchor, collecting every undecided ancestor — catch-up commit
	// (§8 scenario 4) when more than one leaf was pending. Starting at
	// grandparent (newest) and walking toward the anchor (oldest) builds
	// the slice newest-first already, matching §4.5's Decide contract.
	decided = []Leaf{grandparent}
	cursor := grandparent
	for cursor.View > c.anchorView+1 && cursor.ParentCommitment != c.anchorCommitment {
		p, have := c.leaves[cursor.ParentCommitment]
		if !have {
			break
		}
		decided = append(decided, p)
		cursor = p
	}

	c.anchorView = grandparent.View
	c.anchorCommitment = grandparent.Commitment()
	return decided, true
}

// GCBelowAnchor drops leaves strictly below the current anchor view,
// keeping the anchor leaf itself as the new root of the arena.
func (c *Chain) GCBelowAnchor() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, l := range c.leaves {
		if l.View < c.anchorView {
			delete(c.leaves, k)
		}
	}
}
