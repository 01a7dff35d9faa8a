package consensus

import "testing"

// buildLeaf constructs a leaf extending parent at the given view, with a
// justify-QC pointing at parent. Each leaf's header carries its view as
// height so assertions can read heights back off decided leaves.
func buildLeaf(view View, parent Leaf) Leaf {
	return Leaf{
		View:             view,
		ParentCommitment: parent.Commitment(),
		JustifyQC:        Certificate{View: parent.View, Commitment: parent.Commitment(), Kind: VoteYes},
		Header:           BlockHeader{Height: Height(view)},
		ProposerKey:      NodeID("leader"),
	}
}

func TestChain_InsertRejectsGapAndAcceptsLinkedLeaf(t *testing.T) {
	genesis := GenesisLeaf()
	c := NewChain(genesis)

	orphan := Leaf{View: 5, ParentCommitment: Commitment{0xFF}, Header: BlockHeader{Height: 5}}
	if err := c.Insert(orphan); err == nil {
		t.Fatalf("Insert should reject a leaf whose parent is unknown")
	}

	l1 := buildLeaf(1, genesis)
	if err := c.Insert(l1); err != nil {
		t.Fatalf("Insert(l1): %v", err)
	}
	if got, ok := c.Get(l1.Commitment()); !ok || got.View != 1 {
		t.Fatalf("Get(l1) = (%v, %v), want (l1, true)", got, ok)
	}
}

func TestChain_TryAdvanceThreeChainCommit(t *testing.T) {
	genesis := GenesisLeaf()
	c := NewChain(genesis)

	l1 := buildLeaf(1, genesis)
	l2 := buildLeaf(2, l1)
	l3 := buildLeaf(3, l2)

	for _, l := range []Leaf{l1, l2, l3} {
		if err := c.Insert(l); err != nil {
			t.Fatalf("Insert(%d): %v", l.View, err)
		}
	}

	qc3 := Certificate{View: 3, Commitment: l3.Commitment(), Kind: VoteYes}
	decided, ok := c.TryAdvance(qc3)
	if !ok {
		t.Fatalf("TryAdvance should commit once three consecutive views chain up")
	}
	if len(decided) != 1 || decided[0].View != 1 {
		t.Fatalf("decided = %+v, want exactly genesis's child (view 1)", decided)
	}
	if c.AnchorView() != 1 {
		t.Fatalf("AnchorView() = %d, want 1", c.AnchorView())
	}
}

func TestChain_TryAdvanceNoOpWithoutThreeConsecutiveViews(t *testing.T) {
	genesis := GenesisLeaf()
	c := NewChain(genesis)

	l1 := buildLeaf(1, genesis)
	// l3 skips a view (no l2), so it can never form three consecutive
	// ancestors no matter what QC arrives for it.
	l3 := buildLeaf(3, l1)

	_ = c.Insert(l1)
	_ = c.Insert(l3)

	qc3 := Certificate{View: 3, Commitment: l3.Commitment(), Kind: VoteYes}
	if _, ok := c.TryAdvance(qc3); ok {
		t.Fatalf("TryAdvance should not commit when the ancestor views are not consecutive")
	}
}

func TestChain_TryAdvanceCatchUpCommitsMultipleLeaves(t *testing.T) {
	genesis := GenesisLeaf()
	c := NewChain(genesis)

	l1 := buildLeaf(1, genesis)
	l2 := buildLeaf(2, l1)
	l3 := buildLeaf(3, l2)
	l4 := buildLeaf(4, l3)
	l5 := buildLeaf(5, l4)

	for _, l := range []Leaf{l1, l2, l3, l4, l5} {
		if err := c.Insert(l); err != nil {
			t.Fatalf("Insert(%d): %v", l.View, err)
		}
	}

	// Skip straight to the QC for l5: l3,l4,l5 form the three-chain, so
	// l3 decides directly, catching up over l1 and l2 in one step.
	qc5 := Certificate{View: 5, Commitment: l5.Commitment(), Kind: VoteYes}
	decided, ok := c.TryAdvance(qc5)
	if !ok {
		t.Fatalf("TryAdvance should commit the catch-up chain")
	}
	if len(decided) != 3 {
		t.Fatalf("decided has %d leaves, want 3 (views 1,2,3)", len(decided))
	}
	if decided[0].View != 3 {
		t.Fatalf("decided[0].View = %d, want 3 (newest-first ordering)", decided[0].View)
	}
	if decided[len(decided)-1].View != 1 {
		t.Fatalf("decided[last].View = %d, want 1 (oldest last)", decided[len(decided)-1].View)
	}
}
