package consensus

import "sync"

// SafetyState tracks the locking rule and vote monotonicity every honest
// node must enforce between events (§4.4, §4.4 Safety invariants):
//   - a node never signs two distinct Yes votes for the same view;
//   - last_voted_view is monotonic non-decreasing;
//   - locked_view only moves forward, to the view of the newest leaf
//     decided by the three-chain rule.
type SafetyState struct {
	mu sync.Mutex

	lockedView       View
	lockedCommitment Commitment

	lastVotedView    View
	lastProposedView View

	// yesVotesByView guards the no-double-Yes-vote invariant directly:
	// it records which leaf commitment (if any) this node already voted
	// Yes for at a given view.
	yesVotesByView map[View]Commitment
}

func NewSafetyState() *SafetyState {
	return &SafetyState{yesVotesByView: make(map[View]Commitment)}
}

// CanVoteYes implements the chained-HotStuff locking rule (§9 Open
// Questions resolves to chained-HotStuff semantics, DESIGN.md decision 2):
// a replica may vote Yes on a leaf whose justify-QC view is >= the locked
// view. Only the views are compared: when the justify-QC view equals the
// locked view, whether the leaf descends from the locked leaf is not
// checked.
func (s *SafetyState) CanVoteYes(justifyQCView View) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return justifyQCView >= s.lockedView
}

// RecordYesVote enforces the no-double-Yes-vote invariant: if this node
// already voted Yes at view v for a different leaf, returns a
// SafetyViolationDetected error and does not overwrite the record.
func (s *SafetyState) RecordYesVote(v View, leafCommitment Commitment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.yesVotesByView[v]; ok && prev != leafCommitment {
		return SafetyViolationError("double_yes_vote")
	}
	s.yesVotesByView[v] = leafCommitment
	return s.recordVotedViewLocked(v)
}

// RecordVotedView enforces last_voted_view monotonicity for No/Timeout
// votes, which do not participate in the no-double-Yes-vote check.
func (s *SafetyState) RecordVotedView(v View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordVotedViewLocked(v)
}

func (s *SafetyState) recordVotedViewLocked(v View) error {
	if v < s.lastVotedView {
		return SafetyViolationError("last_voted_view_regressed")
	}
	s.lastVotedView = v
	return nil
}

func (s *SafetyState) LastVotedView() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastVotedView
}

// RecordProposedView enforces last_proposed_view monotonicity for leaders.
func (s *SafetyState) RecordProposedView(v View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v < s.lastProposedView {
		return SafetyViolationError("last_proposed_view_regressed")
	}
	s.lastProposedView = v
	return nil
}

// UpdateLock moves the lock forward to (view, commitment) — called with
// the newest decided leaf whenever the three-chain rule decides one.
func (s *SafetyState) UpdateLock(view View, commitment Commitment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if view > s.lockedView {
		s.lockedView = view
		s.lockedCommitment = commitment
	}
}

func (s *SafetyState) LockedView() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockedView
}

func (s *SafetyState) LockedCommitment() Commitment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lockedCommitment
}

// GCBelowView drops yes-vote bookkeeping for decided views; kept separate
// from AccumulatorSet.GCBelowView since it is the leader-independent
// per-node safety record, not per-vote-kind accumulator state.
func (s *SafetyState) GCBelowView(anchor View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for v := range s.yesVotesByView {
		if v < anchor {
			delete(s.yesVotesByView, v)
		}
	}
}
