package consensus

import "sync"

// voteRecord is what the accumulator keeps per counted voter.
type voteRecord struct {
	Signature []byte
	Token     *VoteToken
}

// VoteAccumulator is per-(view, vote-kind, commitment): it deduplicates
// voters and gates emission of a Certificate on a weighted-stake
// threshold. One accumulator exists per distinct target; a second,
// conflicting target for the same (view, kind) is a different
// accumulator entirely and is reconciled by the caller (see
// equivocation tracking in statemachine.go), not here.
type VoteAccumulator struct {
	mu         sync.Mutex
	view       View
	kind       VoteKind
	commitment Commitment
	membership Membership

	voted map[NodeID]voteRecord
	sum   uint64
	cert  *Certificate // set once threshold is reached; further appends are ignored
}

func NewVoteAccumulator(view View, kind VoteKind, commitment Commitment, membership Membership) *VoteAccumulator {
	return &VoteAccumulator{
		view:       view,
		kind:       kind,
		commitment: commitment,
		membership: membership,
		voted:      make(map[NodeID]voteRecord),
	}
}

// Append validates then adds a vote, per §4.2:
//  1. rejects (idempotently) if voter already appended;
//  2. verifies the signature over the canonical VoteData bytes and
//     validates the token against Membership — invalid appends leave the
//     accumulator unchanged;
//  3. adds vote_count to the running sum;
//  4. if sum >= threshold, emits the Certificate; further appends are then
//     no-ops.
//
// Returns the Certificate once formed (nil before then), and an error for
// an invalid signature or token; a duplicate voter returns nil, nil like a
// pending append — callers treat a nil cert + nil error as Pending.
func (a *VoteAccumulator) Append(voter NodeID, signature []byte, tok *VoteToken, pubkeyVerify func(sig []byte, msg []byte) bool) (*Certificate, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.cert != nil {
		return a.cert, nil
	}
	if _, already := a.voted[voter]; already {
		return nil, nil // idempotent dedup, not an error
	}

	data := VoteData{Kind: a.kind, Commitment: a.commitment, View: a.view}
	if a.kind == VoteTimeout {
		data.View = a.view
	}
	if !pubkeyVerify(signature, data.CanonicalBytes()) {
		return nil, InvalidSignatureError("accumulator_append")
	}
	if a.membership.ValidateVoteToken(a.view, voter, tok) != TokenValid {
		return nil, InvalidTokenError("accumulator_append")
	}

	a.voted[voter] = voteRecord{Signature: signature, Token: tok}
	a.sum += tok.VoteCount

	if a.sum >= a.membership.Threshold() {
		sigs := make(map[NodeID]VoteRecord, len(a.voted))
		for k, v := range a.voted {
			sigs[k] = VoteRecord(v)
		}
		cert := &Certificate{
			View:                  a.view,
			Commitment:            a.commitment,
			Kind:                  a.kind,
			AggregatedSignatures:  sigs,
		}
		a.cert = cert
		return cert, nil
	}
	return nil, nil
}

// Sum reports the running stake-weighted vote count, for tests/metrics.
func (a *VoteAccumulator) Sum() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sum
}

// Done reports whether this accumulator already emitted its certificate.
func (a *VoteAccumulator) Done() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cert != nil
}

// AccumulatorSet owns the live (view, kind, commitment) -> VoteAccumulator
// map for a node, plus an equivocation tracker: a voter seen for one
// commitment at (view, kind) appearing later for a different commitment
// at the same (view, kind) is flagged, without corrupting either
// accumulator's running sum (§4.2 invariant: the emitted certificate's
// signature map is a subset of what was appended).
type AccumulatorSet struct {
	mu    sync.Mutex
	accs  map[accKey]*VoteAccumulator
	seen  map[seenKey]Commitment
}

type accKey struct {
	View       View
	Kind       VoteKind
	Commitment Commitment
}

type seenKey struct {
	View View
	Kind VoteKind
	Voter NodeID
}

func NewAccumulatorSet() *AccumulatorSet {
	return &AccumulatorSet{
		accs: make(map[accKey]*VoteAccumulator),
		seen: make(map[seenKey]Commitment),
	}
}

// Get returns the accumulator for (view, kind, commitment), creating it on
// first use, per §3's "accumulators are created on first vote" lifecycle.
func (s *AccumulatorSet) Get(view View, kind VoteKind, commitment Commitment, membership Membership) *VoteAccumulator {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := accKey{view, kind, commitment}
	acc, ok := s.accs[k]
	if !ok {
		acc = NewVoteAccumulator(view, kind, commitment, membership)
		s.accs[k] = acc
	}
	return acc
}

// NoteVoter records that voter cast a vote of kind at view for commitment,
// and reports whether this voter had already been seen for a *different*
// commitment at this (view, kind) — i.e. an equivocating vote, scenario 5
// of §8. Does not mutate any accumulator.
func (s *AccumulatorSet) NoteVoter(view View, kind VoteKind, voter NodeID, commitment Commitment) (equivocated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := seenKey{view, kind, voter}
	prev, ok := s.seen[k]
	if ok && prev != commitment {
		return true
	}
	s.seen[k] = commitment
	return false
}

// GCBelowView destroys accumulators and seen-voter records for views
// strictly below the given view, once the chain's anchor advances past them.
func (s *AccumulatorSet) GCBelowView(anchor View) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.accs {
		if k.View < anchor {
			delete(s.accs, k)
		}
	}
	for k := range s.seen {
		if k.View < anchor {
			delete(s.seen, k)
		}
	}
}
