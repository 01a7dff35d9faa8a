package consensus

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

const maxPendingLeaves = 64 // bounded buffer for leaves awaiting an unknown parent (ChainGap)

// Instance is the per-node consensus state machine: it owns the chain,
// the active accumulators (via the two Exchanges), and the view timer,
// per §3's Ownership rule. It consumes Events (RecvProposal, RecvVote,
// RecvDACert, TimerFire) and produces Actions (network sends, Decide
// events) through the methods below, grounded on the teacher's
// engine.go/safety.go/pacemaker.go trio, restructured around the §4.4
// state-transition table instead of the teacher's double-chain AppHash
// protocol.
type Instance struct {
	Self NodeID

	QuorumMembership Membership
	DAMembership     Membership
	QuorumEx         *Exchange[ValidatingProposal]
	CommitteeEx      *Exchange[DAProposal]

	Chain  *Chain
	Safety *SafetyState
	PM     *Pacemaker
	Net    Network
	Store  AtomicStorage
	Source BlockSource

	Logger *zap.SugaredLogger

	// tokenFn produces this node's vote token for a view; it closes over
	// the node's signer and committee seat so Instance itself never holds
	// a private key.
	tokenFn func(v View) (*VoteToken, error)

	mu              sync.Mutex
	daCerts         map[View]Certificate
	pendingByParent map[Commitment][]Leaf
	pendingCount    int
	blocks          map[Commitment]Block

	events chan Event
}

func NewInstance(self NodeID, quorum, da Membership, qex *Exchange[ValidatingProposal], cex *Exchange[DAProposal], chain *Chain, safety *SafetyState, pm *Pacemaker, net Network, store AtomicStorage, source BlockSource, tokenFn func(View) (*VoteToken, error), logger *zap.SugaredLogger) *Instance {
	return &Instance{
		Self: self, QuorumMembership: quorum, DAMembership: da,
		QuorumEx: qex, CommitteeEx: cex, Chain: chain, Safety: safety,
		PM: pm, Net: net, Store: store, Source: source, tokenFn: tokenFn, Logger: logger,
		daCerts:         make(map[View]Certificate),
		pendingByParent: make(map[Commitment][]Leaf),
		blocks:          make(map[Commitment]Block),
		events:          make(chan Event, 64),
	}
}

// Events returns the ordered stream of observable Events (§4.5). Callers
// should drain it continuously; the channel is never closed.
func (n *Instance) Events() <-chan Event { return n.events }

func (n *Instance) emit(ev Event) {
	select {
	case n.events <- ev:
	default:
		// Consumer fell behind (buffer full); drop this event, whatever its
		// kind, rather than block the state machine (events that do get
		// through keep their order).
	}
}

func (n *Instance) emitError(kind ErrorKind, err error) {
	n.emit(Event{Kind: EventError, Error: &ErrorEvent{Kind: kind, Err: err}})
}

// Enter implements §4.4's Enter(view): set current_view, restart the view
// timer, and — if this node is the leader — assemble and broadcast a
// proposal extending the highest-known justify-QC.
func (n *Instance) Enter(ctx context.Context, v View) error {
	n.PM.Enter(v)

	if n.QuorumMembership.Leader(v) != n.Self {
		return nil
	}

	high := n.Chain.HighQC()
	parentLeaf, ok := n.Chain.Get(high.Commitment)
	if !ok {
		parentLeaf = GenesisLeaf()
	}

	txs := n.Source.NextPayload(parentLeaf.Header)
	block := NewBlock(parentLeaf.Header.Height+1, txs)

	leaf := Leaf{
		View:             v,
		ParentCommitment: parentLeaf.Commitment(),
		JustifyQC:        high,
		Header:           block.Header,
		ProposerKey:      n.Self,
	}
	sig, err := n.QuorumEx.SignProposal(leaf.Commitment())
	if err != nil {
		n.emitError(ErrElectionError, err)
		return nil
	}

	if err := n.Safety.RecordProposedView(v); err != nil {
		n.emitError(ErrSafetyViolationDetected, err)
		return err
	}

	msg := Message{
		Kind:   MsgProposal,
		View:   v,
		Sender: n.Self,
		Proposal: &WireProposal{
			Leaf: leaf, Block: block, Sender: n.Self, Signature: sig,
		},
	}
	if err := n.Net.Quorum.Broadcast(ctx, msg, n.QuorumMembership.Committee(v)); err != nil {
		n.emitError(ErrNetworkTransient, err)
	}
	if n.Logger != nil {
		n.Logger.Debugw("proposed", "view", v, "height", leaf.Header.Height)
	}
	return nil
}

// RecvProposal implements §4.4's RecvProposal(p).
func (n *Instance) RecvProposal(ctx context.Context, wp WireProposal) error {
	leaf := wp.Leaf

	if leaf.View <= n.Safety.LastVotedView() {
		return nil // safety: already past this view
	}
	if leaf.View != n.PM.CurrentView() {
		return nil // not buffering cross-view proposals beyond the ChainGap path below
	}
	if !n.QuorumEx.IsValidCert(leaf.JustifyQC) {
		n.emitError(ErrInvalidSignature, fmt.Errorf("invalid justify-qc at view %d", leaf.View))
		return nil
	}

	n.mu.Lock()
	n.blocks[leaf.Header.PayloadCommitment] = wp.Block
	n.mu.Unlock()

	if err := n.Chain.Insert(leaf); err != nil {
		n.bufferPending(leaf)
		n.emitError(ErrChainGap, err)
		return nil
	}
	n.flushPending(leaf.Commitment())
	n.observeQC(leaf.JustifyQC)

	hasDA := n.hasDACertFor(leaf)
	canVoteYes := hasDA && n.Safety.CanVoteYes(leaf.JustifyQC.View)

	voteTok, tokErr := n.voteToken(leaf.View)
	if tokErr != nil {
		n.emitError(ErrElectionError, tokErr)
		return nil
	}

	var wv WireVote
	var err error
	if canVoteYes {
		if err := n.Safety.RecordYesVote(leaf.View, leaf.Commitment()); err != nil {
			n.emitError(ErrSafetyViolationDetected, err)
			return err
		}
		wv, err = n.QuorumEx.CreateYesMessage(leaf, leaf.View, voteTok)
	} else {
		if err := n.Safety.RecordVotedView(leaf.View); err != nil {
			n.emitError(ErrSafetyViolationDetected, err)
			return err
		}
		wv, err = n.QuorumEx.CreateNoMessage(leaf, leaf.View, voteTok)
	}
	if err != nil {
		n.emitError(ErrElectionError, err)
		return nil
	}

	to := n.QuorumMembership.Leader(leaf.View + 1)
	msg := Message{Kind: MsgVote, View: leaf.View, Sender: n.Self, Vote: &wv}
	if err := n.Net.Quorum.DirectMessage(ctx, msg, to); err != nil {
		n.emitError(ErrNetworkTransient, err)
	}
	return nil
}

func (n *Instance) voteToken(v View) (*VoteToken, error) {
	if n.tokenFn == nil {
		return nil, nil
	}
	return n.tokenFn(v)
}

// RecvVote implements §4.4's RecvVote(v): only the leader of v.view+1
// accumulates quorum votes, while DA votes are accumulated by every node;
// on certificate completion, route by kind.
func (n *Instance) RecvVote(ctx context.Context, wv WireVote) error {
	if n.QuorumMembership.Leader(wv.View+1) != n.Self && wv.Kind != VoteDA {
		return nil
	}
	ex := n.exchangeFor(wv.Kind)

	if ex.Accums().NoteVoter(wv.View, wv.Kind, wv.Voter, wv.Commitment) {
		n.emitError(ErrElectionError, fmt.Errorf("equivocating vote from %s at view %d", wv.Voter, wv.View))
		return nil
	}

	cert, err := ex.Accumulate(wv.View, wv.Kind, wv.Commitment, wv.Voter, wv.Signature, wv.Token)
	if err != nil {
		n.emitError(classifyAccumulateErr(err), err)
		return nil
	}
	if cert == nil {
		return nil // Pending
	}

	switch wv.Kind {
	case VoteDA:
		n.mu.Lock()
		n.daCerts[cert.View] = *cert
		n.mu.Unlock()
	case VoteYes:
		n.observeQC(*cert)
	case VoteTimeout:
		msg := Message{Kind: MsgViewSync, View: cert.View, Sender: n.Self, ViewSync: &ViewSyncMessage{NewView: cert.View + 1, TC: *cert}}
		if err := n.Net.Quorum.Broadcast(ctx, msg, n.QuorumMembership.Committee(cert.View)); err != nil {
			n.emitError(ErrNetworkTransient, err)
		}
	}
	return nil
}

// RecvDACert implements §4.4's RecvDACert(c): record da_cert[c.view].
func (n *Instance) RecvDACert(c Certificate) {
	n.mu.Lock()
	n.daCerts[c.View] = c
	n.mu.Unlock()
}

// TimerFire implements §4.4's TimerFire: produce a Timeout vote for the
// current view using highest_qc as justify, send to the next leader, and
// report the timeout as an informational event.
func (n *Instance) TimerFire(ctx context.Context) error {
	v := n.PM.CurrentView()
	if err := n.Safety.RecordVotedView(v); err != nil {
		n.emitError(ErrSafetyViolationDetected, err)
		return err
	}

	voteTok, err := n.voteToken(v)
	if err != nil {
		n.emitError(ErrElectionError, err)
	}
	wv, err := n.QuorumEx.CreateTimeoutMessage(v, n.Chain.HighQC(), voteTok)
	if err != nil {
		n.emitError(ErrElectionError, err)
		return nil
	}
	to := n.QuorumMembership.Leader(v + 1)
	msg := Message{Kind: MsgVote, View: v, Sender: n.Self, Vote: &wv}
	if err := n.Net.Quorum.DirectMessage(ctx, msg, to); err != nil {
		n.emitError(ErrNetworkTransient, err)
	}

	n.emit(Event{Kind: EventReplicaViewTimeout, ReplicaViewTimeout: &ReplicaViewTimeout{View: v}})
	if n.QuorumMembership.Leader(v+1) == n.Self {
		n.emit(Event{Kind: EventNextLeaderViewTimeout, NextLeaderViewTimeout: &NextLeaderViewTimeout{View: v}})
	}
	return nil
}

// observeQC updates the tracked highest-QC, attempts a three-chain
// advance, updates the safety lock on success, and emits Decide plus
// garbage-collects everything below the new anchor.
func (n *Instance) observeQC(qc Certificate) {
	n.Chain.UpdateHighQC(qc)
	decided, ok := n.Chain.TryAdvance(qc)
	if !ok {
		return
	}
	anchor := decided[0]
	n.Safety.UpdateLock(anchor.View, anchor.Commitment())

	for _, lf := range decided {
		n.mu.Lock()
		block := n.blocks[lf.Header.PayloadCommitment]
		delete(n.blocks, lf.Header.PayloadCommitment)
		n.mu.Unlock()
		if err := n.Store.AppendSingleView(lf.View, lf, qc, block); err != nil {
			n.emitError(ErrStorageFailure, err)
			return
		}
	}
	if err := n.Store.Commit(); err != nil {
		n.emitError(ErrStorageFailure, err)
		return
	}
	if err := n.Store.CleanupStorageUpToView(anchor.View); err != nil {
		n.emitError(ErrStorageFailure, err)
	}

	n.Chain.GCBelowAnchor()
	n.Safety.GCBelowView(anchor.View)
	n.QuorumEx.Accums.GCBelowView(anchor.View)
	n.CommitteeEx.Accums.GCBelowView(anchor.View)

	n.emit(Event{Kind: EventDecide, Decide: &Decide{LeafChain: decided, QC: qc, BlockSize: decided[0].Header.PayloadSize}})
	if n.Logger != nil {
		n.Logger.Infow("decide", "anchor_view", anchor.View, "leaves", len(decided))
	}
}

func (n *Instance) hasDACertFor(leaf Leaf) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	c, ok := n.daCerts[leaf.View]
	if !ok {
		return false
	}
	return c.Commitment == leaf.Header.PayloadCommitment
}

func (n *Instance) bufferPending(leaf Leaf) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.pendingCount >= maxPendingLeaves {
		return // bounded: drop rather than grow unbounded under adversarial input
	}
	n.pendingByParent[leaf.ParentCommitment] = append(n.pendingByParent[leaf.ParentCommitment], leaf)
	n.pendingCount++
}

func (n *Instance) flushPending(nowKnownCommitment Commitment) {
	n.mu.Lock()
	waiters := n.pendingByParent[nowKnownCommitment]
	delete(n.pendingByParent, nowKnownCommitment)
	n.pendingCount -= len(waiters)
	n.mu.Unlock()

	for _, lf := range waiters {
		if err := n.Chain.Insert(lf); err == nil {
			n.flushPending(lf.Commitment())
		}
	}
}

func (n *Instance) exchangeFor(kind VoteKind) interface {
	Accumulate(view View, kind VoteKind, commitment Commitment, voter NodeID, sig []byte, tok *VoteToken) (*Certificate, error)
	Accums() *AccumulatorSet
} {
	if kind == VoteDA {
		return committeeAdapter{n.CommitteeEx}
	}
	return quorumAdapter{n.QuorumEx}
}

// adapters let exchangeFor return a uniform view over the two generic
// Exchange instantiations without exposing their distinct type parameters.
type quorumAdapter struct{ ex *Exchange[ValidatingProposal] }

func (a quorumAdapter) Accumulate(view View, kind VoteKind, commitment Commitment, voter NodeID, sig []byte, tok *VoteToken) (*Certificate, error) {
	return a.ex.Accumulate(view, kind, commitment, voter, sig, tok)
}
func (a quorumAdapter) Accums() *AccumulatorSet { return a.ex.Accums }

type committeeAdapter struct{ ex *Exchange[DAProposal] }

func (a committeeAdapter) Accumulate(view View, kind VoteKind, commitment Commitment, voter NodeID, sig []byte, tok *VoteToken) (*Certificate, error) {
	return a.ex.Accumulate(view, kind, commitment, voter, sig, tok)
}
func (a committeeAdapter) Accums() *AccumulatorSet { return a.ex.Accums }

func classifyAccumulateErr(err error) ErrorKind {
	if ce, ok := err.(*ConsensusError); ok {
		return ce.Kind
	}
	return ErrElectionError
}
