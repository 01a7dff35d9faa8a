package consensus

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/uhyunpark/hyperlicked/pkg/crypto"
)

// Engine drives an Instance's event loop: it starts at genesis, advances
// through Enter/RecvProposal/RecvVote/RecvDACert/TimerFire as messages and
// timers arrive, and stops on the first fatal error (SafetyViolationDetected
// or StorageFailure), matching the teacher's Engine.Run/RunN shape.
type Engine struct {
	Inst   *Instance
	Net    Network
	Logger *zap.SugaredLogger
}

// NewEngine wires an Instance from its collaborators. signer is used only
// to build the per-view vote-token closure the Instance needs (§4.1
// make_vote_token) — the Instance itself never touches key material
// directly.
func NewEngine(self NodeID, signer *crypto.Signer, quorum, da Membership, net Network, store AtomicStorage, source BlockSource, pm *Pacemaker, logger *zap.SugaredLogger) *Engine {
	qex := NewQuorumExchange(self, signer, quorum)
	cex := NewCommitteeExchange(self, signer, da)
	chain := NewChain(GenesisLeaf())
	safety := NewSafetyState()

	tokenFn := func(v View) (*VoteToken, error) {
		return quorum.MakeVoteToken(v, signer, self)
	}

	inst := NewInstance(self, quorum, da, qex, cex, chain, safety, pm, net, store, source, tokenFn, logger)
	return &Engine{Inst: inst, Net: net, Logger: logger}
}

// Run is the main consensus loop: after the configured start delay, it
// enters view 1 and then reacts to whichever arrives first — a quorum
// message, a DA message, or the view timer — per §5's cooperative,
// single-threaded-per-instance scheduling model. All state transitions
// are serialised through this one select loop.
func (e *Engine) Run(ctx context.Context, startDelaySeconds int) error {
	if err := e.Inst.PM.StartDelay(ctx, startDelaySeconds); err != nil {
		return err
	}

	quorumCh, err := e.Net.Quorum.RecvMsgs(ctx)
	if err != nil {
		return fmt.Errorf("quorum recv_msgs: %w", err)
	}
	daCh, err := e.Net.DA.RecvMsgs(ctx)
	if err != nil {
		return fmt.Errorf("da recv_msgs: %w", err)
	}

	if err := e.Inst.Enter(ctx, 1); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-e.Inst.PM.Fired():
			if err := e.Inst.TimerFire(ctx); err != nil {
				return err
			}
			if err := e.Inst.Enter(ctx, e.Inst.PM.CurrentView()+1); err != nil {
				return err
			}

		case msg, ok := <-quorumCh:
			if !ok {
				return fmt.Errorf("quorum network closed")
			}
			if err := e.handle(ctx, msg); err != nil {
				return err
			}

		case msg, ok := <-daCh:
			if !ok {
				return fmt.Errorf("da network closed")
			}
			if err := e.handle(ctx, msg); err != nil {
				return err
			}
		}
	}
}

// RunRounds runs until `rounds` Decide events have been observed, then
// returns.
func (e *Engine) RunRounds(ctx context.Context, startDelaySeconds int, rounds int) error {
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, startDelaySeconds) }()

	seen := 0
	for {
		select {
		case err := <-done:
			return err
		case ev := <-e.Inst.Events():
			if ev.Kind == EventDecide {
				seen++
				if seen >= rounds {
					return nil
				}
			}
			if ev.Kind == EventError && ev.Error.Kind.Fatal() {
				return ev.Error.Err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (e *Engine) handle(ctx context.Context, msg Message) error {
	switch msg.Kind {
	case MsgProposal:
		if msg.Proposal == nil {
			return nil
		}
		return e.Inst.RecvProposal(ctx, *msg.Proposal)
	case MsgVote:
		if msg.Vote == nil {
			return nil
		}
		return e.Inst.RecvVote(ctx, *msg.Vote)
	case MsgCertificate:
		if msg.Certificate != nil && msg.Certificate.Kind == VoteDA {
			e.Inst.RecvDACert(*msg.Certificate)
		}
		return nil
	case MsgViewSync:
		if msg.ViewSync == nil {
			return nil
		}
		if !e.Inst.QuorumEx.IsValidCert(msg.ViewSync.TC) {
			return nil
		}
		if msg.ViewSync.NewView > e.Inst.PM.CurrentView() {
			return e.Inst.Enter(ctx, msg.ViewSync.NewView)
		}
		return nil
	default:
		return nil
	}
}
