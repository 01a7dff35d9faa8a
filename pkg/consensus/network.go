package consensus

import "context"

// WireProposal is the network record for a leader's proposal, carried by
// the quorum ConnectedNetwork.
type WireProposal struct {
	Leaf      Leaf
	Block     Block
	Sender    NodeID
	Signature []byte
}

// WireVote is the network record for a single signed vote of any kind,
// carried by whichever ConnectedNetwork (quorum or DA) matches its Kind.
type WireVote struct {
	Kind       VoteKind
	View       View
	Voter      NodeID
	Commitment Commitment
	Signature  []byte
	Token      *VoteToken
	JustifyQC  *Certificate // attached context: parent QC for Yes/No, highest_qc for Timeout
}

// MessageKind discriminates the four record types a ConnectedNetwork
// carries, per §6.1.
type MessageKind int

const (
	MsgProposal MessageKind = iota
	MsgVote
	MsgCertificate
	MsgViewSync
)

// Message is a length-prefixed canonical-encoded record tagged with view
// and sender, carrying one of Proposal, Vote, Certificate, or a ViewSync
// control payload.
type Message struct {
	Kind        MessageKind
	View        View
	Sender      NodeID
	Proposal    *WireProposal
	Vote        *WireVote
	Certificate *Certificate
	ViewSync    *ViewSyncMessage
}

// ViewSyncMessage is the control message used to advance a stalled view,
// carrying the TimeoutCertificate that justifies the jump.
type ViewSyncMessage struct {
	NewView View
	TC      Certificate
}

// ConnectedNetwork is one of the two endpoints (quorum, DA) the core
// consumes, per §6.1. Transport bindings (libp2p mesh, web-rendezvous
// polling, combined) all implement this same interface; none of their
// differences are visible above this line.
type ConnectedNetwork interface {
	Broadcast(ctx context.Context, msg Message, recipients []NodeID) error
	DirectMessage(ctx context.Context, msg Message, recipient NodeID) error
	RecvMsgs(ctx context.Context) (<-chan Message, error)
	WaitForReady(ctx context.Context) error
	ShutDown() error
}

// Network bundles the quorum and DA endpoints the consensus core depends
// on as a named external collaborator (§6.1); it owns no logic of its own.
type Network struct {
	Quorum ConnectedNetwork
	DA     ConnectedNetwork
}
