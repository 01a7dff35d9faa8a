package consensus

import (
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/uhyunpark/hyperlicked/pkg/crypto"
)

// ValidatingProposal is the quorum exchange's proposal kind: a leaf
// extending the chain, to be voted Yes/No.
type ValidatingProposal struct {
	Leaf Leaf
}

// DAProposal is the committee exchange's proposal kind: a block awaiting
// availability certification.
type DAProposal struct {
	View  View
	Block Block
}

// Exchange is the one generic type the two protocol instances —
// QuorumExchange (Vote in {Yes, No, Timeout}) and CommitteeExchange (Vote
// = DA) — are built from, per the Design Note in §9: "implement once as a
// parameterised object and instantiate twice, not via inheritance." P
// distinguishes the proposal shape at the type level; the vote-kind
// distinction is a runtime parameter on each call since DA/Yes/No/Timeout
// share one CanonicalBytes encoding.
type Exchange[P any] struct {
	Self       NodeID
	Signer     *crypto.Signer
	Membership Membership
	Accums     *AccumulatorSet
}

func NewQuorumExchange(self NodeID, signer *crypto.Signer, membership Membership) *Exchange[ValidatingProposal] {
	return &Exchange[ValidatingProposal]{Self: self, Signer: signer, Membership: membership, Accums: NewAccumulatorSet()}
}

func NewCommitteeExchange(self NodeID, signer *crypto.Signer, membership Membership) *Exchange[DAProposal] {
	return &Exchange[DAProposal]{Self: self, Signer: signer, Membership: membership, Accums: NewAccumulatorSet()}
}

// SignProposal signs a leaf/block commitment with the node's private key,
// for use as the proposer's own attached signature on a proposal message.
func (e *Exchange[P]) SignProposal(commitment Commitment) ([]byte, error) {
	sig, err := e.Signer.Sign(ethcrypto.Keccak256Hash(commitment[:]).Bytes())
	if err != nil {
		return nil, ElectionError("sign_proposal", err)
	}
	return sig, nil
}

// SignVote signs VoteData with this node's private key and returns the
// (public_key, signature) pair the spec calls for in §4.3. public_key is
// the node's own NodeID, since NodeID is itself the address derived from
// the public key.
func (e *Exchange[P]) SignVote(data VoteData) (NodeID, []byte, error) {
	sig, err := e.Signer.SignMessage(data.CanonicalBytes())
	if err != nil {
		return "", nil, ElectionError("sign_vote", err)
	}
	return e.Self, sig, nil
}

// verifySignature checks a secp256k1 signature by voter over msg, by
// recovering the signer's address and comparing it to voter's NodeID
// (which is that address's hex encoding).
func verifySignature(voter NodeID, sig []byte, msg []byte) bool {
	hash := ethcrypto.Keccak256Hash(msg).Bytes()
	addr, err := crypto.RecoverAddress(hash, sig)
	if err != nil {
		return false
	}
	return NodeID(addr.Hex()) == voter
}

// IsValidVote = signature verifies over data.CanonicalBytes() AND
// validate_vote_token(view, key, token) is Valid, per §4.3.
func (e *Exchange[P]) IsValidVote(voter NodeID, sig []byte, data VoteData, view View, tok *VoteToken) bool {
	if !verifySignature(voter, sig, data.CanonicalBytes()) {
		return false
	}
	return e.Membership.ValidateVoteToken(view, voter, tok) == TokenValid
}

// IsValidCert = genesis short-circuit OR every individual signature+token
// in cert.AggregatedSignatures validates against the reconstructed
// VoteData, AND the total weighted vote count meets threshold, per §4.3.
func (e *Exchange[P]) IsValidCert(cert Certificate) bool {
	if cert.IsGenesis() {
		return true
	}
	data := cert.VoteDataOf()
	var sum uint64
	for voter, rec := range cert.AggregatedSignatures {
		if !e.IsValidVote(voter, rec.Signature, data, cert.View, rec.Token) {
			return false
		}
		if rec.Token != nil {
			sum += rec.Token.VoteCount
		}
	}
	return sum >= e.Membership.Threshold()
}

// Accumulate validates (voter, sig, token) against the appropriate
// VoteData then delegates to the §4.2 VoteAccumulator for (view, kind,
// commitment), returning the certificate once formed.
func (e *Exchange[P]) Accumulate(view View, kind VoteKind, commitment Commitment, voter NodeID, sig []byte, tok *VoteToken) (*Certificate, error) {
	acc := e.Accums.Get(view, kind, commitment, e.Membership)
	verify := func(s []byte, msg []byte) bool { return verifySignature(voter, s, msg) }
	return acc.Append(voter, sig, tok, verify)
}

// CreateYesMessage / CreateNoMessage build the wire vote for a leaf,
// carrying the justify-QC commitment the recipient needs to re-derive the
// locking-rule decision (§4.3: "the justify-QC commitment for Yes/No").
func (e *Exchange[P]) CreateYesMessage(leaf Leaf, view View, tok *VoteToken) (WireVote, error) {
	return e.createLeafMessage(VoteYes, leaf, view, tok)
}

func (e *Exchange[P]) CreateNoMessage(leaf Leaf, view View, tok *VoteToken) (WireVote, error) {
	return e.createLeafMessage(VoteNo, leaf, view, tok)
}

func (e *Exchange[P]) createLeafMessage(kind VoteKind, leaf Leaf, view View, tok *VoteToken) (WireVote, error) {
	data := VoteData{Kind: kind, Commitment: leaf.Commitment()}
	_, sig, err := e.SignVote(data)
	if err != nil {
		return WireVote{}, err
	}
	return WireVote{
		Kind:       kind,
		View:       view,
		Voter:      e.Self,
		Commitment: data.Commitment,
		Signature:  sig,
		Token:      tok,
		JustifyQC:  &leaf.JustifyQC,
	}, nil
}

// CreateTimeoutMessage carries the full justify-QC (highest_qc), per §4.3.
func (e *Exchange[P]) CreateTimeoutMessage(view View, highQC Certificate, tok *VoteToken) (WireVote, error) {
	data := TimeoutVote(view)
	_, sig, err := e.SignVote(data)
	if err != nil {
		return WireVote{}, err
	}
	return WireVote{
		Kind:      VoteTimeout,
		View:      view,
		Voter:     e.Self,
		Signature: sig,
		Token:     tok,
		JustifyQC: &highQC,
	}, nil
}

// CreateDAMessage signs availability of a block, for the committee
// exchange; the vote kind is always DA.
func (e *Exchange[P]) CreateDAMessage(block Block, view View, tok *VoteToken) (WireVote, error) {
	data := DAVote(block.Header.PayloadCommitment)
	_, sig, err := e.SignVote(data)
	if err != nil {
		return WireVote{}, err
	}
	return WireVote{
		Kind:       VoteDA,
		View:       view,
		Voter:      e.Self,
		Commitment: data.Commitment,
		Signature:  sig,
		Token:      tok,
	}, nil
}
