package consensus

import (
	"encoding/binary"

	"github.com/uhyunpark/hyperlicked/pkg/crypto"
)

// VoteToken is an opaque proof-of-eligibility for (view, voter) carrying a
// strictly positive vote_count (stake weight). Two tokens from the same
// voter for the same view are equal, per §3 — Proof is a deterministic
// function of (view, voter, count) so this holds by construction rather
// than by chance.
//
// Proof binds the token to its (view, voter, count) triple with the
// voter's own secp256k1 signature: a self-certifying membership proof, not
// a VRF. This is sufficient for a fixed, config-derived stake table where
// eligibility is public — the proof only needs to show the claimed count
// was not forged by a third party impersonating the voter.
type VoteToken struct {
	Voter     NodeID
	View      View
	VoteCount uint64
	Proof     []byte
}

// tokenMessage is the canonical bytes a voter signs to produce a VoteToken.
func tokenMessage(v View, voter NodeID, count uint64) []byte {
	buf := make([]byte, 8+8+len(voter))
	binary.BigEndian.PutUint64(buf[0:8], uint64(v))
	binary.BigEndian.PutUint64(buf[8:16], count)
	copy(buf[16:], []byte(voter))
	return hashBytes(buf)
}

// hashBytes reuses the payload-commitment hash to build a fixed-length
// digest for signing, avoiding a second ad-hoc hashing scheme.
func hashBytes(b []byte) []byte {
	c := commitPayload([][]byte{b})
	return c[:]
}

// MakeVoteToken produces a VoteToken for (view, signer) if the signer
// holds a nonzero seat in the stake table, or nil if they hold none.
func MakeVoteToken(v View, signer *crypto.Signer, voter NodeID, count uint64) (*VoteToken, error) {
	if count == 0 {
		return nil, nil
	}
	msg := tokenMessage(v, voter, count)
	sig, err := signer.Sign(msg)
	if err != nil {
		return nil, ElectionError("make_vote_token", err)
	}
	return &VoteToken{Voter: voter, View: v, VoteCount: count, Proof: sig}, nil
}

// ValidateVoteToken checks the claimed count against the stake table's
// record for voter, then checks the self-certifying proof against the
// claimed (view, voter, count). Cacheable: the same (view, voter, token)
// always yields the same verdict since it is a pure function of its
// inputs and the immutable stake table.
func ValidateVoteToken(v View, claimedKey NodeID, tok *VoteToken, table *StakeTable) TokenValidity {
	if tok == nil {
		return TokenInvalid
	}
	if tok.View != v || tok.Voter != claimedKey || tok.VoteCount == 0 {
		return TokenInvalid
	}
	want, ok := table.Weight(claimedKey)
	if !ok || want != tok.VoteCount {
		return TokenInvalid
	}
	msg := tokenMessage(v, claimedKey, tok.VoteCount)
	addr, err := crypto.RecoverAddress(byteOf(msg)[:], tok.Proof)
	if err != nil {
		return TokenInvalid
	}
	if NodeID(addr.Hex()) != claimedKey {
		return TokenInvalid
	}
	return TokenValid
}

// byteOf adapts a variable-length digest into the fixed [32]byte RecoverAddress expects.
func byteOf(b []byte) [32]byte {
	var out [32]byte
	copy(out[:], b)
	return out
}

// TokenValidity is the three-way verdict validate_vote_token returns.
type TokenValidity int

const (
	TokenInvalid TokenValidity = iota
	TokenValid
	TokenUnchecked
)
