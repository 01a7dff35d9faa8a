package consensus

import (
	"testing"

	"github.com/uhyunpark/hyperlicked/pkg/crypto"
)

type votingSigner struct {
	id     NodeID
	signer *crypto.Signer
}

func newVotingSigners(t *testing.T, n int) []votingSigner {
	t.Helper()
	out := make([]votingSigner, n)
	for i := 0; i < n; i++ {
		s, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("GenerateKey: %v", err)
		}
		out[i] = votingSigner{id: NodeID(s.Address().Hex()), signer: s}
	}
	return out
}

func (vs votingSigner) vote(t *testing.T, data VoteData) []byte {
	t.Helper()
	sig, err := vs.signer.SignMessage(data.CanonicalBytes())
	if err != nil {
		t.Fatalf("SignMessage: %v", err)
	}
	return sig
}

func TestVoteAccumulator_ThresholdEmitsCertificateOnce(t *testing.T) {
	signers := newVotingSigners(t, 4)
	ids := make([]NodeID, len(signers))
	for i, s := range signers {
		ids[i] = s.id
	}
	membership := NewStakeTableMembership(NewStakeTable(ids))

	view := View(1)
	commitment := Commitment{0x01}
	data := VoteData{Kind: VoteYes, Commitment: commitment, View: view}
	acc := NewVoteAccumulator(view, VoteYes, commitment, membership)

	for i, s := range signers[:2] {
		tok, err := MakeVoteToken(view, s.signer, s.id, 1)
		if err != nil {
			t.Fatalf("MakeVoteToken: %v", err)
		}
		sig := s.vote(t, data)
		cert, err := acc.Append(s.id, sig, tok, func(sig, msg []byte) bool { return verifySignature(s.id, sig, msg) })
		if err != nil {
			t.Fatalf("Append voter %d: %v", i, err)
		}
		if cert != nil {
			t.Fatalf("Append voter %d produced a certificate before threshold (3 of 4)", i)
		}
	}

	s := signers[2]
	tok, _ := MakeVoteToken(view, s.signer, s.id, 1)
	sig := s.vote(t, data)
	cert, err := acc.Append(s.id, sig, tok, func(sig, msg []byte) bool { return verifySignature(s.id, sig, msg) })
	if err != nil {
		t.Fatalf("Append 3rd voter: %v", err)
	}
	if cert == nil {
		t.Fatalf("Append should emit a certificate once the 2f+1 threshold is reached")
	}
	if !acc.Done() {
		t.Fatalf("Done() should be true once a certificate has been emitted")
	}
}

func TestVoteAccumulator_DuplicateVoterIsIdempotent(t *testing.T) {
	signers := newVotingSigners(t, 4)
	ids := make([]NodeID, len(signers))
	for i, s := range signers {
		ids[i] = s.id
	}
	membership := NewStakeTableMembership(NewStakeTable(ids))

	view := View(1)
	commitment := Commitment{0x02}
	data := VoteData{Kind: VoteYes, Commitment: commitment, View: view}
	acc := NewVoteAccumulator(view, VoteYes, commitment, membership)

	s := signers[0]
	tok, _ := MakeVoteToken(view, s.signer, s.id, 1)
	sig := s.vote(t, data)
	verify := func(sig, msg []byte) bool { return verifySignature(s.id, sig, msg) }

	if _, err := acc.Append(s.id, sig, tok, verify); err != nil {
		t.Fatalf("first Append: %v", err)
	}
	if acc.Sum() != 1 {
		t.Fatalf("Sum() = %d after one vote, want 1", acc.Sum())
	}
	if _, err := acc.Append(s.id, sig, tok, verify); err != nil {
		t.Fatalf("repeat Append should be a no-op, not an error: %v", err)
	}
	if acc.Sum() != 1 {
		t.Fatalf("Sum() = %d after a duplicate vote, want unchanged 1", acc.Sum())
	}
}

func TestVoteAccumulator_RejectsInvalidToken(t *testing.T) {
	signers := newVotingSigners(t, 2)
	ids := []NodeID{signers[0].id}
	membership := NewStakeTableMembership(NewStakeTable(ids))

	view := View(1)
	commitment := Commitment{0x03}
	data := VoteData{Kind: VoteYes, Commitment: commitment, View: view}
	acc := NewVoteAccumulator(view, VoteYes, commitment, membership)

	// signers[1] is not in the stake table, so its token can't validate.
	outsider := signers[1]
	tok, _ := MakeVoteToken(view, outsider.signer, outsider.id, 1)
	sig := outsider.vote(t, data)
	verify := func(sig, msg []byte) bool { return verifySignature(outsider.id, sig, msg) }

	if _, err := acc.Append(outsider.id, sig, tok, verify); err == nil {
		t.Fatalf("Append should reject a voter absent from the stake table")
	}
}

func TestAccumulatorSet_NoteVoterDetectsEquivocation(t *testing.T) {
	s := NewAccumulatorSet()
	voter := NodeID("v1")
	view, kind := View(1), VoteYes

	if eq := s.NoteVoter(view, kind, voter, Commitment{0x01}); eq {
		t.Fatalf("first vote should not be flagged as equivocation")
	}
	if eq := s.NoteVoter(view, kind, voter, Commitment{0x01}); eq {
		t.Fatalf("repeating the same commitment should not be flagged as equivocation")
	}
	if eq := s.NoteVoter(view, kind, voter, Commitment{0x02}); !eq {
		t.Fatalf("voting for a different commitment at the same (view, kind) should be flagged as equivocation")
	}
}
