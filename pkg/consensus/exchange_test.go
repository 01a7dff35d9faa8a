package consensus

import (
	"testing"

	"github.com/uhyunpark/hyperlicked/pkg/crypto"
)

func TestExchange_SignAndVerifyVoteRoundTrip(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	self := NodeID(signer.Address().Hex())
	table := NewStakeTable([]NodeID{self})
	membership := NewStakeTableMembership(table)
	ex := NewQuorumExchange(self, signer, membership)

	data := YesVote(Commitment{0x01})
	voter, sig, err := ex.SignVote(data)
	if err != nil {
		t.Fatalf("SignVote: %v", err)
	}
	if voter != self {
		t.Fatalf("SignVote voter = %s, want %s", voter, self)
	}

	view := View(1)
	tok, err := ex.Membership.MakeVoteToken(view, signer, self)
	if err != nil {
		t.Fatalf("MakeVoteToken: %v", err)
	}
	if !ex.IsValidVote(self, sig, data, view, tok) {
		t.Fatalf("IsValidVote should accept a correctly signed vote with a valid token")
	}
}

func TestExchange_IsValidVoteRejectsTamperedSignature(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	self := NodeID(signer.Address().Hex())
	membership := NewStakeTableMembership(NewStakeTable([]NodeID{self}))
	ex := NewQuorumExchange(self, signer, membership)

	data := YesVote(Commitment{0x01})
	_, sig, err := ex.SignVote(data)
	if err != nil {
		t.Fatalf("SignVote: %v", err)
	}
	view := View(1)
	tok, _ := ex.Membership.MakeVoteToken(view, signer, self)

	// A vote over a different commitment must not validate against the
	// signature produced for the original one.
	tampered := YesVote(Commitment{0x02})
	if ex.IsValidVote(self, sig, tampered, view, tok) {
		t.Fatalf("IsValidVote should reject a signature that doesn't match the vote data")
	}
}

func TestExchange_IsValidCertGenesisShortCircuits(t *testing.T) {
	membership := NewStakeTableMembership(NewStakeTable([]NodeID{"a"}))
	ex := NewQuorumExchange("a", nil, membership)
	if !ex.IsValidCert(GenesisCertificate(VoteYes)) {
		t.Fatalf("IsValidCert should short-circuit true for a genesis certificate")
	}
}

func TestExchange_AccumulateReachesThresholdAndProducesValidCert(t *testing.T) {
	signers := make([]*crypto.Signer, 4)
	ids := make([]NodeID, 4)
	for i := range signers {
		s, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("GenerateKey: %v", err)
		}
		signers[i] = s
		ids[i] = NodeID(s.Address().Hex())
	}
	membership := NewStakeTableMembership(NewStakeTable(ids))
	ex := NewQuorumExchange(ids[0], signers[0], membership)

	view := View(1)
	commitment := Commitment{0x09}
	data := VoteData{Kind: VoteYes, Commitment: commitment, View: view}

	var cert *Certificate
	for i := 0; i < 3; i++ {
		tok, err := membership.MakeVoteToken(view, signers[i], ids[i])
		if err != nil {
			t.Fatalf("MakeVoteToken: %v", err)
		}
		_, sig, err := (&Exchange[ValidatingProposal]{Self: ids[i], Signer: signers[i], Membership: membership}).SignVote(data)
		if err != nil {
			t.Fatalf("SignVote: %v", err)
		}
		cert, err = ex.Accumulate(view, VoteYes, commitment, ids[i], sig, tok)
		if err != nil {
			t.Fatalf("Accumulate voter %d: %v", i, err)
		}
	}
	if cert == nil {
		t.Fatalf("Accumulate should have produced a certificate once 3 of 4 voted")
	}
	if !ex.IsValidCert(*cert) {
		t.Fatalf("IsValidCert should accept the certificate Accumulate just produced")
	}
}
