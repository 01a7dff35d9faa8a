package consensus

import (
	"testing"

	"github.com/uhyunpark/hyperlicked/pkg/crypto"
)

func TestVoteToken_MakeAndValidate(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	voter := NodeID(signer.Address().Hex())
	table := NewStakeTable([]NodeID{voter})

	tok, err := MakeVoteToken(View(7), signer, voter, 1)
	if err != nil {
		t.Fatalf("MakeVoteToken: %v", err)
	}
	if tok == nil {
		t.Fatalf("MakeVoteToken returned nil for a seated voter")
	}

	if got := ValidateVoteToken(View(7), voter, tok, table); got != TokenValid {
		t.Fatalf("ValidateVoteToken() = %v, want TokenValid", got)
	}
}

func TestVoteToken_ZeroWeightVoterGetsNoToken(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	voter := NodeID(signer.Address().Hex())

	tok, err := MakeVoteToken(View(1), signer, voter, 0)
	if err != nil {
		t.Fatalf("MakeVoteToken: %v", err)
	}
	if tok != nil {
		t.Fatalf("MakeVoteToken should return nil for a zero-weight voter")
	}
}

func TestValidateVoteToken_RejectsWrongView(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	voter := NodeID(signer.Address().Hex())
	table := NewStakeTable([]NodeID{voter})

	tok, _ := MakeVoteToken(View(1), signer, voter, 1)
	if got := ValidateVoteToken(View(2), voter, tok, table); got != TokenInvalid {
		t.Fatalf("ValidateVoteToken() for a mismatched view = %v, want TokenInvalid", got)
	}
}

func TestValidateVoteToken_RejectsForgedVoterClaim(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	attacker, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	voter := NodeID(signer.Address().Hex())
	table := NewStakeTable([]NodeID{voter})

	// The attacker signs a token honestly for themselves, then relabels
	// it as belonging to voter — the signature won't recover to voter's
	// address, so validation must reject it.
	forged, err := MakeVoteToken(View(1), attacker, voter, 1)
	if err != nil {
		t.Fatalf("MakeVoteToken: %v", err)
	}
	if got := ValidateVoteToken(View(1), voter, forged, table); got != TokenInvalid {
		t.Fatalf("ValidateVoteToken() for a forged token = %v, want TokenInvalid", got)
	}
}
