package consensus

import "testing"

func TestVoteData_CanonicalBytesRoundTrip(t *testing.T) {
	cases := []VoteData{
		DAVote(Commitment{0x01, 0x02}),
		YesVote(Commitment{0xAA}),
		NoVote(Commitment{0xBB}),
		TimeoutVote(View(42)),
	}

	for _, vd := range cases {
		b := vd.CanonicalBytes()
		got, ok := DecodeVoteData(b)
		if !ok {
			t.Fatalf("DecodeVoteData failed to decode %v's bytes", vd.Kind)
		}
		if got != vd {
			t.Fatalf("round-trip mismatch: got %+v, want %+v", got, vd)
		}
	}
}

func TestVoteData_DistinctKindsDontCollide(t *testing.T) {
	yes := YesVote(Commitment{0x01})
	no := NoVote(Commitment{0x01})
	if string(yes.CanonicalBytes()) == string(no.CanonicalBytes()) {
		t.Fatalf("Yes and No votes over the same commitment must encode differently")
	}
}

func TestDecodeVoteData_RejectsMalformedInput(t *testing.T) {
	if _, ok := DecodeVoteData(nil); ok {
		t.Fatalf("DecodeVoteData(nil) should fail")
	}
	if _, ok := DecodeVoteData([]byte{byte(VoteYes), 0x01}); ok {
		t.Fatalf("DecodeVoteData should reject a truncated commitment payload")
	}
	if _, ok := DecodeVoteData([]byte{0xFF}); ok {
		t.Fatalf("DecodeVoteData should reject an unknown tag")
	}
}
