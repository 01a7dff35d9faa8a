package consensus

import "encoding/binary"

// VoteKind discriminates the four VoteData variants.
type VoteKind uint8

const (
	VoteDA VoteKind = iota
	VoteYes
	VoteNo
	VoteTimeout
)

func (k VoteKind) String() string {
	switch k {
	case VoteDA:
		return "DA"
	case VoteYes:
		return "Yes"
	case VoteNo:
		return "No"
	case VoteTimeout:
		return "Timeout"
	default:
		return "Unknown"
	}
}

// VoteData is the tagged union {DA(block_commitment), Yes(leaf_commitment),
// No(leaf_commitment), Timeout(view)}. Its canonical byte encoding is the
// message a voter signs. DA/Yes/No carry Commitment; Timeout carries View.
type VoteData struct {
	Kind       VoteKind
	Commitment Commitment
	View       View
}

func DAVote(blockCommitment Commitment) VoteData {
	return VoteData{Kind: VoteDA, Commitment: blockCommitment}
}

func YesVote(leafCommitment Commitment) VoteData {
	return VoteData{Kind: VoteYes, Commitment: leafCommitment}
}

func NoVote(leafCommitment Commitment) VoteData {
	return VoteData{Kind: VoteNo, Commitment: leafCommitment}
}

func TimeoutVote(v View) VoteData {
	return VoteData{Kind: VoteTimeout, View: v}
}

// CanonicalBytes is a stable, hand-written binary format: a one-byte tag
// followed by the fixed-width payload for that variant (32-byte commitment,
// or an 8-byte big-endian view number for Timeout). Modeled on the
// teacher's HashOfBlock, which builds its signed/hashed message the same
// way: explicit binary.BigEndian fields concatenated in a fixed order, no
// schema compiler. This must be stable across implementations (§8
// round-trip property).
func (vd VoteData) CanonicalBytes() []byte {
	switch vd.Kind {
	case VoteDA, VoteYes, VoteNo:
		out := make([]byte, 1+32)
		out[0] = byte(vd.Kind)
		copy(out[1:], vd.Commitment[:])
		return out
	case VoteTimeout:
		out := make([]byte, 1+8)
		out[0] = byte(vd.Kind)
		binary.BigEndian.PutUint64(out[1:], uint64(vd.View))
		return out
	default:
		return []byte{byte(vd.Kind)}
	}
}

// DecodeVoteData inverts CanonicalBytes. Round-tripping is exercised by
// votedata_test.go per the §8 round-trip property.
func DecodeVoteData(b []byte) (VoteData, bool) {
	if len(b) == 0 {
		return VoteData{}, false
	}
	kind := VoteKind(b[0])
	switch kind {
	case VoteDA, VoteYes, VoteNo:
		if len(b) != 1+32 {
			return VoteData{}, false
		}
		var c Commitment
		copy(c[:], b[1:])
		return VoteData{Kind: kind, Commitment: c}, true
	case VoteTimeout:
		if len(b) != 1+8 {
			return VoteData{}, false
		}
		v := View(binary.BigEndian.Uint64(b[1:]))
		return VoteData{Kind: kind, View: v}, true
	default:
		return VoteData{}, false
	}
}
