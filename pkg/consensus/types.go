// file: pkg/consensus/types.go
package consensus

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
)

// NodeID identifies a validator by the hex encoding of its secp256k1
// address (see pkg/crypto.Signer.Address), following the teacher's
// string-typed NodeID.
type NodeID string

// View is a monotonically increasing view number. Genesis is view 0.
type View uint64

// Height is the block height of a leaf in the decided chain.
type Height uint64

// Commitment is a content-addressed hash of a serialisable value: a Leaf,
// a Block, or a Certificate target. Named Commitment (not Hash) because
// the spec's data model commits to values by hash, never by pointer.
type Commitment [32]byte

func (c Commitment) String() string { return fmt.Sprintf("%x", c[:]) }

var ZeroCommitment = Commitment{}

// BlockHeader summarises a Block's payload without carrying the
// transactions themselves, so it can be embedded in a Leaf.
type BlockHeader struct {
	Height            Height
	PayloadCommitment Commitment
	PayloadSize       int
}

// Block is the ordered sequence of transactions a leader proposes.
type Block struct {
	Header       BlockHeader
	Transactions [][]byte
}

// NewBlock builds a Block and its header from a height and transaction set.
func NewBlock(height Height, txs [][]byte) Block {
	size := 0
	for _, tx := range txs {
		size += len(tx)
	}
	hdr := BlockHeader{Height: height, PayloadSize: size}
	hdr.PayloadCommitment = commitPayload(txs)
	return Block{Header: hdr, Transactions: txs}
}

func commitPayload(txs [][]byte) Commitment {
	h := sha256.New()
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(txs)))
	h.Write(n[:])
	for _, tx := range txs {
		var l [8]byte
		binary.BigEndian.PutUint64(l[:], uint64(len(tx)))
		h.Write(l[:])
		h.Write(tx)
	}
	return sha256.Sum256(h.Sum(nil))
}

// Leaf is the unit of chain commitment: a view, a parent link, the
// justifying quorum certificate for that parent, and the block header
// being proposed. Leaves are stored in an arena keyed by commitment
// (see chain.go) — edges between leaves are commitments, never pointers,
// so the chain is a DAG trivially garbage-collectable below the anchor.
type Leaf struct {
	View              View
	ParentCommitment  Commitment
	JustifyQC         Certificate
	Header            BlockHeader
	ProposerKey       NodeID
}

// Commitment is derived from every field except signatures: the leaf's
// view, parent link, the justifying QC's (view, commitment) pair (not its
// signature map), the block header, and the proposer. Two leaves proposed
// for the same (view, parent, justify-QC, header) by the same proposer have
// the same commitment.
func (l Leaf) Commitment() Commitment {
	h := sha256.New()
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(l.View))
	h.Write(buf[:])
	h.Write(l.ParentCommitment[:])
	binary.BigEndian.PutUint64(buf[:], uint64(l.JustifyQC.View))
	h.Write(buf[:])
	h.Write(l.JustifyQC.Commitment[:])
	binary.BigEndian.PutUint64(buf[:], uint64(l.Header.Height))
	h.Write(buf[:])
	h.Write(l.Header.PayloadCommitment[:])
	h.Write([]byte(l.ProposerKey))
	var out Commitment
	copy(out[:], h.Sum(nil))
	return out
}

// GenesisLeaf is the distinguished minimum: view 0, no parent, justified
// by the genesis QC (see certificate.go).
func GenesisLeaf() Leaf {
	return Leaf{
		View:             0,
		ParentCommitment: ZeroCommitment,
		JustifyQC:        GenesisCertificate(VoteYes),
		Header:           BlockHeader{Height: 0},
		ProposerKey:      NodeID("genesis"),
	}
}
