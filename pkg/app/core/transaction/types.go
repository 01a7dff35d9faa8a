// Package transaction defines the generic signed-transaction envelope
// this repo's mempool and ExampleApp carry — a payload and a secp256k1
// signature over it, with no protocol-level interpretation of the
// payload's contents (§1 excludes general execution). Generalized from
// the teacher's EIP-712 order/cancel envelope, which this repo has no use
// for: nothing in SPEC_FULL.md needs typed order data.
package transaction

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// SignedTransaction is an opaque payload plus a signature over it and a
// replay-protection nonce.
type SignedTransaction struct {
	Payload   []byte `json:"payload"`
	Nonce     uint64 `json:"nonce"`
	Owner     string `json:"owner"`     // hex-encoded address
	Signature string `json:"signature"` // hex-encoded, with or without 0x prefix
}

func (tx *SignedTransaction) Serialize() ([]byte, error) {
	return json.Marshal(tx)
}

func Deserialize(data []byte) (*SignedTransaction, error) {
	var tx SignedTransaction
	if err := json.Unmarshal(data, &tx); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return &tx, nil
}

func (tx *SignedTransaction) Validate() error {
	if len(tx.Payload) == 0 {
		return fmt.Errorf("empty payload")
	}
	if tx.Signature == "" {
		return fmt.Errorf("missing signature")
	}
	if tx.Owner == "" {
		return fmt.Errorf("missing owner")
	}
	return nil
}

func (tx *SignedTransaction) OwnerAddress() common.Address {
	return common.HexToAddress(tx.Owner)
}
