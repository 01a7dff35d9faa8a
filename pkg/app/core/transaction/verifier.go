package transaction

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	ethCrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/uhyunpark/hyperlicked/pkg/crypto"
)

// Verifier checks that a transaction's signature was produced by its
// claimed owner over its payload. Generalized from the teacher's
// EIP-712 order/cancel/agent-delegation verifier: this repo's
// transactions carry no typed payload (§1 excludes general execution),
// so verification reduces to a plain Keccak256-over-payload ECDSA
// recovery check.
type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify checks tx.Signature against tx.Owner over tx.Payload.
func (v *Verifier) Verify(tx *SignedTransaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	sigBytes, err := decodeSignature(tx.Signature)
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}

	hash := ethCrypto.Keccak256(tx.Payload)
	owner := tx.OwnerAddress()
	if !crypto.VerifySignature(owner, hash, sigBytes) {
		return fmt.Errorf("signature does not match owner %s", owner.Hex())
	}
	return nil
}

// RecoverSigner recovers the address that produced tx.Signature over
// tx.Payload, independent of the claimed Owner field.
func (v *Verifier) RecoverSigner(tx *SignedTransaction) (common.Address, error) {
	sigBytes, err := decodeSignature(tx.Signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("invalid signature: %w", err)
	}
	hash := ethCrypto.Keccak256(tx.Payload)
	return crypto.RecoverAddress(hash, sigBytes)
}

// decodeSignature decodes hex-encoded signature (with or without 0x prefix)
func decodeSignature(sig string) ([]byte, error) {
	sig = strings.TrimPrefix(sig, "0x")

	sigBytes, err := hex.DecodeString(sig)
	if err != nil {
		return nil, fmt.Errorf("invalid hex signature: %w", err)
	}

	if len(sigBytes) != 65 {
		return nil, fmt.Errorf("signature must be 65 bytes, got %d", len(sigBytes))
	}

	return sigBytes, nil
}
