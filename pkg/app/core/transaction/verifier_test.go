package transaction

import (
	"encoding/hex"
	"testing"

	ethCrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/uhyunpark/hyperlicked/pkg/crypto"
)

func TestVerifier_ValidSignatureRoundTrip(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	payload := []byte("hello world")
	hash := ethCrypto.Keccak256(payload)
	sig, err := signer.Sign(hash)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	tx := &SignedTransaction{
		Payload:   payload,
		Nonce:     1,
		Owner:     signer.Address().Hex(),
		Signature: hex.EncodeToString(sig),
	}

	v := NewVerifier()
	if err := v.Verify(tx); err != nil {
		t.Fatalf("Verify() returned error: %v", err)
	}

	recovered, err := v.RecoverSigner(tx)
	if err != nil {
		t.Fatalf("RecoverSigner: %v", err)
	}
	if recovered != signer.Address() {
		t.Fatalf("RecoverSigner() = %s, want %s", recovered.Hex(), signer.Address().Hex())
	}
}

func TestVerifier_RejectsWrongOwner(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	other, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	payload := []byte("order payload")
	hash := ethCrypto.Keccak256(payload)
	sig, err := signer.Sign(hash)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	tx := &SignedTransaction{
		Payload:   payload,
		Nonce:     1,
		Owner:     other.Address().Hex(),
		Signature: hex.EncodeToString(sig),
	}

	v := NewVerifier()
	if err := v.Verify(tx); err == nil {
		t.Fatalf("Verify() should reject signature from a different owner")
	}
}

func TestSignedTransaction_SerializeRoundTrip(t *testing.T) {
	tx := &SignedTransaction{
		Payload:   []byte{1, 2, 3},
		Nonce:     42,
		Owner:     "0xabc",
		Signature: "0xdef",
	}
	b, err := tx.Serialize()
	if err != nil {
		t.Fatalf("Serialize: %v", err)
	}
	got, err := Deserialize(b)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if got.Nonce != tx.Nonce || got.Owner != tx.Owner || got.Signature != tx.Signature {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, tx)
	}
}
