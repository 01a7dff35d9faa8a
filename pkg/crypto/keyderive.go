package crypto

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DeriveValidatorKey deterministically derives validator index i's
// secp256k1 key pair from a run-wide 32-byte seed, so every node in a
// run (and every test re-running the same seed) arrives at the same
// validator set without an out-of-band key-exchange round trip.
// Grounded on original_source/crates/examples/infra/mod.rs's
// ValidatorConfig::generated_from_seed_indexed: HKDF (SHA-256) with the
// seed as key material, the big-endian index as salt, and a label, the
// index and an attempt counter as info; the 32 output bytes are used as
// the private key, and if they are not a valid secp256k1 scalar the next
// attempt (up to 8) is tried.
func DeriveValidatorKey(seed [32]byte, index int) (*Signer, error) {
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(index))

	for attempt := 0; attempt < 8; attempt++ {
		info := append(append([]byte("hyperlicked-validator-key"), idx[:]...), byte(attempt))
		kdf := hkdf.New(sha256.New, seed[:], idx[:], info)
		material := make([]byte, 32)
		if _, err := io.ReadFull(kdf, material); err != nil {
			return nil, fmt.Errorf("derive key material: %w", err)
		}
		signer, err := FromPrivateKeyHex(fmt.Sprintf("%x", material))
		if err == nil {
			return signer, nil
		}
	}
	return nil, fmt.Errorf("derive signer for index %d: exhausted retries", index)
}
