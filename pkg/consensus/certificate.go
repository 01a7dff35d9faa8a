package consensus

// VoteRecord is the (signature, token) pair a Certificate keeps per voter,
// exactly as §3 specifies: "aggregated_signatures: map voter -> (signature,
// token)". Kept as a map, not folded into a single signature, since
// is_valid_cert re-verifies each voter's own secp256k1 signature
// individually (see Exchange.IsValidCert) — there is no aggregate scheme
// in the signing path to fold them into.
type VoteRecord struct {
	Signature []byte
	Token     *VoteToken
}

// Certificate is the threshold-weighted aggregate document: a
// QuorumCertificate (Kind Yes), DACertificate (Kind DA), or
// TimeoutCertificate (Kind Timeout). Constructable only from a completed
// VoteAccumulator or as a distinguished genesis value.
type Certificate struct {
	View                 View
	Commitment           Commitment
	Kind                 VoteKind
	AggregatedSignatures map[NodeID]VoteRecord
}

// QuorumCertificate, DACertificate, and TimeoutCertificate are Certificate
// under the names §2/§4 use for each role; they share one representation
// per SPEC_FULL's "implemented as one generic type" instruction applied to
// certificates as much as exchanges.
type (
	QuorumCertificate  = Certificate
	DACertificate      = Certificate
	TimeoutCertificate = Certificate
)

// TotalVoteCount sums the vote_counts of every included voter.
func (c Certificate) TotalVoteCount() uint64 {
	var sum uint64
	for _, r := range c.AggregatedSignatures {
		if r.Token != nil {
			sum += r.Token.VoteCount
		}
	}
	return sum
}

// IsGenesis reports whether this is the distinguished view-0 certificate
// with no signatures — it short-circuits is_valid_cert per §4.3.
func (c Certificate) IsGenesis() bool {
	return c.View == 0 && len(c.AggregatedSignatures) == 0
}

// GenesisCertificate is the distinguished genesis value for the given
// kind: view 0, no signatures, always valid.
func GenesisCertificate(kind VoteKind) Certificate {
	return Certificate{View: 0, Commitment: ZeroCommitment, Kind: kind}
}

// VoteDataOf reconstructs the VoteData this certificate's votes were cast
// over — needed by is_valid_cert to re-derive the signed message.
func (c Certificate) VoteDataOf() VoteData {
	if c.Kind == VoteTimeout {
		return VoteData{Kind: VoteTimeout, View: c.View}
	}
	return VoteData{Kind: c.Kind, Commitment: c.Commitment}
}
