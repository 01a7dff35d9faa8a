package consensus

import (
	"errors"
	"sort"

	"github.com/uhyunpark/hyperlicked/pkg/crypto"
)

// StakeTable is the immutable per-run mapping voter_key -> vote_weight,
// derived once from configuration. Threshold = floor(2*total_stake/3) + 1.
type StakeTable struct {
	weights map[NodeID]uint64
	order   []NodeID // deterministic iteration order, sorted by NodeID
	total   uint64
}

// NewStakeTable builds a StakeTable from a set of validators, each with
// equal weight 1 — the config surface (§6.4) names total_nodes but no
// per-node weight field, so uniform weight is the documented default.
func NewStakeTable(nodes []NodeID) *StakeTable {
	st := &StakeTable{weights: make(map[NodeID]uint64, len(nodes))}
	for _, n := range nodes {
		st.weights[n] = 1
		st.total++
	}
	st.order = append([]NodeID(nil), nodes...)
	sort.Slice(st.order, func(i, j int) bool { return st.order[i] < st.order[j] })
	return st
}

func (st *StakeTable) Weight(n NodeID) (uint64, bool) {
	w, ok := st.weights[n]
	return w, ok
}

func (st *StakeTable) TotalStake() uint64 { return st.total }

// Threshold = floor(2*total_stake/3) + 1.
func (st *StakeTable) Threshold() uint64 {
	return (2*st.total)/3 + 1
}

func (st *StakeTable) Members() []NodeID {
	return append([]NodeID(nil), st.order...)
}

func (st *StakeTable) Size() int { return len(st.order) }

// Membership is the election abstraction: deterministic leader selection,
// vote-token issuance/validation, and committee enumeration. It never
// panics on adversarial input — failures are returned as ElectionError.
type Membership interface {
	Leader(v View) NodeID
	MakeVoteToken(v View, signer *crypto.Signer, self NodeID) (*VoteToken, error)
	ValidateVoteToken(v View, voter NodeID, tok *VoteToken) TokenValidity
	Threshold() uint64
	Committee(v View) []NodeID
}

// StakeTableMembership is the quorum membership: leader selection is
// round-robin over the stake table's deterministic order, matching the
// teacher's RoundRobinElector, generalized to carry vote tokens and
// threshold. Leader selection depends only on (view, stake_table), per
// §4.1's design requirement — no randomness beyond the table itself.
type StakeTableMembership struct {
	Table *StakeTable
}

func NewStakeTableMembership(table *StakeTable) *StakeTableMembership {
	return &StakeTableMembership{Table: table}
}

var _ Membership = (*StakeTableMembership)(nil)

func (m *StakeTableMembership) Leader(v View) NodeID {
	members := m.Table.Members()
	if len(members) == 0 {
		return ""
	}
	idx := int(v)
	if idx < 0 {
		idx = 0
	}
	return members[idx%len(members)]
}

func (m *StakeTableMembership) MakeVoteToken(v View, signer *crypto.Signer, self NodeID) (*VoteToken, error) {
	count, ok := m.Table.Weight(self)
	if !ok {
		return nil, nil
	}
	return MakeVoteToken(v, signer, self, count)
}

func (m *StakeTableMembership) ValidateVoteToken(v View, voter NodeID, tok *VoteToken) TokenValidity {
	return ValidateVoteToken(v, voter, tok, m.Table)
}

func (m *StakeTableMembership) Threshold() uint64 { return m.Table.Threshold() }

func (m *StakeTableMembership) Committee(v View) []NodeID { return m.Table.Members() }

// DASubsetMembership is the DA committee: a configured subset (size
// da_committee_size) of the quorum membership, fixed for the run — the
// first da_committee_size members of the quorum's deterministic order,
// per SPEC_FULL §4.1. No separate election weight.
type DASubsetMembership struct {
	Quorum   *StakeTableMembership
	Subset   *StakeTable
}

// NewDASubsetMembership builds the DA committee as the first
// daCommitteeSize quorum members ordered by NodeID. Returns ElectionError
// if daCommitteeSize exceeds the quorum size (a construction-time check;
// vote-count sums are not checked for overflow anywhere at runtime).
func NewDASubsetMembership(quorum *StakeTableMembership, daCommitteeSize int) (*DASubsetMembership, error) {
	members := quorum.Table.Members()
	if daCommitteeSize > len(members) {
		return nil, ElectionError("new_da_subset_membership", errDACommitteeTooLarge)
	}
	return &DASubsetMembership{
		Quorum: quorum,
		Subset: NewStakeTable(members[:daCommitteeSize]),
	}, nil
}

func (m *DASubsetMembership) Leader(v View) NodeID {
	members := m.Subset.Members()
	if len(members) == 0 {
		return ""
	}
	return members[int(v)%len(members)]
}

func (m *DASubsetMembership) MakeVoteToken(v View, signer *crypto.Signer, self NodeID) (*VoteToken, error) {
	count, ok := m.Subset.Weight(self)
	if !ok {
		return nil, nil
	}
	return MakeVoteToken(v, signer, self, count)
}

func (m *DASubsetMembership) ValidateVoteToken(v View, voter NodeID, tok *VoteToken) TokenValidity {
	return ValidateVoteToken(v, voter, tok, m.Subset)
}

func (m *DASubsetMembership) Threshold() uint64 { return m.Subset.Threshold() }

func (m *DASubsetMembership) Committee(v View) []NodeID { return m.Subset.Members() }

var _ Membership = (*DASubsetMembership)(nil)

var errDACommitteeTooLarge = errors.New("da committee size exceeds total nodes")
