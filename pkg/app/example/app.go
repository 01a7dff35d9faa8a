// Package example provides a minimal BlockSource collaborator: an
// in-memory mempool that feeds pending transactions to the leader's next
// proposal. Generalized from the teacher's abci.MockApp (PrepareProposal
// over an HL-style mempool, FinalizeBlock computing an AppHash): this
// repo excludes general execution, so there is no ProcessProposal accept
// check and no AppHash — only "what goes in the next block" survives.
package example

import (
	"sync"

	"github.com/uhyunpark/hyperlicked/pkg/app/core/mempool"
	"github.com/uhyunpark/hyperlicked/pkg/consensus"
)

var _ consensus.BlockSource = (*ExampleApp)(nil)

// ExampleApp implements consensus.BlockSource over a FIFO mempool. It is
// a demo/test collaborator, not a general execution engine.
type ExampleApp struct {
	mu         sync.Mutex
	mempool    *mempool.Mempool
	maxPayload int64
	committed  int
	lastCommit consensus.BlockHeader
}

// NewExampleApp builds an ExampleApp that never selects more than
// maxPayloadBytes worth of transactions per proposal (0 means
// unbounded).
func NewExampleApp(maxPayloadBytes int64) *ExampleApp {
	return &ExampleApp{
		mempool:    mempool.NewMempool(),
		maxPayload: maxPayloadBytes,
	}
}

// PushTx enqueues a raw transaction for the next proposal.
func (a *ExampleApp) PushTx(b []byte) {
	a.mempool.PushRaw(b)
}

// NextPayload implements consensus.BlockSource.
func (a *ExampleApp) NextPayload(parent consensus.BlockHeader) [][]byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastCommit = parent
	return a.mempool.SelectForProposal(a.maxPayload)
}

// PendingCount reports how many transactions remain unselected.
func (a *ExampleApp) PendingCount() int {
	return a.mempool.Len()
}

// NoteCommit is called once per decided leaf by the event-forwarding loop
// observing a Decide event (pkg/api's Server.forwardEvents), purely for
// local bookkeeping; the application has no state to advance since
// general execution is out of scope.
func (a *ExampleApp) NoteCommit() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.committed++
}

// CommitCount returns how many blocks this app has observed committed.
func (a *ExampleApp) CommitCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.committed
}
