// Package mempool buffers pending transactions for the next proposal.
package mempool

import "sync"

// Mempool is a single FIFO queue of opaque transaction payloads, admitted
// in arrival order and drained by the leader's next proposal. Generalized
// from the teacher's three-bucket (non-order/cancel/order) HL-specific
// ordering rule: this repo's transactions carry no protocol-level type,
// so one queue replaces the three.
type Mempool struct {
	mu  sync.Mutex
	txs [][]byte
}

func NewMempool() *Mempool { return &Mempool{} }

// PushRaw enqueues a transaction, copying it so the caller may reuse its
// buffer.
func (m *Mempool) PushRaw(b []byte) {
	cp := append([]byte(nil), b...)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txs = append(m.txs, cp)
}

// SelectForProposal drains up to maxBytes worth of transactions in FIFO
// order, removing them from the mempool.
func (m *Mempool) SelectForProposal(maxBytes int64) [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out [][]byte
	var used int64
	for len(m.txs) > 0 {
		tx := m.txs[0]
		n := int64(len(tx))
		if maxBytes > 0 && used+n > maxBytes {
			break
		}
		out = append(out, tx)
		used += n
		m.txs = m.txs[1:]
	}
	return out
}

// Len returns the number of pending transactions.
func (m *Mempool) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.txs)
}
