package example

import (
	"testing"

	"github.com/uhyunpark/hyperlicked/pkg/consensus"
)

func TestExampleApp_NextPayloadFIFO(t *testing.T) {
	app := NewExampleApp(0)
	app.PushTx([]byte("tx1"))
	app.PushTx([]byte("tx2"))

	if got := app.PendingCount(); got != 2 {
		t.Fatalf("PendingCount() = %d, want 2", got)
	}

	payload := app.NextPayload(consensus.BlockHeader{Height: 1})
	if len(payload) != 2 {
		t.Fatalf("NextPayload returned %d txs, want 2", len(payload))
	}
	if string(payload[0]) != "tx1" || string(payload[1]) != "tx2" {
		t.Fatalf("unexpected payload order: %v", payload)
	}
	if app.PendingCount() != 0 {
		t.Fatalf("mempool should be drained")
	}
}

func TestExampleApp_MaxPayloadBytes(t *testing.T) {
	app := NewExampleApp(5)
	app.PushTx([]byte("abc"))
	app.PushTx([]byte("def"))

	payload := app.NextPayload(consensus.BlockHeader{})
	if len(payload) != 1 {
		t.Fatalf("NextPayload returned %d txs, want 1 under the byte cap", len(payload))
	}
	if app.PendingCount() != 1 {
		t.Fatalf("one tx should remain pending")
	}
}

func TestExampleApp_CommitCounting(t *testing.T) {
	app := NewExampleApp(0)
	app.NoteCommit()
	app.NoteCommit()
	if got := app.CommitCount(); got != 2 {
		t.Fatalf("CommitCount() = %d, want 2", got)
	}
}
