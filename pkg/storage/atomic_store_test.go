package storage

import (
	"os"
	"testing"

	"github.com/uhyunpark/hyperlicked/pkg/consensus"
)

// Mirrors the happy-path scenario exercised by the reference
// implementation's atomic-storage test: uncommitted writes are counted
// but not durable, commit flushes them, and re-opening the store after a
// commit still sees the data.
func TestAtomicStore_HappyPath(t *testing.T) {
	dir := t.TempDir()

	store, err := NewAtomicStore(dir)
	if err != nil {
		t.Fatalf("NewAtomicStore: %v", err)
	}
	if got := store.UncommittedChangeCount(); got != 0 {
		t.Fatalf("UncommittedChangeCount() = %d, want 0", got)
	}

	block := consensus.NewBlock(1, [][]byte{[]byte("tx1")})
	leaf := consensus.Leaf{View: 1, Header: block.Header}
	qc := consensus.GenesisCertificate(consensus.VoteYes)

	if err := store.AppendSingleView(1, leaf, qc, block); err != nil {
		t.Fatalf("AppendSingleView: %v", err)
	}
	if got := store.UncommittedChangeCount(); got == 0 {
		t.Fatalf("UncommittedChangeCount() = 0 after append, want nonzero")
	}

	if err := store.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if got := store.UncommittedChangeCount(); got != 0 {
		t.Fatalf("UncommittedChangeCount() = %d after commit, want 0", got)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewAtomicStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	got, ok := reopened.GetBlock(block.Header.PayloadCommitment)
	if !ok {
		t.Fatalf("GetBlock after reopen: not found")
	}
	if len(got.Transactions) != 1 || string(got.Transactions[0]) != "tx1" {
		t.Fatalf("GetBlock returned %+v, want the committed block", got)
	}
}

func TestAtomicStore_UncommittedWriteNotVisibleAfterReopen(t *testing.T) {
	dir := t.TempDir()
	store, err := NewAtomicStore(dir)
	if err != nil {
		t.Fatalf("NewAtomicStore: %v", err)
	}

	block := consensus.NewBlock(1, [][]byte{[]byte("uncommitted")})
	leaf := consensus.Leaf{View: 1, Header: block.Header}
	qc := consensus.GenesisCertificate(consensus.VoteYes)
	if err := store.AppendSingleView(1, leaf, qc, block); err != nil {
		t.Fatalf("AppendSingleView: %v", err)
	}
	// No Commit() call: the write must not survive a reopen.
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewAtomicStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	if _, ok := reopened.GetBlock(block.Header.PayloadCommitment); ok {
		t.Fatalf("GetBlock found an uncommitted write after reopen")
	}
}

func TestInMemoryStore_StageThenCommit(t *testing.T) {
	store := NewInMemoryStore()
	block := consensus.NewBlock(2, [][]byte{[]byte("a"), []byte("b")})
	leaf := consensus.Leaf{View: 2, Header: block.Header}
	qc := consensus.GenesisCertificate(consensus.VoteYes)

	if err := store.AppendSingleView(2, leaf, qc, block); err != nil {
		t.Fatalf("AppendSingleView: %v", err)
	}
	if _, ok := store.GetBlock(block.Header.PayloadCommitment); ok {
		t.Fatalf("GetBlock should not see an uncommitted write")
	}
	if err := store.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if _, ok := store.GetBlock(block.Header.PayloadCommitment); !ok {
		t.Fatalf("GetBlock should see the write after Commit")
	}
}

func TestNopEventLog(t *testing.T) {
	NewNopEventLog().Append("noop")
}

func TestFileEventLog(t *testing.T) {
	path := t.TempDir() + "/events.log"
	log, err := NewFileEventLog(path)
	if err != nil {
		t.Fatalf("NewFileEventLog: %v", err)
	}
	log.Append("decide view=1")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if len(data) == 0 {
		t.Fatalf("expected log file to contain the appended line")
	}
}
