package consensus

// AtomicStorage is the named external storage collaborator (§6.2). The
// core calls it only after Decide. Contract: Commit is atomic and
// durable; after a restart only views appended before the last successful
// Commit are observable — exercised end-to-end by
// pkg/storage.AtomicStore against original_source/tests/atomic_storage.rs.
type AtomicStorage interface {
	AppendSingleView(view View, leaf Leaf, qc Certificate, block Block) error
	CleanupStorageUpToView(view View) error
	Commit() error
	GetBlock(h Commitment) (Block, bool)
	UncommittedChangeCount() int
}

// BlockSource supplies pending transactions for a new proposal — the
// minimal surface the state machine needs from the application
// collaborator (§1 excludes general execution; this is strictly "what
// goes in the next block", not "how it is executed").
type BlockSource interface {
	NextPayload(parent BlockHeader) [][]byte
}
