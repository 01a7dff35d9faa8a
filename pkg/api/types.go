package api

// WSSubscribeRequest is a client's subscribe/unsubscribe request over
// the WebSocket connection.
type WSSubscribeRequest struct {
	Op       string   `json:"op"` // "subscribe" | "unsubscribe"
	Channels []string `json:"channels"`
}

// ChainStatus is the snapshot returned by GET /api/v1/chain/status.
type ChainStatus struct {
	View          uint64 `json:"view"`
	LockedView    uint64 `json:"locked_view"`
	LastVotedView uint64 `json:"last_voted_view"`
	Decisions     int    `json:"decisions"`
}

// DecideEventDTO is the wire shape of a Decide event pushed to the
// "events" WebSocket channel.
type DecideEventDTO struct {
	View       uint64 `json:"view"`
	Height     uint64 `json:"height"`
	Commitment string `json:"commitment"`
	BlockSize  int    `json:"block_size"`
}

// SubmitTxRequest is the body of POST /api/v1/tx.
type SubmitTxRequest struct {
	Data string `json:"data"` // hex-encoded raw transaction bytes
}
