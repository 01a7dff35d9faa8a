// Package p2p provides ConnectedNetwork transport bindings: a libp2p
// gossip mesh, a polling web-rendezvous relay, and a deduping combiner
// over both, per §2's transport bindings.
package p2p

import (
	"bytes"
	"encoding/gob"
)

// gobEncode/gobDecode are the wire codec every transport binding shares:
// each carries a gob-encoded consensus.Message.
func gobEncode(v any) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func gobDecode(b []byte, v any) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}
