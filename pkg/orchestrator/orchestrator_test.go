package orchestrator

import (
	"net/http/httptest"
	"testing"
)

func TestServer_ConfigAndRegisterFlow(t *testing.T) {
	cfg := NetworkConfig{TotalNodes: 2, DACommitteeSize: 2, Seed: [32]byte{7}}
	srv := NewServer(cfg)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	client := NewClient(ts.URL)

	got, err := client.FetchConfig()
	if err != nil {
		t.Fatalf("FetchConfig: %v", err)
	}
	if got.TotalNodes != cfg.TotalNodes || got.Seed != cfg.Seed {
		t.Fatalf("FetchConfig() = %+v, want %+v", got, cfg)
	}

	if _, ok, err := client.FetchPeers(); err != nil || ok {
		t.Fatalf("FetchPeers before registration: ok=%v err=%v, want ok=false", ok, err)
	}

	if err := client.Register(PeerInfo{NodeID: "node-0", Index: 0, Addr: "addr-0"}); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := client.Register(PeerInfo{NodeID: "node-1", Index: 1, Addr: "addr-1"}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	peers, ok, err := client.FetchPeers()
	if err != nil {
		t.Fatalf("FetchPeers: %v", err)
	}
	if !ok {
		t.Fatalf("FetchPeers should report ready once every node has registered")
	}
	if len(peers) != 2 {
		t.Fatalf("FetchPeers returned %d peers, want 2", len(peers))
	}
}
