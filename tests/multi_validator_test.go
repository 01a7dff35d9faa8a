// file: tests/multi_validator_test.go
package tests

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/uhyunpark/hyperlicked/pkg/app/example"
	"github.com/uhyunpark/hyperlicked/pkg/consensus"
	"github.com/uhyunpark/hyperlicked/pkg/crypto"
	"github.com/uhyunpark/hyperlicked/pkg/p2p"
	"github.com/uhyunpark/hyperlicked/pkg/storage"
	"github.com/uhyunpark/hyperlicked/pkg/util"
)

// TestFourValidators runs 4 validators over the web-rendezvous transport
// (deterministic and easy to stand up in-process, unlike a real libp2p
// mesh) and checks they all decide the same first leaf. This is the
// minimum viable BFT setup: N=4, f=1, threshold=3.
func TestFourValidators(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	const n = 4
	signers := make([]*crypto.Signer, n)
	ids := make([]consensus.NodeID, n)
	for i := range signers {
		s, err := crypto.GenerateKey()
		if err != nil {
			t.Fatalf("val%d: generate key: %v", i, err)
		}
		signers[i] = s
		ids[i] = consensus.NodeID(s.Address().Hex())
	}

	quorumRelay := httptest.NewServer(p2p.NewWebServerRelay().Router())
	defer quorumRelay.Close()
	daRelay := httptest.NewServer(p2p.NewWebServerRelay().Router())
	defer daRelay.Close()

	quorumMembership := consensus.NewStakeTableMembership(consensus.NewStakeTable(ids))
	daMembership, err := consensus.NewDASubsetMembership(quorumMembership, n)
	if err != nil {
		t.Fatalf("da membership: %v", err)
	}

	engines := make([]*consensus.Engine, n)
	for i := 0; i < n; i++ {
		app := example.NewExampleApp(0)
		if i == 0 {
			app.PushTx([]byte("tx1"))
		}

		quorumNet := p2p.NewWebServerNetwork(p2p.WebServerConfig{RelayAddr: quorumRelay.URL, PollInterval: 20 * time.Millisecond})
		daNet := p2p.NewWebServerNetwork(p2p.WebServerConfig{RelayAddr: daRelay.URL, PollInterval: 20 * time.Millisecond})
		net := consensus.Network{Quorum: quorumNet, DA: daNet}

		pm := consensus.NewPacemaker(2*time.Second, util.RealClock{})
		engines[i] = consensus.NewEngine(ids[i], signers[i], quorumMembership, daMembership, net, storage.NewInMemoryStore(), app, pm, nil)
	}

	for i := 0; i < n; i++ {
		i := i
		go func() {
			if err := engines[i].Run(ctx, 0); err != nil && ctx.Err() == nil {
				t.Logf("val%d: engine error: %v", i, err)
			}
		}()
	}

	decided := make([]consensus.Commitment, n)
	for i := 0; i < n; i++ {
		select {
		case ev := <-engines[i].Inst.Events():
			if ev.Kind != consensus.EventDecide || ev.Decide == nil || len(ev.Decide.LeafChain) == 0 {
				t.Fatalf("val%d: expected a Decide event, got kind=%v", i, ev.Kind)
			}
			decided[i] = ev.Decide.LeafChain[0].Commitment()
		case <-ctx.Done():
			t.Fatalf("val%d: timed out waiting for a decision", i)
		}
	}

	for i := 1; i < n; i++ {
		if decided[i] != decided[0] {
			t.Errorf("val%d decided commitment %x, want %x (val0's)", i, decided[i][:8], decided[0][:8])
		}
	}
}
