package loadgen

import (
	"context"
	"testing"
	"time"

	"github.com/uhyunpark/hyperlicked/pkg/app/example"
	"github.com/uhyunpark/hyperlicked/pkg/crypto"
)

func TestTxFeeder_PushesBoundedRounds(t *testing.T) {
	signer, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	app := example.NewExampleApp(0)

	cfg := Config{Rounds: 3, TransactionsPerRound: 2, TransactionSize: 16, Interval: 5 * time.Millisecond}
	feeder := NewTxFeeder(app, signer, cfg, nil)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	stop := feeder.Start(ctx)
	defer stop()

	deadline := time.After(500 * time.Millisecond)
	for feeder.PushedCount() < 6 {
		select {
		case <-deadline:
			t.Fatalf("PushedCount() = %d after timeout, want 6", feeder.PushedCount())
		case <-time.After(5 * time.Millisecond):
		}
	}

	if app.PendingCount() != 6 {
		t.Fatalf("PendingCount() = %d, want 6", app.PendingCount())
	}
}
