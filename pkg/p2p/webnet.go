package p2p

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/uhyunpark/hyperlicked/pkg/consensus"
)

// WebServerConfig configures a polling-rendezvous transport binding: a
// single relay process all nodes post messages to and poll from. Grounded
// on original_source/crates/examples/infra/mod.rs's WebServerNetwork —
// useful where a libp2p mesh can't be formed (NAT'd demo nodes, browser
// clients), traded for a relay's higher latency and single point of
// failure.
type WebServerConfig struct {
	RelayAddr    string
	PollInterval time.Duration
}

// WebServerNetwork is a ConnectedNetwork that POSTs outgoing messages to
// the relay and polls it for new ones.
type WebServerNetwork struct {
	relayAddr    string
	pollInterval time.Duration
	client       *http.Client
	outCh        chan consensus.Message

	mu       sync.Mutex
	lastSeen int
	stop     chan struct{}
}

func NewWebServerNetwork(cfg WebServerConfig) *WebServerNetwork {
	interval := cfg.PollInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &WebServerNetwork{
		relayAddr:    cfg.RelayAddr,
		pollInterval: interval,
		client:       &http.Client{Timeout: 5 * time.Second},
		outCh:        make(chan consensus.Message, 256),
		stop:         make(chan struct{}),
	}
}

func (w *WebServerNetwork) Broadcast(ctx context.Context, msg consensus.Message, _ []consensus.NodeID) error {
	return w.post(ctx, msg)
}

func (w *WebServerNetwork) DirectMessage(ctx context.Context, msg consensus.Message, _ consensus.NodeID) error {
	return w.post(ctx, msg) // relay fans every message out; recipients filter locally
}

func (w *WebServerNetwork) post(ctx context.Context, msg consensus.Message) error {
	data, err := gobEncode(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.relayAddr+"/messages", bytes.NewReader(data))
	if err != nil {
		return err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post to relay: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("relay returned status %d", resp.StatusCode)
	}
	return nil
}

func (w *WebServerNetwork) RecvMsgs(ctx context.Context) (<-chan consensus.Message, error) {
	go w.pollLoop(ctx)
	return w.outCh, nil
}

func (w *WebServerNetwork) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *WebServerNetwork) pollOnce(ctx context.Context) {
	w.mu.Lock()
	since := w.lastSeen
	w.mu.Unlock()

	url := fmt.Sprintf("%s/messages?since=%d", w.relayAddr, since)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return
	}

	var batch relayBatch
	if err := json.Unmarshal(body, &batch); err != nil {
		return
	}
	for _, env := range batch.Messages {
		var msg consensus.Message
		if err := gobDecode(env, &msg); err != nil {
			continue
		}
		select {
		case w.outCh <- msg:
		case <-ctx.Done():
			return
		}
	}
	w.mu.Lock()
	w.lastSeen = batch.NextOffset
	w.mu.Unlock()
}

func (w *WebServerNetwork) WaitForReady(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.relayAddr+"/ready", nil)
	if err != nil {
		return err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay not reachable: %w", err)
	}
	defer resp.Body.Close()
	return nil
}

func (w *WebServerNetwork) ShutDown() error {
	close(w.stop)
	return nil
}

var _ consensus.ConnectedNetwork = (*WebServerNetwork)(nil)

// --- Relay server ---

type relayBatch struct {
	Messages   [][]byte `json:"messages"`
	NextOffset int      `json:"next_offset"`
}

// WebServerRelay is the rendezvous process every node's WebServerNetwork
// talks to: an in-memory append-only log of gob-encoded messages, served
// over HTTP via gorilla/mux.
type WebServerRelay struct {
	mu  sync.Mutex
	log [][]byte
}

func NewWebServerRelay() *WebServerRelay {
	return &WebServerRelay{}
}

func (r *WebServerRelay) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/messages", r.handlePost).Methods(http.MethodPost)
	router.HandleFunc("/messages", r.handleGet).Methods(http.MethodGet)
	router.HandleFunc("/ready", r.handleReady).Methods(http.MethodGet)
	return router
}

func (r *WebServerRelay) handlePost(w http.ResponseWriter, req *http.Request) {
	data, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	r.mu.Lock()
	r.log = append(r.log, data)
	r.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (r *WebServerRelay) handleGet(w http.ResponseWriter, req *http.Request) {
	since := 0
	if v := req.URL.Query().Get("since"); v != "" {
		fmt.Sscanf(v, "%d", &since)
	}

	r.mu.Lock()
	var out [][]byte
	if since < len(r.log) {
		out = append(out, r.log[since:]...)
	}
	next := len(r.log)
	r.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(relayBatch{Messages: out, NextOffset: next})
}

func (r *WebServerRelay) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
