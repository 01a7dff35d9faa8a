// Package api exposes the event surface named in §4.8: a chain-status
// snapshot, a WebSocket feed of Decide events, and a transaction
// submission endpoint into the node's mempool. Adapted from the
// teacher's pkg/api/server.go (gorilla/mux router plus the Hub/Client
// WebSocket fan-out kept as-is) with the orderbook/trade/account REST
// surface replaced wholesale by consensus chain status and decide
// events.
package api

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperlicked/pkg/app/example"
	"github.com/uhyunpark/hyperlicked/pkg/consensus"
)

// Server serves the REST+WebSocket event API for one node.
type Server struct {
	hub    *Hub
	engine *consensus.Engine
	app    *example.ExampleApp
	logger *zap.SugaredLogger

	decisions int
}

func NewServer(engine *consensus.Engine, app *example.ExampleApp, logger *zap.SugaredLogger) *Server {
	return &Server{
		hub:    NewHub(),
		engine: engine,
		app:    app,
		logger: logger,
	}
}

// Router returns the HTTP handler for this server, CORS-wrapped per the
// teacher's server.go (browser-based dashboards hit this from a
// different origin than the node's listen address).
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/api/v1/chain/status", s.handleChainStatus).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/tx", s.handleSubmitTx).Methods(http.MethodPost)
	router.HandleFunc("/ws", s.handleWebSocket)

	return cors.AllowAll().Handler(router)
}

// Run starts the Hub's broadcast loop, forwards Decide events onto the
// "events" WebSocket channel, and serves HTTP until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	go s.hub.Run()
	go s.forwardEvents(ctx)

	httpSrv := &http.Server{Addr: addr, Handler: s.Router()}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return httpSrv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}

func (s *Server) forwardEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-s.engine.Inst.Events():
			if !ok {
				return
			}
			if ev.Kind != consensus.EventDecide || ev.Decide == nil {
				continue
			}
			s.decisions += len(ev.Decide.LeafChain)
			for _, leaf := range ev.Decide.LeafChain {
				s.app.NoteCommit()
				dto := DecideEventDTO{
					View:       uint64(leaf.View),
					Height:     uint64(leaf.Header.Height),
					Commitment: hex.EncodeToString(leaf.Header.PayloadCommitment[:]),
					BlockSize:  leaf.Header.PayloadSize,
				}
				s.hub.BroadcastToChannel("events", dto)
			}
		}
	}
}

func (s *Server) handleChainStatus(w http.ResponseWriter, _ *http.Request) {
	status := ChainStatus{
		View:          uint64(s.engine.Inst.PM.CurrentView()),
		LockedView:    uint64(s.engine.Inst.Safety.LockedView()),
		LastVotedView: uint64(s.engine.Inst.Safety.LastVotedView()),
		Decisions:     s.decisions,
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

func (s *Server) handleSubmitTx(w http.ResponseWriter, r *http.Request) {
	var req SubmitTxRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, err := hex.DecodeString(req.Data)
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid hex payload: %v", err), http.StatusBadRequest)
		return
	}

	s.app.PushTx(data)
	w.WriteHeader(http.StatusAccepted)
}
