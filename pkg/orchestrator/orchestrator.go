// Package orchestrator implements the bootstrap-only collaborator named
// in §6.3: a rendezvous HTTP server that holds the run's NetworkConfig
// and lets every node register its transport address before the run
// starts, and a client each node uses at startup. Grounded on
// original_source/crates/examples/infra/mod.rs's
// OrchestratorArgs/run_orchestrator and
// ValidatorConfig::generated_from_seed_indexed.
package orchestrator

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"github.com/uhyunpark/hyperlicked/pkg/consensus"
)

// NetworkConfig is the run-wide configuration every node receives from
// the orchestrator before starting: the validator set size, DA
// committee size, and the run's seed (from which every node derives its
// own keypair locally — the seed itself is the only secret the
// orchestrator hands out).
type NetworkConfig struct {
	TotalNodes      int      `json:"total_nodes"`
	DACommitteeSize int      `json:"da_committee_size"`
	Seed            [32]byte `json:"seed"`
}

// PeerInfo is what a node registers with the orchestrator: its derived
// identity and the transport address peers should dial.
type PeerInfo struct {
	NodeID consensus.NodeID `json:"node_id"`
	Index  int              `json:"index"`
	Addr   string           `json:"addr"`
}

// Server holds the NetworkConfig for one run and the peer table as
// nodes register.
type Server struct {
	mu     sync.Mutex
	config NetworkConfig
	ready  bool
	peers  []PeerInfo
}

func NewServer(config NetworkConfig) *Server {
	return &Server{config: config}
}

func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/config", s.handleConfig).Methods(http.MethodGet)
	router.HandleFunc("/register", s.handleRegister).Methods(http.MethodPost)
	router.HandleFunc("/peers", s.handlePeers).Methods(http.MethodGet)
	return router
}

func (s *Server) handleConfig(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.config)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var info PeerInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.peers = append(s.peers, info)
	if len(s.peers) >= s.config.TotalNodes {
		s.ready = true
	}
	s.mu.Unlock()

	w.WriteHeader(http.StatusOK)
}

func (s *Server) handlePeers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ready := s.ready
	peers := append([]PeerInfo(nil), s.peers...)
	s.mu.Unlock()

	if !ready {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(peers)
}

// Client is what each node uses at startup to fetch the run's
// NetworkConfig and register its own transport address.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{baseURL: baseURL, http: &http.Client{}}
}

func (c *Client) FetchConfig() (NetworkConfig, error) {
	resp, err := c.http.Get(c.baseURL + "/config")
	if err != nil {
		return NetworkConfig{}, fmt.Errorf("fetch config: %w", err)
	}
	defer resp.Body.Close()

	var cfg NetworkConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return NetworkConfig{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func (c *Client) Register(info PeerInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal peer info: %w", err)
	}
	resp, err := c.http.Post(c.baseURL+"/register", "application/json", bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("register: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("orchestrator returned status %d", resp.StatusCode)
	}
	return nil
}

// FetchPeers polls the orchestrator's peer table. ok is false until
// every node has registered.
func (c *Client) FetchPeers() (peers []PeerInfo, ok bool, err error) {
	resp, err := c.http.Get(c.baseURL + "/peers")
	if err != nil {
		return nil, false, fmt.Errorf("fetch peers: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		return nil, false, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(&peers); err != nil {
		return nil, false, fmt.Errorf("decode peers: %w", err)
	}
	return peers, true, nil
}
