// Package params defines the node's configuration surface, loaded from
// environment variables and an optional .env file via godotenv, the way
// the teacher's Consensus/Node config structs are loaded today.
package params

import (
	"encoding/hex"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Libp2pConfig configures the libp2p mesh transport binding (§2).
type Libp2pConfig struct {
	ListenAddr string
	Bootstrap  []string
}

// WebServerConfig configures a polling-rendezvous transport binding
// (§2) — used for both the quorum and the DA network, each pointed at
// its own relay address.
type WebServerConfig struct {
	RelayAddr    string
	PollInterval time.Duration
}

// Config carries the full configuration surface.
type Config struct {
	TotalNodes      int
	DACommitteeSize int

	NextViewTimeout   time.Duration
	StartDelaySeconds int

	Rounds               int
	TransactionsPerRound int
	TransactionSize      int

	Seed [32]byte

	Libp2pConfig      Libp2pConfig
	WebServerConfig   WebServerConfig
	DAWebServerConfig WebServerConfig

	OrchestratorAddr string
	APIAddr          string
	LogFile          string
}

func Default() Config {
	return Config{
		TotalNodes:        4,
		DACommitteeSize:   3,
		NextViewTimeout:   2 * time.Second,
		StartDelaySeconds: 2,
		Rounds:            0,
		Libp2pConfig: Libp2pConfig{
			ListenAddr: "/ip4/0.0.0.0/tcp/0",
		},
		WebServerConfig: WebServerConfig{
			PollInterval: 100 * time.Millisecond,
		},
		DAWebServerConfig: WebServerConfig{
			PollInterval: 100 * time.Millisecond,
		},
		OrchestratorAddr: "http://127.0.0.1:8000",
		APIAddr:          ":8080",
		LogFile:          "data/node.log",
	}
}

// LoadFromEnv loads configuration from an optional .env file, then
// environment variables (env wins over .env wins over defaults).
func LoadFromEnv(envPath string) Config {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	if v := os.Getenv("TOTAL_NODES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TotalNodes = n
		}
	}
	if v := os.Getenv("DA_COMMITTEE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DACommitteeSize = n
		}
	}
	if v := os.Getenv("NEXT_VIEW_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil {
			cfg.NextViewTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("START_DELAY_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.StartDelaySeconds = n
		}
	}
	if v := os.Getenv("ROUNDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Rounds = n
		}
	}
	if v := os.Getenv("TRANSACTIONS_PER_ROUND"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TransactionsPerRound = n
		}
	}
	if v := os.Getenv("TRANSACTION_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.TransactionSize = n
		}
	}
	if v := os.Getenv("SEED_HEX"); v != "" {
		if b, err := hex.DecodeString(v); err == nil && len(b) == 32 {
			copy(cfg.Seed[:], b)
		}
	}
	if v := os.Getenv("LISTEN"); v != "" {
		cfg.Libp2pConfig.ListenAddr = v
	}
	if v := os.Getenv("ORCHESTRATOR_ADDR"); v != "" {
		cfg.OrchestratorAddr = v
	}
	if v := os.Getenv("API_ADDR"); v != "" {
		cfg.APIAddr = v
	}
	if v := os.Getenv("WEB_RELAY_ADDR"); v != "" {
		cfg.WebServerConfig.RelayAddr = v
	}
	if v := os.Getenv("DA_WEB_RELAY_ADDR"); v != "" {
		cfg.DAWebServerConfig.RelayAddr = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}

	return cfg
}

// Threshold returns the quorum size for a network of n nodes: ⌊2n/3⌋+1.
func Threshold(n int) int {
	return (2*n)/3 + 1
}
