package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperlicked/params"
	"github.com/uhyunpark/hyperlicked/pkg/api"
	"github.com/uhyunpark/hyperlicked/pkg/app/example"
	"github.com/uhyunpark/hyperlicked/pkg/app/loadgen"
	"github.com/uhyunpark/hyperlicked/pkg/consensus"
	"github.com/uhyunpark/hyperlicked/pkg/crypto"
	"github.com/uhyunpark/hyperlicked/pkg/orchestrator"
	"github.com/uhyunpark/hyperlicked/pkg/p2p"
	"github.com/uhyunpark/hyperlicked/pkg/storage"
	"github.com/uhyunpark/hyperlicked/pkg/util"
)

func main() {
	cfg := params.LoadFromEnv("")

	logFile := cfg.LogFile
	if v := os.Getenv("LOG_FILE"); v != "" {
		logFile = v
	}
	logger, err := util.NewLoggerWithFile(logFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", logFile)

	index, err := strconv.Atoi(os.Getenv("NODE_INDEX"))
	if err != nil {
		sugar.Fatalw("NODE_INDEX is required and must be an integer", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ---- Bootstrap: fetch the run-wide NetworkConfig and register ----
	orch := orchestrator.NewClient(cfg.OrchestratorAddr)
	netCfg, err := orch.FetchConfig()
	if err != nil {
		sugar.Fatalw("fetch_network_config_failed", "err", err)
	}
	cfg.TotalNodes = netCfg.TotalNodes
	cfg.DACommitteeSize = netCfg.DACommitteeSize
	cfg.Seed = netCfg.Seed

	signer, err := crypto.DeriveValidatorKey(cfg.Seed, index)
	if err != nil {
		sugar.Fatalw("derive_key_failed", "err", err)
	}
	selfID := consensus.NodeID(signer.Address().Hex())

	advertiseAddr := os.Getenv("ADVERTISE_ADDR")
	if err := orch.Register(orchestrator.PeerInfo{NodeID: selfID, Index: index, Addr: advertiseAddr}); err != nil {
		sugar.Fatalw("register_failed", "err", err)
	}

	var peers []orchestrator.PeerInfo
	for {
		ps, ok, err := orch.FetchPeers()
		if err != nil {
			sugar.Fatalw("fetch_peers_failed", "err", err)
		}
		if ok {
			peers = ps
			break
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(200 * time.Millisecond):
		}
	}

	var ids []consensus.NodeID
	for _, p := range peers {
		ids = append(ids, p.NodeID)
	}

	// ---- Membership ----
	quorum := consensus.NewStakeTableMembership(consensus.NewStakeTable(ids))
	da, err := consensus.NewDASubsetMembership(quorum, cfg.DACommitteeSize)
	if err != nil {
		sugar.Fatalw("da_membership_failed", "err", err)
	}

	// ---- Storage ----
	dataDir := os.Getenv("DATA_DIR")
	var store consensus.AtomicStorage
	if dataDir != "" {
		atomicStore, err := storage.NewAtomicStore(dataDir)
		if err != nil {
			sugar.Fatalw("open_storage_failed", "err", err)
		}
		store = atomicStore
	} else {
		store = storage.NewInMemoryStore()
		sugar.Info("data_dir_unset: using in-memory storage")
	}

	// ---- Application ----
	app := example.NewExampleApp(int64(cfg.TransactionSize) * int64(cfg.TransactionsPerRound) * 4)

	// ---- Network ----
	quorumNet, daNet, err := buildNetworks(ctx, cfg, selfID, ids, peers, sugar)
	if err != nil {
		sugar.Fatalw("build_networks_failed", "err", err)
	}
	net := consensus.Network{Quorum: quorumNet, DA: daNet}

	if err := net.Quorum.WaitForReady(ctx); err != nil {
		sugar.Fatalw("quorum_network_not_ready", "err", err)
	}
	if err := net.DA.WaitForReady(ctx); err != nil {
		sugar.Fatalw("da_network_not_ready", "err", err)
	}

	// ---- Consensus engine ----
	pm := consensus.NewPacemaker(cfg.NextViewTimeout, util.RealClock{})
	engine := consensus.NewEngine(selfID, signer, quorum, da, net, store, app, pm, sugar)

	sugar.Infow("node_starting",
		"self_id", selfID,
		"total_nodes", cfg.TotalNodes,
		"da_committee_size", cfg.DACommitteeSize,
		"threshold", quorum.Threshold())

	// ---- Optional synthetic load ----
	if os.Getenv("ENABLE_TXGEN") == "true" {
		txCfg := loadgen.Config{
			Rounds:               cfg.Rounds,
			TransactionsPerRound: cfg.TransactionsPerRound,
			TransactionSize:      cfg.TransactionSize,
			Interval:             200 * time.Millisecond,
		}
		feederSigner, err := crypto.GenerateKey()
		if err != nil {
			sugar.Fatalw("txfeeder_key_failed", "err", err)
		}
		feeder := loadgen.NewTxFeeder(app, feederSigner, txCfg, sugar)
		stopFeeder := feeder.Start(ctx)
		defer stopFeeder()
		sugar.Infow("txgen_enabled", "rounds", txCfg.Rounds, "per_round", txCfg.TransactionsPerRound)
	}

	// ---- API server ----
	apiAddr := cfg.APIAddr
	if v := os.Getenv("API_ADDR"); v != "" {
		apiAddr = v
	}
	apiSrv := api.NewServer(engine, app, sugar)
	go func() {
		if err := apiSrv.Run(ctx, apiAddr); err != nil && ctx.Err() == nil {
			sugar.Errorw("api_server_failed", "err", err)
		}
	}()

	// ---- Run consensus ----
	runErr := make(chan error, 1)
	go func() { runErr <- engine.Run(ctx, cfg.StartDelaySeconds) }()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case err := <-runErr:
			if err != nil && ctx.Err() == nil {
				sugar.Fatalw("engine_stopped", "err", err)
			}
			return
		case <-ticker.C:
			if err := store.Commit(); err != nil {
				sugar.Errorw("storage_commit_failed", "err", err)
			}
		}
	}
}

// buildNetworks selects a transport binding per TRANSPORT (web, libp2p,
// combined; default web) and returns the quorum and DA ConnectedNetwork
// pair, per §6.1/§6.4.
func buildNetworks(ctx context.Context, cfg params.Config, selfID consensus.NodeID, ids []consensus.NodeID, peers []orchestrator.PeerInfo, sugar *zap.SugaredLogger) (consensus.ConnectedNetwork, consensus.ConnectedNetwork, error) {
	transport := os.Getenv("TRANSPORT")
	if transport == "" {
		transport = "web"
	}

	webQuorum := p2p.NewWebServerNetwork(cfg.WebServerConfig)
	webDA := p2p.NewWebServerNetwork(cfg.DAWebServerConfig)

	if transport == "web" {
		return webQuorum, webDA, nil
	}

	bootstrapPeers := make(map[consensus.NodeID]peer.ID)
	others := make([]consensus.NodeID, 0, len(peers))
	for _, p := range peers {
		if p.NodeID != selfID {
			others = append(others, p.NodeID)
		}
	}
	for i, addr := range cfg.Libp2pConfig.Bootstrap {
		if i >= len(others) {
			break
		}
		maddr, err := ma.NewMultiaddr(addr)
		if err != nil {
			continue
		}
		info, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			continue
		}
		bootstrapPeers[others[i]] = info.ID
	}

	lpQuorum, err := p2p.NewLibp2pNet(ctx, p2p.Libp2pConfig{
		Name: "quorum", ListenAddr: cfg.Libp2pConfig.ListenAddr, Bootstrap: cfg.Libp2pConfig.Bootstrap,
		SelfID: selfID, Peers: bootstrapPeers,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("quorum libp2p: %w", err)
	}
	lpDA, err := p2p.NewLibp2pNet(ctx, p2p.Libp2pConfig{
		Name: "da", ListenAddr: cfg.Libp2pConfig.ListenAddr, Bootstrap: cfg.Libp2pConfig.Bootstrap,
		SelfID: selfID, Peers: bootstrapPeers,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("da libp2p: %w", err)
	}

	if transport == "libp2p" {
		return lpQuorum, lpDA, nil
	}

	return p2p.NewCombinedNetwork(lpQuorum, webQuorum), p2p.NewCombinedNetwork(lpDA, webDA), nil
}
