package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"auctiond/cmd/internal/passphrase"
	"auctiond/config"
	"auctiond/core"
	"auctiond/crypto"
	"auctiond/observability/logging"
	"auctiond/rpc"
	"auctiond/storage"
)

const authorityPassEnv = "AUCTIOND_AUTHORITY_PASS"

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	genesisFlag := flag.String("genesis", "", "Path to a genesis JSON file (overrides config GenesisFile)")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("AUCTIOND_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if env == "" {
		env = cfg.Environment
	}
	logger := logging.Setup("auctiond", env, cfg.LogLevel)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		panic(fmt.Sprintf("Failed to prepare data directory: %v", err))
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		panic(fmt.Sprintf("Failed to open database: %v", err))
	}
	defer db.Close()

	passSource := passphrase.NewSource(authorityPassEnv)
	pass, err := passSource.Get()
	if err != nil {
		panic(fmt.Sprintf("Failed to resolve keystore passphrase: %v", err))
	}
	authorityKey, err := crypto.LoadFromKeystore(cfg.AuthorityKeystorePath, pass)
	if err != nil {
		panic(fmt.Sprintf("Failed to load authority key: %v", err))
	}
	authorityAddr := authorityKey.PubKey().Address()
	var upgradeAuthority [20]byte
	copy(upgradeAuthority[:], authorityAddr.Bytes())

	node := core.NewNode(db, upgradeAuthority)
	node.SetLogger(logger)

	genesisPath := strings.TrimSpace(*genesisFlag)
	if genesisPath == "" {
		genesisPath = strings.TrimSpace(cfg.GenesisFile)
	}
	if genesisPath != "" {
		genesis, err := core.LoadGenesis(genesisPath)
		if err != nil {
			panic(fmt.Sprintf("Failed to load genesis file: %v", err))
		}
		if err := node.ApplyGenesis(genesis); err != nil {
			panic(fmt.Sprintf("Failed to apply genesis: %v", err))
		}
	}

	server := rpc.NewServer(node)
	server.SetLogger(logger)
	server.SetRateLimit(rpc.RateLimit{
		RequestsPerMinute: cfg.RPCRequestsPerMinute,
		Burst:             cfg.RPCBurst,
	})

	logger.Info("node ready",
		slog.String("network", cfg.NetworkName),
		slog.String("upgradeAuthority", authorityAddr.String()),
		slog.String("dataDir", cfg.DataDir),
	)

	if err := server.Start(cfg.RPCAddress); err != nil {
		logger.Error("RPC server stopped", slog.Any("error", err))
		os.Exit(1)
	}
}
