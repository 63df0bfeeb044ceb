package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"auctiond/crypto"
)

// Config is the daemon's on-disk configuration. A missing file is created
// with defaults, including a fresh upgrade-authority keystore, so a first
// start needs no manual setup.
type Config struct {
	RPCAddress            string  `toml:"RPCAddress"`
	DataDir               string  `toml:"DataDir"`
	GenesisFile           string  `toml:"GenesisFile"`
	AuthorityKeystorePath string  `toml:"AuthorityKeystorePath"`
	NetworkName           string  `toml:"NetworkName"`
	Environment           string  `toml:"Environment"`
	LogLevel              string  `toml:"LogLevel"`
	RPCRequestsPerMinute  float64 `toml:"RPCRequestsPerMinute"`
	RPCBurst              int     `toml:"RPCBurst"`
}

// Load loads the configuration from the given path.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	if err := ensureKeystore(path, cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "auction-local"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./auction-data"
	}
	if strings.TrimSpace(cfg.RPCAddress) == "" {
		cfg.RPCAddress = ":8080"
	}
	if cfg.RPCRequestsPerMinute <= 0 {
		cfg.RPCRequestsPerMinute = 120
	}
	if cfg.RPCBurst <= 0 {
		cfg.RPCBurst = 20
	}

	return cfg, nil
}

func ensureKeystore(configPath string, cfg *Config) error {
	keystorePath := cfg.AuthorityKeystorePath
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.AuthorityKeystorePath != keystorePath {
		cfg.AuthorityKeystorePath = keystorePath
		return persist(configPath, cfg)
	}

	return nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	keystorePath := defaultKeystorePath(path)
	if err := crypto.SaveToKeystore(keystorePath, key, ""); err != nil {
		return nil, err
	}

	cfg := &Config{
		RPCAddress:           ":8080",
		DataDir:              "./auction-data",
		GenesisFile:          "",
		NetworkName:          "auction-local",
		Environment:          "local",
		LogLevel:             "info",
		RPCRequestsPerMinute: 120,
		RPCBurst:             20,
	}
	cfg.AuthorityKeystorePath = keystorePath

	if err := persist(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		dir = ""
	}
	return filepath.Join(dir, "authority.keystore")
}
