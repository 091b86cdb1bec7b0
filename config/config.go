package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"circnexus/crypto"

	"github.com/BurntSushi/toml"
)

// Config is the daemon configuration. Addresses are bech32 with the cnx
// prefix; the JWT secret is read from the named environment variable so it
// never lands in the file.
type Config struct {
	ListenAddress       string `toml:"ListenAddress"`
	DataDir             string `toml:"DataDir"`
	Environment         string `toml:"Environment"`
	OwnerAddress        string `toml:"OwnerAddress"`
	FeeCollectorAddress string `toml:"FeeCollectorAddress"`
	CustodyAddress      string `toml:"CustodyAddress"`
	JWTSecretEnv        string `toml:"JWTSecretEnv"`
	LogFile             string `toml:"LogFile"`
	LogMaxSizeMB        int    `toml:"LogMaxSizeMB"`
	LogMaxBackups       int    `toml:"LogMaxBackups"`
}

// Load reads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks address formats and fills defaults for optional fields.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ListenAddress) == "" {
		c.ListenAddress = ":8080"
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = "./circnexus-data"
	}
	if strings.TrimSpace(c.Environment) == "" {
		c.Environment = "local"
	}
	if strings.TrimSpace(c.JWTSecretEnv) == "" {
		c.JWTSecretEnv = "CIRCNEXUS_JWT_SECRET"
	}
	if c.LogMaxSizeMB <= 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups < 0 {
		c.LogMaxBackups = 0
	}
	for name, value := range map[string]string{
		"OwnerAddress":        c.OwnerAddress,
		"FeeCollectorAddress": c.FeeCollectorAddress,
		"CustodyAddress":      c.CustodyAddress,
	} {
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s is required", name)
		}
		if _, err := crypto.DecodeAddress(value); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Owner returns the decoded owner address.
func (c *Config) Owner() ([20]byte, error) {
	return decode(c.OwnerAddress)
}

// FeeCollector returns the decoded fee collector address.
func (c *Config) FeeCollector() ([20]byte, error) {
	return decode(c.FeeCollectorAddress)
}

// Custody returns the decoded custody address.
func (c *Config) Custody() ([20]byte, error) {
	return decode(c.CustodyAddress)
}

func decode(addr string) ([20]byte, error) {
	decoded, err := crypto.DecodeAddress(addr)
	if err != nil {
		return [20]byte{}, err
	}
	return decoded.Array(), nil
}

// createDefault creates and saves a default configuration file. Generated key
// material supplies the placeholder addresses so the file is runnable out of
// the box.
func createDefault(path string) (*Config, error) {
	ownerKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	collectorKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}
	custodyKey, err := crypto.GeneratePrivateKey()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		ListenAddress:       ":8080",
		DataDir:             "./circnexus-data",
		Environment:         "local",
		OwnerAddress:        ownerKey.PubKey().Address().String(),
		FeeCollectorAddress: collectorKey.PubKey().Address().String(),
		CustodyAddress:      custodyKey.PubKey().Address().String(),
		JWTSecretEnv:        "CIRCNEXUS_JWT_SECRET",
		LogMaxSizeMB:        100,
	}
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
