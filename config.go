package borrowlend

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Default file locations, relative to the repository root.
const (
	DefaultConfigPath    = "ts-scripts/testnet/config.json"
	DefaultAddressesPath = "ts-scripts/testnet/deployedAddresses.json"
)

// EnvPrivateKey names the environment variable holding the deployer key.
const EnvPrivateKey = "EVM_PRIVATE_KEY"

// LoadConfig reads the static chain list from path. Files ending in .yaml or
// .yml are decoded as YAML; everything else as JSON.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrConfig, path, err)
	}

	cfg, err := ParseConfig(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a chain list document. ext selects the format.
func ParseConfig(data []byte, ext string) (*Config, error) {
	var cfg Config
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parse yaml: %v", ErrConfig, err)
		}
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("%w: parse json: %v", ErrConfig, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
