package contracts

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	borrowlend "github.com/wormhole-foundation/example-cross-chain-borrow-lend"
)

// Contract names as produced by `forge build`.
const (
	HubContract   = "Hub"
	SpokeContract = "Spoke"
	TokenContract = "ERC20Mock"
)

// DefaultArtifactsDir is the Foundry output directory.
const DefaultArtifactsDir = "out"

// ContractArtifact represents a compiled Solidity contract with ABI and bytecode.
type ContractArtifact struct {
	Name     string          `json:"-"`
	ABI      json.RawMessage `json:"abi"`
	Bytecode Bytecode        `json:"bytecode"`

	parsed *abi.ABI
}

// Bytecode contains the contract creation bytecode.
type Bytecode struct {
	Object string `json:"object"`
}

// UnmarshalJSON accepts both the Foundry `{"object": "0x.."}` form and a bare
// hex string as emitted by Hardhat.
func (b *Bytecode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.Object = s
		return nil
	}
	type plain Bytecode
	return json.Unmarshal(data, (*plain)(b))
}

// Code returns the decoded creation bytecode.
func (a *ContractArtifact) Code() []byte {
	return common.FromHex(a.Bytecode.Object)
}

// ParsedABI returns the parsed ABI, parsing it on first use.
func (a *ContractArtifact) ParsedABI() (abi.ABI, error) {
	if a.parsed != nil {
		return *a.parsed, nil
	}
	parsed, err := ParseContractABI(a.ABI)
	if err != nil {
		return abi.ABI{}, fmt.Errorf("%s: %w", a.Name, err)
	}
	a.parsed = &parsed
	return parsed, nil
}

func (a *ContractArtifact) validate() error {
	if len(a.ABI) == 0 {
		return fmt.Errorf("%w: artifact %s has no abi", borrowlend.ErrConfig, a.Name)
	}
	code := strings.TrimPrefix(a.Bytecode.Object, "0x")
	if code == "" {
		return fmt.Errorf("%w: artifact %s has no bytecode", borrowlend.ErrConfig, a.Name)
	}
	if strings.Contains(code, "__$") {
		return fmt.Errorf("%w: artifact %s has unlinked libraries", borrowlend.ErrConfig, a.Name)
	}
	return nil
}

// Artifacts holds the compiled contracts the deployer needs.
type Artifacts struct {
	Hub   *ContractArtifact
	Spoke *ContractArtifact
	Token *ContractArtifact
}

// LoadArtifacts reads the Hub, Spoke and ERC20Mock artifacts from dir.
func LoadArtifacts(dir string) (*Artifacts, error) {
	hub, err := LoadArtifact(dir, HubContract)
	if err != nil {
		return nil, err
	}
	spoke, err := LoadArtifact(dir, SpokeContract)
	if err != nil {
		return nil, err
	}
	token, err := LoadArtifact(dir, TokenContract)
	if err != nil {
		return nil, err
	}
	return &Artifacts{Hub: hub, Spoke: spoke, Token: token}, nil
}

// LoadArtifact reads one contract artifact. Both <dir>/<name>.json and the
// Foundry layout <dir>/<name>.sol/<name>.json are accepted.
func LoadArtifact(dir, name string) (*ContractArtifact, error) {
	candidates := []string{
		filepath.Join(dir, name+".sol", name+".json"),
		filepath.Join(dir, name+".json"),
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", path, err)
		}

		var artifact ContractArtifact
		if err := json.Unmarshal(data, &artifact); err != nil {
			return nil, fmt.Errorf("%w: parse artifact %s: %v", borrowlend.ErrConfig, path, err)
		}
		artifact.Name = name
		if err := artifact.validate(); err != nil {
			return nil, err
		}
		return &artifact, nil
	}

	return nil, fmt.Errorf("%w: artifact %s in %s (run `forge build`)", borrowlend.ErrNotFound, name, dir)
}
