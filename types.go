// Package borrowlend holds the data model shared by the cross-chain borrow/lend
// deployment tooling: the static chain list, the record of deployed contract
// addresses and the per-chain signing wallets.
package borrowlend

import (
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"
)

// Well-known Wormhole chain ids used by the testnet deployment.
const (
	ChainIDAvalanche = uint16(vaa.ChainIDAvalanche)
	ChainIDCelo      = uint16(vaa.ChainIDCelo)
)

// ChainInfo describes one supported chain.
type ChainInfo struct {
	Description     string `json:"description" yaml:"description"`
	ChainID         uint16 `json:"chainId" yaml:"chainId"`
	RPC             string `json:"rpc" yaml:"rpc"`
	TokenBridge     string `json:"tokenBridge" yaml:"tokenBridge"`
	WormholeRelayer string `json:"wormholeRelayer" yaml:"wormholeRelayer"`
	Wormhole        string `json:"wormhole" yaml:"wormhole"`

	// EVMChainID is optional; when zero it is read from the RPC endpoint.
	EVMChainID uint64 `json:"evmChainId,omitempty" yaml:"evmChainId,omitempty"`
}

// Name returns the Wormhole name of the chain (e.g. "celo").
func (c *ChainInfo) Name() string {
	return vaa.ChainID(c.ChainID).String()
}

// TokenBridgeAddress returns the token bridge contract address.
func (c *ChainInfo) TokenBridgeAddress() common.Address {
	return common.HexToAddress(c.TokenBridge)
}

// RelayerAddress returns the relayer contract address.
func (c *ChainInfo) RelayerAddress() common.Address {
	return common.HexToAddress(c.WormholeRelayer)
}

// CoreAddress returns the messaging core contract address.
func (c *ChainInfo) CoreAddress() common.Address {
	return common.HexToAddress(c.Wormhole)
}

// Config is the static list of supported chains.
type Config struct {
	Chains []ChainInfo `json:"chains" yaml:"chains"`
}

// Chain returns the configuration for chainID.
func (c *Config) Chain(chainID uint16) (*ChainInfo, error) {
	for i := range c.Chains {
		if c.Chains[i].ChainID == chainID {
			return &c.Chains[i], nil
		}
	}
	return nil, fmt.Errorf("%w: chain %d", ErrNotFound, chainID)
}

// ChainIDs returns the configured chain ids in file order.
func (c *Config) ChainIDs() []uint16 {
	ids := make([]uint16, 0, len(c.Chains))
	for _, ch := range c.Chains {
		ids = append(ids, ch.ChainID)
	}
	return ids
}

// Validate checks that the chain list is usable.
func (c *Config) Validate() error {
	if len(c.Chains) == 0 {
		return fmt.Errorf("%w: no chains configured", ErrConfig)
	}
	seen := make(map[uint16]bool, len(c.Chains))
	for _, ch := range c.Chains {
		if ch.ChainID == 0 {
			return fmt.Errorf("%w: chain %q has no chainId", ErrConfig, ch.Description)
		}
		if seen[ch.ChainID] {
			return fmt.Errorf("%w: duplicate chainId %d", ErrConfig, ch.ChainID)
		}
		seen[ch.ChainID] = true
		if ch.RPC == "" {
			return fmt.Errorf("%w: chain %d has no rpc endpoint", ErrConfig, ch.ChainID)
		}
	}
	return nil
}

// HubDeployment records where the Hub contract lives.
type HubDeployment struct {
	ChainID uint16 `json:"chainId"`
	Address string `json:"address"`
}

// DeployedAddresses is the mutable record of deployed contracts.
type DeployedAddresses struct {
	Hub    HubDeployment       `json:"hub"`
	Spokes map[uint16]string   `json:"spokes"`
	ERC20s map[uint16][]string `json:"erc20s"`
}

// NewDeployedAddresses returns an empty record with all maps allocated.
func NewDeployedAddresses() *DeployedAddresses {
	return &DeployedAddresses{
		Spokes: make(map[uint16]string),
		ERC20s: make(map[uint16][]string),
	}
}

func (d *DeployedAddresses) normalize() {
	if d.Spokes == nil {
		d.Spokes = make(map[uint16]string)
	}
	if d.ERC20s == nil {
		d.ERC20s = make(map[uint16][]string)
	}
}

// SetHub records the hub deployment, replacing any previous one.
func (d *DeployedAddresses) SetHub(chainID uint16, addr common.Address) {
	d.Hub = HubDeployment{ChainID: chainID, Address: addr.Hex()}
}

// HubAddress returns the recorded hub and its chain, or ErrNotDeployed.
func (d *DeployedAddresses) HubAddress() (uint16, common.Address, error) {
	if d.Hub.Address == "" {
		return 0, common.Address{}, fmt.Errorf("no deployed hub: %w", ErrNotDeployed)
	}
	return d.Hub.ChainID, common.HexToAddress(d.Hub.Address), nil
}

// SetSpoke records the spoke deployed on chainID.
func (d *DeployedAddresses) SetSpoke(chainID uint16, addr common.Address) {
	d.normalize()
	d.Spokes[chainID] = addr.Hex()
}

// SpokeAddress returns the spoke recorded for chainID, or ErrNotDeployed.
func (d *DeployedAddresses) SpokeAddress(chainID uint16) (common.Address, error) {
	addr, ok := d.Spokes[chainID]
	if !ok || addr == "" {
		return common.Address{}, fmt.Errorf("no deployed spoke at chain id %d: %w", chainID, ErrNotDeployed)
	}
	return common.HexToAddress(addr), nil
}

// AddERC20 puts addr first in the token list of chainID. An address already in
// the list is moved rather than duplicated.
func (d *DeployedAddresses) AddERC20(chainID uint16, addr common.Address) {
	d.normalize()
	hex := addr.Hex()
	list := slices.DeleteFunc(slices.Clone(d.ERC20s[chainID]), func(s string) bool {
		return common.HexToAddress(s) == addr
	})
	d.ERC20s[chainID] = append([]string{hex}, list...)
}

// ERC20 returns the idx-th token recorded for chainID, or ErrNotDeployed.
func (d *DeployedAddresses) ERC20(chainID uint16, idx int) (common.Address, error) {
	list := d.ERC20s[chainID]
	if idx < 0 || idx >= len(list) {
		return common.Address{}, fmt.Errorf("no token %d recorded at chain id %d: %w", idx, chainID, ErrNotDeployed)
	}
	return common.HexToAddress(list[idx]), nil
}

// ToWormholeAddress converts an EVM address to the 32-byte chain-agnostic form.
func ToWormholeAddress(addr common.Address) vaa.Address {
	var out vaa.Address
	copy(out[32-common.AddressLength:], addr.Bytes())
	return out
}
