package attest

import (
	"context"
	"fmt"
	"math/big"
	"math/rand"

	"github.com/ethereum/go-ethereum/common"

	borrowlend "github.com/wormhole-foundation/example-cross-chain-borrow-lend"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/contracts"
)

// contractChains runs the workflow steps against real contracts.
type contractChains struct {
	deployer *contracts.Deployer
	wallets  *borrowlend.WalletFactory
}

// NewChains returns the Chains implementation backed by deployed contracts.
func NewChains(deployer *contracts.Deployer, wallets *borrowlend.WalletFactory) Chains {
	return &contractChains{deployer: deployer, wallets: wallets}
}

func (c *contractChains) ChainIDs() []uint16 {
	return c.wallets.Config().ChainIDs()
}

func (c *contractChains) DeployMockToken(ctx context.Context, chainID uint16, name, symbol string) (common.Address, error) {
	return c.deployer.DeployMockToken(ctx, chainID, name, symbol)
}

func (c *contractChains) Mint(ctx context.Context, chainID uint16, token common.Address, amount *big.Int) (common.Address, error) {
	w, err := c.wallets.Wallet(chainID)
	if err != nil {
		return common.Address{}, err
	}
	t, err := contracts.NewToken(ctx, w, token)
	if err != nil {
		return common.Address{}, err
	}
	if _, err := t.Mint(ctx, w.Address, amount); err != nil {
		return common.Address{}, err
	}
	return w.Address, nil
}

func (c *contractChains) TokenBridge(chainID uint16) (common.Address, error) {
	chain, err := c.wallets.Config().Chain(chainID)
	if err != nil {
		return common.Address{}, err
	}
	return chain.TokenBridgeAddress(), nil
}

func (c *contractChains) AttestToken(ctx context.Context, chainID uint16, token common.Address) (uint64, error) {
	w, err := c.wallets.Wallet(chainID)
	if err != nil {
		return 0, err
	}
	core, err := contracts.NewCoreBridge(ctx, w)
	if err != nil {
		return 0, err
	}
	bridge, err := contracts.NewTokenBridge(ctx, w)
	if err != nil {
		return 0, err
	}

	fee, err := core.MessageFee(ctx)
	if err != nil {
		return 0, fmt.Errorf("message fee: %w", err)
	}
	receipt, err := bridge.AttestToken(ctx, token, rand.Uint32(), fee)
	if err != nil {
		return 0, err
	}
	return core.ParseSequence(receipt)
}

func (c *contractChains) CreateWrapped(ctx context.Context, chainID uint16, signedVAA []byte) error {
	w, err := c.wallets.Wallet(chainID)
	if err != nil {
		return err
	}
	bridge, err := contracts.NewTokenBridge(ctx, w)
	if err != nil {
		return err
	}
	_, err = bridge.CreateWrapped(ctx, signedVAA)
	return err
}

func (c *contractChains) WrappedAsset(ctx context.Context, chainID, tokenChain uint16, token common.Address) (common.Address, error) {
	w, err := c.wallets.Wallet(chainID)
	if err != nil {
		return common.Address{}, err
	}
	bridge, err := contracts.NewTokenBridge(ctx, w)
	if err != nil {
		return common.Address{}, err
	}
	return bridge.WrappedAsset(ctx, tokenChain, borrowlend.ToWormholeAddress(token))
}
