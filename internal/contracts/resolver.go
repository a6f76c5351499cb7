package contracts

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"

	borrowlend "github.com/wormhole-foundation/example-cross-chain-borrow-lend"
)

// Registrar is a contract that keeps a registered sender per chain.
type Registrar interface {
	Address() common.Address
	SetRegisteredSender(ctx context.Context, chainID uint16, sender vaa.Address) (*types.Receipt, error)
	RegisteredSender(ctx context.Context, chainID uint16) (vaa.Address, error)
}

var (
	_ Registrar = (*Hub)(nil)
	_ Registrar = (*Spoke)(nil)
)

// Resolver turns recorded addresses into contract handles.
type Resolver struct {
	wallets   *borrowlend.WalletFactory
	addresses *borrowlend.DeployedAddresses
}

// NewResolver creates a resolver over the given address record.
func NewResolver(wallets *borrowlend.WalletFactory, addresses *borrowlend.DeployedAddresses) *Resolver {
	if addresses == nil {
		addresses = borrowlend.NewDeployedAddresses()
	}
	return &Resolver{wallets: wallets, addresses: addresses}
}

// Chain returns the static configuration of chainID.
func (r *Resolver) Chain(chainID uint16) (*borrowlend.ChainInfo, error) {
	return r.wallets.Config().Chain(chainID)
}

// Hub returns the recorded hub bound to a wallet on its chain.
func (r *Resolver) Hub(ctx context.Context) (*Hub, error) {
	chainID, addr, err := r.addresses.HubAddress()
	if err != nil {
		return nil, err
	}
	w, err := r.wallets.Wallet(chainID)
	if err != nil {
		return nil, fmt.Errorf("hub wallet: %w", err)
	}
	return NewHub(ctx, w, addr)
}

// Spoke returns the spoke recorded for chainID.
func (r *Resolver) Spoke(ctx context.Context, chainID uint16) (*Spoke, error) {
	addr, err := r.addresses.SpokeAddress(chainID)
	if err != nil {
		return nil, err
	}
	w, err := r.wallets.Wallet(chainID)
	if err != nil {
		return nil, fmt.Errorf("spoke wallet: %w", err)
	}
	return NewSpoke(ctx, w, addr)
}

// Token returns the idx-th token recorded for chainID; index 0 is the newest.
func (r *Resolver) Token(ctx context.Context, chainID uint16, idx int) (*Token, error) {
	addr, err := r.addresses.ERC20(chainID, idx)
	if err != nil {
		return nil, err
	}
	w, err := r.wallets.Wallet(chainID)
	if err != nil {
		return nil, fmt.Errorf("token wallet: %w", err)
	}
	return NewToken(ctx, w, addr)
}

// TokenBridge returns the token bridge of chainID.
func (r *Resolver) TokenBridge(ctx context.Context, chainID uint16) (*TokenBridge, error) {
	w, err := r.wallets.Wallet(chainID)
	if err != nil {
		return nil, err
	}
	return NewTokenBridge(ctx, w)
}

// CoreBridge returns the Wormhole core contract of chainID.
func (r *Resolver) CoreBridge(ctx context.Context, chainID uint16) (*CoreBridge, error) {
	w, err := r.wallets.Wallet(chainID)
	if err != nil {
		return nil, err
	}
	return NewCoreBridge(ctx, w)
}
