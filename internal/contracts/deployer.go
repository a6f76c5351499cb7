package contracts

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"

	borrowlend "github.com/wormhole-foundation/example-cross-chain-borrow-lend"
)

// Deployer creates Hub, Spoke and mock token contracts from compiled artifacts.
type Deployer struct {
	artifacts *Artifacts
	wallets   *borrowlend.WalletFactory
	logger    *slog.Logger
}

// NewDeployer creates a new deployer.
func NewDeployer(artifacts *Artifacts, wallets *borrowlend.WalletFactory, logger *slog.Logger) *Deployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Deployer{
		artifacts: artifacts,
		wallets:   wallets,
		logger:    logger,
	}
}

// DeployHub deploys the Hub on chainID, wired to that chain's relayer, token
// bridge and core contracts.
func (d *Deployer) DeployHub(ctx context.Context, chainID uint16) (common.Address, error) {
	w, err := d.wallets.Wallet(chainID)
	if err != nil {
		return common.Address{}, err
	}
	return d.deploy(ctx, w, d.artifacts.Hub,
		w.Chain.RelayerAddress(),
		w.Chain.TokenBridgeAddress(),
		w.Chain.CoreAddress(),
	)
}

// DeploySpoke deploys a Spoke on chainID pointing at the hub.
func (d *Deployer) DeploySpoke(ctx context.Context, chainID, hubChain uint16, hub common.Address) (common.Address, error) {
	w, err := d.wallets.Wallet(chainID)
	if err != nil {
		return common.Address{}, err
	}
	return d.deploy(ctx, w, d.artifacts.Spoke,
		hubChain,
		hub,
		w.Chain.RelayerAddress(),
		w.Chain.TokenBridgeAddress(),
		w.Chain.CoreAddress(),
	)
}

// DeployMockToken deploys an ERC20Mock(name, symbol) on chainID.
func (d *Deployer) DeployMockToken(ctx context.Context, chainID uint16, name, symbol string) (common.Address, error) {
	w, err := d.wallets.Wallet(chainID)
	if err != nil {
		return common.Address{}, err
	}
	return d.deploy(ctx, w, d.artifacts.Token, name, symbol)
}

// Registrar binds the registered-sender interface of a Hub or Spoke.
func (d *Deployer) Registrar(ctx context.Context, chainID uint16, addr common.Address) (Registrar, error) {
	w, err := d.wallets.Wallet(chainID)
	if err != nil {
		return nil, err
	}
	c, err := bindContract(ctx, "Registrar", w, addr, hubABI)
	if err != nil {
		return nil, err
	}
	return registry{c}, nil
}

func (d *Deployer) deploy(ctx context.Context, w *borrowlend.Wallet, artifact *ContractArtifact, params ...any) (common.Address, error) {
	if artifact == nil {
		return common.Address{}, fmt.Errorf("%w: missing contract artifact", borrowlend.ErrConfig)
	}

	parsed, err := artifact.ParsedABI()
	if err != nil {
		return common.Address{}, err
	}
	backend, err := w.Backend(ctx)
	if err != nil {
		return common.Address{}, err
	}
	opts, err := w.TransactOpts(ctx)
	if err != nil {
		return common.Address{}, err
	}

	d.logger.Info("deploying contract",
		slog.String("contract", artifact.Name),
		slog.String("chain", w.Chain.Name()),
		slog.String("deployer", w.Address.Hex()),
	)

	addr, tx, _, err := bind.DeployContract(opts, parsed, artifact.Code(), backend, params...)
	if err != nil {
		return common.Address{}, fmt.Errorf("%w: deploy %s: %v", borrowlend.ErrTransaction, artifact.Name, err)
	}

	receipt, err := w.WaitMined(ctx, tx)
	if err != nil {
		return common.Address{}, fmt.Errorf("deploy %s: %w", artifact.Name, err)
	}
	if _, err := bind.WaitDeployed(ctx, backend, tx); err != nil {
		return common.Address{}, fmt.Errorf("%w: deploy %s: %v", borrowlend.ErrTransaction, artifact.Name, err)
	}

	d.logger.Info("contract deployed",
		slog.String("contract", artifact.Name),
		slog.String("chain", w.Chain.Name()),
		slog.String("address", addr.Hex()),
		slog.String("tx_hash", tx.Hash().Hex()),
		slog.Uint64("block", receipt.BlockNumber.Uint64()),
	)
	return addr, nil
}
