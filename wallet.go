package borrowlend

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of an EVM JSON-RPC client used by wallets and
// contract handles. *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	Close()
}

// DialFunc opens a Backend for an RPC endpoint.
type DialFunc func(ctx context.Context, rawURL string) (Backend, error)

// DialEthClient is the default DialFunc.
func DialEthClient(ctx context.Context, rawURL string) (Backend, error) {
	client, err := ethclient.DialContext(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// WalletFactory produces signing wallets for configured chains.
type WalletFactory struct {
	cfg    *Config
	keyHex string
	dial   DialFunc
	logger *slog.Logger

	mu      sync.Mutex
	wallets map[uint16]*Wallet
}

// WalletOption configures a WalletFactory.
type WalletOption func(*WalletFactory)

// WithDialer overrides how RPC backends are opened.
func WithDialer(dial DialFunc) WalletOption {
	return func(f *WalletFactory) {
		f.dial = dial
	}
}

// WithWalletLogger sets the logger used by the factory and its wallets.
func WithWalletLogger(logger *slog.Logger) WalletOption {
	return func(f *WalletFactory) {
		f.logger = logger
	}
}

// NewWalletFactory creates a factory signing with keyHex. The key is only
// parsed when a wallet is requested.
func NewWalletFactory(cfg *Config, keyHex string, opts ...WalletOption) *WalletFactory {
	f := &WalletFactory{
		cfg:     cfg,
		keyHex:  keyHex,
		dial:    DialEthClient,
		logger:  slog.Default(),
		wallets: make(map[uint16]*Wallet),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Config returns the chain list the factory was built with.
func (f *WalletFactory) Config() *Config {
	return f.cfg
}

// Wallet returns the wallet for chainID. Unknown chains fail with ErrNotFound
// and a missing or malformed key with ErrConfig. No network I/O happens here.
func (f *WalletFactory) Wallet(chainID uint16) (*Wallet, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if w, ok := f.wallets[chainID]; ok {
		return w, nil
	}

	chain, err := f.cfg.Chain(chainID)
	if err != nil {
		return nil, err
	}

	key, err := parsePrivateKey(f.keyHex)
	if err != nil {
		return nil, err
	}

	w := &Wallet{
		Chain:   *chain,
		Address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
		dial:    f.dial,
		logger:  f.logger.With(slog.String("chain", chain.Name())),
	}
	f.wallets[chainID] = w
	return w, nil
}

// Close releases every backend opened by the factory's wallets.
func (f *WalletFactory) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, w := range f.wallets {
		w.Close()
	}
}

func parsePrivateKey(keyHex string) (*ecdsa.PrivateKey, error) {
	keyHex = strings.TrimSpace(keyHex)
	if keyHex == "" {
		return nil, ErrMissingPrivateKey
	}
	key, err := crypto.HexToECDSA(strings.TrimPrefix(keyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s: %v", ErrConfig, EnvPrivateKey, err)
	}
	return key, nil
}

// Wallet is a signer bound to one chain's RPC endpoint.
type Wallet struct {
	Chain   ChainInfo
	Address common.Address

	key    *ecdsa.PrivateKey
	dial   DialFunc
	logger *slog.Logger

	mu         sync.Mutex
	backend    Backend
	evmChainID *big.Int
}

// NewWallet binds key to an already opened backend.
func NewWallet(chain ChainInfo, key *ecdsa.PrivateKey, backend Backend) *Wallet {
	return &Wallet{
		Chain:   chain,
		Address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
		backend: backend,
		logger:  slog.Default(),
	}
}

// Backend returns the RPC backend, dialing it on first use.
func (w *Wallet) Backend(ctx context.Context) (Backend, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.backend != nil {
		return w.backend, nil
	}
	if w.dial == nil {
		return nil, fmt.Errorf("%w: no dialer for chain %d", ErrConfig, w.Chain.ChainID)
	}

	backend, err := w.dial(ctx, w.Chain.RPC)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrNetwork, w.Chain.RPC, err)
	}
	w.backend = backend
	return backend, nil
}

// EVMChainID returns the EIP-155 chain id, taken from config when present and
// otherwise read from the node once.
func (w *Wallet) EVMChainID(ctx context.Context) (*big.Int, error) {
	if w.Chain.EVMChainID != 0 {
		return new(big.Int).SetUint64(w.Chain.EVMChainID), nil
	}

	backend, err := w.Backend(ctx)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.evmChainID != nil {
		return new(big.Int).Set(w.evmChainID), nil
	}

	id, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: get chain id: %v", ErrNetwork, err)
	}
	w.evmChainID = id
	return new(big.Int).Set(id), nil
}

// TransactOpts returns signing options for a new transaction.
func (w *Wallet) TransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	chainID, err := w.EVMChainID(ctx)
	if err != nil {
		return nil, err
	}
	opts, err := bind.NewKeyedTransactorWithChainID(w.key, chainID)
	if err != nil {
		return nil, fmt.Errorf("create transactor: %w", err)
	}
	opts.Context = ctx
	return opts, nil
}

// CallOpts returns options for read-only calls from the wallet address.
func (w *Wallet) CallOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx, From: w.Address}
}

// Balance returns the wallet's native balance.
func (w *Wallet) Balance(ctx context.Context) (*big.Int, error) {
	backend, err := w.Backend(ctx)
	if err != nil {
		return nil, err
	}
	balance, err := backend.BalanceAt(ctx, w.Address, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: get balance: %v", ErrNetwork, err)
	}
	return balance, nil
}

// WaitMined blocks until tx is mined and fails with ErrTransaction when the
// receipt reports a revert.
func (w *Wallet) WaitMined(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	backend, err := w.Backend(ctx)
	if err != nil {
		return nil, err
	}

	w.logger.Debug("waiting for transaction", slog.String("tx_hash", tx.Hash().Hex()))
	receipt, err := bind.WaitMined(ctx, backend, tx)
	if err != nil {
		return nil, fmt.Errorf("%w: wait for %s: %v", ErrNetwork, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return receipt, fmt.Errorf("%w: %s reverted in block %d", ErrTransaction, tx.Hash().Hex(), receipt.BlockNumber.Uint64())
	}
	return receipt, nil
}

// Close releases the backend if one was opened.
func (w *Wallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.backend != nil {
		w.backend.Close()
		w.backend = nil
	}
}
