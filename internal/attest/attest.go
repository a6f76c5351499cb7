// Package attest deploys a mock ERC20 token and makes it usable on every other
// configured chain through the Wormhole token bridge: attest on the source
// chain, fetch the signed VAA, create the wrapped asset on the destination.
package attest

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"slices"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/params"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"

	borrowlend "github.com/wormhole-foundation/example-cross-chain-borrow-lend"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/units"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/wait"
)

// Defaults for the test token.
const (
	DefaultName   = "CeloToken"
	DefaultSymbol = "Celo"
)

// DefaultSourceChain is where the mock token is deployed.
var DefaultSourceChain = borrowlend.ChainIDCelo

// DefaultMintAmount is 10 tokens with 18 decimals.
func DefaultMintAmount() *big.Int {
	return new(big.Int).Mul(big.NewInt(10), big.NewInt(params.Ether))
}

// Chains performs the on-chain steps of the workflow.
type Chains interface {
	ChainIDs() []uint16
	DeployMockToken(ctx context.Context, chainID uint16, name, symbol string) (common.Address, error)
	Mint(ctx context.Context, chainID uint16, token common.Address, amount *big.Int) (common.Address, error)
	TokenBridge(chainID uint16) (common.Address, error)
	AttestToken(ctx context.Context, chainID uint16, token common.Address) (uint64, error)
	CreateWrapped(ctx context.Context, chainID uint16, signedVAA []byte) error
	WrappedAsset(ctx context.Context, chainID, tokenChain uint16, token common.Address) (common.Address, error)
}

// VAAFetcher waits for the guardians to sign a message.
// *wormholescan.Client satisfies it.
type VAAFetcher interface {
	WaitSignedVAA(ctx context.Context, chain vaa.ChainID, emitter vaa.Address, sequence uint64, policy wait.Policy) ([]byte, error)
}

// Store applies updates to the address record.
type Store = borrowlend.Updater

// Options controls the workflow.
type Options struct {
	SourceChain uint16
	Name        string
	Symbol      string
	MintAmount  *big.Int

	// VAAPolicy bounds the wait for each signed attestation.
	VAAPolicy wait.Policy

	// SkipCheckpoints writes the record only once, at the end.
	SkipCheckpoints bool

	Logger *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.SourceChain == 0 {
		o.SourceChain = DefaultSourceChain
	}
	if o.Name == "" {
		o.Name = DefaultName
	}
	if o.Symbol == "" {
		o.Symbol = DefaultSymbol
	}
	if o.MintAmount == nil {
		o.MintAmount = DefaultMintAmount()
	}
	if o.VAAPolicy == (wait.Policy{}) {
		o.VAAPolicy = wait.Policy{MaxAttempts: 30}
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Result describes the deployed token and its wrapped representations.
type Result struct {
	SourceChain uint16                    `json:"sourceChain"`
	Token       common.Address            `json:"token"`
	Owner       common.Address            `json:"owner"`
	Minted      *big.Int                  `json:"minted"`
	Wrapped     map[uint16]common.Address `json:"wrapped"`
}

// Orchestrator runs the token deployment and attestation workflow.
type Orchestrator struct {
	chains  Chains
	fetcher VAAFetcher
	store   Store
	opts    Options
}

// New creates an orchestrator.
func New(chains Chains, fetcher VAAFetcher, store Store, opts Options) *Orchestrator {
	opts.applyDefaults()
	return &Orchestrator{chains: chains, fetcher: fetcher, store: store, opts: opts}
}

// Run deploys and mints the token, then attests it to every other chain. A
// failure on one destination aborts the remaining ones.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	log := o.opts.Logger
	source := o.opts.SourceChain

	if !slices.Contains(o.chains.ChainIDs(), source) {
		return nil, fmt.Errorf("%w: source chain %d", borrowlend.ErrNotFound, source)
	}

	var changes borrowlend.Changes

	token, err := o.chains.DeployMockToken(ctx, source, o.opts.Name, o.opts.Symbol)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", o.opts.Name, err)
	}
	changes.Add(func(d *borrowlend.DeployedAddresses) {
		d.AddERC20(source, token)
	})
	log.Info("token deployed",
		slog.String("token", o.opts.Symbol),
		slog.String("address", token.Hex()),
		slog.Uint64("chain_id", uint64(source)),
	)
	if err := o.checkpoint(&changes); err != nil {
		return nil, err
	}

	owner, err := o.chains.Mint(ctx, source, token, o.opts.MintAmount)
	if err != nil {
		return nil, fmt.Errorf("mint %s: %w", o.opts.Symbol, err)
	}
	log.Info("token minted",
		slog.String("amount", units.FormatEther(o.opts.MintAmount)),
		slog.String("to", owner.Hex()),
	)

	result := &Result{
		SourceChain: source,
		Token:       token,
		Owner:       owner,
		Minted:      new(big.Int).Set(o.opts.MintAmount),
		Wrapped:     make(map[uint16]common.Address),
	}

	for _, dest := range o.chains.ChainIDs() {
		if dest == source {
			continue
		}
		wrapped, err := o.Attest(ctx, token, dest)
		if err != nil {
			return nil, fmt.Errorf("attest %s to chain %d: %w", token.Hex(), dest, err)
		}
		dest := dest // per-iteration copy; go directive predates Go 1.22 loop semantics
		changes.Add(func(d *borrowlend.DeployedAddresses) {
			d.AddERC20(dest, wrapped)
		})
		result.Wrapped[dest] = wrapped
		if err := o.checkpoint(&changes); err != nil {
			return nil, err
		}
	}

	if err := changes.Flush(o.store); err != nil {
		return nil, fmt.Errorf("store addresses: %w", err)
	}
	return result, nil
}

// Attest registers token from the source chain on dest and returns the
// wrapped asset address.
func (o *Orchestrator) Attest(ctx context.Context, token common.Address, dest uint16) (common.Address, error) {
	source := o.opts.SourceChain
	log := o.opts.Logger.With(
		slog.Uint64("source_chain_id", uint64(source)),
		slog.Uint64("target_chain_id", uint64(dest)),
	)

	bridge, err := o.chains.TokenBridge(source)
	if err != nil {
		return common.Address{}, err
	}
	emitter := borrowlend.ToWormholeAddress(bridge)

	seq, err := o.chains.AttestToken(ctx, source, token)
	if err != nil {
		return common.Address{}, fmt.Errorf("attest token: %w", err)
	}
	log.Info("token attested", slog.Uint64("sequence", seq))

	signed, err := o.fetcher.WaitSignedVAA(ctx, vaa.ChainID(source), emitter, seq, o.opts.VAAPolicy)
	if err != nil {
		return common.Address{}, err
	}
	if err := VerifyVAA(signed, vaa.ChainID(source), emitter, seq); err != nil {
		return common.Address{}, err
	}

	if err := o.chains.CreateWrapped(ctx, dest, signed); err != nil {
		return common.Address{}, fmt.Errorf("create wrapped: %w", err)
	}

	wrapped, err := o.chains.WrappedAsset(ctx, dest, source, token)
	if err != nil {
		return common.Address{}, fmt.Errorf("look up wrapped asset: %w", err)
	}
	if wrapped == (common.Address{}) {
		return common.Address{}, fmt.Errorf("%w: no wrapped asset after createWrapped", borrowlend.ErrTransaction)
	}
	log.Info("wrapped asset created", slog.String("address", wrapped.Hex()))
	return wrapped, nil
}

func (o *Orchestrator) checkpoint(changes *borrowlend.Changes) error {
	if o.opts.SkipCheckpoints {
		return nil
	}
	if err := changes.Flush(o.store); err != nil {
		return fmt.Errorf("checkpoint addresses: %w", err)
	}
	return nil
}

// VerifyVAA checks that raw is the message identified by (chain, emitter, seq).
func VerifyVAA(raw []byte, chain vaa.ChainID, emitter vaa.Address, seq uint64) error {
	v, err := vaa.Unmarshal(raw)
	if err != nil {
		return fmt.Errorf("%w: parse signed VAA: %v", borrowlend.ErrNetwork, err)
	}
	if v.EmitterChain != chain || v.EmitterAddress != emitter || v.Sequence != seq {
		return fmt.Errorf("%w: VAA is %d/%s/%d, want %d/%s/%d", borrowlend.ErrNetwork,
			v.EmitterChain, v.EmitterAddress, v.Sequence, chain, emitter, seq)
	}
	return nil
}
