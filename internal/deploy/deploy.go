// Package deploy deploys the Hub and Spoke contracts and registers them with
// each other as trusted cross-chain senders.
package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	borrowlend "github.com/wormhole-foundation/example-cross-chain-borrow-lend"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/contracts"
)

// Default deployment topology.
var (
	DefaultHubChain    = borrowlend.ChainIDAvalanche
	DefaultSpokeChains = []uint16{borrowlend.ChainIDCelo}
)

// Chains creates contracts and binds their registered-sender interface.
// *contracts.Deployer satisfies it.
type Chains interface {
	DeployHub(ctx context.Context, chainID uint16) (common.Address, error)
	DeploySpoke(ctx context.Context, chainID, hubChain uint16, hub common.Address) (common.Address, error)
	Registrar(ctx context.Context, chainID uint16, addr common.Address) (contracts.Registrar, error)
}

var _ Chains = (*contracts.Deployer)(nil)

// Store applies changes to the persisted address record under its lock.
// *borrowlend.AddressStore satisfies it.
type Store = borrowlend.Updater

// Options controls a deployment.
type Options struct {
	HubChain    uint16
	SpokeChains []uint16

	// SkipCheckpoints writes the record only once, after every step succeeded.
	SkipCheckpoints bool

	Logger *slog.Logger
}

func (o *Options) applyDefaults() {
	if o.HubChain == 0 {
		o.HubChain = DefaultHubChain
	}
	if len(o.SpokeChains) == 0 {
		o.SpokeChains = append([]uint16(nil), DefaultSpokeChains...)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Result is the outcome of a deployment.
type Result struct {
	HubChain uint16                    `json:"hubChain"`
	Hub      common.Address            `json:"hub"`
	Spokes   map[uint16]common.Address `json:"spokes"`
}

// Orchestrator runs the deployment workflow.
type Orchestrator struct {
	chains Chains
	store  Store
	opts   Options
}

// New creates an orchestrator.
func New(chains Chains, store Store, opts Options) *Orchestrator {
	opts.applyDefaults()
	return &Orchestrator{chains: chains, store: store, opts: opts}
}

// Run deploys the hub, then every spoke, registering each pair in both
// directions. Any failure aborts the remaining steps.
func (o *Orchestrator) Run(ctx context.Context) (*Result, error) {
	log := o.opts.Logger

	for _, id := range o.opts.SpokeChains {
		if id == o.opts.HubChain {
			return nil, fmt.Errorf("%w: spoke chain %d is the hub chain", borrowlend.ErrConfig, id)
		}
	}

	var changes borrowlend.Changes

	hubAddr, err := o.chains.DeployHub(ctx, o.opts.HubChain)
	if err != nil {
		return nil, fmt.Errorf("deploy hub: %w", err)
	}
	changes.Add(func(d *borrowlend.DeployedAddresses) {
		d.SetHub(o.opts.HubChain, hubAddr)
	})
	log.Info("hub deployed",
		slog.Uint64("chain_id", uint64(o.opts.HubChain)),
		slog.String("address", hubAddr.Hex()),
	)
	if err := o.checkpoint(&changes); err != nil {
		return nil, err
	}

	hub, err := o.chains.Registrar(ctx, o.opts.HubChain, hubAddr)
	if err != nil {
		return nil, fmt.Errorf("bind hub: %w", err)
	}

	result := &Result{
		HubChain: o.opts.HubChain,
		Hub:      hubAddr,
		Spokes:   make(map[uint16]common.Address, len(o.opts.SpokeChains)),
	}

	for _, spokeChain := range o.opts.SpokeChains {
		spokeAddr, err := o.deploySpoke(ctx, &changes, hub, spokeChain)
		if err != nil {
			return nil, err
		}
		result.Spokes[spokeChain] = spokeAddr
	}

	if err := changes.Flush(o.store); err != nil {
		return nil, fmt.Errorf("store addresses: %w", err)
	}
	log.Info("deployment complete",
		slog.String("hub", hubAddr.Hex()),
		slog.Int("spokes", len(result.Spokes)),
	)
	return result, nil
}

func (o *Orchestrator) deploySpoke(ctx context.Context, changes *borrowlend.Changes, hub contracts.Registrar, spokeChain uint16) (common.Address, error) {
	log := o.opts.Logger.With(slog.Uint64("spoke_chain_id", uint64(spokeChain)))

	spokeAddr, err := o.chains.DeploySpoke(ctx, spokeChain, o.opts.HubChain, hub.Address())
	if err != nil {
		return common.Address{}, fmt.Errorf("deploy spoke on chain %d: %w", spokeChain, err)
	}
	changes.Add(func(d *borrowlend.DeployedAddresses) {
		d.SetSpoke(spokeChain, spokeAddr)
	})
	log.Info("spoke deployed", slog.String("address", spokeAddr.Hex()))
	if err := o.checkpoint(changes); err != nil {
		return common.Address{}, err
	}

	spoke, err := o.chains.Registrar(ctx, spokeChain, spokeAddr)
	if err != nil {
		return common.Address{}, fmt.Errorf("bind spoke on chain %d: %w", spokeChain, err)
	}

	if err := Register(ctx, hub, spokeChain, spokeAddr); err != nil {
		return common.Address{}, fmt.Errorf("register spoke %d on hub: %w", spokeChain, err)
	}
	log.Info("spoke registered on hub")

	if err := Register(ctx, spoke, o.opts.HubChain, hub.Address()); err != nil {
		return common.Address{}, fmt.Errorf("register hub on spoke %d: %w", spokeChain, err)
	}
	log.Info("hub registered on spoke")

	return spokeAddr, nil
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

// Register makes target trust sender as the emitter for senderChain and reads
// the registration back.
func Register(ctx context.Context, target contracts.Registrar, senderChain uint16, sender common.Address) error {
	want := borrowlend.ToWormholeAddress(sender)
	if _, err := target.SetRegisteredSender(ctx, senderChain, want); err != nil {
		return err
	}
	return VerifyRegistration(ctx, target, senderChain, sender)
}

// VerifyRegistration checks that target trusts sender for senderChain.
func VerifyRegistration(ctx context.Context, target contracts.Registrar, senderChain uint16, sender common.Address) error {
	want := borrowlend.ToWormholeAddress(sender)
	got, err := target.RegisteredSender(ctx, senderChain)
	if err != nil {
		return fmt.Errorf("read registered sender: %w", err)
	}
	if got != want {
		return fmt.Errorf("%w: %s has sender %s for chain %d, want %s",
			borrowlend.ErrTransaction, target.Address().Hex(), got, senderChain, want)
	}
	return nil
}
