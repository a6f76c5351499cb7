package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"strconv"
	"strings"

	"github.com/wormhole-foundation/wormhole/sdk/vaa"

	borrowlend "github.com/wormhole-foundation/example-cross-chain-borrow-lend"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/attest"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/contracts"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/deploy"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/preflight"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/units"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/wormholescan"
)

// ErrPreflightFailed is returned when a deploy command's preflight checks fail.
var ErrPreflightFailed = errors.New("preflight checks failed")

// Command selects what a single invocation does.
type Command int

const (
	CommandNone Command = iota
	CommandDeploy
	CommandDeployMockToken
	CommandStatus
)

func (c Command) String() string {
	switch c {
	case CommandDeploy:
		return "deploy"
	case CommandDeployMockToken:
		return "deploy-token"
	case CommandStatus:
		return "status"
	default:
		return "none"
	}
}

// UsesChain reports whether c reads --chain.
func (c Command) UsesChain() bool {
	return c == CommandDeployMockToken || c == CommandStatus
}

// Settings is the resolved configuration of one invocation.
type Settings struct {
	ConfigPath      string
	AddressesPath   string
	ArtifactsDir    string
	WormholescanURL string
	PrivateKey      string
	JSON            bool
	SkipPreflight   bool
	MinBalance      *big.Int

	// Chain is the source chain for deploy-token and status. It is unset
	// for commands that do not read --chain.
	Chain  vaa.ChainID
	TxHash string
}

// App runs commands against the configured chains.
type App struct {
	settings Settings
	logger   *slog.Logger
	out      io.Writer
	dial     borrowlend.DialFunc
}

// NewApp creates an App writing results to out.
func NewApp(settings Settings, logger *slog.Logger, out io.Writer) *App {
	return &App{
		settings: settings,
		logger:   logger,
		out:      out,
		dial:     borrowlend.DialEthClient,
	}
}

// Run dispatches cmd. CommandNone does nothing.
func (a *App) Run(ctx context.Context, cmd Command) error {
	switch cmd {
	case CommandNone:
		a.logger.Debug("no command selected")
		return nil
	case CommandDeploy:
		return a.Deploy(ctx)
	case CommandDeployMockToken:
		return a.DeployMockToken(ctx)
	case CommandStatus:
		return a.Status(ctx)
	default:
		return fmt.Errorf("%w: unknown command %d", borrowlend.ErrConfig, cmd)
	}
}

func (a *App) store() *borrowlend.AddressStore {
	return borrowlend.NewAddressStore(a.settings.AddressesPath)
}

func (a *App) wallets() (*borrowlend.WalletFactory, error) {
	cfg, err := borrowlend.LoadConfig(a.settings.ConfigPath)
	if err != nil {
		return nil, err
	}
	return borrowlend.NewWalletFactory(cfg, a.settings.PrivateKey,
		borrowlend.WithDialer(a.dial),
		borrowlend.WithWalletLogger(a.logger),
	), nil
}

func (a *App) scanClient() *wormholescan.Client {
	return wormholescan.NewClient(
		wormholescan.WithBaseURL(a.settings.WormholescanURL),
		wormholescan.WithLogger(a.logger),
	)
}

// Deploy deploys the Hub and Spokes and registers them with each other.
func (a *App) Deploy(ctx context.Context) error {
	wallets, err := a.wallets()
	if err != nil {
		return err
	}
	defer wallets.Close()

	chains := append([]uint16{deploy.DefaultHubChain}, deploy.DefaultSpokeChains...)
	if err := a.preflight(ctx, wallets, chains); err != nil {
		return err
	}

	artifacts, err := contracts.LoadArtifacts(a.settings.ArtifactsDir)
	if err != nil {
		return err
	}
	deployer := contracts.NewDeployer(artifacts, wallets, a.logger)

	result, err := deploy.New(deployer, a.store(), deploy.Options{Logger: a.logger}).Run(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Hub deployed on %s: %s\n", vaa.ChainID(result.HubChain), result.Hub.Hex())
	for _, id := range deploy.DefaultSpokeChains {
		fmt.Fprintf(&b, "Spoke deployed on %s: %s\n", vaa.ChainID(id), result.Spokes[id].Hex())
	}
	fmt.Fprintf(&b, "Addresses written to %s", a.settings.AddressesPath)
	return a.print(result, b.String())
}

// DeployMockToken deploys and mints the mock token on the source chain and
// attests it to every other configured chain.
func (a *App) DeployMockToken(ctx context.Context) error {
	wallets, err := a.wallets()
	if err != nil {
		return err
	}
	defer wallets.Close()

	if err := a.preflight(ctx, wallets, wallets.Config().ChainIDs()); err != nil {
		return err
	}

	artifacts, err := contracts.LoadArtifacts(a.settings.ArtifactsDir)
	if err != nil {
		return err
	}
	deployer := contracts.NewDeployer(artifacts, wallets, a.logger)

	orch := attest.New(attest.NewChains(deployer, wallets), a.scanClient(), a.store(), attest.Options{
		SourceChain: uint16(a.settings.Chain),
		Logger:      a.logger,
	})
	result, err := orch.Run(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s deployed on %s: %s\n", attest.DefaultName, vaa.ChainID(result.SourceChain), result.Token.Hex())
	fmt.Fprintf(&b, "Minted %s to %s\n", units.FormatEther(result.Minted), result.Owner.Hex())
	for _, id := range wallets.Config().ChainIDs() {
		if wrapped, ok := result.Wrapped[id]; ok {
			fmt.Fprintf(&b, "Wrapped on %s: %s\n", vaa.ChainID(id), wrapped.Hex())
		}
	}
	fmt.Fprintf(&b, "Addresses written to %s", a.settings.AddressesPath)
	return a.print(result, b.String())
}

// Status prints the cross-chain status of a source-chain transaction.
func (a *App) Status(ctx context.Context) error {
	if a.settings.TxHash == "" {
		return fmt.Errorf("%w: --txHash is required", borrowlend.ErrConfig)
	}
	status, err := a.scanClient().Status(ctx, a.settings.Chain, a.settings.TxHash)
	if err != nil {
		return err
	}
	return a.print(status, status.Info())
}

// Preflight runs the pre-deployment checks against every configured chain.
func (a *App) Preflight(ctx context.Context) error {
	wallets, err := a.wallets()
	if err != nil {
		return err
	}
	defer wallets.Close()
	return a.preflightReport(ctx, wallets, wallets.Config().ChainIDs(), true)
}

// Addresses prints the deployed address record.
func (a *App) Addresses() error {
	record, err := a.store().Load()
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(a.out, string(data))
	return err
}

func (a *App) preflight(ctx context.Context, wallets *borrowlend.WalletFactory, chains []uint16) error {
	if a.settings.SkipPreflight {
		a.logger.Warn("skipping preflight checks")
		return nil
	}
	return a.preflightReport(ctx, wallets, chains, false)
}

// preflightReport runs the checks and prints them when verbose is set or a
// check failed.
func (a *App) preflightReport(ctx context.Context, wallets *borrowlend.WalletFactory, chains []uint16, verbose bool) error {
	resp, err := preflight.NewChecker(wallets).RunChecks(ctx, &preflight.Request{
		Chains:     chains,
		MinBalance: a.settings.MinBalance,
	})
	if err != nil {
		return err
	}

	if verbose || !resp.OK {
		if err := a.print(resp, formatPreflight(resp)); err != nil {
			return err
		}
	}
	if !resp.OK {
		return ErrPreflightFailed
	}
	a.logger.Info("preflight checks passed", slog.Int("chains", len(chains)))
	return nil
}

func formatPreflight(resp *preflight.Response) string {
	var b strings.Builder
	for i, chain := range resp.Chains {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s (%d) deployer %s\n", chain.Name, chain.ChainID, chain.DeployerAddress)
		for _, check := range chain.Checks {
			mark := "ok  "
			if !check.Passed {
				mark = "FAIL"
			}
			fmt.Fprintf(&b, "  [%s] %s: %s\n", mark, check.Name, check.Message)
		}
	}
	fmt.Fprintf(&b, "\nRequired balance per chain: %s", resp.RequiredFundingETH)
	return b.String()
}

// print writes v as JSON with --json, otherwise text.
func (a *App) print(v any, text string) error {
	if a.settings.JSON {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	_, err := fmt.Fprintln(a.out, text)
	return err
}

// ParseChain accepts a Wormhole chain name such as "celo" or a numeric id.
func ParseChain(s string) (vaa.ChainID, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 16); err == nil {
		if n == 0 {
			return vaa.ChainIDUnset, fmt.Errorf("%w: chain id must not be zero", borrowlend.ErrConfig)
		}
		return vaa.ChainID(n), nil
	}
	id, err := vaa.ChainIDFromString(s)
	if err != nil {
		return vaa.ChainIDUnset, fmt.Errorf("%w: unknown chain %q", borrowlend.ErrConfig, s)
	}
	return id, nil
}
