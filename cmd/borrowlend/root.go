package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"

	borrowlend "github.com/wormhole-foundation/example-cross-chain-borrow-lend"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/units"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/wormholescan"
)

// Version information - set via ldflags during build
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// EnvPrefix prefixes every environment variable bound to a flag, e.g.
// BORROWLEND_CONFIG for --config.
const EnvPrefix = "BORROWLEND"

// DefaultArtifactsDir is where `forge build` writes contract artifacts.
const DefaultArtifactsDir = "out"

// Global flag variables
var (
	// Legacy single-dash style command switches
	deployCrossChainBorrowLend bool
	deployMockToken            bool
	getStatus                  bool

	chainName string
	txHash    string
)

// rootCmd is the base command for the CLI
var rootCmd *cobra.Command

// v holds flag and environment configuration for the current rootCmd.
var v *viper.Viper

func init() {
	rootCmd = newRootCmd()
}

func newRootCmd() *cobra.Command {
	v = viper.New()

	cmd := &cobra.Command{
		Use:   "borrowlend",
		Short: "Deploy and exercise the cross-chain borrow/lend contracts",
		Long: `borrowlend deploys the Hub and Spoke contracts of the cross-chain
borrow/lend example, deploys and attests a mock token, and reports
the delivery status of cross-chain messages.

Commands can be selected with subcommands or with the legacy switches:
  --deployCrossChainBorrowLend   deploy Hub and Spoke, register both ways
  --deployMockToken              deploy, mint and attest the mock token
  --getStatus                    print the status of --txHash on --chain

Configuration can be provided via flags or environment variables:
  --config            or BORROWLEND_CONFIG            chain list (JSON or YAML)
  --addresses         or BORROWLEND_ADDRESSES         deployed address record
  --artifacts         or BORROWLEND_ARTIFACTS         forge output directory
  --wormholescan-url  or BORROWLEND_WORMHOLESCAN_URL  attestation service
  EVM_PRIVATE_KEY                                     deployer private key`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, legacyCommand())
		},
	}

	pf := cmd.PersistentFlags()
	pf.String("config", borrowlend.DefaultConfigPath, "chain configuration file (or BORROWLEND_CONFIG env)")
	pf.String("addresses", borrowlend.DefaultAddressesPath, "deployed address record (or BORROWLEND_ADDRESSES env)")
	pf.String("artifacts", DefaultArtifactsDir, "forge artifacts directory (or BORROWLEND_ARTIFACTS env)")
	pf.String("wormholescan-url", wormholescan.DefaultBaseURL, "attestation service URL (or BORROWLEND_WORMHOLESCAN_URL env)")
	pf.String("log-level", "info", "log level: debug, info, warn, error")
	pf.String("min-balance", "0.1", "native balance the deployer needs on each chain")
	pf.Bool("json", false, "output in JSON format")
	pf.Bool("skip-preflight", false, "skip RPC and balance checks before deploying")
	pf.BoolP("verbose", "v", false, "enable verbose output")

	_ = v.BindPFlags(pf)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("private-key", borrowlend.EnvPrivateKey)

	f := cmd.Flags()
	f.BoolVar(&deployCrossChainBorrowLend, "deployCrossChainBorrowLend", false, "deploy Hub and Spoke contracts")
	f.BoolVar(&deployMockToken, "deployMockToken", false, "deploy and attest the mock token")
	f.BoolVar(&getStatus, "getStatus", false, "print the status of a cross-chain transaction")
	cmd.MarkFlagsMutuallyExclusive("deployCrossChainBorrowLend", "deployMockToken", "getStatus")
	addChainFlags(cmd)

	cmd.AddCommand(
		newDeployCmd(),
		newDeployTokenCmd(),
		newStatusCmd(),
		newPreflightCmd(),
		newAddressesCmd(),
		newVersionCmd(),
	)
	return cmd
}

// addChainFlags registers --chain and --txHash plus their hidden aliases.
func addChainFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&chainName, "chain", "c", "celo", "source chain name or Wormhole chain id")
	f.StringVar(&chainName, "sourceChain", "celo", "alias for --chain")
	f.StringVarP(&txHash, "txHash", "t", "", "source chain transaction hash")
	f.StringVar(&txHash, "tx", "", "alias for --txHash")
	_ = f.MarkHidden("sourceChain")
	_ = f.MarkHidden("tx")
}

func legacyCommand() Command {
	switch {
	case deployCrossChainBorrowLend:
		return CommandDeploy
	case deployMockToken:
		return CommandDeployMockToken
	case getStatus:
		return CommandStatus
	default:
		return CommandNone
	}
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// ExecuteWithArgs runs the root command with the provided arguments (for testing)
func ExecuteWithArgs(args []string) error {
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

// SetOutput sets the output writer for the root command (for testing)
func SetOutput(w io.Writer) {
	rootCmd.SetOut(w)
	rootCmd.SetErr(w)
}

// ResetFlags resets all global flags to their defaults (for testing)
func ResetFlags() {
	deployCrossChainBorrowLend = false
	deployMockToken = false
	getStatus = false
	chainName = ""
	txHash = ""
	rootCmd = newRootCmd()
}

// GetSettings resolves configuration for c from flags and environment
// variables. Flags take precedence over environment variables. --chain is
// only parsed when c uses it.
func GetSettings(c Command) (Settings, error) {
	var chain vaa.ChainID
	if c.UsesChain() {
		var err error
		if chain, err = ParseChain(chainName); err != nil {
			return Settings{}, err
		}
	}
	minBalance, err := units.ParseEther(v.GetString("min-balance"))
	if err != nil {
		return Settings{}, fmt.Errorf("%w: --min-balance: %v", borrowlend.ErrConfig, err)
	}
	return Settings{
		ConfigPath:      v.GetString("config"),
		AddressesPath:   v.GetString("addresses"),
		ArtifactsDir:    v.GetString("artifacts"),
		WormholescanURL: v.GetString("wormholescan-url"),
		PrivateKey:      v.GetString("private-key"),
		JSON:            v.GetBool("json"),
		SkipPreflight:   v.GetBool("skip-preflight"),
		MinBalance:      minBalance,
		Chain:           chain,
		TxHash:          txHash,
	}, nil
}

// newLogger builds the stderr logger for one invocation.
func newLogger(w io.Writer) (*slog.Logger, error) {
	level := v.GetString("log-level")
	if v.GetBool("verbose") {
		level = "debug"
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("%w: --log-level %q", borrowlend.ErrConfig, level)
	}
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler).With(slog.String("run_id", uuid.NewString())), nil
}

// newApp resolves settings for c and builds the App for cmd.
func newApp(cmd *cobra.Command, c Command) (*App, error) {
	settings, err := GetSettings(c)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cmd.ErrOrStderr())
	if err != nil {
		return nil, err
	}
	return NewApp(settings, logger, cmd.OutOrStdout()), nil
}

// runCommand builds the App and dispatches c under the command's context.
func runCommand(cmd *cobra.Command, c Command) error {
	app, err := newApp(cmd, c)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app.logger.Debug("running command", slog.String("command", c.String()))
	return app.Run(ctx, c)
}
