package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newDeployCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deploy",
		Short: "Deploy the Hub and Spoke contracts and register them",
		Long: `Deploy the Hub on Avalanche and a Spoke on Celo, then register each
contract as the other's trusted sender. Addresses are written to the
deployed address record after every step.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, CommandDeploy)
		},
	}
}

func newDeployTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "deploy-token",
		Short: "Deploy, mint and attest the mock token",
		Long: `Deploy the ERC20 mock token on the source chain, mint 10 tokens to the
deployer and attest it to every other configured chain through the
token bridge.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCommand(cmd, CommandDeployMockToken)
		},
	}
	addChainFlags(cmd)
	return cmd
}

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status [txHash]",
		Short: "Print the cross-chain status of a transaction",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				txHash = args[0]
			}
			return runCommand(cmd, CommandStatus)
		},
	}
	addChainFlags(cmd)
	return cmd
}

func newPreflightCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Short: "Check RPC endpoints and deployer balances",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd, CommandNone)
			if err != nil {
				return err
			}
			return app.Preflight(cmd.Context())
		},
	}
}

func newAddressesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "addresses",
		Short: "Print the deployed address record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd, CommandNone)
			if err != nil {
				return err
			}
			return app.Addresses()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "borrowlend %s\n", Version)
			if v.GetBool("verbose") {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  commit:  %s\n", Commit)
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  built:   %s\n", BuildDate)
			}
		},
	}
}
