package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"

	borrowlend "github.com/wormhole-foundation/example-cross-chain-borrow-lend"
)

func TestVersionCommand(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		wantContain []string
	}{
		{
			name:        "basic version",
			args:        []string{"version"},
			wantContain: []string{"borrowlend"},
		},
		{
			name:        "verbose version",
			args:        []string{"--verbose", "version"},
			wantContain: []string{"borrowlend", "commit:", "built:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetFlags()
			var buf bytes.Buffer
			SetOutput(&buf)

			require.NoError(t, ExecuteWithArgs(tt.args))
			for _, want := range tt.wantContain {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestRootCommand_Help(t *testing.T) {
	ResetFlags()
	var buf bytes.Buffer
	SetOutput(&buf)

	require.NoError(t, ExecuteWithArgs([]string{"--help"}))

	output := buf.String()
	for _, expected := range []string{
		"--deployCrossChainBorrowLend",
		"--deployMockToken",
		"--getStatus",
		"--chain",
		"--txHash",
		"--config",
		"--addresses",
		"BORROWLEND_CONFIG",
		"EVM_PRIVATE_KEY",
	} {
		assert.Contains(t, output, expected)
	}
	assert.NotContains(t, output, "--sourceChain", "alias is hidden")
}

func TestRootCommand_NoFlagIsNoop(t *testing.T) {
	ResetFlags()
	var buf bytes.Buffer
	SetOutput(&buf)

	// No config exists at the default path, so any real work would fail.
	require.NoError(t, ExecuteWithArgs([]string{"--log-level", "error"}))
	assert.Empty(t, buf.String())
}

func TestRootCommand_MutuallyExclusive(t *testing.T) {
	ResetFlags()
	SetOutput(&bytes.Buffer{})

	err := ExecuteWithArgs([]string{"--deployCrossChainBorrowLend", "--getStatus"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "none of the others can be")
}

func TestRootCommand_LegacyFlags(t *testing.T) {
	tests := []struct {
		args []string
		want Command
	}{
		{args: nil, want: CommandNone},
		{args: []string{"--deployCrossChainBorrowLend"}, want: CommandDeploy},
		{args: []string{"--deployMockToken"}, want: CommandDeployMockToken},
		{args: []string{"--getStatus"}, want: CommandStatus},
	}

	for _, tc := range tests {
		t.Run(tc.want.String(), func(t *testing.T) {
			ResetFlags()
			require.NoError(t, rootCmd.ParseFlags(tc.args))
			assert.Equal(t, tc.want, legacyCommand())
		})
	}
}

func TestGetSettings(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		ResetFlags()
		require.NoError(t, rootCmd.ParseFlags(nil))

		s, err := GetSettings(CommandStatus)
		require.NoError(t, err)
		assert.Equal(t, borrowlend.DefaultConfigPath, s.ConfigPath)
		assert.Equal(t, borrowlend.DefaultAddressesPath, s.AddressesPath)
		assert.Equal(t, DefaultArtifactsDir, s.ArtifactsDir)
		assert.Equal(t, vaa.ChainIDCelo, s.Chain)
		assert.Empty(t, s.TxHash)
		assert.Equal(t, "100000000000000000", s.MinBalance.String())
	})

	t.Run("aliases", func(t *testing.T) {
		ResetFlags()
		require.NoError(t, rootCmd.ParseFlags([]string{"--sourceChain", "avalanche", "--tx", "0xabc"}))

		s, err := GetSettings(CommandStatus)
		require.NoError(t, err)
		assert.Equal(t, vaa.ChainIDAvalanche, s.Chain)
		assert.Equal(t, "0xabc", s.TxHash)
	})

	t.Run("short flags", func(t *testing.T) {
		ResetFlags()
		require.NoError(t, rootCmd.ParseFlags([]string{"-c", "6", "-t", "0xdef"}))

		s, err := GetSettings(CommandStatus)
		require.NoError(t, err)
		assert.Equal(t, vaa.ChainIDAvalanche, s.Chain)
		assert.Equal(t, "0xdef", s.TxHash)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("BORROWLEND_ADDRESSES", "/tmp/addresses.json")
		t.Setenv("BORROWLEND_WORMHOLESCAN_URL", "http://localhost:1234")
		t.Setenv(borrowlend.EnvPrivateKey, "0x01")
		ResetFlags()
		require.NoError(t, rootCmd.ParseFlags(nil))

		s, err := GetSettings(CommandStatus)
		require.NoError(t, err)
		assert.Equal(t, "/tmp/addresses.json", s.AddressesPath)
		assert.Equal(t, "http://localhost:1234", s.WormholescanURL)
		assert.Equal(t, "0x01", s.PrivateKey)
	})

	t.Run("flag beats environment", func(t *testing.T) {
		t.Setenv("BORROWLEND_CONFIG", "/from/env.json")
		ResetFlags()
		require.NoError(t, rootCmd.ParseFlags([]string{"--config", "/from/flag.json"}))

		s, err := GetSettings(CommandStatus)
		require.NoError(t, err)
		assert.Equal(t, "/from/flag.json", s.ConfigPath)
	})

	t.Run("unknown chain", func(t *testing.T) {
		for _, c := range []Command{CommandStatus, CommandDeployMockToken} {
			ResetFlags()
			require.NoError(t, rootCmd.ParseFlags([]string{"--chain", "nochain"}))
			_, err := GetSettings(c)
			assert.ErrorIs(t, err, borrowlend.ErrConfig, c.String())
		}
	})

	t.Run("chain ignored when unused", func(t *testing.T) {
		for _, c := range []Command{CommandNone, CommandDeploy} {
			ResetFlags()
			require.NoError(t, rootCmd.ParseFlags([]string{"--chain", "nochain"}))
			s, err := GetSettings(c)
			require.NoError(t, err, c.String())
			assert.Equal(t, vaa.ChainIDUnset, s.Chain)
		}
	})
}

func TestRootCommand_ChainOnlyCheckedWhenUsed(t *testing.T) {
	t.Run("no command", func(t *testing.T) {
		ResetFlags()
		var buf bytes.Buffer
		SetOutput(&buf)
		require.NoError(t, ExecuteWithArgs([]string{"--chain", "nochain", "--log-level", "error"}))
		assert.Empty(t, buf.String())
	})

	t.Run("deploy", func(t *testing.T) {
		ResetFlags()
		SetOutput(&bytes.Buffer{})
		missing := filepath.Join(t.TempDir(), "missing.json")
		err := ExecuteWithArgs([]string{"--deployCrossChainBorrowLend", "--chain", "nochain", "--config", missing, "--log-level", "error"})
		require.Error(t, err)
		assert.NotContains(t, err.Error(), "unknown chain")
	})

	t.Run("status", func(t *testing.T) {
		ResetFlags()
		SetOutput(&bytes.Buffer{})
		err := ExecuteWithArgs([]string{"--getStatus", "--chain", "nochain", "-t", "0x1", "--log-level", "error"})
		assert.ErrorIs(t, err, borrowlend.ErrConfig)
	})
}

func TestStatusCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(operationsBody))
	}))
	defer srv.Close()

	tests := []struct {
		name string
		args []string
	}{
		{name: "legacy", args: []string{"--getStatus", "--txHash", "0xabc"}},
		{name: "legacy alias", args: []string{"--getStatus", "--sourceChain", "celo", "--tx", "0xabc"}},
		{name: "subcommand", args: []string{"status", "-c", "celo", "0xabc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetFlags()
			var buf bytes.Buffer
			SetOutput(&buf)

			args := append([]string{"--wormholescan-url", srv.URL, "--log-level", "error"}, tt.args...)
			require.NoError(t, ExecuteWithArgs(args))
			assert.Contains(t, buf.String(), "Source chain: celo, transaction 0xabc")
		})
	}
}

func TestStatusCommand_MissingTxHash(t *testing.T) {
	ResetFlags()
	SetOutput(&bytes.Buffer{})

	err := ExecuteWithArgs([]string{"--getStatus", "--log-level", "error"})
	assert.ErrorIs(t, err, borrowlend.ErrConfig)
}

func TestAddressesCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployedAddresses.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"hub":{"chainId":6,"address":"0xaa"}}`), 0o600))

	ResetFlags()
	var buf bytes.Buffer
	SetOutput(&buf)

	require.NoError(t, ExecuteWithArgs([]string{"addresses", "--addresses", path, "--log-level", "error"}))
	out := buf.String()
	assert.True(t, strings.Contains(out, `"chainId": 6`), out)
	assert.Contains(t, out, `"erc20s": {}`)
}

func TestInvalidLogLevel(t *testing.T) {
	ResetFlags()
	SetOutput(&bytes.Buffer{})

	err := ExecuteWithArgs([]string{"--log-level", "loud"})
	assert.ErrorIs(t, err, borrowlend.ErrConfig)
}
