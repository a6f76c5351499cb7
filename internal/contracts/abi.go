// Package contracts binds the borrow/lend Hub and Spoke contracts, the mock
// ERC20 token and the Wormhole token bridge and core contracts to signing
// wallets.
package contracts

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Registered sender management, shared by Hub and Spoke.
const registrationABIJSON = `[
	{
		"inputs": [
			{"name": "sourceChain", "type": "uint16"},
			{"name": "sourceAddress", "type": "bytes32"}
		],
		"name": "setRegisteredSender",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "", "type": "uint16"}],
		"name": "registeredSenders",
		"outputs": [{"name": "", "type": "bytes32"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

const spokeActionsABIJSON = `[
	{"inputs": [], "name": "quoteDeposit", "outputs": [{"name": "cost", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "quoteWithdraw", "outputs": [{"name": "cost", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "quoteBorrow", "outputs": [{"name": "cost", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{"inputs": [], "name": "quoteRepay", "outputs": [{"name": "cost", "type": "uint256"}], "stateMutability": "view", "type": "function"},
	{
		"inputs": [{"name": "tokenAddress", "type": "address"}, {"name": "amount", "type": "uint256"}],
		"name": "deposit", "outputs": [], "stateMutability": "payable", "type": "function"
	},
	{
		"inputs": [{"name": "tokenAddress", "type": "address"}, {"name": "amount", "type": "uint256"}],
		"name": "withdraw", "outputs": [], "stateMutability": "payable", "type": "function"
	},
	{
		"inputs": [{"name": "tokenAddress", "type": "address"}, {"name": "amount", "type": "uint256"}],
		"name": "borrow", "outputs": [], "stateMutability": "payable", "type": "function"
	},
	{
		"inputs": [{"name": "tokenAddress", "type": "address"}, {"name": "amount", "type": "uint256"}],
		"name": "repay", "outputs": [], "stateMutability": "payable", "type": "function"
	}
]`

const erc20ABIJSON = `[
	{
		"inputs": [{"name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"name": "spender", "type": "address"}, {"name": "amount", "type": "uint256"}],
		"name": "approve",
		"outputs": [{"name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "account", "type": "address"}, {"name": "amount", "type": "uint256"}],
		"name": "mint",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "symbol",
		"outputs": [{"name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

const tokenBridgeABIJSON = `[
	{
		"inputs": [{"name": "tokenAddress", "type": "address"}, {"name": "nonce", "type": "uint32"}],
		"name": "attestToken",
		"outputs": [{"name": "sequence", "type": "uint64"}],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [{"name": "encodedVm", "type": "bytes"}],
		"name": "createWrapped",
		"outputs": [{"name": "token", "type": "address"}],
		"stateMutability": "nonpayable",
		"type": "function"
	},
	{
		"inputs": [{"name": "tokenChainId", "type": "uint16"}, {"name": "tokenAddress", "type": "bytes32"}],
		"name": "wrappedAsset",
		"outputs": [{"name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

const coreABIJSON = `[
	{
		"inputs": [],
		"name": "messageFee",
		"outputs": [{"name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "sender", "type": "address"},
			{"indexed": false, "name": "sequence", "type": "uint64"},
			{"indexed": false, "name": "nonce", "type": "uint32"},
			{"indexed": false, "name": "payload", "type": "bytes"},
			{"indexed": false, "name": "consistencyLevel", "type": "uint8"}
		],
		"name": "LogMessagePublished",
		"type": "event"
	}
]`

var (
	hubABI         = mustParseABI("Hub", registrationABIJSON)
	spokeABI       = mustParseABI("Spoke", mergeABI(registrationABIJSON, spokeActionsABIJSON))
	erc20ABI       = mustParseABI("ERC20", erc20ABIJSON)
	tokenBridgeABI = mustParseABI("TokenBridge", tokenBridgeABIJSON)
	coreABI        = mustParseABI("Wormhole", coreABIJSON)
)

func mustParseABI(name, def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("parse %s ABI: %v", name, err))
	}
	return parsed
}

// mergeABI concatenates JSON ABI arrays.
func mergeABI(defs ...string) string {
	parts := make([]string, 0, len(defs))
	for _, d := range defs {
		d = strings.TrimSpace(d)
		parts = append(parts, strings.TrimSuffix(strings.TrimPrefix(d, "["), "]"))
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// ParseContractABI parses a raw JSON ABI.
func ParseContractABI(raw []byte) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(string(raw)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse ABI: %w", err)
	}
	return parsed, nil
}
