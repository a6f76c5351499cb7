// Package preflight provides pre-deployment validation checks.
package preflight

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/params"

	borrowlend "github.com/wormhole-foundation/example-cross-chain-borrow-lend"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/units"
)

// DefaultTimeout is the default timeout for RPC calls.
const DefaultTimeout = 10 * time.Second

// CheckName identifies a specific pre-flight check.
type CheckName string

const (
	// CheckRPCReachable verifies the chain's RPC endpoint answers.
	CheckRPCReachable CheckName = "rpc_reachable"
	// CheckChainIDMatch verifies the EVM chain ID matches the configured value.
	CheckChainIDMatch CheckName = "chain_id_match"
	// CheckDeployerBalance verifies the deployer has sufficient funds.
	CheckDeployerBalance CheckName = "deployer_balance"
)

// CheckResult represents the result of a single pre-flight check.
type CheckResult struct {
	Name    CheckName      `json:"name"`
	Passed  bool           `json:"passed"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ChainReport holds the checks run against one chain.
type ChainReport struct {
	ChainID           uint16        `json:"chain_id"`
	Name              string        `json:"name"`
	DeployerAddress   string        `json:"deployer_address,omitempty"`
	Checks            []CheckResult `json:"checks"`
	CurrentBalanceETH string        `json:"current_balance_eth,omitempty"`
}

// OK reports whether every check on the chain passed.
func (r *ChainReport) OK() bool {
	for _, c := range r.Checks {
		if !c.Passed {
			return false
		}
	}
	return len(r.Checks) > 0
}

// Request contains the parameters for pre-flight checks.
type Request struct {
	Chains []uint16 `json:"chains"`
	// MinBalance is the native balance the deployer needs on each chain.
	// Defaults to DefaultMinBalance.
	MinBalance *big.Int `json:"min_balance,omitempty"`
}

// Response contains the results of all pre-flight checks.
type Response struct {
	OK                 bool          `json:"ok"`
	Chains             []ChainReport `json:"chains"`
	RequiredFundingETH string        `json:"required_funding_eth"`
}

// DefaultMinBalance is 0.1 of the native currency.
func DefaultMinBalance() *big.Int {
	return new(big.Int).Div(big.NewInt(params.Ether), big.NewInt(10))
}

// Checker performs pre-flight validation checks.
type Checker struct {
	wallets *borrowlend.WalletFactory
	timeout time.Duration
}

// NewChecker creates a new pre-flight checker.
func NewChecker(wallets *borrowlend.WalletFactory) *Checker {
	return &Checker{
		wallets: wallets,
		timeout: DefaultTimeout,
	}
}

// WithTimeout sets a custom timeout for RPC calls.
func (c *Checker) WithTimeout(timeout time.Duration) *Checker {
	c.timeout = timeout
	return c
}

// RunChecks performs all pre-flight checks and returns the results. Only an
// invalid request is an error; failing checks are reported in the response.
func (c *Checker) RunChecks(ctx context.Context, req *Request) (*Response, error) {
	if err := c.validateRequest(req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	required := req.MinBalance
	if required == nil {
		required = DefaultMinBalance()
	}

	response := &Response{
		OK:                 true,
		Chains:             make([]ChainReport, 0, len(req.Chains)),
		RequiredFundingETH: units.FormatEtherFixed(required, 4),
	}

	for _, chainID := range req.Chains {
		report, err := c.checkChain(ctx, chainID, required)
		if err != nil {
			return nil, err
		}
		if !report.OK() {
			response.OK = false
		}
		response.Chains = append(response.Chains, report)
	}
	return response, nil
}

// validateRequest validates the pre-flight request parameters.
func (c *Checker) validateRequest(req *Request) error {
	if req == nil || len(req.Chains) == 0 {
		return fmt.Errorf("%w: at least one chain is required", borrowlend.ErrConfig)
	}
	if req.MinBalance != nil && req.MinBalance.Sign() < 0 {
		return fmt.Errorf("%w: min_balance must not be negative", borrowlend.ErrConfig)
	}
	return nil
}

func (c *Checker) checkChain(ctx context.Context, chainID uint16, required *big.Int) (ChainReport, error) {
	w, err := c.wallets.Wallet(chainID)
	if err != nil {
		return ChainReport{}, err
	}

	report := ChainReport{
		ChainID:         chainID,
		Name:            w.Chain.Name(),
		DeployerAddress: w.Address.Hex(),
		Checks:          make([]CheckResult, 0, 3),
	}

	rpcCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// Check 1: RPC reachable
	actualChainID, reachable := c.checkRPCReachable(rpcCtx, w)
	report.Checks = append(report.Checks, reachable)
	if !reachable.Passed {
		return report, nil // Can't continue without connection
	}

	// Check 2: Chain ID match, only when the config pins one
	if w.Chain.EVMChainID != 0 {
		report.Checks = append(report.Checks, checkChainIDMatch(actualChainID, w.Chain.EVMChainID))
	}

	// Check 3: Deployer balance
	balance := c.checkDeployerBalance(rpcCtx, w, required)
	report.Checks = append(report.Checks, balance)
	if haveETH, ok := balance.Details["have_eth"].(string); ok {
		report.CurrentBalanceETH = haveETH
	}

	return report, nil
}

// checkRPCReachable verifies the RPC endpoint answers eth_chainId.
func (c *Checker) checkRPCReachable(ctx context.Context, w *borrowlend.Wallet) (*big.Int, CheckResult) {
	result := CheckResult{
		Name: CheckRPCReachable,
	}

	backend, err := w.Backend(ctx)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to connect to RPC: %v", err)
		result.Details = map[string]any{"error": err.Error(), "rpc": w.Chain.RPC}
		return nil, result
	}

	chainID, err := backend.ChainID(ctx)
	if err != nil {
		result.Message = fmt.Sprintf("RPC connection failed: %v", err)
		result.Details = map[string]any{"error": err.Error(), "rpc": w.Chain.RPC}
		return nil, result
	}

	result.Passed = true
	result.Message = "Connected to RPC successfully"
	return chainID, result
}

// checkChainIDMatch verifies the EVM chain ID matches the expected value.
func checkChainIDMatch(actual *big.Int, expected uint64) CheckResult {
	result := CheckResult{
		Name: CheckChainIDMatch,
	}

	if actual == nil || !actual.IsUint64() || actual.Uint64() != expected {
		got := "unknown"
		if actual != nil {
			got = actual.String()
		}
		result.Message = fmt.Sprintf("Chain ID mismatch: expected %d, got %s", expected, got)
		result.Details = map[string]any{
			"expected": expected,
			"actual":   got,
		}
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Chain ID %d confirmed", expected)
	result.Details = map[string]any{
		"chain_id": expected,
	}
	return result
}

// checkDeployerBalance verifies the deployer has sufficient funds.
func (c *Checker) checkDeployerBalance(ctx context.Context, w *borrowlend.Wallet, requiredWei *big.Int) CheckResult {
	result := CheckResult{
		Name: CheckDeployerBalance,
	}

	balance, err := w.Balance(ctx)
	if err != nil {
		result.Message = fmt.Sprintf("Failed to get deployer balance: %v", err)
		result.Details = map[string]any{
			"error": err.Error(),
		}
		return result
	}

	haveETH := units.FormatEtherFixed(balance, 4)
	needETH := units.FormatEtherFixed(requiredWei, 4)

	result.Details = map[string]any{
		"have_wei": balance.String(),
		"need_wei": requiredWei.String(),
		"have_eth": haveETH,
		"need_eth": needETH,
	}

	if balance.Cmp(requiredWei) < 0 {
		result.Message = fmt.Sprintf("Insufficient deployer balance: have %s, need %s", haveETH, needETH)
		return result
	}

	result.Passed = true
	result.Message = fmt.Sprintf("Deployer has sufficient balance: %s", haveETH)
	return result
}
