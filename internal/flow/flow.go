// Package flow drives deposit, withdraw, borrow and repay operations against a
// deployed Spoke and checks the caller's token balance moves by exactly the
// requested amount once the cross-chain round trip has settled.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	borrowlend "github.com/wormhole-foundation/example-cross-chain-borrow-lend"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/contracts"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/units"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/wait"
)

// ErrSettlement is returned when the balance does not reach the expected
// value within the settlement policy.
var ErrSettlement = errors.New("flow: balance did not settle")

// Operation describes how a Spoke action moves the caller's balance.
type Operation struct {
	Action contracts.Action
	// Outflow is true when tokens leave the caller's wallet.
	Outflow bool
}

// NeedsApproval reports whether the Spoke must be approved to pull tokens.
func (o Operation) NeedsApproval() bool {
	return o.Outflow
}

func (o Operation) String() string {
	return string(o.Action)
}

// The four Spoke operations.
var (
	Deposit  = Operation{Action: contracts.ActionDeposit, Outflow: true}
	Withdraw = Operation{Action: contracts.ActionWithdraw}
	Borrow   = Operation{Action: contracts.ActionBorrow}
	Repay    = Operation{Action: contracts.ActionRepay, Outflow: true}
)

// Spoke is the subset of *contracts.Spoke the harness drives.
type Spoke interface {
	Address() common.Address
	Quote(ctx context.Context, action contracts.Action) (*big.Int, error)
	Execute(ctx context.Context, action contracts.Action, token common.Address, amount, fee *big.Int) (*types.Receipt, error)
}

// Token is the subset of *contracts.Token the harness drives.
type Token interface {
	Address() common.Address
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
	Approve(ctx context.Context, spender common.Address, amount *big.Int) (*types.Receipt, error)
}

var (
	_ Spoke = (*contracts.Spoke)(nil)
	_ Token = (*contracts.Token)(nil)
)

// DefaultSettlePolicy bounds the wait for cross-chain settlement.
func DefaultSettlePolicy() wait.Policy {
	return wait.Policy{Initial: 3 * time.Second, Max: 15 * time.Second, Timeout: 3 * time.Minute}
}

// Result records one executed operation.
type Result struct {
	Operation Operation
	Amount    *big.Int
	Fee       *big.Int
	Before    *big.Int
	After     *big.Int
	TxHash    common.Hash
}

// Delta returns After - Before.
func (r *Result) Delta() *big.Int {
	return new(big.Int).Sub(r.After, r.Before)
}

// Harness runs operations for one owner against one Spoke and token.
type Harness struct {
	spoke  Spoke
	token  Token
	owner  common.Address
	settle wait.Policy
	logger *slog.Logger
}

// Option configures a Harness.
type Option func(*Harness)

// WithSettlePolicy overrides how long the harness waits for settlement.
func WithSettlePolicy(p wait.Policy) Option {
	return func(h *Harness) {
		h.settle = p
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Harness) {
		h.logger = logger
	}
}

// NewHarness creates a harness acting as owner.
func NewHarness(spoke Spoke, token Token, owner common.Address, opts ...Option) *Harness {
	h := &Harness{
		spoke:  spoke,
		token:  token,
		owner:  owner,
		settle: DefaultSettlePolicy(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// FromResolver builds a harness for the recorded spoke on chainID and the
// newest token recorded there, acting as the chain's wallet.
func FromResolver(ctx context.Context, r *contracts.Resolver, chainID uint16, opts ...Option) (*Harness, error) {
	spoke, err := r.Spoke(ctx, chainID)
	if err != nil {
		return nil, err
	}
	token, err := r.Token(ctx, chainID, 0)
	if err != nil {
		return nil, err
	}
	return NewHarness(spoke, token, spoke.Wallet().Address, opts...), nil
}

// Deposit moves amount from the owner into the lending pool.
func (h *Harness) Deposit(ctx context.Context, amount *big.Int) (*Result, error) {
	return h.Run(ctx, Deposit, amount)
}

// Withdraw returns amount of deposited tokens to the owner.
func (h *Harness) Withdraw(ctx context.Context, amount *big.Int) (*Result, error) {
	return h.Run(ctx, Withdraw, amount)
}

// Borrow sends amount of borrowed tokens to the owner.
func (h *Harness) Borrow(ctx context.Context, amount *big.Int) (*Result, error) {
	return h.Run(ctx, Borrow, amount)
}

// Repay pays back amount of borrowed tokens.
func (h *Harness) Repay(ctx context.Context, amount *big.Int) (*Result, error) {
	return h.Run(ctx, Repay, amount)
}

// Run executes op for amount and waits until the owner's balance has moved by
// exactly amount in the operation's direction.
func (h *Harness) Run(ctx context.Context, op Operation, amount *big.Int) (*Result, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("%w: %s amount must be positive", borrowlend.ErrConfig, op)
	}
	log := h.logger.With(slog.String("operation", op.String()))

	before, err := h.token.BalanceOf(ctx, h.owner)
	if err != nil {
		return nil, fmt.Errorf("%s: read balance: %w", op, err)
	}

	fee, err := h.spoke.Quote(ctx, op.Action)
	if err != nil {
		return nil, fmt.Errorf("%s: quote: %w", op, err)
	}
	log.Info("quoted delivery cost", slog.String("cost", units.FormatEther(fee)))

	if op.NeedsApproval() {
		if _, err := h.token.Approve(ctx, h.spoke.Address(), amount); err != nil {
			return nil, fmt.Errorf("%s: approve: %w", op, err)
		}
	}

	log.Info("submitting", slog.String("amount", units.FormatEther(amount)))
	receipt, err := h.spoke.Execute(ctx, op.Action, h.token.Address(), amount, fee)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("transaction mined", slog.String("tx_hash", receipt.TxHash.Hex()))

	want := new(big.Int)
	if op.Outflow {
		want.Sub(before, amount)
	} else {
		want.Add(before, amount)
	}

	start := time.Now()
	after, err := h.awaitBalance(ctx, want)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	log.Info("balance settled",
		slog.String("balance", units.FormatEther(after)),
		slog.Duration("elapsed", time.Since(start).Round(time.Millisecond)))

	return &Result{
		Operation: op,
		Amount:    new(big.Int).Set(amount),
		Fee:       fee,
		Before:    before,
		After:     after,
		TxHash:    receipt.TxHash,
	}, nil
}

// awaitBalance polls the owner's balance until it equals want.
func (h *Harness) awaitBalance(ctx context.Context, want *big.Int) (*big.Int, error) {
	var last *big.Int
	err := wait.Until(ctx, h.settle, func(ctx context.Context) (bool, error) {
		balance, err := h.token.BalanceOf(ctx, h.owner)
		if err != nil {
			return false, err
		}
		last = balance
		return balance.Cmp(want) == 0, nil
	})
	if err == nil {
		return last, nil
	}
	if errors.Is(err, wait.ErrTimeout) {
		observed := "unknown"
		if last != nil {
			observed = units.FormatEther(last)
		}
		return last, fmt.Errorf("%w: want balance %s, observed %s: %v",
			ErrSettlement, units.FormatEther(want), observed, err)
	}
	return last, err
}

// TestAmount returns a token amount derived from now: the millisecond clock
// modulo 10^7, scaled by 10^10 so the token bridge's 8-decimal truncation
// leaves it intact. It is never zero.
func TestAmount(now time.Time) *big.Int {
	base := now.UnixMilli() % 10_000_000
	if base == 0 {
		base = 1
	}
	return new(big.Int).Mul(big.NewInt(base), big.NewInt(10_000_000_000))
}
