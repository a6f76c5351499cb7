package contracts

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"

	borrowlend "github.com/wormhole-foundation/example-cross-chain-borrow-lend"
)

// boundContract binds an address and ABI to a wallet.
type boundContract struct {
	name     string
	address  common.Address
	wallet   *borrowlend.Wallet
	contract *bind.BoundContract
}

func bindContract(ctx context.Context, name string, w *borrowlend.Wallet, addr common.Address, parsed abi.ABI) (*boundContract, error) {
	backend, err := w.Backend(ctx)
	if err != nil {
		return nil, err
	}
	return &boundContract{
		name:     name,
		address:  addr,
		wallet:   w,
		contract: bind.NewBoundContract(addr, parsed, backend, backend, backend),
	}, nil
}

// Address returns the contract address.
func (c *boundContract) Address() common.Address {
	return c.address
}

// Wallet returns the wallet the handle signs with.
func (c *boundContract) Wallet() *borrowlend.Wallet {
	return c.wallet
}

func (c *boundContract) call(ctx context.Context, method string, args ...any) ([]any, error) {
	var out []any
	if err := c.contract.Call(c.wallet.CallOpts(ctx), &out, method, args...); err != nil {
		return nil, fmt.Errorf("%w: %s.%s: %v", borrowlend.ErrNetwork, c.name, method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s.%s returned no data", borrowlend.ErrNetwork, c.name, method)
	}
	return out, nil
}

// transact submits method with value attached and waits for a successful receipt.
func (c *boundContract) transact(ctx context.Context, value *big.Int, method string, args ...any) (*types.Receipt, error) {
	opts, err := c.wallet.TransactOpts(ctx)
	if err != nil {
		return nil, err
	}
	opts.Value = value

	tx, err := c.contract.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: submit %s.%s: %v", borrowlend.ErrTransaction, c.name, method, err)
	}

	receipt, err := c.wallet.WaitMined(ctx, tx)
	if err != nil {
		return receipt, fmt.Errorf("%s.%s: %w", c.name, method, err)
	}
	return receipt, nil
}

func (c *boundContract) callBigInt(ctx context.Context, method string, args ...any) (*big.Int, error) {
	out, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s.%s: unexpected result type %T", c.name, method, out[0])
	}
	return v, nil
}

// registry is the registered-sender surface shared by Hub and Spoke.
type registry struct {
	*boundContract
}

// SetRegisteredSender authorises sender as the trusted emitter for chainID.
func (r registry) SetRegisteredSender(ctx context.Context, chainID uint16, sender vaa.Address) (*types.Receipt, error) {
	return r.transact(ctx, nil, "setRegisteredSender", chainID, [32]byte(sender))
}

// RegisteredSender returns the trusted emitter recorded for chainID.
func (r registry) RegisteredSender(ctx context.Context, chainID uint16) (vaa.Address, error) {
	out, err := r.call(ctx, "registeredSenders", chainID)
	if err != nil {
		return vaa.Address{}, err
	}
	sender, ok := out[0].([32]byte)
	if !ok {
		return vaa.Address{}, fmt.Errorf("registeredSenders: unexpected result type %T", out[0])
	}
	return vaa.Address(sender), nil
}

// Hub is the lending pool on the hub chain.
type Hub struct {
	registry
}

// NewHub binds a Hub handle.
func NewHub(ctx context.Context, w *borrowlend.Wallet, addr common.Address) (*Hub, error) {
	c, err := bindContract(ctx, HubContract, w, addr, hubABI)
	if err != nil {
		return nil, err
	}
	return &Hub{registry{c}}, nil
}

// Action is a user operation routed through a Spoke.
type Action string

// Spoke actions.
const (
	ActionDeposit  Action = "deposit"
	ActionWithdraw Action = "withdraw"
	ActionBorrow   Action = "borrow"
	ActionRepay    Action = "repay"
)

func (a Action) quoteMethod() string {
	s := string(a)
	if s == "" {
		return "quote"
	}
	return "quote" + strings.ToUpper(s[:1]) + s[1:]
}

// Valid reports whether a names a Spoke action.
func (a Action) Valid() bool {
	switch a {
	case ActionDeposit, ActionWithdraw, ActionBorrow, ActionRepay:
		return true
	}
	return false
}

// Spoke is the user-facing contract on a spoke chain.
type Spoke struct {
	registry
}

// NewSpoke binds a Spoke handle.
func NewSpoke(ctx context.Context, w *borrowlend.Wallet, addr common.Address) (*Spoke, error) {
	c, err := bindContract(ctx, SpokeContract, w, addr, spokeABI)
	if err != nil {
		return nil, err
	}
	return &Spoke{registry{c}}, nil
}

// Quote returns the cross-chain delivery fee for action, in native wei.
func (s *Spoke) Quote(ctx context.Context, action Action) (*big.Int, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("unknown spoke action %q", action)
	}
	return s.callBigInt(ctx, action.quoteMethod())
}

// Execute submits action for amount of token, paying fee as value.
func (s *Spoke) Execute(ctx context.Context, action Action, token common.Address, amount, fee *big.Int) (*types.Receipt, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("unknown spoke action %q", action)
	}
	return s.transact(ctx, fee, string(action), token, amount)
}

// Token is an ERC20 token with a public mint, as deployed for tests.
type Token struct {
	*boundContract
}

// NewToken binds a Token handle.
func NewToken(ctx context.Context, w *borrowlend.Wallet, addr common.Address) (*Token, error) {
	c, err := bindContract(ctx, TokenContract, w, addr, erc20ABI)
	if err != nil {
		return nil, err
	}
	return &Token{c}, nil
}

// BalanceOf returns the token balance of account.
func (t *Token) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return t.callBigInt(ctx, "balanceOf", account)
}

// Approve lets spender transfer amount from the wallet.
func (t *Token) Approve(ctx context.Context, spender common.Address, amount *big.Int) (*types.Receipt, error) {
	return t.transact(ctx, nil, "approve", spender, amount)
}

// Mint creates amount tokens for account.
func (t *Token) Mint(ctx context.Context, account common.Address, amount *big.Int) (*types.Receipt, error) {
	return t.transact(ctx, nil, "mint", account, amount)
}

// TokenBridge is the Wormhole token bridge on one chain.
type TokenBridge struct {
	*boundContract
}

// NewTokenBridge binds the token bridge of the wallet's chain.
func NewTokenBridge(ctx context.Context, w *borrowlend.Wallet) (*TokenBridge, error) {
	c, err := bindContract(ctx, "TokenBridge", w, w.Chain.TokenBridgeAddress(), tokenBridgeABI)
	if err != nil {
		return nil, err
	}
	return &TokenBridge{c}, nil
}

// AttestToken publishes the metadata of token, paying fee to the core bridge.
func (b *TokenBridge) AttestToken(ctx context.Context, token common.Address, nonce uint32, fee *big.Int) (*types.Receipt, error) {
	return b.transact(ctx, fee, "attestToken", token, nonce)
}

// CreateWrapped submits a signed attestation VAA, creating the wrapped asset.
func (b *TokenBridge) CreateWrapped(ctx context.Context, signedVAA []byte) (*types.Receipt, error) {
	return b.transact(ctx, nil, "createWrapped", signedVAA)
}

// WrappedAsset returns the local wrapped representation of a foreign token,
// or the zero address when none exists.
func (b *TokenBridge) WrappedAsset(ctx context.Context, tokenChain uint16, token vaa.Address) (common.Address, error) {
	out, err := b.call(ctx, "wrappedAsset", tokenChain, [32]byte(token))
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("wrappedAsset: unexpected result type %T", out[0])
	}
	return addr, nil
}

// CoreBridge is the Wormhole core messaging contract on one chain.
type CoreBridge struct {
	*boundContract
}

// NewCoreBridge binds the core contract of the wallet's chain.
func NewCoreBridge(ctx context.Context, w *borrowlend.Wallet) (*CoreBridge, error) {
	c, err := bindContract(ctx, "Wormhole", w, w.Chain.CoreAddress(), coreABI)
	if err != nil {
		return nil, err
	}
	return &CoreBridge{c}, nil
}

// MessageFee returns the fee charged for publishing a message.
func (c *CoreBridge) MessageFee(ctx context.Context) (*big.Int, error) {
	return c.callBigInt(ctx, "messageFee")
}

// ParseSequence returns the sequence of the message the core contract
// published in receipt.
func (c *CoreBridge) ParseSequence(receipt *types.Receipt) (uint64, error) {
	return ParseSequence(receipt, c.address)
}

// ParseSequence extracts the LogMessagePublished sequence emitted by core.
func ParseSequence(receipt *types.Receipt, core common.Address) (uint64, error) {
	event := coreABI.Events["LogMessagePublished"]
	for _, l := range receipt.Logs {
		if l == nil || l.Address != core || len(l.Topics) == 0 || l.Topics[0] != event.ID {
			continue
		}
		var published struct {
			Sequence         uint64
			Nonce            uint32
			Payload          []byte
			ConsistencyLevel uint8
		}
		if err := coreABI.UnpackIntoInterface(&published, event.Name, l.Data); err != nil {
			return 0, fmt.Errorf("unpack LogMessagePublished: %w", err)
		}
		return published.Sequence, nil
	}
	return 0, fmt.Errorf("%w: no LogMessagePublished from %s in %s", borrowlend.ErrNotFound, core.Hex(), receipt.TxHash.Hex())
}
