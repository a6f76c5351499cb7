package contracts

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"

	borrowlend "github.com/wormhole-foundation/example-cross-chain-borrow-lend"
)

const (
	testKeyHex     = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"
	testEVMChainID = 1337
)

// fakeChain is an in-memory stand-in for a JSON-RPC node. Calls are answered
// from a selector table; sent transactions are mined immediately.
type fakeChain struct {
	borrowlend.Backend

	mu      sync.Mutex
	outputs map[[4]byte][]byte
	sent    []*types.Transaction
	logs    []*types.Log
	revert  bool
}

func newFakeChain() *fakeChain {
	return &fakeChain{outputs: make(map[[4]byte][]byte)}
}

func (f *fakeChain) respond(selector []byte, output []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs[[4]byte(selector)] = output
}

func (f *fakeChain) lastSent() *types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeChain) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(msg.Data) < 4 {
		return nil, errors.New("short call data")
	}
	out, ok := f.outputs[[4]byte(msg.Data[:4])]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return out, nil
}

func (f *fakeChain) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeChain) PendingCodeAt(context.Context, common.Address) ([]byte, error) {
	return []byte{0x60}, nil
}

func (f *fakeChain) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1)}, nil
}

func (f *fakeChain) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChain) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (f *fakeChain) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeChain) SendTransaction(_ context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tx := range f.sent {
		if tx.Hash() != hash {
			continue
		}
		receipt := &types.Receipt{
			Status:      types.ReceiptStatusSuccessful,
			TxHash:      hash,
			BlockNumber: big.NewInt(2),
			Logs:        f.logs,
		}
		if f.revert {
			receipt.Status = types.ReceiptStatusFailed
		}
		if tx.To() == nil {
			from, err := types.Sender(types.LatestSignerForChainID(tx.ChainId()), tx)
			if err != nil {
				return nil, err
			}
			receipt.ContractAddress = crypto.CreateAddress(from, tx.Nonce())
		}
		return receipt, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeChain) ChainID(context.Context) (*big.Int, error) {
	return big.NewInt(testEVMChainID), nil
}

func (f *fakeChain) Close() {}

func testConfig() *borrowlend.Config {
	return &borrowlend.Config{Chains: []borrowlend.ChainInfo{
		{
			Description:     "Avalanche testnet fuji",
			ChainID:         borrowlend.ChainIDAvalanche,
			RPC:             "http://fuji.invalid",
			TokenBridge:     "0x61E44E506Ca5659E6c0bba9b678586fA2d729756",
			WormholeRelayer: "0xA3cF45939bD6260bcFe3D66bc73d60f19e49a8BB",
			Wormhole:        "0x7bbcE28e64B3F8b84d876Ab298393c38ad7aac4C",
			EVMChainID:      testEVMChainID,
		},
		{
			Description:     "Celo Testnet",
			ChainID:         borrowlend.ChainIDCelo,
			RPC:             "http://celo.invalid",
			TokenBridge:     "0x05ca6037eC51F8b712eD2E6Fa72219FEaE74E153",
			WormholeRelayer: "0x306B68267Deb7c5DfCDa3619E22E9Ca39C374f84",
			Wormhole:        "0x88505117CA88e7dd2eC6EA1E13f0948db2D50D56",
			EVMChainID:      testEVMChainID,
		},
	}}
}

// newTestWallets returns a wallet factory whose every chain is backed by chain.
func newTestWallets(t *testing.T, chain *fakeChain) *borrowlend.WalletFactory {
	t.Helper()
	return borrowlend.NewWalletFactory(testConfig(), testKeyHex,
		borrowlend.WithDialer(func(context.Context, string) (borrowlend.Backend, error) {
			return chain, nil
		}),
	)
}

func testWallet(t *testing.T, chain *fakeChain, chainID uint16) *borrowlend.Wallet {
	t.Helper()
	w, err := newTestWallets(t, chain).Wallet(chainID)
	require.NoError(t, err)
	return w
}
