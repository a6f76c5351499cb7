package borrowlend

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "b71c71a67e1177ad4e901695e1b4b9ee17ae16c6668d313eac2f96dbcda3f291"

// fakeBackend implements the calls wallets make; anything else panics.
type fakeBackend struct {
	Backend
	chainID  *big.Int
	receipt  *types.Receipt
	balance  *big.Int
	chainIDs int
	closed   bool
}

func (f *fakeBackend) ChainID(context.Context) (*big.Int, error) {
	f.chainIDs++
	return f.chainID, nil
}

func (f *fakeBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return f.receipt, nil
}

func (f *fakeBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.balance, nil
}

func (f *fakeBackend) Close() { f.closed = true }

func countingDialer(backend Backend, calls *int) DialFunc {
	return func(context.Context, string) (Backend, error) {
		*calls++
		return backend, nil
	}
}

func TestWalletFactory_MissingKey(t *testing.T) {
	for _, key := range []string{"", "   "} {
		dials := 0
		f := NewWalletFactory(testConfig(), key, WithDialer(countingDialer(&fakeBackend{}, &dials)))

		_, err := f.Wallet(ChainIDCelo)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrConfig)
		assert.ErrorIs(t, err, ErrMissingPrivateKey)
		assert.Contains(t, err.Error(), EnvPrivateKey)
		assert.Zero(t, dials, "no network call before the key is validated")
	}
}

func TestWalletFactory_Errors(t *testing.T) {
	t.Run("unknown chain", func(t *testing.T) {
		_, err := NewWalletFactory(testConfig(), testKeyHex).Wallet(2)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("malformed key", func(t *testing.T) {
		_, err := NewWalletFactory(testConfig(), "0xzz").Wallet(ChainIDCelo)
		assert.ErrorIs(t, err, ErrConfig)
		assert.False(t, errors.Is(err, ErrMissingPrivateKey))
	})
}

func TestWalletFactory_WalletIsLazyAndCached(t *testing.T) {
	dials := 0
	backend := &fakeBackend{chainID: big.NewInt(44787)}
	f := NewWalletFactory(testConfig(), "0x"+testKeyHex, WithDialer(countingDialer(backend, &dials)))

	w, err := f.Wallet(ChainIDCelo)
	require.NoError(t, err)
	assert.Zero(t, dials)

	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), w.Address)

	again, err := f.Wallet(ChainIDCelo)
	require.NoError(t, err)
	assert.Same(t, w, again)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		id, err := w.EVMChainID(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(44787), id.Int64())
	}
	assert.Equal(t, 1, dials)
	assert.Equal(t, 1, backend.chainIDs)

	opts, err := w.TransactOpts(ctx)
	require.NoError(t, err)
	assert.Equal(t, w.Address, opts.From)

	f.Close()
	assert.True(t, backend.closed)
}

func TestWallet_EVMChainIDFromConfig(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)

	backend := &fakeBackend{chainID: big.NewInt(1)}
	w := NewWallet(ChainInfo{ChainID: ChainIDCelo, EVMChainID: 44787}, key, backend)

	id, err := w.EVMChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(44787), id.Int64())
	assert.Zero(t, backend.chainIDs)
}

func TestWallet_WaitMined(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)
	tx := types.NewTx(&types.LegacyTx{Nonce: 1})

	tests := []struct {
		name    string
		status  uint64
		wantErr error
	}{
		{name: "success", status: types.ReceiptStatusSuccessful},
		{name: "reverted", status: types.ReceiptStatusFailed, wantErr: ErrTransaction},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			backend := &fakeBackend{receipt: &types.Receipt{
				Status:      tc.status,
				TxHash:      tx.Hash(),
				BlockNumber: big.NewInt(10),
			}}
			w := NewWallet(ChainInfo{ChainID: ChainIDCelo}, key, backend)

			receipt, err := w.WaitMined(context.Background(), tx)
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tx.Hash(), receipt.TxHash)
		})
	}
}

func TestWallet_Balance(t *testing.T) {
	key, err := crypto.HexToECDSA(testKeyHex)
	require.NoError(t, err)

	w := NewWallet(ChainInfo{ChainID: ChainIDCelo}, key, &fakeBackend{balance: big.NewInt(42)})
	balance, err := w.Balance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(42), balance.Int64())
}
