package deploy

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wormhole-foundation/wormhole/sdk/vaa"

	borrowlend "github.com/wormhole-foundation/example-cross-chain-borrow-lend"
	"github.com/wormhole-foundation/example-cross-chain-borrow-lend/internal/contracts"
)

// fakeRegistrar keeps registered senders in memory.
type fakeRegistrar struct {
	addr    common.Address
	senders map[uint16]vaa.Address
	failSet bool
	ignore  bool
}

func (r *fakeRegistrar) Address() common.Address { return r.addr }

func (r *fakeRegistrar) SetRegisteredSender(_ context.Context, chainID uint16, sender vaa.Address) (*types.Receipt, error) {
	if r.failSet {
		return nil, fmt.Errorf("%w: execution reverted", borrowlend.ErrTransaction)
	}
	if !r.ignore {
		r.senders[chainID] = sender
	}
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func (r *fakeRegistrar) RegisteredSender(_ context.Context, chainID uint16) (vaa.Address, error) {
	return r.senders[chainID], nil
}

// fakeChains deploys contracts at sequential addresses.
type fakeChains struct {
	next       int
	registrars map[common.Address]*fakeRegistrar
	spokeArgs  map[uint16]common.Address
	failSpoke  bool
	failSetOn  common.Address
	ignoreOn   common.Address
	onSpoke    func()
}

// contractAddr is the address of the n-th contract a fakeChains deploys.
func contractAddr(n int) common.Address {
	return common.BigToAddress(big.NewInt(int64(0x1000 + n)))
}

func newFakeChains() *fakeChains {
	return &fakeChains{
		registrars: make(map[common.Address]*fakeRegistrar),
		spokeArgs:  make(map[uint16]common.Address),
	}
}

func (c *fakeChains) newContract() common.Address {
	c.next++
	addr := contractAddr(c.next)
	c.registrars[addr] = &fakeRegistrar{addr: addr, senders: make(map[uint16]vaa.Address)}
	return addr
}

func (c *fakeChains) DeployHub(context.Context, uint16) (common.Address, error) {
	return c.newContract(), nil
}

func (c *fakeChains) DeploySpoke(_ context.Context, chainID, _ uint16, hub common.Address) (common.Address, error) {
	if c.failSpoke {
		return common.Address{}, fmt.Errorf("%w: out of gas", borrowlend.ErrTransaction)
	}
	c.spokeArgs[chainID] = hub
	if c.onSpoke != nil {
		c.onSpoke()
	}
	return c.newContract(), nil
}

func (c *fakeChains) Registrar(_ context.Context, _ uint16, addr common.Address) (contracts.Registrar, error) {
	r, ok := c.registrars[addr]
	if !ok {
		return nil, errors.New("unknown contract")
	}
	r.failSet = addr == c.failSetOn
	r.ignore = addr == c.ignoreOn
	return r, nil
}

func newStore(t *testing.T) *borrowlend.AddressStore {
	t.Helper()
	return borrowlend.NewAddressStore(filepath.Join(t.TempDir(), "deployedAddresses.json"))
}

func TestOrchestrator_Run(t *testing.T) {
	chains := newFakeChains()
	store := newStore(t)

	result, err := New(chains, store, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, borrowlend.ChainIDAvalanche, result.HubChain)
	require.Contains(t, result.Spokes, borrowlend.ChainIDCelo)
	spoke := result.Spokes[borrowlend.ChainIDCelo]
	assert.Equal(t, result.Hub, chains.spokeArgs[borrowlend.ChainIDCelo])

	t.Run("record matches deployment", func(t *testing.T) {
		record, err := store.Load()
		require.NoError(t, err)

		hubChain, hubAddr, err := record.HubAddress()
		require.NoError(t, err)
		assert.Equal(t, result.HubChain, hubChain)
		assert.Equal(t, result.Hub, hubAddr)

		spokeAddr, err := record.SpokeAddress(borrowlend.ChainIDCelo)
		require.NoError(t, err)
		assert.Equal(t, spoke, spokeAddr)
	})

	t.Run("hub trusts spoke", func(t *testing.T) {
		hub := chains.registrars[result.Hub]
		assert.Equal(t, borrowlend.ToWormholeAddress(spoke), hub.senders[borrowlend.ChainIDCelo])
		assert.NoError(t, VerifyRegistration(context.Background(), hub, borrowlend.ChainIDCelo, spoke))
	})

	t.Run("spoke trusts hub", func(t *testing.T) {
		s := chains.registrars[spoke]
		assert.Equal(t, borrowlend.ToWormholeAddress(result.Hub), s.senders[borrowlend.ChainIDAvalanche])
		assert.NoError(t, VerifyRegistration(context.Background(), s, borrowlend.ChainIDAvalanche, result.Hub))
	})
}

func TestOrchestrator_OverwritesExistingHub(t *testing.T) {
	store := newStore(t)
	old := borrowlend.NewDeployedAddresses()
	old.SetHub(borrowlend.ChainIDCelo, common.HexToAddress("0xdead"))
	old.AddERC20(borrowlend.ChainIDCelo, common.HexToAddress("0xcafe"))
	require.NoError(t, store.Store(old))

	result, err := New(newFakeChains(), store, Options{}).Run(context.Background())
	require.NoError(t, err)

	record, err := store.Load()
	require.NoError(t, err)
	hubChain, hubAddr, err := record.HubAddress()
	require.NoError(t, err)
	assert.Equal(t, borrowlend.ChainIDAvalanche, hubChain)
	assert.Equal(t, result.Hub, hubAddr)
	assert.Equal(t, []string{common.HexToAddress("0xcafe").Hex()}, record.ERC20s[borrowlend.ChainIDCelo])
}

func TestOrchestrator_FailureCheckpoints(t *testing.T) {
	tests := []struct {
		name            string
		skipCheckpoints bool
		wantHubRecorded bool
	}{
		{name: "checkpointing keeps hub", wantHubRecorded: true},
		{name: "single write loses hub", skipCheckpoints: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			chains := newFakeChains()
			chains.failSpoke = true
			store := newStore(t)

			_, err := New(chains, store, Options{SkipCheckpoints: tc.skipCheckpoints}).Run(context.Background())
			require.ErrorIs(t, err, borrowlend.ErrTransaction)
			assert.Contains(t, err.Error(), "deploy spoke on chain 14")

			record, err := store.Load()
			require.NoError(t, err)
			_, _, err = record.HubAddress()
			if tc.wantHubRecorded {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, borrowlend.ErrNotDeployed)
			}
		})
	}
}

func TestOrchestrator_RegistrationFailures(t *testing.T) {
	t.Run("reverted registration aborts", func(t *testing.T) {
		chains := newFakeChains()
		chains.failSetOn = contractAddr(1)
		_, err := New(chains, newStore(t), Options{}).Run(context.Background())
		require.ErrorIs(t, err, borrowlend.ErrTransaction)
		assert.Contains(t, err.Error(), "register spoke 14 on hub")
	})

	t.Run("registration not observed", func(t *testing.T) {
		chains := newFakeChains()
		chains.ignoreOn = contractAddr(2)
		_, err := New(chains, newStore(t), Options{}).Run(context.Background())
		require.ErrorIs(t, err, borrowlend.ErrTransaction)
		assert.Contains(t, err.Error(), "register hub on spoke 14")
	})
}

func TestOrchestrator_RejectsHubAsSpoke(t *testing.T) {
	opts := Options{HubChain: borrowlend.ChainIDCelo, SpokeChains: []uint16{borrowlend.ChainIDCelo}}
	_, err := New(newFakeChains(), newStore(t), opts).Run(context.Background())
	assert.ErrorIs(t, err, borrowlend.ErrConfig)
}

func TestOrchestrator_MergesConcurrentWrites(t *testing.T) {
	for _, skip := range []bool{false, true} {
		t.Run(fmt.Sprintf("skip checkpoints %v", skip), func(t *testing.T) {
			store := newStore(t)
			token := common.HexToAddress("0x00000000000000000000000000000000000000cc")

			chains := newFakeChains()
			chains.onSpoke = func() {
				// Another run sharing the record file lands a token mid-deploy.
				other := borrowlend.NewAddressStore(store.Path())
				_, err := other.Update(func(d *borrowlend.DeployedAddresses) error {
					d.AddERC20(borrowlend.ChainIDCelo, token)
					return nil
				})
				require.NoError(t, err)
			}

			result, err := New(chains, store, Options{SkipCheckpoints: skip}).Run(context.Background())
			require.NoError(t, err)

			record, err := store.Load()
			require.NoError(t, err)
			_, hubAddr, err := record.HubAddress()
			require.NoError(t, err)
			assert.Equal(t, result.Hub, hubAddr)
			spokeAddr, err := record.SpokeAddress(borrowlend.ChainIDCelo)
			require.NoError(t, err)
			assert.Equal(t, result.Spokes[borrowlend.ChainIDCelo], spokeAddr)
			assert.Equal(t, []string{token.Hex()}, record.ERC20s[borrowlend.ChainIDCelo])
		})
	}
}
