package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gabikreal1/AlgoFlow/pkg/chain"
	"github.com/gabikreal1/AlgoFlow/pkg/codec"
	"github.com/gabikreal1/AlgoFlow/pkg/store"
)

var (
	owner    = codec.BytesToAddress([]byte("owner"))
	keeper   = codec.BytesToAddress([]byte("keeper"))
	stranger = codec.BytesToAddress([]byte("stranger"))
)

type fixture struct {
	env        *chain.Env
	ledger     *Ledger
	appID      uint64
	appAddr    codec.Address
	sampleBlob []byte
}

func setup(t *testing.T) *fixture {
	t.Helper()
	env := chain.NewEnv(nil)
	l, err := New(store.NewMemoryStore(), nil, owner)
	require.NoError(t, err)
	appID, appAddr := env.CreateApp(l)

	env.Fund(owner, chain.NativeAssetID, 10_000_000)
	env.Fund(keeper, chain.NativeAssetID, 10_000_000)
	env.Fund(stranger, chain.NativeAssetID, 10_000_000)

	blob, err := codec.EncodeSteps([]codec.WorkflowStep{
		{Opcode: codec.OpTransfer, AssetIn: 0, Amount: 1000, Extra: make([]byte, 32)},
	})
	require.NoError(t, err)

	return &fixture{env: env, ledger: l, appID: appID, appAddr: appAddr, sampleBlob: blob}
}

// register submits the collateral payment leg plus the register call as
// one group and returns the new intent id.
func (f *fixture) register(t *testing.T, sender codec.Address, collateral uint64, keeperOverride codec.Address) uint64 {
	t.Helper()
	hash := codec.PlanHash(f.sampleBlob)
	result, err := f.env.Submit([]chain.Txn{
		chain.Payment{Sender: sender, Receiver: f.appAddr, Amount: collateral},
		chain.AppCall{Sender: sender, AppID: f.appID, Args: [][]byte{
			chain.MethodSelector(SigRegisterIntent),
			hash.Bytes(),
			f.sampleBlob,
			nil,
			chain.Itob(collateral),
			keeperOverride.Bytes(),
			chain.Itob(1),
			chain.Itob(0),
			chain.Itob(0),
		}},
	})
	require.NoError(t, err)
	ret, err := chain.AppReturn(result.Logs[1])
	require.NoError(t, err)
	id, err := argUint64(ret)
	require.NoError(t, err)
	return id
}

func (f *fixture) updateStatus(sender codec.Address, intentID uint64, status codec.Status) error {
	_, err := f.env.Submit([]chain.Txn{
		chain.AppCall{Sender: sender, AppID: f.appID, Args: [][]byte{
			chain.MethodSelector(SigUpdateIntentStatus),
			chain.Itob(intentID),
			chain.Itob(uint64(status)),
			[]byte("test"),
		}},
	})
	return err
}

func TestRegisterIntent(t *testing.T) {
	f := setup(t)

	id := f.register(t, owner, 1_500_000, keeper)
	assert.Equal(t, uint64(1), id)

	record, err := f.ledger.ExportIntent(id)
	require.NoError(t, err)
	assert.Equal(t, owner, record.Owner)
	assert.Equal(t, keeper, record.Keeper)
	assert.Equal(t, uint64(1_500_000), record.Collateral)
	assert.Equal(t, codec.StatusActive, record.Status)
	assert.Equal(t, codec.PlanHash(f.sampleBlob), record.WorkflowHash)
	assert.Equal(t, uint64(1_500_000), f.env.Balance(f.appAddr, chain.NativeAssetID))

	// Sequential ids
	assert.Equal(t, uint64(2), f.register(t, owner, 1_500_000, keeper))

	// Created events retained
	var created int
	for _, payload := range f.env.Events() {
		if chain.HasTopic(payload, chain.TopicIntentCreated) {
			created++
		}
	}
	assert.Equal(t, 2, created)
}

func TestRegisterIntentDefaultsToConfiguredKeeper(t *testing.T) {
	f := setup(t)

	_, err := f.env.Submit([]chain.Txn{
		chain.AppCall{Sender: owner, AppID: f.appID, Args: [][]byte{
			chain.MethodSelector(SigConfigure),
			keeper.Bytes(),
			chain.Itob(0),
			chain.Itob(250),
			chain.Itob(0),
		}},
	})
	require.NoError(t, err)

	id := f.register(t, owner, 1_000_000, codec.ZeroAddress)
	record, err := f.ledger.ExportIntent(id)
	require.NoError(t, err)
	assert.Equal(t, keeper, record.Keeper)
}

func TestRegisterIntentPaymentLeg(t *testing.T) {
	f := setup(t)
	hash := codec.PlanHash(f.sampleBlob)
	registerArgs := func(collateral uint64) [][]byte {
		return [][]byte{
			chain.MethodSelector(SigRegisterIntent),
			hash.Bytes(),
			f.sampleBlob,
			nil,
			chain.Itob(collateral),
			keeper.Bytes(),
			chain.Itob(1),
			chain.Itob(0),
			chain.Itob(0),
		}
	}

	tests := []struct {
		name  string
		group []chain.Txn
	}{
		{
			name: "no payment leg",
			group: []chain.Txn{
				chain.AppCall{Sender: owner, AppID: f.appID, Args: registerArgs(1_000_000)},
			},
		},
		{
			name: "payment amount mismatch",
			group: []chain.Txn{
				chain.Payment{Sender: owner, Receiver: f.appAddr, Amount: 999_999},
				chain.AppCall{Sender: owner, AppID: f.appID, Args: registerArgs(1_000_000)},
			},
		},
		{
			name: "payment to wrong receiver",
			group: []chain.Txn{
				chain.Payment{Sender: owner, Receiver: stranger, Amount: 1_000_000},
				chain.AppCall{Sender: owner, AppID: f.appID, Args: registerArgs(1_000_000)},
			},
		},
		{
			name: "payment from different sender",
			group: []chain.Txn{
				chain.Payment{Sender: keeper, Receiver: f.appAddr, Amount: 1_000_000},
				chain.AppCall{Sender: owner, AppID: f.appID, Args: registerArgs(1_000_000)},
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.env.Submit(tc.group)
			assert.Error(t, err)
		})
	}

	// Failed registrations must not leak collateral or ids.
	assert.Equal(t, uint64(0), f.env.Balance(f.appAddr, chain.NativeAssetID))
	assert.Equal(t, uint64(1), f.register(t, owner, 1_000_000, keeper))
}

func TestRegisterIntentRejectsOversizedBlob(t *testing.T) {
	f := setup(t)
	f.sampleBlob = make([]byte, codec.MaxWorkflowBytes+1)
	_, err := f.env.Submit([]chain.Txn{
		chain.Payment{Sender: owner, Receiver: f.appAddr, Amount: 1_000_000},
		chain.AppCall{Sender: owner, AppID: f.appID, Args: [][]byte{
			chain.MethodSelector(SigRegisterIntent),
			make([]byte, 32),
			f.sampleBlob,
			nil,
			chain.Itob(1_000_000),
			keeper.Bytes(),
			chain.Itob(1),
			chain.Itob(0),
			chain.Itob(0),
		}},
	})
	assert.ErrorIs(t, err, ErrBlobTooLarge)
}

func TestRegisterIntentEnforcesMinCollateral(t *testing.T) {
	f := setup(t)
	_, err := f.env.Submit([]chain.Txn{
		chain.AppCall{Sender: owner, AppID: f.appID, Args: [][]byte{
			chain.MethodSelector(SigConfigure),
			keeper.Bytes(),
			chain.Itob(2_000_000),
			chain.Itob(0),
			chain.Itob(0),
		}},
	})
	require.NoError(t, err)

	_, err = f.env.Submit([]chain.Txn{
		chain.Payment{Sender: owner, Receiver: f.appAddr, Amount: 1_000_000},
		chain.AppCall{Sender: owner, AppID: f.appID, Args: [][]byte{
			chain.MethodSelector(SigRegisterIntent),
			make([]byte, 32),
			f.sampleBlob,
			nil,
			chain.Itob(1_000_000),
			keeper.Bytes(),
			chain.Itob(1),
			chain.Itob(0),
			chain.Itob(0),
		}},
	})
	assert.ErrorIs(t, err, ErrCollateralTooLow)
}

func TestConfigureRejectsNonOwnerAndBadFee(t *testing.T) {
	f := setup(t)

	configure := func(sender codec.Address, feeBPS uint64) error {
		_, err := f.env.Submit([]chain.Txn{
			chain.AppCall{Sender: sender, AppID: f.appID, Args: [][]byte{
				chain.MethodSelector(SigConfigure),
				keeper.Bytes(),
				chain.Itob(0),
				chain.Itob(feeBPS),
				chain.Itob(0),
			}},
		})
		return err
	}

	assert.Error(t, configure(stranger, 100))
	assert.Error(t, configure(owner, codec.MaxKeeperFeeBPS+1))
	assert.NoError(t, configure(owner, codec.MaxKeeperFeeBPS))
}

func TestStatusTransitionClosure(t *testing.T) {
	statuses := []codec.Status{
		codec.StatusActive, codec.StatusExecuting, codec.StatusSuccess,
		codec.StatusFailed, codec.StatusCancelled,
	}
	allowed := map[codec.Status][]codec.Status{
		codec.StatusActive:    {codec.StatusExecuting, codec.StatusCancelled},
		codec.StatusExecuting: {codec.StatusSuccess, codec.StatusFailed},
	}

	for _, current := range statuses {
		for _, next := range statuses {
			want := current == next
			for _, n := range allowed[current] {
				if n == next {
					want = true
				}
			}
			assert.Equal(t, want, ValidTransition(current, next),
				"%s -> %s", current, next)
		}
	}
}

// TestUpdateStatusClosure drives every (current, next) pair through the
// full app surface, recreating a fresh intent in the needed state each
// time.
func TestUpdateStatusClosure(t *testing.T) {
	statuses := []codec.Status{
		codec.StatusActive, codec.StatusExecuting, codec.StatusSuccess,
		codec.StatusFailed, codec.StatusCancelled,
	}

	// Paths from ACTIVE into each state.
	paths := map[codec.Status][]codec.Status{
		codec.StatusActive:    {},
		codec.StatusExecuting: {codec.StatusExecuting},
		codec.StatusSuccess:   {codec.StatusExecuting, codec.StatusSuccess},
		codec.StatusFailed:    {codec.StatusExecuting, codec.StatusFailed},
		codec.StatusCancelled: {codec.StatusCancelled},
	}

	for _, current := range statuses {
		for _, next := range statuses {
			f := setup(t)
			id := f.register(t, owner, 1_000_000, keeper)
			for _, step := range paths[current] {
				require.NoError(t, f.updateStatus(owner, id, step))
			}

			err := f.updateStatus(owner, id, next)
			if ValidTransition(current, next) {
				assert.NoError(t, err, "%s -> %s", current, next)
			} else {
				assert.ErrorIs(t, err, ErrBadTransition, "%s -> %s", current, next)
			}
		}
	}
}

func TestUpdateStatusAuthorization(t *testing.T) {
	f := setup(t)
	id := f.register(t, owner, 1_000_000, keeper)

	// A stranger is neither owner, keeper, nor executor and cannot drive
	// the lifecycle.
	err := f.updateStatus(stranger, id, codec.StatusCancelled)
	assert.Error(t, err)

	record, err := f.ledger.ExportIntent(id)
	require.NoError(t, err)
	assert.Equal(t, codec.StatusActive, record.Status)

	// Keeper may drive the lifecycle.
	assert.NoError(t, f.updateStatus(keeper, id, codec.StatusExecuting))
}

func TestUpdateStatusExecutorResolution(t *testing.T) {
	f := setup(t)

	// Register an executor app and configure its id.
	executorID, executorAddr := f.env.CreateApp(forwardApp{target: f.appID})
	_, err := f.env.Submit([]chain.Txn{
		chain.AppCall{Sender: owner, AppID: f.appID, Args: [][]byte{
			chain.MethodSelector(SigConfigure),
			keeper.Bytes(),
			chain.Itob(0),
			chain.Itob(0),
			chain.Itob(executorID),
		}},
	})
	require.NoError(t, err)

	id := f.register(t, owner, 1_000_000, keeper)

	// A call whose sender is the executor's app address is authorized.
	_, err = f.env.Submit([]chain.Txn{
		chain.AppCall{Sender: executorAddr, AppID: f.appID, Args: [][]byte{
			chain.MethodSelector(SigUpdateIntentStatus),
			chain.Itob(id),
			chain.Itob(uint64(codec.StatusExecuting)),
			nil,
		}},
	})
	assert.NoError(t, err)
}

// forwardApp is a placeholder executor app for address resolution tests.
type forwardApp struct{ target uint64 }

func (forwardApp) Call(*chain.Call) error { return nil }

func TestWithdrawIntent(t *testing.T) {
	f := setup(t)
	id := f.register(t, owner, 1_500_000, keeper)

	withdraw := func(sender, recipient codec.Address) error {
		_, err := f.env.Submit([]chain.Txn{
			chain.AppCall{Sender: sender, AppID: f.appID, Args: [][]byte{
				chain.MethodSelector(SigWithdrawIntent),
				chain.Itob(id),
				recipient.Bytes(),
			}},
		})
		return err
	}

	// Withdrawing before the intent reaches a terminal status aborts.
	assert.Error(t, withdraw(owner, codec.ZeroAddress))

	require.NoError(t, f.updateStatus(owner, id, codec.StatusExecuting))
	require.NoError(t, f.updateStatus(owner, id, codec.StatusSuccess))

	// Non-owner cannot withdraw.
	assert.Error(t, withdraw(keeper, codec.ZeroAddress))

	ownerBefore := f.env.Balance(owner, chain.NativeAssetID)
	require.NoError(t, withdraw(owner, codec.ZeroAddress))
	assert.Equal(t, ownerBefore+1_500_000, f.env.Balance(owner, chain.NativeAssetID))

	record, err := f.ledger.ExportIntent(id)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), record.Collateral)
	assert.Equal(t, codec.StatusSuccess, record.Status)

	// Double withdrawal aborts.
	assert.ErrorIs(t, withdraw(owner, codec.ZeroAddress), ErrNothingToWithdraw)
}

func TestWithdrawIntentToExplicitRecipient(t *testing.T) {
	f := setup(t)
	id := f.register(t, owner, 1_000_000, keeper)
	require.NoError(t, f.updateStatus(owner, id, codec.StatusCancelled))

	strangerBefore := f.env.Balance(stranger, chain.NativeAssetID)
	_, err := f.env.Submit([]chain.Txn{
		chain.AppCall{Sender: owner, AppID: f.appID, Args: [][]byte{
			chain.MethodSelector(SigWithdrawIntent),
			chain.Itob(id),
			stranger.Bytes(),
		}},
	})
	require.NoError(t, err)
	assert.Equal(t, strangerBefore+1_000_000, f.env.Balance(stranger, chain.NativeAssetID))
}

func TestReadIntentRawRoundTrips(t *testing.T) {
	f := setup(t)
	id := f.register(t, owner, 1_000_000, keeper)

	raw, err := f.ledger.ReadIntentRaw(id)
	require.NoError(t, err)
	decoded, err := codec.DecodeRecord(raw)
	require.NoError(t, err)
	assert.Equal(t, owner, decoded.Owner)

	_, err = f.ledger.ReadIntentRaw(999)
	assert.ErrorIs(t, err, ErrIntentNotFound)

	_, err = f.ledger.ExportIntent(999)
	assert.ErrorIs(t, err, ErrIntentNotFound)
}
