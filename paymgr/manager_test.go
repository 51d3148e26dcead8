package paymgr

/*
 * Dual-licensed under Apache-2.0 and MIT.
 *
 * You can get a copy of the Apache License at
 *
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * You can also get a copy of the MIT License at
 *
 * http://opensource.org/licenses/MIT
 */

import (
	"context"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/contract"
	"github.com/wcgcyx/paychan/digest"
	"github.com/wcgcyx/paychan/paychstore"
	"github.com/wcgcyx/paychan/paymentstore"
	"github.com/wcgcyx/paychan/perr"
	"github.com/wcgcyx/paychan/wallet"
)

const testContractAddr = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

func newTestManager(t *testing.T) (*Manager, *wallet.Signer, *wallet.Signer, *contract.MockAdapter) {
	adapter := contract.NewMockAdapter()
	sender, err := wallet.Generate()
	require.NoError(t, err)
	receiver, err := wallet.Generate()
	require.NoError(t, err)
	repo := paychstore.NewMemRepository(adapter)
	payments := paymentstore.NewMemRepository()
	mgr := New(repo, payments, adapter, sender, Opts{
		MinimumChannelAmount: big.NewInt(1),
		SettlementPeriod:     10,
	})
	return mgr, sender, receiver, adapter
}

func TestRequireOpenChannelOpensFresh(t *testing.T) {
	mgr, sender, receiver, _ := newTestManager(t)
	contractAddr := contractAddress()

	rec, err := mgr.RequireOpenChannel(context.Background(), sender.Address(), receiver.Address(), contractAddr, contract.ContractKind{}, big.NewInt(100))
	require.NoError(t, err)
	assert.True(t, rec.IsOpen())
	assert.Equal(t, 0, rec.Spent.Cmp(big.NewInt(0)))
	assert.Equal(t, 0, rec.Value.Cmp(big.NewInt(1000))) // price 100 * default multiplier 10
}

func TestRequireOpenChannelSingleOpenUnderConcurrency(t *testing.T) {
	mgr, sender, receiver, _ := newTestManager(t)
	contractAddr := contractAddress()

	const n = 20
	results := make([]*channel.PaymentChannel, n)
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		idx := i
		go func() {
			defer wg.Done()
			rec, err := mgr.RequireOpenChannel(context.Background(), sender.Address(), receiver.Address(), contractAddr, contract.ContractKind{}, big.NewInt(10))
			results[idx] = rec
			errs[idx] = err
		}()
	}
	wg.Wait()

	var firstID channel.ID
	for i, err := range errs {
		require.NoError(t, err)
		if i == 0 {
			firstID = results[i].ChannelID
		} else {
			assert.Equal(t, firstID, results[i].ChannelID)
		}
	}
}

func TestNextPaymentMonotonic(t *testing.T) {
	mgr, sender, receiver, _ := newTestManager(t)
	contractAddr := contractAddress()
	rec, err := mgr.RequireOpenChannel(context.Background(), sender.Address(), receiver.Address(), contractAddr, contract.ContractKind{}, big.NewInt(100))
	require.NoError(t, err)

	var last *big.Int
	for i := 0; i < 3; i++ {
		p, err := mgr.NextPayment(context.Background(), rec.ChannelID, big.NewInt(100), "")
		require.NoError(t, err)
		if last != nil {
			assert.Equal(t, 1, p.Cumulative.Cmp(last))
		}
		assert.True(t, p.Cumulative.Cmp(rec.Value) <= 0)
		last = p.Cumulative
	}
}

func TestNextPaymentInsufficientCapacity(t *testing.T) {
	mgr, sender, receiver, _ := newTestManager(t)
	contractAddr := contractAddress()
	rec, err := mgr.RequireOpenChannel(context.Background(), sender.Address(), receiver.Address(), contractAddr, contract.ContractKind{}, big.NewInt(10))
	require.NoError(t, err)

	_, err = mgr.NextPayment(context.Background(), rec.ChannelID, new(big.Int).Add(rec.Value, big.NewInt(1)), "")
	require.Error(t, err)
	assert.True(t, perr.Is(err, perr.InsufficientCapacity))
}

func TestAcceptPaymentRejectsBadSignature(t *testing.T) {
	mgr, sender, receiver, _ := newTestManager(t)
	contractAddr := contractAddress()
	rec, err := mgr.RequireOpenChannel(context.Background(), sender.Address(), receiver.Address(), contractAddr, contract.ContractKind{}, big.NewInt(100))
	require.NoError(t, err)

	impostor, err := wallet.Generate()
	require.NoError(t, err)
	sig, err := digest.Sign(contractAddr, rec.ChannelID, big.NewInt(50), common.Address{}, impostor.Sign)
	require.NoError(t, err)

	payment := &channel.Payment{
		ChannelID:       rec.ChannelID,
		ContractAddress: contractAddr,
		Cumulative:      big.NewInt(50),
		Price:           big.NewInt(50),
		ChannelValue:    rec.Value,
		Signature:       sig,
	}
	_, err = mgr.AcceptPayment(context.Background(), payment)
	require.Error(t, err)
	assert.True(t, perr.Is(err, perr.InvalidPayment))

	stored, err := mgr.channels.FirstByID(context.Background(), rec.ChannelID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Spent.Cmp(big.NewInt(0)))
}

func TestAcceptPaymentHappyPath(t *testing.T) {
	mgr, sender, receiver, _ := newTestManager(t)
	contractAddr := contractAddress()
	rec, err := mgr.RequireOpenChannel(context.Background(), sender.Address(), receiver.Address(), contractAddr, contract.ContractKind{}, big.NewInt(100))
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		cumulative := big.NewInt(int64(100 * i))
		sig, err := digest.Sign(contractAddr, rec.ChannelID, cumulative, common.Address{}, sender.Sign)
		require.NoError(t, err)
		payment := &channel.Payment{
			ChannelID:       rec.ChannelID,
			ContractAddress: contractAddr,
			Cumulative:      cumulative,
			Price:           big.NewInt(100),
			ChannelValue:    rec.Value,
			Signature:       sig,
		}
		_, err = mgr.AcceptPayment(context.Background(), payment)
		require.NoError(t, err)
	}

	stored, err := mgr.channels.FirstByID(context.Background(), rec.ChannelID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.Spent.Cmp(big.NewInt(300)))
}

func TestCloseChannelStartSettlingThenSettle(t *testing.T) {
	mgr, sender, receiver, adapter := newTestManager(t)
	contractAddr := contractAddress()
	rec, err := mgr.RequireOpenChannel(context.Background(), sender.Address(), receiver.Address(), contractAddr, contract.ContractKind{}, big.NewInt(100))
	require.NoError(t, err)

	_, err = mgr.NextPayment(context.Background(), rec.ChannelID, big.NewInt(400), "")
	require.NoError(t, err)

	_, err = mgr.CloseChannel(context.Background(), rec.ChannelID, sender.Address())
	require.NoError(t, err)
	stored, err := mgr.channels.FirstByID(context.Background(), rec.ChannelID)
	require.NoError(t, err)
	assert.True(t, stored.IsSettling())

	adapter.AdvanceBlocks(10)
	_, err = mgr.CloseChannel(context.Background(), rec.ChannelID, sender.Address())
	require.NoError(t, err)
	stored, err = mgr.channels.FirstByID(context.Background(), rec.ChannelID)
	require.NoError(t, err)
	assert.True(t, stored.IsAbsent())
}

// TestCloseChannelReceiverClaimUsesSendersStoredPromise exercises the
// receiver-side claim with a receiver-keyed Manager distinct from the
// sender's, the way production actually splits these across two
// processes. A receiver-side Manager never holds the sender's private
// key, so claiming must present the sender's own stored signature
// (persisted at accept time, as a gateway does) rather than sign
// anything itself.
func TestCloseChannelReceiverClaimUsesSendersStoredPromise(t *testing.T) {
	adapter := contract.NewMockAdapter()
	sender, err := wallet.Generate()
	require.NoError(t, err)
	receiver, err := wallet.Generate()
	require.NoError(t, err)
	contractAddr := contractAddress()

	senderRepo := paychstore.NewMemRepository(adapter)
	senderPayments := paymentstore.NewMemRepository()
	senderMgr := New(senderRepo, senderPayments, adapter, sender, Opts{
		MinimumChannelAmount: big.NewInt(1),
		SettlementPeriod:     10,
	})

	receiverRepo := paychstore.NewMemRepository(adapter)
	receiverPayments := paymentstore.NewMemRepository()
	receiverMgr := New(receiverRepo, receiverPayments, adapter, receiver, Opts{
		MinimumChannelAmount: big.NewInt(1),
		SettlementPeriod:     10,
	})

	rec, err := senderMgr.RequireOpenChannel(context.Background(), sender.Address(), receiver.Address(), contractAddr, contract.ContractKind{}, big.NewInt(100))
	require.NoError(t, err)

	payment, err := senderMgr.NextPayment(context.Background(), rec.ChannelID, big.NewInt(300), "")
	require.NoError(t, err)

	acceptedRec, err := receiverMgr.AcceptPayment(context.Background(), payment)
	require.NoError(t, err)

	// A gateway persists the accepted payment (with its sender
	// signature intact) once it mints a receipt token; reproduce that
	// here instead of importing package gateway, which imports paymgr.
	payment.Token = "test-token"
	payment.ChannelValue = acceptedRec.Value
	require.NoError(t, receiverPayments.Save(context.Background(), payment))

	_, err = receiverMgr.CloseChannel(context.Background(), rec.ChannelID, receiver.Address())
	require.NoError(t, err)
	stored, err := receiverMgr.channels.FirstByID(context.Background(), rec.ChannelID)
	require.NoError(t, err)
	assert.True(t, stored.IsAbsent())
}

// TestCloseChannelReceiverClaimFailsWithoutStoredPromise guards against
// a regression back to re-signing with the Manager's own key: without
// any persisted promise in the Payments Repository, claim must fail
// rather than succeed with a signature the chain would reject anyway.
func TestCloseChannelReceiverClaimFailsWithoutStoredPromise(t *testing.T) {
	mgr, sender, receiver, _ := newTestManager(t)
	contractAddr := contractAddress()
	rec, err := mgr.RequireOpenChannel(context.Background(), sender.Address(), receiver.Address(), contractAddr, contract.ContractKind{}, big.NewInt(100))
	require.NoError(t, err)

	_, err = mgr.NextPayment(context.Background(), rec.ChannelID, big.NewInt(300), "")
	require.NoError(t, err)

	_, err = mgr.CloseChannel(context.Background(), rec.ChannelID, receiver.Address())
	require.Error(t, err)
	assert.True(t, perr.Is(err, perr.NotFound))
}

func contractAddress() common.Address {
	return common.HexToAddress(testContractAddr)
}
