package client

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
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcgcyx/paychan/contract"
	"github.com/wcgcyx/paychan/paychstore"
	"github.com/wcgcyx/paychan/paymentstore"
	"github.com/wcgcyx/paychan/paymgr"
	"github.com/wcgcyx/paychan/wallet"
)

func testContractAddress() common.Address {
	return common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
}

func newTestClient(t *testing.T) (*Client, *wallet.Signer, *wallet.Signer) {
	adapter := contract.NewMockAdapter()
	sender, err := wallet.Generate()
	require.NoError(t, err)
	receiver, err := wallet.Generate()
	require.NoError(t, err)

	repo := paychstore.NewMemRepository(adapter)
	payments := paymentstore.NewMemRepository()
	mgr := paymgr.New(repo, payments, adapter, sender, paymgr.Opts{
		MinimumChannelAmount: big.NewInt(1),
		SettlementPeriod:     10,
	})
	return New(mgr, nil), sender, receiver
}

func TestBuyOpensChannelAndSignsPromise(t *testing.T) {
	c, sender, receiver := newTestClient(t)
	payment, err := c.Buy(context.Background(), receiver.Address(), testContractAddress(), contract.ContractKind{}, big.NewInt(100), "order-1")
	require.NoError(t, err)
	assert.Equal(t, sender.Address(), c.mgr.Self())
	assert.Equal(t, 0, payment.Cumulative.Cmp(big.NewInt(100)))
	assert.Equal(t, "order-1", payment.Meta)
}

func TestBuyReusesChannelAcrossCalls(t *testing.T) {
	c, _, receiver := newTestClient(t)
	first, err := c.Buy(context.Background(), receiver.Address(), testContractAddress(), contract.ContractKind{}, big.NewInt(100), "")
	require.NoError(t, err)
	second, err := c.Buy(context.Background(), receiver.Address(), testContractAddress(), contract.ContractKind{}, big.NewInt(100), "")
	require.NoError(t, err)
	assert.Equal(t, first.ChannelID, second.ChannelID)
	assert.Equal(t, 1, second.Cumulative.Cmp(first.Cumulative))
}

func TestAcceptPaymentAndVerify(t *testing.T) {
	adapter := contract.NewMockAdapter()
	sender, err := wallet.Generate()
	require.NoError(t, err)
	receiver, err := wallet.Generate()
	require.NoError(t, err)
	opts := paymgr.Opts{MinimumChannelAmount: big.NewInt(1), SettlementPeriod: 10}

	// The buyer and the seller each keep their own channel store and
	// share only the chain, so acceptance sees the promise as new.
	buyer := New(paymgr.New(paychstore.NewMemRepository(adapter), paymentstore.NewMemRepository(), adapter, sender, opts), nil)
	seller := New(paymgr.New(paychstore.NewMemRepository(adapter), paymentstore.NewMemRepository(), adapter, receiver, opts), nil)

	payment, err := buyer.Buy(context.Background(), receiver.Address(), testContractAddress(), contract.ContractKind{}, big.NewInt(100), "")
	require.NoError(t, err)

	_, err = seller.AcceptPayment(context.Background(), payment)
	require.NoError(t, err)

	require.NoError(t, seller.AcceptVerify(context.Background(), payment))
}
