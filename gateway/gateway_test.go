package gateway

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
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wcgcyx/paychan/client"
	"github.com/wcgcyx/paychan/contract"
	"github.com/wcgcyx/paychan/paychstore"
	"github.com/wcgcyx/paychan/paymentstore"
	"github.com/wcgcyx/paychan/paymgr"
	"github.com/wcgcyx/paychan/wallet"
)

func newTestGateway(t *testing.T) (*Gateway, *paymgr.Manager, *wallet.Signer, *wallet.Signer) {
	adapter := contract.NewMockAdapter()
	sender, err := wallet.Generate()
	require.NoError(t, err)
	receiver, err := wallet.Generate()
	require.NoError(t, err)

	senderRepo := paychstore.NewMemRepository(adapter)
	senderPayments := paymentstore.NewMemRepository()
	senderMgr := paymgr.New(senderRepo, senderPayments, adapter, sender, paymgr.Opts{
		MinimumChannelAmount: big.NewInt(1),
		SettlementPeriod:     10,
	})

	receiverRepo := paychstore.NewMemRepository(adapter)
	receiverPayments := paymentstore.NewMemRepository()
	receiverMgr := paymgr.New(receiverRepo, receiverPayments, adapter, receiver, paymgr.Opts{
		MinimumChannelAmount: big.NewInt(1),
		SettlementPeriod:     10,
	})

	gw := New(receiverMgr, receiverPayments, Opts{
		Receiver:        receiver.Address(),
		ContractAddress: contractAddress(),
		SelfURL:         "http://gateway.test/pay",
	}, func(r *http.Request) (*big.Int, string, error) {
		return big.NewInt(100), "", nil
	})
	return gw, senderMgr, sender, receiver
}

func contractAddress() common.Address {
	return common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
}

func TestMiddlewareChallengesUnpaidRequest(t *testing.T) {
	gw, _, _, _ := newTestGateway(t)
	called := false
	handler := gw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, called)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)

	var challenge challengeBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &challenge))
	assert.Equal(t, "100", challenge.Price)
}

func TestPaymentHandlerAndMiddlewareHappyPath(t *testing.T) {
	gw, senderMgr, sender, receiver := newTestGateway(t)

	c := client.New(senderMgr, nil)
	payment, err := c.Buy(context.Background(), receiver.Address(), contractAddress(), contract.ContractKind{}, big.NewInt(100), "")
	require.NoError(t, err)
	_ = sender

	body, err := json.Marshal(payment)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/pay", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	gw.PaymentHandler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var tr struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
	assert.NotEmpty(t, tr.Token)

	called := false
	handler := gw.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	req2 := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req2.Header.Set("Authorization", "Bearer "+tr.Token)
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec2.Code)
}
