package channel

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
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDHexRoundTrip(t *testing.T) {
	var id ID
	id[0] = 0xde
	id[31] = 0xef
	parsed, err := IDFromHex(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	bare := id.String()[2:]
	parsed, err = IDFromHex(bare)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestIDFromHexRejectsWrongLength(t *testing.T) {
	_, err := IDFromHex("0xabcd")
	assert.Error(t, err)
}

func TestPaymentChannelEncodeDecodeRoundTrip(t *testing.T) {
	rec := &PaymentChannel{
		ChannelID:       ID{1, 2, 3},
		Sender:          common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Receiver:        common.HexToAddress("0x2222222222222222222222222222222222222222"),
		Value:           big.NewInt(1000),
		Spent:           big.NewInt(250),
		State:           SETTLING,
		ContractAddress: common.HexToAddress("0x3333333333333333333333333333333333333333"),
		TokenContract:   common.Address{},
		SettlingPeriod:  2880,
		SettlingUntil:   123456,
	}
	data, err := rec.Encode()
	require.NoError(t, err)

	var decoded PaymentChannel
	require.NoError(t, decoded.Decode(data))
	assert.Equal(t, rec.ChannelID, decoded.ChannelID)
	assert.Equal(t, rec.Sender, decoded.Sender)
	assert.Equal(t, rec.Receiver, decoded.Receiver)
	assert.Equal(t, 0, rec.Value.Cmp(decoded.Value))
	assert.Equal(t, 0, rec.Spent.Cmp(decoded.Spent))
	assert.Equal(t, rec.State, decoded.State)
	assert.Equal(t, rec.SettlingPeriod, decoded.SettlingPeriod)
	assert.Equal(t, rec.SettlingUntil, decoded.SettlingUntil)
}

func TestRemainingAndPredicates(t *testing.T) {
	rec := &PaymentChannel{Value: big.NewInt(100), Spent: big.NewInt(40), State: OPEN}
	assert.Equal(t, 0, rec.Remaining().Cmp(big.NewInt(60)))
	assert.True(t, rec.IsOpen())
	assert.False(t, rec.IsSettling())
	assert.False(t, rec.IsAbsent())
	assert.False(t, rec.IsToken())

	rec.TokenContract = common.HexToAddress("0x4444444444444444444444444444444444444444")
	assert.True(t, rec.IsToken())
}

func TestReconcileAbsentDropsState(t *testing.T) {
	row := &PaymentChannel{State: OPEN, Value: big.NewInt(10), Spent: big.NewInt(5)}
	out := Reconcile(row, ChainState{Present: false})
	assert.Equal(t, ABSENT, out.State)
	// Reconcile must not mutate the input row.
	assert.Equal(t, OPEN, row.State)
}

func TestReconcilePresentAdoptsChainValueAndClock(t *testing.T) {
	row := &PaymentChannel{State: OPEN, Value: big.NewInt(10), Spent: big.NewInt(5)}
	out := Reconcile(row, ChainState{
		Present:        true,
		State:          SETTLING,
		Value:          big.NewInt(10),
		SettlingUntil:  999,
		SettlingPeriod: 100,
	})
	assert.Equal(t, SETTLING, out.State)
	assert.Equal(t, uint64(999), out.SettlingUntil)
	assert.Equal(t, uint64(100), out.SettlingPeriod)
	// Spent is an off-chain fact, untouched by reconciliation.
	assert.Equal(t, 0, out.Spent.Cmp(big.NewInt(5)))
}

func TestPaymentJSONRoundTrip(t *testing.T) {
	p := &Payment{
		ChannelID:       ID{9, 9},
		Sender:          common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Receiver:        common.HexToAddress("0x2222222222222222222222222222222222222222"),
		ContractAddress: common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Value:           big.NewInt(1000),
		Price:           big.NewInt(10),
		ChannelValue:    big.NewInt(1000),
		Cumulative:      big.NewInt(40),
		Signature:       []byte{1, 2, 3},
		Meta:            "order-1",
	}
	data, err := p.MarshalJSON()
	require.NoError(t, err)

	var decoded Payment
	require.NoError(t, decoded.UnmarshalJSON(data))
	assert.Equal(t, p.ChannelID, decoded.ChannelID)
	assert.Equal(t, p.Sender, decoded.Sender)
	assert.Equal(t, 0, p.Cumulative.Cmp(decoded.Cumulative))
	assert.Equal(t, p.Meta, decoded.Meta)
	assert.Equal(t, p.Signature, decoded.Signature)
}
