package contract

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

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/digest"
	"github.com/wcgcyx/paychan/wallet"
)

func testChannelID() channel.ID {
	var id channel.ID
	id[0] = 0x42
	return id
}

func TestMockAdapterOpenThenDoubleOpenConflicts(t *testing.T) {
	a := NewMockAdapter()
	ctx := context.Background()
	id := testChannelID()
	contractAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	receiver := common.HexToAddress("0x3333333333333333333333333333333333333333")

	_, err := a.Open(ctx, contractAddr, sender, id, receiver, 10, big.NewInt(100), ContractKind{})
	require.NoError(t, err)

	_, err = a.Open(ctx, contractAddr, sender, id, receiver, 10, big.NewInt(100), ContractKind{})
	assert.Error(t, err)
}

func TestMockAdapterDepositIncreasesValue(t *testing.T) {
	a := NewMockAdapter()
	ctx := context.Background()
	id := testChannelID()
	contractAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	receiver := common.HexToAddress("0x3333333333333333333333333333333333333333")

	_, err := a.Open(ctx, contractAddr, sender, id, receiver, 10, big.NewInt(100), ContractKind{})
	require.NoError(t, err)
	_, err = a.Deposit(ctx, contractAddr, id, big.NewInt(50))
	require.NoError(t, err)

	info, err := a.ChannelByID(ctx, contractAddr, id)
	require.NoError(t, err)
	assert.Equal(t, 0, info.Value.Cmp(big.NewInt(150)))
}

func TestMockAdapterClaimRequiresValidSignature(t *testing.T) {
	a := NewMockAdapter()
	ctx := context.Background()
	id := testChannelID()
	contractAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender, err := wallet.Generate()
	require.NoError(t, err)
	receiver := common.HexToAddress("0x3333333333333333333333333333333333333333")

	_, err = a.Open(ctx, contractAddr, sender.Address(), id, receiver, 10, big.NewInt(100), ContractKind{})
	require.NoError(t, err)

	other, err := wallet.Generate()
	require.NoError(t, err)
	badSig, err := digest.Sign(contractAddr, id, big.NewInt(40), common.Address{}, other.Sign)
	require.NoError(t, err)
	_, err = a.Claim(ctx, contractAddr, id, big.NewInt(40), badSig)
	assert.Error(t, err)

	goodSig, err := digest.Sign(contractAddr, id, big.NewInt(40), common.Address{}, sender.Sign)
	require.NoError(t, err)
	_, err = a.Claim(ctx, contractAddr, id, big.NewInt(40), goodSig)
	require.NoError(t, err)

	state, err := a.GetState(ctx, contractAddr, id)
	require.NoError(t, err)
	assert.Equal(t, channel.ABSENT, state)
}

func TestMockAdapterSettlingTimeline(t *testing.T) {
	a := NewMockAdapter()
	ctx := context.Background()
	id := testChannelID()
	contractAddr := common.HexToAddress("0x1111111111111111111111111111111111111111")
	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	receiver := common.HexToAddress("0x3333333333333333333333333333333333333333")

	_, err := a.Open(ctx, contractAddr, sender, id, receiver, 5, big.NewInt(100), ContractKind{})
	require.NoError(t, err)

	_, err = a.StartSettling(ctx, contractAddr, id)
	require.NoError(t, err)

	state, err := a.GetState(ctx, contractAddr, id)
	require.NoError(t, err)
	assert.Equal(t, channel.SETTLING, state)

	_, err = a.Settle(ctx, contractAddr, id)
	assert.Error(t, err, "settle before settlingUntil must fail")

	a.AdvanceBlocks(5)
	_, err = a.Settle(ctx, contractAddr, id)
	require.NoError(t, err)

	state, err = a.GetState(ctx, contractAddr, id)
	require.NoError(t, err)
	assert.Equal(t, channel.ABSENT, state)
}

func TestMockAdapterStateAbsentForUnknownChannel(t *testing.T) {
	a := NewMockAdapter()
	ctx := context.Background()
	state, err := a.GetState(ctx, common.Address{}, testChannelID())
	require.NoError(t, err)
	assert.Equal(t, channel.ABSENT, state)
}
