package digest

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
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testContract = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	testToken    = common.Address{}
)

func testChannelID() (id [32]byte) {
	id[31] = 7
	return id
}

func TestDigestDeterministic(t *testing.T) {
	id := testChannelID()
	d1 := Payment(testContract, id, big.NewInt(100), testToken)
	d2 := Payment(testContract, id, big.NewInt(100), testToken)
	assert.Equal(t, d1, d2)
}

func TestDigestChangesWithCumulative(t *testing.T) {
	id := testChannelID()
	d1 := Payment(testContract, id, big.NewInt(100), testToken)
	d2 := Payment(testContract, id, big.NewInt(101), testToken)
	assert.NotEqual(t, d1, d2)
}

func TestSignRecoverRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)

	id := testChannelID()
	cumulative := big.NewInt(555)
	sig, err := Sign(testContract, id, cumulative, testToken, func(d [32]byte) ([]byte, error) {
		return crypto.Sign(d[:], key)
	})
	require.NoError(t, err)
	assert.Len(t, sig, 65)

	recovered, err := Recover(testContract, id, cumulative, testToken, sig)
	require.NoError(t, err)
	assert.Equal(t, addr, recovered)
}

func TestRecoverFailsForWrongChannel(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	idA := testChannelID()
	idB := testChannelID()
	idB[0] = 9

	sig, err := Sign(testContract, idA, big.NewInt(10), testToken, func(d [32]byte) ([]byte, error) {
		return crypto.Sign(d[:], key)
	})
	require.NoError(t, err)

	addr := crypto.PubkeyToAddress(key.PublicKey)
	recovered, err := Recover(testContract, idB, big.NewInt(10), testToken, sig)
	require.NoError(t, err)
	assert.NotEqual(t, addr, recovered)
}

func TestRecoverFailsForWrongContract(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	addr := crypto.PubkeyToAddress(key.PublicKey)
	id := testChannelID()

	sig, err := Sign(testContract, id, big.NewInt(10), testToken, func(d [32]byte) ([]byte, error) {
		return crypto.Sign(d[:], key)
	})
	require.NoError(t, err)

	other := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	recovered, err := Recover(other, id, big.NewInt(10), testToken, sig)
	require.NoError(t, err)
	assert.NotEqual(t, addr, recovered)
}
