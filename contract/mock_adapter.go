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
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/digest"
	"github.com/wcgcyx/paychan/perr"
)

// mockAdapter is an in-memory Adapter for tests and for the memory
// storage engine's standalone demo mode. It holds channel records in a
// map instead of running a JSON-RPC server, since nothing outside this
// process needs to reach it over the wire.
type mockAdapter struct {
	mutex   sync.RWMutex
	height  uint64
	channels map[channel.ID]*mockChannel
}

type mockChannel struct {
	sender, receiver, tokenContract common.Address
	contractAddress                 common.Address
	value                            *big.Int
	settlingPeriod                   uint64
	settlingUntil                    uint64
	present                          bool
}

// NewMockAdapter returns a fresh in-memory Adapter with the chain at
// block 0.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{inner: &mockAdapter{channels: make(map[channel.ID]*mockChannel)}}
}

// MockAdapter exposes a test-only control (AdvanceBlocks) on
// top of the plain Adapter interface, mirroring the teacher's MockFil
// exposing Height/PaychBals directly to test code alongside its
// jsonrpc.Server surface.
type MockAdapter struct {
	inner *mockAdapter
}

// AdvanceBlocks moves the mock chain's height forward, letting tests
// cross a channel's settlingUntil deterministically.
func (m *MockAdapter) AdvanceBlocks(n uint64) {
	m.inner.mutex.Lock()
	defer m.inner.mutex.Unlock()
	m.inner.height += n
}

func (m *MockAdapter) Open(ctx context.Context, contractAddress common.Address, sender common.Address, channelID channel.ID, receiver common.Address, settlingPeriod uint64, value *big.Int, kind ContractKind) (TxResult, error) {
	return m.inner.open(contractAddress, sender, channelID, receiver, settlingPeriod, value, kind)
}
func (m *MockAdapter) Deposit(ctx context.Context, contractAddress common.Address, channelID channel.ID, value *big.Int) (TxResult, error) {
	return m.inner.deposit(channelID, value)
}
func (m *MockAdapter) Claim(ctx context.Context, contractAddress common.Address, channelID channel.ID, cumulative *big.Int, signature []byte) (TxResult, error) {
	return m.inner.claim(contractAddress, channelID, cumulative, signature)
}
func (m *MockAdapter) StartSettling(ctx context.Context, contractAddress common.Address, channelID channel.ID) (TxResult, error) {
	return m.inner.startSettling(channelID)
}
func (m *MockAdapter) Settle(ctx context.Context, contractAddress common.Address, channelID channel.ID) (TxResult, error) {
	return m.inner.settle(channelID)
}
func (m *MockAdapter) ChannelByID(ctx context.Context, contractAddress common.Address, channelID channel.ID) (ChannelInfo, error) {
	return m.inner.channelByID(channelID)
}
func (m *MockAdapter) GetState(ctx context.Context, contractAddress common.Address, channelID channel.ID) (channel.State, error) {
	info, err := m.inner.channelByID(channelID)
	if err != nil {
		return channel.ABSENT, err
	}
	return info.State(), nil
}
func (m *MockAdapter) CurrentBlock(ctx context.Context) (uint64, error) {
	m.inner.mutex.RLock()
	defer m.inner.mutex.RUnlock()
	return m.inner.height, nil
}

func (a *mockAdapter) open(contractAddress, sender common.Address, channelID channel.ID, receiver common.Address, settlingPeriod uint64, value *big.Int, kind ContractKind) (TxResult, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	if existing, ok := a.channels[channelID]; ok && existing.present {
		return TxResult{}, perr.New(perr.Conflict, "channel %s already open on chain", channelID)
	}
	tokenAddr := common.Address{}
	if kind.Kind == Token {
		tokenAddr = kind.TokenAddress
	}
	a.channels[channelID] = &mockChannel{
		sender: sender, receiver: receiver, tokenContract: tokenAddr,
		contractAddress: contractAddress, value: new(big.Int).Set(value),
		settlingPeriod: settlingPeriod, present: true,
	}
	return TxResult{BlockNumber: a.height, Success: true}, nil
}

func (a *mockAdapter) deposit(channelID channel.ID, value *big.Int) (TxResult, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	ch, ok := a.channels[channelID]
	if !ok || !ch.present {
		return TxResult{}, perr.New(perr.NotFound, "channel %s not found", channelID)
	}
	if ch.settlingUntil != 0 {
		return TxResult{}, perr.New(perr.InvalidState, "channel %s is settling", channelID)
	}
	ch.value = new(big.Int).Add(ch.value, value)
	return TxResult{BlockNumber: a.height, Success: true}, nil
}

func (a *mockAdapter) claim(contractAddress common.Address, channelID channel.ID, cumulative *big.Int, signature []byte) (TxResult, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	ch, ok := a.channels[channelID]
	if !ok || !ch.present {
		return TxResult{}, perr.New(perr.NotFound, "channel %s not found", channelID)
	}
	signer, err := digest.Recover(contractAddress, channelID, cumulative, ch.tokenContract, signature)
	if err != nil {
		return TxResult{}, perr.Wrap(perr.InvalidPayment, err, "recover claim signer")
	}
	if signer != ch.sender {
		return TxResult{}, perr.New(perr.InvalidPayment, "claim signature does not recover to sender")
	}
	// Paying out is simulated by deleting the record; the mock keeps no
	// balances, so the amounts a real claim would transfer are not
	// observable through this adapter.
	ch.present = false
	return TxResult{BlockNumber: a.height, Success: true}, nil
}

func (a *mockAdapter) startSettling(channelID channel.ID) (TxResult, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	ch, ok := a.channels[channelID]
	if !ok || !ch.present {
		return TxResult{}, perr.New(perr.NotFound, "channel %s not found", channelID)
	}
	if ch.settlingUntil != 0 {
		return TxResult{}, perr.New(perr.InvalidState, "channel %s already settling", channelID)
	}
	ch.settlingUntil = a.height + ch.settlingPeriod
	return TxResult{BlockNumber: a.height, Success: true}, nil
}

func (a *mockAdapter) settle(channelID channel.ID) (TxResult, error) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	ch, ok := a.channels[channelID]
	if !ok || !ch.present {
		return TxResult{}, perr.New(perr.NotFound, "channel %s not found", channelID)
	}
	if ch.settlingUntil == 0 {
		return TxResult{}, perr.New(perr.InvalidState, "channel %s is not settling", channelID)
	}
	if a.height < ch.settlingUntil {
		return TxResult{}, perr.New(perr.InvalidState, "settling period has not elapsed for channel %s", channelID)
	}
	ch.present = false
	return TxResult{BlockNumber: a.height, Success: true}, nil
}

func (a *mockAdapter) channelByID(channelID channel.ID) (ChannelInfo, error) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()
	ch, ok := a.channels[channelID]
	if !ok || !ch.present {
		return ChannelInfo{CurrentBlock: a.height}, nil
	}
	return ChannelInfo{
		Sender: ch.sender, Receiver: ch.receiver, Value: new(big.Int).Set(ch.value),
		SettlingPeriod: ch.settlingPeriod, SettlingUntil: ch.settlingUntil,
		TokenContract: ch.tokenContract, CurrentBlock: a.height,
	}, nil
}
