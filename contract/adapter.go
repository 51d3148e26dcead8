// Package contract is the typed facade over the on-chain payment channel
// contract, in both its native-coin and ERC20 variants.
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

	"github.com/ethereum/go-ethereum/common"

	"github.com/wcgcyx/paychan/channel"
)

// Kind distinguishes the native-coin contract variant from a specific
// ERC20 token contract. It replaces the inheritance hierarchy a
// native-coin/token split would otherwise invite: the adapter switches
// on Kind to pick the ABI and whether the digest includes a token
// address, nothing subclasses anything.
type Kind int

const (
	// Native - channel funded and paid in the chain's native coin.
	Native Kind = iota
	// Token - channel funded and paid in a specific ERC20 token.
	Token
)

// ContractKind pairs a Kind with the token address when Kind is Token.
// TokenAddress is the zero address for Native.
type ContractKind struct {
	Kind         Kind
	TokenAddress common.Address
}

// TxResult is the outcome of a submitted on-chain transaction.
type TxResult struct {
	TxHash      common.Hash
	BlockNumber uint64
	Success     bool
}

// ChannelInfo mirrors the on-chain Channel struct's storage order
// (sender, receiver, value, settlingPeriod, settlingUntil, tokenContract).
type ChannelInfo struct {
	Sender         common.Address
	Receiver       common.Address
	Value          *big.Int
	SettlingPeriod uint64
	SettlingUntil  uint64
	TokenContract  common.Address
	CurrentBlock   uint64
}

// Present reports whether the channel exists on chain (sender != zero).
func (c ChannelInfo) Present() bool {
	return c.Sender != (common.Address{})
}

// State derives the channel's lifecycle state from ChannelInfo, per the
// rule in the external interface: ABSENT when sender is zero, SETTLING
// when settlingUntil is set, OPEN otherwise.
func (c ChannelInfo) State() channel.State {
	if !c.Present() {
		return channel.ABSENT
	}
	if c.SettlingUntil != 0 {
		return channel.SETTLING
	}
	return channel.OPEN
}

// Adapter is the typed facade over the on-chain contract. One Adapter
// instance may serve both contract variants; the concrete contract
// address bound to each call comes from the caller-supplied
// contractAddress / ContractKind, not from adapter construction.
type Adapter interface {
	// Open submits the on-chain transaction opening a new channel.
	// For the Token variant the caller must have already approved the
	// contract to pull `value` via ERC20 transferFrom.
	//
	// @input - context, contract address, sender, channel id, receiver,
	// settling period (blocks), deposit value, contract kind.
	//
	// @output - transaction result, error.
	Open(ctx context.Context, contractAddress common.Address, sender common.Address, channelID channel.ID, receiver common.Address, settlingPeriod uint64, value *big.Int, kind ContractKind) (TxResult, error)

	// Deposit adds to a channel's value. Fails if the channel is
	// SETTLING or ABSENT.
	//
	// @input - context, contract address, channel id, additional value.
	//
	// @output - transaction result, error.
	Deposit(ctx context.Context, contractAddress common.Address, channelID channel.ID, value *big.Int) (TxResult, error)

	// Claim closes a channel immediately, paying min(cumulative, value)
	// to the receiver and refunding the remainder to the sender.
	//
	// @input - context, contract address, channel id, cumulative
	// payment, signature.
	//
	// @output - transaction result, error.
	Claim(ctx context.Context, contractAddress common.Address, channelID channel.ID, cumulative *big.Int, signature []byte) (TxResult, error)

	// StartSettling begins the unilateral close timer. Only the sender
	// may call this, and only while the channel is OPEN.
	//
	// @input - context, contract address, channel id.
	//
	// @output - transaction result, error.
	StartSettling(ctx context.Context, contractAddress common.Address, channelID channel.ID) (TxResult, error)

	// Settle finalizes a sender-initiated close, transferring the full
	// remaining value to the sender. Only valid once the current block
	// is at or past settlingUntil.
	//
	// @input - context, contract address, channel id.
	//
	// @output - transaction result, error.
	Settle(ctx context.Context, contractAddress common.Address, channelID channel.ID) (TxResult, error)

	// GetState derives and returns the channel's lifecycle state.
	//
	// @input - context, contract address, channel id.
	//
	// @output - state, error.
	GetState(ctx context.Context, contractAddress common.Address, channelID channel.ID) (channel.State, error)

	// ChannelByID returns the full on-chain record for a channel.
	//
	// @input - context, contract address, channel id.
	//
	// @output - channel info, error.
	ChannelByID(ctx context.Context, contractAddress common.Address, channelID channel.ID) (ChannelInfo, error)

	// CurrentBlock returns the chain's current block height.
	//
	// @input - context.
	//
	// @output - block height, error.
	CurrentBlock(ctx context.Context) (uint64, error)
}
