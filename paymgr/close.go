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

	"github.com/ethereum/go-ethereum/common"

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/contract"
	"github.com/wcgcyx/paychan/perr"
)

// CloseChannel reconciles on-chain state and then closes channelID the
// way caller (identified by its role relative to the channel) is
// entitled to: a receiver claims with the highest-seen promise; a
// sender starts the settling clock, or finalizes settle once it has
// elapsed (spec §4.6).
func (m *Manager) CloseChannel(ctx context.Context, channelID channel.ID, caller common.Address) (contract.TxResult, error) {
	release, err := m.chLocks.Lock(ctx, channelID.String())
	if err != nil {
		return contract.TxResult{}, perr.Wrap(perr.ChainError, err, "acquire channel lock")
	}
	defer release()

	rec, err := m.channels.FirstByID(ctx, channelID)
	if err != nil {
		return contract.TxResult{}, err
	}

	switch {
	case caller == rec.Receiver:
		return m.claimAsReceiver(ctx, rec)
	case caller == rec.Sender && rec.IsOpen():
		return m.startSettlingAsSender(ctx, rec)
	case caller == rec.Sender && rec.IsSettling():
		return m.settleAsSender(ctx, rec)
	default:
		return contract.TxResult{}, perr.New(perr.InvalidState, "caller %s may not close channel %s in state %s", caller.Hex(), channelID, rec.State)
	}
}

// claimAsReceiver claims with the sender's own stored signature, not a
// fresh one: the on-chain claim verifies the signature recovers to the
// channel's sender, and a receiver-side Manager only ever holds the
// receiver's key, so it cannot sign anything claim would accept.
// AcceptPayment does not store promises itself; whoever accepted them
// (e.g. gateway.PaymentHandler) saved them to the Payments Repository,
// so the highest one is recovered from there instead of re-derived.
func (m *Manager) claimAsReceiver(ctx context.Context, rec *channel.PaymentChannel) (contract.TxResult, error) {
	if rec.Spent.Sign() <= 0 {
		return contract.TxResult{}, perr.New(perr.InvalidState, "no signed promise to claim on channel %s", rec.ChannelID)
	}
	payments, err := m.payments.FindByChannelID(ctx, rec.ChannelID)
	if err != nil {
		return contract.TxResult{}, err
	}
	promise := highestPromise(payments)
	if promise == nil {
		return contract.TxResult{}, perr.New(perr.NotFound, "no stored promise to claim on channel %s", rec.ChannelID)
	}
	result, err := m.adapter.Claim(ctx, rec.ContractAddress, rec.ChannelID, promise.Cumulative, promise.Signature)
	if err != nil {
		return contract.TxResult{}, perr.Wrap(perr.ChainError, err, "claim channel %s", rec.ChannelID)
	}
	if err := m.channels.UpdateState(ctx, rec.ChannelID, channel.ABSENT, 0); err != nil {
		return result, perr.Wrap(perr.StorageError, err, "mark channel %s absent", rec.ChannelID)
	}
	log.Infof("claimed channel %s for cumulative %s", rec.ChannelID, promise.Cumulative)
	return result, nil
}

// highestPromise returns the payment with the greatest cumulative
// value, the one a receiver should present to claim.
func highestPromise(payments []*channel.Payment) *channel.Payment {
	var best *channel.Payment
	for _, p := range payments {
		if best == nil || p.Cumulative.Cmp(best.Cumulative) > 0 {
			best = p
		}
	}
	return best
}

func (m *Manager) startSettlingAsSender(ctx context.Context, rec *channel.PaymentChannel) (contract.TxResult, error) {
	result, err := m.adapter.StartSettling(ctx, rec.ContractAddress, rec.ChannelID)
	if err != nil {
		// Chain errors during startSettling leave state OPEN; caller may retry (spec §7).
		return contract.TxResult{}, perr.Wrap(perr.ChainError, err, "start settling channel %s", rec.ChannelID)
	}
	info, err := m.adapter.ChannelByID(ctx, rec.ContractAddress, rec.ChannelID)
	if err != nil {
		return result, err
	}
	if err := m.channels.UpdateState(ctx, rec.ChannelID, channel.SETTLING, info.SettlingUntil); err != nil {
		return result, perr.Wrap(perr.StorageError, err, "mark channel %s settling", rec.ChannelID)
	}
	log.Infof("started settling channel %s, settlingUntil %d", rec.ChannelID, info.SettlingUntil)
	return result, nil
}

func (m *Manager) settleAsSender(ctx context.Context, rec *channel.PaymentChannel) (contract.TxResult, error) {
	current, err := m.adapter.CurrentBlock(ctx)
	if err != nil {
		return contract.TxResult{}, err
	}
	if current < rec.SettlingUntil {
		return contract.TxResult{}, perr.New(perr.InvalidState, "channel %s settling period has not elapsed yet", rec.ChannelID)
	}
	result, err := m.adapter.Settle(ctx, rec.ContractAddress, rec.ChannelID)
	if err != nil {
		return contract.TxResult{}, perr.Wrap(perr.ChainError, err, "settle channel %s", rec.ChannelID)
	}
	if err := m.channels.UpdateState(ctx, rec.ChannelID, channel.ABSENT, rec.SettlingUntil); err != nil {
		return result, perr.Wrap(perr.StorageError, err, "mark channel %s absent", rec.ChannelID)
	}
	log.Infof("settled channel %s", rec.ChannelID)
	return result, nil
}
