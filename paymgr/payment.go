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

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/digest"
	"github.com/wcgcyx/paychan/perr"
)

// NextPayment builds, signs and burns the next signed payment promise
// on channelID, under that channel's lock. The spend write is committed
// before the promise is returned (spec §4.6, §7): if the caller then
// fails to transmit it, the cumulative amount is already consumed
// locally rather than risk a double-spend on retry.
func (m *Manager) NextPayment(ctx context.Context, channelID channel.ID, price *big.Int, meta string) (*channel.Payment, error) {
	release, err := m.chLocks.Lock(ctx, channelID.String())
	if err != nil {
		return nil, perr.Wrap(perr.ChainError, err, "acquire channel lock")
	}
	defer release()

	rec, err := m.channels.FirstByID(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if !rec.IsOpen() {
		return nil, perr.New(perr.InvalidState, "channel %s is not OPEN", channelID)
	}
	if rec.Remaining().Cmp(price) < 0 {
		return nil, perr.New(perr.InsufficientCapacity, "channel %s has %s remaining, price is %s", channelID, rec.Remaining(), price)
	}

	newCumulative := new(big.Int).Add(rec.Spent, price)
	sig, err := digest.Sign(rec.ContractAddress, channelID, newCumulative, rec.TokenContract, m.signer.Sign)
	if err != nil {
		return nil, perr.Wrap(perr.ChainError, err, "sign payment")
	}

	if err := m.channels.Spend(ctx, channelID, newCumulative); err != nil {
		return nil, perr.Wrap(perr.StorageError, err, "persist spend")
	}

	return &channel.Payment{
		ChannelID:       channelID,
		Sender:          rec.Sender,
		Receiver:        rec.Receiver,
		ContractAddress: rec.ContractAddress,
		TokenContract:   rec.TokenContract,
		Value:           rec.Value,
		Price:           price,
		ChannelValue:    rec.Value,
		Cumulative:      newCumulative,
		Signature:       sig,
		Meta:            meta,
	}, nil
}

// AcceptPayment validates and records a received payment promise,
// mirroring a local channel record from chain state on first contact
// (spec §4.6 step "acceptPayment"). Returns the reconciled local record.
func (m *Manager) AcceptPayment(ctx context.Context, payment *channel.Payment) (*channel.PaymentChannel, error) {
	release, err := m.chLocks.Lock(ctx, payment.ChannelID.String())
	if err != nil {
		return nil, perr.Wrap(perr.ChainError, err, "acquire channel lock")
	}
	defer release()

	if payment.Price == nil || payment.Price.Sign() <= 0 {
		return nil, perr.New(perr.InvalidPayment, "price must be positive")
	}
	if payment.ChannelValue != nil && payment.Price.Cmp(payment.ChannelValue) > 0 {
		return nil, perr.New(perr.InvalidPayment, "price exceeds channel value")
	}

	rec, err := m.channels.FirstByID(ctx, payment.ChannelID)
	if perr.Is(err, perr.NotFound) {
		rec, err = m.mirrorFromChain(ctx, payment)
		if err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	if !rec.IsOpen() && !rec.IsSettling() {
		return nil, perr.New(perr.InvalidState, "channel %s is %s, cannot accept payments", payment.ChannelID, rec.State)
	}
	if payment.ContractAddress != rec.ContractAddress || payment.ChannelID != rec.ChannelID {
		return nil, perr.New(perr.InvalidPayment, "channel id or contract address mismatch")
	}

	signer, err := digest.Recover(rec.ContractAddress, rec.ChannelID, payment.Cumulative, rec.TokenContract, payment.Signature)
	if err != nil {
		return nil, perr.Wrap(perr.InvalidPayment, err, "recover payment signer")
	}
	if signer != rec.Sender {
		return nil, perr.New(perr.InvalidPayment, "signature does not recover to channel sender")
	}
	if payment.Cumulative.Cmp(rec.Spent) <= 0 {
		return nil, perr.New(perr.InvalidPayment, "cumulative %s is not greater than stored %s", payment.Cumulative, rec.Spent)
	}
	if payment.Cumulative.Cmp(rec.Value) > 0 {
		return nil, perr.New(perr.InvalidPayment, "cumulative %s exceeds channel value %s", payment.Cumulative, rec.Value)
	}

	if err := m.channels.Spend(ctx, rec.ChannelID, payment.Cumulative); err != nil {
		return nil, perr.Wrap(perr.StorageError, err, "persist accepted spend")
	}
	rec.Spent = payment.Cumulative
	return rec, nil
}

func (m *Manager) mirrorFromChain(ctx context.Context, payment *channel.Payment) (*channel.PaymentChannel, error) {
	info, err := m.adapter.ChannelByID(ctx, payment.ContractAddress, payment.ChannelID)
	if err != nil {
		return nil, err
	}
	if !info.Present() {
		return nil, perr.New(perr.NotFound, "channel %s not found locally or on chain", payment.ChannelID)
	}
	rec := &channel.PaymentChannel{
		ChannelID:       payment.ChannelID,
		Sender:          info.Sender,
		Receiver:        info.Receiver,
		Value:           info.Value,
		Spent:           big.NewInt(0),
		State:           info.State(),
		ContractAddress: payment.ContractAddress,
		TokenContract:   info.TokenContract,
		SettlingPeriod:  info.SettlingPeriod,
		SettlingUntil:   info.SettlingUntil,
	}
	if err := m.channels.Save(ctx, rec); err != nil {
		return nil, perr.Wrap(perr.StorageError, err, "save mirrored channel")
	}
	return rec, nil
}
