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
	"crypto/rand"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/contract"
	"github.com/wcgcyx/paychan/paychlock"
	"github.com/wcgcyx/paychan/perr"
)

// RequireOpenChannel returns a usable OPEN channel from sender to
// receiver covering price, opening a fresh one on chain if none exists.
// At most one open transaction is ever outstanding per
// (sender, receiver) pair: the whole method runs under that pair's
// lock (spec §4.6, property 4).
func (m *Manager) RequireOpenChannel(ctx context.Context, sender, receiver common.Address, contractAddress common.Address, kind contract.ContractKind, price *big.Int) (*channel.PaymentChannel, error) {
	release, err := m.pairLocks.Lock(ctx, paychlock.PairKey(sender, receiver))
	if err != nil {
		return nil, perr.Wrap(perr.ChainError, err, "acquire pair lock")
	}
	defer release()

	existing, err := m.channels.FindUsable(ctx, sender, receiver, price)
	if err == nil && existing.IsOpen() {
		return existing, nil
	}
	if err != nil && !perr.Is(err, perr.NotFound) {
		return nil, err
	}

	deposit := new(big.Int).Mul(price, big.NewInt(m.depositMultiplier))
	if deposit.Cmp(m.minimumChannelAmount) < 0 {
		deposit = new(big.Int).Set(m.minimumChannelAmount)
	}

	id, err := freshChannelID()
	if err != nil {
		return nil, perr.Wrap(perr.ChainError, err, "generate channel id")
	}

	_, err = m.adapter.Open(ctx, contractAddress, sender, id, receiver, m.settlementPeriod, deposit, kind)
	if err != nil {
		// On transaction failure, no local record is persisted (spec §4.6 step 4).
		return nil, perr.Wrap(perr.ChainError, err, "open channel")
	}

	tokenContract := common.Address{}
	if kind.Kind == contract.Token {
		tokenContract = kind.TokenAddress
	}
	rec := &channel.PaymentChannel{
		ChannelID:       id,
		Sender:          sender,
		Receiver:        receiver,
		Value:           deposit,
		Spent:           big.NewInt(0),
		State:           channel.OPEN,
		ContractAddress: contractAddress,
		TokenContract:   tokenContract,
		SettlingPeriod:  m.settlementPeriod,
	}
	if err := m.channels.Save(ctx, rec); err != nil {
		return nil, perr.Wrap(perr.StorageError, err, "save newly opened channel")
	}
	log.Infof("opened channel %s from %s to %s, deposit %s", id, sender.Hex(), receiver.Hex(), deposit)
	return rec, nil
}

func freshChannelID() (channel.ID, error) {
	var id channel.ID
	_, err := rand.Read(id[:])
	return id, err
}
