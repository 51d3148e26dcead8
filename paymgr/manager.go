// Package paymgr is the Channel Manager: the serialized coordinator
// that turns buyer requests into opened/reused channels and signed
// payment promises, and receiver-side requests into verified,
// persisted accepted payments.
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

	logging "github.com/ipfs/go-log"

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/contract"
	"github.com/wcgcyx/paychan/paychlock"
	"github.com/wcgcyx/paychan/paychstore"
	"github.com/wcgcyx/paychan/paymentstore"
	"github.com/wcgcyx/paychan/wallet"
)

var log = logging.Logger("paymgr")

const defaultDepositMultiplier = 10

// Manager coordinates persistence, on-chain contract interaction and
// concurrent buyer requests so that at most one channel per
// (sender, receiver) pair is opened and payments on a channel are
// issued in strict sequence under concurrency (spec §4.6, §5).
type Manager struct {
	channels  paychstore.Repository
	payments  paymentstore.Repository
	adapter   contract.Adapter
	signer    *wallet.Signer
	pairLocks *paychlock.Table
	chLocks   *paychlock.Table

	minimumChannelAmount *big.Int
	depositMultiplier    int64
	settlementPeriod     uint64
}

// Opts configures a Manager beyond its required collaborators.
type Opts struct {
	// MinimumChannelAmount floors fresh channel deposits (spec §6).
	MinimumChannelAmount *big.Int

	// DepositMultiplier scales price into a fresh deposit
	// (spec §4.6 step 3, default 10).
	DepositMultiplier int64

	// SettlementPeriod is the number of blocks startSettling waits
	// before settle is valid (spec §6).
	SettlementPeriod uint64
}

// New builds a Manager from its collaborators. Construction is explicit
// constructor injection, no service locator (spec §9).
func New(channels paychstore.Repository, payments paymentstore.Repository, adapter contract.Adapter, signer *wallet.Signer, opts Opts) *Manager {
	multiplier := opts.DepositMultiplier
	if multiplier == 0 {
		multiplier = defaultDepositMultiplier
	}
	minimum := opts.MinimumChannelAmount
	if minimum == nil {
		minimum = big.NewInt(0)
	}
	return &Manager{
		channels:             channels,
		payments:             payments,
		adapter:              adapter,
		signer:               signer,
		pairLocks:            paychlock.NewTable(),
		chLocks:              paychlock.NewTable(),
		minimumChannelAmount: minimum,
		depositMultiplier:    multiplier,
		settlementPeriod:     opts.SettlementPeriod,
	}
}

// OpenChannels returns every locally known channel in state OPEN after
// chain reconciliation.
func (m *Manager) OpenChannels(ctx context.Context) ([]*channel.PaymentChannel, error) {
	return m.channels.AllOpen(ctx)
}

// SettlingChannels returns every locally known channel in state
// SETTLING, the set a sender-side settling monitor needs to track or
// resume tracking across restarts.
func (m *Manager) SettlingChannels(ctx context.Context) ([]*channel.PaymentChannel, error) {
	return m.channels.AllSettling(ctx)
}
