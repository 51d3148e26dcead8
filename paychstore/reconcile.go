package paychstore

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

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/contract"
)

// reconcileFn asks the bound Adapter for a channel's canonical on-chain
// state and folds it into a stored row via channel.Reconcile, per the
// repository's "reconcile on read" invariant. It is a plain function
// value held by both backends rather than a shared base struct, since
// Go favors composition by field over embedding for this kind of
// cross-cutting behavior.
type reconcileFn func(ctx context.Context, row *channel.PaymentChannel) (*channel.PaymentChannel, error)

func newReconciler(adapter contract.Adapter) reconcileFn {
	return func(ctx context.Context, row *channel.PaymentChannel) (*channel.PaymentChannel, error) {
		if adapter == nil {
			return row, nil
		}
		info, err := adapter.ChannelByID(ctx, row.ContractAddress, row.ChannelID)
		if err != nil {
			return nil, err
		}
		return channel.Reconcile(row, channel.ChainState{
			Present:        info.Present(),
			State:          info.State(),
			Value:          info.Value,
			SettlingUntil:  info.SettlingUntil,
			SettlingPeriod: info.SettlingPeriod,
		}), nil
	}
}
