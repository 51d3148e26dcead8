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

import "math/big"

// ChainState is the subset of on-chain channel fields needed to
// reconcile a local record, as returned by a contract.Adapter's
// GetState/ChannelByID calls. Defined here rather than imported from
// package contract to keep this package free of a contract dependency.
type ChainState struct {
	Present        bool
	State          State
	Value          *big.Int
	SettlingUntil  uint64
	SettlingPeriod uint64
}

// Reconcile folds on-chain truth into a local repository row. It never
// mutates row in place; it returns a new value so callers can compare
// before deciding whether to persist the reconciled state.
//
// The chain is authoritative for State, Value and the settling clock.
// Spent remains whatever the local side has recorded, since cumulative
// spend is an off-chain fact the chain never tracks directly.
func Reconcile(row *PaymentChannel, chain ChainState) *PaymentChannel {
	out := *row
	if !chain.Present {
		out.State = ABSENT
		return &out
	}
	out.State = chain.State
	if chain.Value != nil {
		out.Value = chain.Value
	}
	out.SettlingUntil = chain.SettlingUntil
	out.SettlingPeriod = chain.SettlingPeriod
	return &out
}
