// Package paychstore is the durable store of local PaymentChannel
// records. Two backends satisfy Repository: a badger-backed one for
// production use and an in-memory one for tests and the memory engine.
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
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wcgcyx/paychan/channel"
)

// Repository is the storage contract the Channel Manager relies on.
// Compound read-then-write logic (e.g. "reuse if usable, else open") is
// serialized by paychlock at the Channel Manager layer, not here;
// Repository only guarantees each individual call below is safe for
// concurrent use.
type Repository interface {
	// Save inserts a new record. Returns an error if channelId already
	// exists.
	//
	// @input - context, record.
	//
	// @output - error.
	Save(ctx context.Context, rec *channel.PaymentChannel) error

	// SaveOrUpdate inserts rec if channelId is new, else applies Spend
	// with rec.Spent.
	//
	// @input - context, record.
	//
	// @output - error.
	SaveOrUpdate(ctx context.Context, rec *channel.PaymentChannel) error

	// FirstByID loads a single record by channelId.
	//
	// @input - context, channel id.
	//
	// @output - record, error (perr.NotFound if absent).
	FirstByID(ctx context.Context, id channel.ID) (*channel.PaymentChannel, error)

	// Spend performs the monotonic write: rejects newSpent lower than
	// the stored value.
	//
	// @input - context, channel id, new cumulative spent.
	//
	// @output - error.
	Spend(ctx context.Context, id channel.ID, newSpent *big.Int) error

	// Deposit adds delta to the stored value.
	//
	// @input - context, channel id, delta.
	//
	// @output - error.
	Deposit(ctx context.Context, id channel.ID, delta *big.Int) error

	// UpdateState overwrites the stored lifecycle state and settling
	// clock fields.
	//
	// @input - context, channel id, new state, settling until.
	//
	// @output - error.
	UpdateState(ctx context.Context, id channel.ID, state channel.State, settlingUntil uint64) error

	// All returns every locally known record.
	//
	// @input - context.
	//
	// @output - records, error.
	All(ctx context.Context) ([]*channel.PaymentChannel, error)

	// AllOpen returns every record whose state, after reconciliation
	// with the chain, is OPEN.
	//
	// @input - context.
	//
	// @output - records, error.
	AllOpen(ctx context.Context) ([]*channel.PaymentChannel, error)

	// AllSettling returns every record whose state, after
	// reconciliation with the chain, is SETTLING.
	//
	// @input - context.
	//
	// @output - records, error.
	AllSettling(ctx context.Context) ([]*channel.PaymentChannel, error)

	// FindUsable returns an OPEN record for (sender, receiver) whose
	// remaining capacity covers amount. The in-memory backend returns
	// the earliest-inserted such record; the badger backend returns the
	// first one in key (channel id) order, not in insertion order.
	//
	// @input - context, sender, receiver, amount.
	//
	// @output - record, error (perr.NotFound if none usable).
	FindUsable(ctx context.Context, sender, receiver common.Address, amount *big.Int) (*channel.PaymentChannel, error)

	// FindBySenderReceiver returns every record for a pair.
	//
	// @input - context, sender, receiver.
	//
	// @output - records, error.
	FindBySenderReceiver(ctx context.Context, sender, receiver common.Address) ([]*channel.PaymentChannel, error)

	// FindBySenderReceiverChannelID loads a record scoped to a pair, so
	// a caller that only knows the pair and id (not a bare lookup) can
	// verify both.
	//
	// @input - context, sender, receiver, channel id.
	//
	// @output - record, error (perr.NotFound if absent or mismatched).
	FindBySenderReceiverChannelID(ctx context.Context, sender, receiver common.Address, id channel.ID) (*channel.PaymentChannel, error)
}
