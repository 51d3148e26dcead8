// Package paymentstore is the receiver-side append-mostly log of
// accepted payments, indexed by the opaque token issued on acceptance.
package paymentstore

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
)

// Repository is the storage contract for accepted payments. Used only
// on the receiver side.
type Repository interface {
	// Save appends an accepted payment, indexed by its token and its
	// channel id. payment.Token must already be set.
	//
	// @input - context, payment.
	//
	// @output - error.
	Save(ctx context.Context, payment *channel.Payment) error

	// FindByToken looks up a payment by its opaque receipt token.
	//
	// @input - context, token.
	//
	// @output - payment, error (perr.NotFound if absent).
	FindByToken(ctx context.Context, token string) (*channel.Payment, error)

	// FindByChannelID lists every accepted payment recorded for a
	// channel. The in-memory backend returns them in acceptance order;
	// the badger backend returns them in token key order.
	//
	// @input - context, channel id.
	//
	// @output - payments, error.
	FindByChannelID(ctx context.Context, id channel.ID) ([]*channel.Payment, error)
}
