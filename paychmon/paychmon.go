// Package paychmon is the settling monitor: it watches channels that
// have entered SETTLING and, once their settlingUntil block passes,
// calls back so a sender can auto-close without polling manually.
package paychmon

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
	"time"

	logging "github.com/ipfs/go-log"

	"github.com/wcgcyx/paychan/channel"
)

var log = logging.Logger("paychmon")

// Monitor tracks the settling channels a sender cares about and fires
// the configured callback once each one's settling period has elapsed.
type Monitor interface {
	// Track starts watching channelID, expected to clear settlingUntil
	// at block height settlingUntil.
	//
	// @input - context, channel id, settlingUntil block height.
	//
	// @output - error.
	Track(ctx context.Context, channelID channel.ID, settlingUntil uint64) error

	// Check returns the last-recorded tracking state for channelID.
	//
	// @input - context, channel id.
	//
	// @output - last updated time, settlingUntil block height, error.
	Check(ctx context.Context, channelID channel.ID) (time.Time, uint64, error)

	// Renew updates the settlingUntil height being watched for
	// channelID, e.g. after the chain's settling period changes.
	//
	// @input - context, channel id, new settlingUntil block height.
	//
	// @output - error.
	Renew(ctx context.Context, channelID channel.ID, settlingUntil uint64) error

	// Retire stops watching channelID without firing the callback,
	// e.g. when it has already been claimed or settled some other way.
	//
	// @input - context, channel id.
	//
	// @output - error.
	Retire(ctx context.Context, channelID channel.ID) error

	// Shutdown stops every tracking routine and closes the monitor's
	// backing store.
	Shutdown()
}
