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
	"github.com/wcgcyx/paychan/digest"
	"github.com/wcgcyx/paychan/perr"
)

// Self returns the address of the wallet signer this Manager acts as.
func (m *Manager) Self() common.Address {
	return m.signer.Address()
}

// Channel returns the reconciled local record for channelID, without
// acquiring the channel lock: callers that only read (e.g. a
// preflight verification) need not serialize with writers.
//
// @input - context, channel id.
//
// @output - reconciled channel record, error.
func (m *Manager) Channel(ctx context.Context, channelID channel.ID) (*channel.PaymentChannel, error) {
	return m.channels.FirstByID(ctx, channelID)
}

// VerifySignature reports whether payment's signature recovers to
// rec's sender, without consulting any repository.
//
// @input - channel record, payment.
//
// @output - error if the signature is invalid.
func VerifySignature(rec *channel.PaymentChannel, payment *channel.Payment) error {
	signer, err := digest.Recover(rec.ContractAddress, rec.ChannelID, payment.Cumulative, rec.TokenContract, payment.Signature)
	if err != nil {
		return perr.Wrap(perr.InvalidPayment, err, "recover payment signer")
	}
	if signer != rec.Sender {
		return perr.New(perr.InvalidPayment, "signature does not recover to channel sender")
	}
	return nil
}
