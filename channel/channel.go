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

import (
	"encoding/hex"
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ID is a channel's 32-byte on-chain identifier.
type ID [32]byte

// String renders the id as a 0x-prefixed hex string.
func (id ID) String() string {
	return "0x" + hex.EncodeToString(id[:])
}

// IDFromHex parses a 0x-prefixed or bare hex string into an ID.
func IDFromHex(s string) (ID, error) {
	if len(s) >= 2 && s[0:2] == "0x" {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return ID{}, err
	}
	var id ID
	if len(b) != len(id) {
		return id, errLenMismatch(len(b))
	}
	copy(id[:], b)
	return id, nil
}

type lenMismatchErr struct{ got int }

func (e lenMismatchErr) Error() string {
	return "channel id must be 32 bytes"
}

func errLenMismatch(got int) error { return lenMismatchErr{got} }

// State is the reconciled lifecycle state of a channel.
type State int

const (
	// OPEN - deposited and usable.
	OPEN State = iota
	// SETTLING - sender started the unilateral close timer.
	SETTLING
	// ABSENT - claimed or settled; no longer on chain.
	ABSENT
)

func (s State) String() string {
	switch s {
	case OPEN:
		return "OPEN"
	case SETTLING:
		return "SETTLING"
	case ABSENT:
		return "ABSENT"
	default:
		return "UNKNOWN"
	}
}

// PaymentChannel is the local record of a payment channel, as described
// by the data model: sender/receiver, deposited value, highest spent
// cumulative, reconciled state, and the contract governing it.
type PaymentChannel struct {
	ChannelID       ID
	Sender          common.Address
	Receiver        common.Address
	Value           *big.Int
	Spent           *big.Int
	State           State
	ContractAddress common.Address
	TokenContract   common.Address // zero address for the native-coin variant
	SettlingPeriod  uint64
	SettlingUntil   uint64
}

// Remaining is the unspent portion of the deposit.
func (c *PaymentChannel) Remaining() *big.Int {
	return new(big.Int).Sub(c.Value, c.Spent)
}

// IsOpen reports whether the channel is usable for new payments.
func (c *PaymentChannel) IsOpen() bool { return c.State == OPEN }

// IsSettling reports whether the sender has started the close timer.
func (c *PaymentChannel) IsSettling() bool { return c.State == SETTLING }

// IsAbsent reports whether the channel no longer exists on chain.
func (c *PaymentChannel) IsAbsent() bool { return c.State == ABSENT }

// IsToken reports whether this channel is governed by the ERC20 variant.
func (c *PaymentChannel) IsToken() bool {
	return c.TokenContract != (common.Address{})
}

type wireChannel struct {
	ChannelID       string `json:"channel_id"`
	Sender          string `json:"sender"`
	Receiver        string `json:"receiver"`
	Value           string `json:"value"`
	Spent           string `json:"spent"`
	State           int    `json:"state"`
	ContractAddress string `json:"contract_address"`
	TokenContract   string `json:"token_contract"`
	SettlingPeriod  uint64 `json:"settling_period"`
	SettlingUntil   uint64 `json:"settling_until"`
}

// Encode serializes the record for durable storage.
func (c *PaymentChannel) Encode() ([]byte, error) {
	return json.Marshal(wireChannel{
		ChannelID:       c.ChannelID.String(),
		Sender:          c.Sender.Hex(),
		Receiver:        c.Receiver.Hex(),
		Value:           c.Value.String(),
		Spent:           c.Spent.String(),
		State:           int(c.State),
		ContractAddress: c.ContractAddress.Hex(),
		TokenContract:   c.TokenContract.Hex(),
		SettlingPeriod:  c.SettlingPeriod,
		SettlingUntil:   c.SettlingUntil,
	})
}

// Decode populates c from bytes produced by Encode.
func (c *PaymentChannel) Decode(data []byte) error {
	var w wireChannel
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id, err := IDFromHex(w.ChannelID)
	if err != nil {
		return err
	}
	value, ok := new(big.Int).SetString(w.Value, 10)
	if !ok {
		return errBigInt("value")
	}
	spent, ok := new(big.Int).SetString(w.Spent, 10)
	if !ok {
		return errBigInt("spent")
	}
	c.ChannelID = id
	c.Sender = common.HexToAddress(w.Sender)
	c.Receiver = common.HexToAddress(w.Receiver)
	c.Value = value
	c.Spent = spent
	c.State = State(w.State)
	c.ContractAddress = common.HexToAddress(w.ContractAddress)
	c.TokenContract = common.HexToAddress(w.TokenContract)
	c.SettlingPeriod = w.SettlingPeriod
	c.SettlingUntil = w.SettlingUntil
	return nil
}

type bigIntErr struct{ field string }

func (e bigIntErr) Error() string { return "invalid big int in field " + e.field }
func errBigInt(field string) error { return bigIntErr{field} }
