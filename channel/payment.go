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
	"encoding/json"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Payment is the off-chain signed promise a sender hands a receiver:
// "you may claim up to this cumulative amount from this channel".
type Payment struct {
	ChannelID       ID
	Sender          common.Address
	Receiver        common.Address
	ContractAddress common.Address
	TokenContract   common.Address
	Value           *big.Int // channel's current deposit, informational
	Price           *big.Int // incremental amount paid by this promise
	ChannelValue    *big.Int // snapshot of deposit at signing time
	Cumulative      *big.Int
	Signature       []byte
	Meta            string
	Token           string // opaque receipt, set once a receiver accepts
}

type wirePayment struct {
	ChannelID       string `json:"channel_id"`
	Sender          string `json:"sender"`
	Receiver        string `json:"receiver"`
	ContractAddress string `json:"contract_address"`
	TokenContract   string `json:"token_contract"`
	Value           string `json:"value"`
	Price           string `json:"price"`
	ChannelValue    string `json:"channel_value"`
	Cumulative      string `json:"cumulative"`
	Signature       []byte `json:"signature"`
	Meta            string `json:"meta"`
	Token           string `json:"token,omitempty"`
}

// MarshalJSON renders a Payment for the HTTP wire format exchanged
// between the Client Facade and a gateway.
func (p *Payment) MarshalJSON() ([]byte, error) {
	return json.Marshal(wirePayment{
		ChannelID:       p.ChannelID.String(),
		Sender:          p.Sender.Hex(),
		Receiver:        p.Receiver.Hex(),
		ContractAddress: p.ContractAddress.Hex(),
		TokenContract:   p.TokenContract.Hex(),
		Value:           bigStringOrZero(p.Value),
		Price:           bigStringOrZero(p.Price),
		ChannelValue:    bigStringOrZero(p.ChannelValue),
		Cumulative:      bigStringOrZero(p.Cumulative),
		Signature:       p.Signature,
		Meta:            p.Meta,
		Token:           p.Token,
	})
}

// UnmarshalJSON parses a Payment from the HTTP wire format.
func (p *Payment) UnmarshalJSON(data []byte) error {
	var w wirePayment
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	id, err := IDFromHex(w.ChannelID)
	if err != nil {
		return err
	}
	p.ChannelID = id
	p.Sender = common.HexToAddress(w.Sender)
	p.Receiver = common.HexToAddress(w.Receiver)
	p.ContractAddress = common.HexToAddress(w.ContractAddress)
	p.TokenContract = common.HexToAddress(w.TokenContract)
	p.Value = parseBigOrZero(w.Value)
	p.Price = parseBigOrZero(w.Price)
	p.ChannelValue = parseBigOrZero(w.ChannelValue)
	p.Cumulative = parseBigOrZero(w.Cumulative)
	p.Signature = w.Signature
	p.Meta = w.Meta
	p.Token = w.Token
	return nil
}

func bigStringOrZero(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func parseBigOrZero(s string) *big.Int {
	if s == "" {
		return big.NewInt(0)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return big.NewInt(0)
	}
	return v
}
