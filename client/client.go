// Package client is the Client Facade: the buyer-side glue between the
// Channel Manager and a gateway's HTTP 402 challenge (spec §4.7).
package client

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
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	logging "github.com/ipfs/go-log"

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/contract"
	"github.com/wcgcyx/paychan/paymgr"
	"github.com/wcgcyx/paychan/perr"
)

var log = logging.Logger("client")

const defaultTimeout = 30 * time.Second

// Challenge is the body a gateway returns on a 402 Payment Required
// response, describing what it costs to retry the request (spec §6).
type Challenge struct {
	Receiver        string `json:"receiver"`
	Price           string `json:"price"`
	Gateway         string `json:"gateway"`
	Meta            string `json:"meta"`
	ContractAddress string `json:"contract_address"`
}

// tokenResponse is what a gateway returns once it accepts a payment.
type tokenResponse struct {
	Token string `json:"token"`
}

// Client is the buyer-side facade wiring a Channel Manager to HTTP
// gateways that speak the 402 micropayment challenge.
type Client struct {
	mgr  *paymgr.Manager
	http *http.Client
}

// New builds a Client around mgr. httpClient may be nil, in which case
// a client with defaultTimeout is used.
func New(mgr *paymgr.Manager, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{mgr: mgr, http: httpClient}
}

// Buy obtains (opening if needed) a usable channel to receiver covering
// price and returns the next signed payment promise for it, without
// transmitting it anywhere.
//
// @input - context, receiver, contract address, contract kind, price, meta.
//
// @output - signed payment, error.
func (c *Client) Buy(ctx context.Context, receiver common.Address, contractAddress common.Address, kind contract.ContractKind, price *big.Int, meta string) (*channel.Payment, error) {
	rec, err := c.mgr.RequireOpenChannel(ctx, c.mgr.Self(), receiver, contractAddress, kind, price)
	if err != nil {
		return nil, err
	}
	return c.mgr.NextPayment(ctx, rec.ChannelID, price, meta)
}

// BuyURL performs an HTTP GET against url, and if the response is
// 402 Payment Required, parses its Challenge body, builds and sends the
// matching payment via DoPayment, then retries the original GET with
// the resulting token attached as a bearer credential.
//
// @input - context, url.
//
// @output - final HTTP response, error.
func (c *Client) BuyURL(ctx context.Context, url string) (*http.Response, error) {
	resp, err := c.get(ctx, url, "")
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusPaymentRequired {
		return resp, nil
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, perr.Wrap(perr.ChainError, err, "read 402 challenge body")
	}
	var challenge Challenge
	if err := json.Unmarshal(body, &challenge); err != nil {
		return nil, perr.Wrap(perr.InvalidPayment, err, "parse 402 challenge body")
	}
	price, ok := new(big.Int).SetString(challenge.Price, 10)
	if !ok {
		return nil, perr.New(perr.InvalidPayment, "challenge price %q is not a valid integer", challenge.Price)
	}
	receiver := common.HexToAddress(challenge.Receiver)
	contractAddress := common.HexToAddress(challenge.ContractAddress)

	payment, err := c.Buy(ctx, receiver, contractAddress, contract.ContractKind{}, price, challenge.Meta)
	if err != nil {
		return nil, err
	}
	token, err := c.DoPayment(ctx, challenge.Gateway, payment)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, url, token)
}

func (c *Client) get(ctx context.Context, url string, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, perr.Wrap(perr.ChainError, err, "build request for %s", url)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, perr.Wrap(perr.ChainError, err, "request %s", url)
	}
	return resp, nil
}

// DoPayment POSTs payment as JSON to gatewayURL and returns the opaque
// token the gateway issued on acceptance.
//
// @input - context, gateway url, signed payment.
//
// @output - token, error.
func (c *Client) DoPayment(ctx context.Context, gatewayURL string, payment *channel.Payment) (string, error) {
	data, err := json.Marshal(payment)
	if err != nil {
		return "", perr.Wrap(perr.InvalidPayment, err, "encode payment")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, gatewayURL, bytes.NewReader(data))
	if err != nil {
		return "", perr.Wrap(perr.ChainError, err, "build payment request to %s", gatewayURL)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", perr.Wrap(perr.ChainError, err, "post payment to %s", gatewayURL)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", perr.Wrap(perr.ChainError, err, "read gateway response from %s", gatewayURL)
	}
	if resp.StatusCode != http.StatusOK {
		return "", perr.New(perr.InvalidPayment, "gateway %s rejected payment: %s", gatewayURL, string(body))
	}
	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", perr.Wrap(perr.InvalidPayment, err, "parse gateway response from %s", gatewayURL)
	}
	log.Debugf("received token %s from gateway %s", tr.Token, gatewayURL)
	return tr.Token, nil
}

// AcceptPayment validates and records payment locally via the Channel
// Manager, without any network call. Useful for receiver-side in-process
// integrations that skip the HTTP hop entirely.
//
// @input - context, payment.
//
// @output - reconciled local channel record, error.
func (c *Client) AcceptPayment(ctx context.Context, payment *channel.Payment) (*channel.PaymentChannel, error) {
	return c.mgr.AcceptPayment(ctx, payment)
}

// AcceptVerify loads the local record of payment's channel, re-derives
// the payment digest and reports whether its signature recovers to the
// channel's sender. It reads the channel store but writes nothing, and
// fails with perr.NotFound for a channel not yet known locally.
//
// @input - context, payment.
//
// @output - error if invalid.
func (c *Client) AcceptVerify(ctx context.Context, payment *channel.Payment) error {
	rec, err := c.mgr.Channel(ctx, payment.ChannelID)
	if err != nil {
		return err
	}
	return paymgr.VerifySignature(rec, payment)
}
