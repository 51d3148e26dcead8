// Package gateway is the receiver-side net/http server that challenges
// unpaid requests with 402 Payment Required and accepts signed payments
// posted back in response (spec §6 HTTP micropayment challenge).
package gateway

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
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	logging "github.com/ipfs/go-log"

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/paymentstore"
	"github.com/wcgcyx/paychan/paymgr"
)

var log = logging.Logger("gateway")

// PriceFunc resolves the price (and any caller-supplied meta) a
// request must pay before Gateway serves it.
type PriceFunc func(r *http.Request) (price *big.Int, meta string, err error)

// Gateway wraps an http.Handler with the 402 micropayment challenge,
// validating and recording payments through a Channel Manager and a
// Payments Repository.
type Gateway struct {
	mgr             *paymgr.Manager
	payments        paymentstore.Repository
	receiver        common.Address
	contractAddress common.Address
	selfURL         string
	price           PriceFunc
}

// Opts configures a Gateway.
type Opts struct {
	// Receiver is the address payments must be made out to.
	Receiver common.Address

	// ContractAddress is the on-chain contract governing channels this
	// gateway accepts payments on.
	ContractAddress common.Address

	// SelfURL is the absolute URL a 402 challenge tells callers to POST
	// payments to.
	SelfURL string

	// Price resolves the price of a request. New does not read this
	// field; the PriceFunc passed to New as its price argument is the
	// one a Gateway uses.
	Price PriceFunc
}

// New builds a Gateway around mgr and payments, pricing each request
// with price. Wrap a handler with Middleware to serve the micropayment
// challenge in front of it.
func New(mgr *paymgr.Manager, payments paymentstore.Repository, opts Opts, price PriceFunc) *Gateway {
	return &Gateway{
		mgr:             mgr,
		payments:        payments,
		receiver:        opts.Receiver,
		contractAddress: opts.ContractAddress,
		selfURL:         opts.SelfURL,
		price:           price,
	}
}

// challengeBody is the wire format of a 402 response (spec §6).
type challengeBody struct {
	Receiver        string `json:"receiver"`
	Price           string `json:"price"`
	Gateway         string `json:"gateway"`
	Meta            string `json:"meta"`
	ContractAddress string `json:"contract_address"`
}

// Middleware wraps next so every request must be preceded by an
// accepted payment of at least the price Gateway's PriceFunc computes
// for it, presented as a bearer token from a prior PaymentHandler call.
func (g *Gateway) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		price, meta, err := g.price(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		token := bearerToken(r)
		if token == "" {
			g.challenge(w, price, meta)
			return
		}
		paid, err := g.payments.FindByToken(r.Context(), token)
		if err != nil {
			g.challenge(w, price, meta)
			return
		}
		if paid.Price.Cmp(price) < 0 {
			g.challenge(w, price, meta)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}

func (g *Gateway) challenge(w http.ResponseWriter, price *big.Int, meta string) {
	body, err := json.Marshal(challengeBody{
		Receiver:        g.receiver.Hex(),
		Price:           price.String(),
		Gateway:         g.selfURL,
		Meta:            meta,
		ContractAddress: g.contractAddress.Hex(),
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusPaymentRequired)
	w.Write(body)
}

// PaymentHandler accepts a POSTed Payment, validates and records it
// through the Channel Manager and Payments Repository, and returns an
// opaque token the sender can present to Middleware.
func (g *Gateway) PaymentHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var payment channel.Payment
		if err := json.NewDecoder(r.Body).Decode(&payment); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		rec, err := g.mgr.AcceptPayment(r.Context(), &payment)
		if err != nil {
			log.Warnf("rejected payment on channel %s: %s", payment.ChannelID, err)
			http.Error(w, err.Error(), http.StatusPaymentRequired)
			return
		}
		token, err := freshToken()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		payment.Token = token
		payment.ChannelValue = rec.Value
		if err := g.payments.Save(r.Context(), &payment); err != nil {
			log.Errorf("failed to persist accepted payment on channel %s: %s", payment.ChannelID, err)
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Token string `json:"token"`
		}{Token: token})
	})
}

func freshToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
