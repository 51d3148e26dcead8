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
	"sync"

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/perr"
)

type memRepo struct {
	mutex     sync.RWMutex
	byToken   map[string]*channel.Payment
	byChannel map[channel.ID][]*channel.Payment
}

// NewMemRepository returns an in-memory payments Repository.
func NewMemRepository() Repository {
	return &memRepo{
		byToken:   make(map[string]*channel.Payment),
		byChannel: make(map[channel.ID][]*channel.Payment),
	}
}

func (r *memRepo) Save(ctx context.Context, payment *channel.Payment) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if payment.Token == "" {
		return perr.New(perr.InvalidPayment, "payment token is required")
	}
	if _, ok := r.byToken[payment.Token]; ok {
		return perr.New(perr.Conflict, "token %s already used", payment.Token)
	}
	cp := *payment
	r.byToken[payment.Token] = &cp
	r.byChannel[payment.ChannelID] = append(r.byChannel[payment.ChannelID], &cp)
	return nil
}

func (r *memRepo) FindByToken(ctx context.Context, token string) (*channel.Payment, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	p, ok := r.byToken[token]
	if !ok {
		return nil, perr.New(perr.NotFound, "token %s not found", token)
	}
	cp := *p
	return &cp, nil
}

func (r *memRepo) FindByChannelID(ctx context.Context, id channel.ID) ([]*channel.Payment, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	list := r.byChannel[id]
	out := make([]*channel.Payment, len(list))
	for i, p := range list {
		cp := *p
		out[i] = &cp
	}
	return out, nil
}
