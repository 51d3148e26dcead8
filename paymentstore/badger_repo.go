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
	"encoding/json"
	"fmt"

	ds "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	badger "github.com/ipfs/go-ds-badger"

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/perr"
)

// badgerRepo persists payments under Namespace/payments/<token>, reusing
// channel.Payment's own (Un)MarshalJSON rather than a separate codec.
// Since this log is append-mostly (spec §4.4) there is no compound
// read-modify-write to serialize, unlike paychstore.
type badgerRepo struct {
	store ds.Batching
	opts  Opts
}

// NewBadgerRepository opens (creating if absent) a badger datastore at
// opts.Path and returns a payments Repository backed by it.
func NewBadgerRepository(opts Opts) (Repository, error) {
	store, err := badger.NewDatastore(opts.Path, &badger.DefaultOptions)
	if err != nil {
		return nil, perr.Wrap(perr.StorageError, err, "open badger at %s", opts.Path)
	}
	return &badgerRepo{store: store, opts: opts}, nil
}

func (r *badgerRepo) key(token string) ds.Key {
	return ds.NewKey(fmt.Sprintf("/%s/payments/%s", r.opts.namespace(), token))
}

func (r *badgerRepo) Save(ctx context.Context, payment *channel.Payment) error {
	if payment.Token == "" {
		return perr.New(perr.InvalidPayment, "payment token is required")
	}
	key := r.key(payment.Token)
	exists, err := r.store.Has(ctx, key)
	if err != nil {
		return perr.Wrap(perr.StorageError, err, "check existence of token %s", payment.Token)
	}
	if exists {
		return perr.New(perr.Conflict, "token %s already used", payment.Token)
	}
	data, err := json.Marshal(payment)
	if err != nil {
		return perr.Wrap(perr.StorageError, err, "encode payment")
	}
	if err := r.store.Put(ctx, key, data); err != nil {
		return perr.Wrap(perr.StorageError, err, "put payment %s", payment.Token)
	}
	return nil
}

func (r *badgerRepo) FindByToken(ctx context.Context, token string) (*channel.Payment, error) {
	data, err := r.store.Get(ctx, r.key(token))
	if err != nil {
		if err == ds.ErrNotFound {
			return nil, perr.New(perr.NotFound, "token %s not found", token)
		}
		return nil, perr.Wrap(perr.StorageError, err, "get token %s", token)
	}
	p := &channel.Payment{}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, perr.Wrap(perr.StorageError, err, "decode payment %s", token)
	}
	return p, nil
}

func (r *badgerRepo) FindByChannelID(ctx context.Context, id channel.ID) ([]*channel.Payment, error) {
	prefix := fmt.Sprintf("/%s/payments", r.opts.namespace())
	results, err := r.store.Query(ctx, query.Query{Prefix: prefix})
	if err != nil {
		return nil, perr.Wrap(perr.StorageError, err, "query payments")
	}
	defer results.Close()

	var out []*channel.Payment
	for entry := range results.Next() {
		if entry.Error != nil {
			return nil, perr.Wrap(perr.StorageError, entry.Error, "iterate payments")
		}
		p := &channel.Payment{}
		if err := json.Unmarshal(entry.Value, p); err != nil {
			return nil, perr.Wrap(perr.StorageError, err, "decode payment entry %s", entry.Key)
		}
		if p.ChannelID == id {
			out = append(out, p)
		}
	}
	return out, nil
}
