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
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ds "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	badger "github.com/ipfs/go-ds-badger"
	logging "github.com/ipfs/go-log"

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/contract"
	"github.com/wcgcyx/paychan/perr"
)

var log = logging.Logger("paychstore")

// badgerRepo persists records in an embedded badger datastore, keyed
// under Namespace/channels/<channelId>. A single process-wide mutex
// serializes the read-modify-write sequences Spend/Deposit/UpdateState
// need (ipfs/go-datastore gives per-call safety, not per-key
// transactions), matching the repository contract's note that compound
// logic is the caller's job — here the caller is this backend itself,
// around primitives the underlying store doesn't atomically combine.
type badgerRepo struct {
	mutex     sync.Mutex
	store     ds.Batching
	opts      Opts
	reconcile reconcileFn
}

// NewBadgerRepository opens (creating if absent) a badger datastore at
// opts.Path and returns a Repository backed by it.
func NewBadgerRepository(opts Opts, adapter contract.Adapter) (Repository, error) {
	store, err := badger.NewDatastore(opts.Path, &badger.DefaultOptions)
	if err != nil {
		return nil, perr.Wrap(perr.StorageError, err, "open badger at %s", opts.Path)
	}
	return &badgerRepo{store: store, opts: opts, reconcile: newReconciler(adapter)}, nil
}

func (r *badgerRepo) key(id channel.ID) ds.Key {
	return ds.NewKey(fmt.Sprintf("/%s/channels/%s", r.opts.namespace(), id.String()))
}

func (r *badgerRepo) getRaw(ctx context.Context, id channel.ID) (*channel.PaymentChannel, error) {
	data, err := r.store.Get(ctx, r.key(id))
	if err != nil {
		if err == ds.ErrNotFound {
			return nil, perr.New(perr.NotFound, "channel %s not found", id)
		}
		return nil, perr.Wrap(perr.StorageError, err, "get channel %s", id)
	}
	rec := &channel.PaymentChannel{}
	if err := rec.Decode(data); err != nil {
		return nil, perr.Wrap(perr.StorageError, err, "decode channel %s", id)
	}
	return rec, nil
}

func (r *badgerRepo) putRaw(ctx context.Context, rec *channel.PaymentChannel) error {
	data, err := rec.Encode()
	if err != nil {
		return perr.Wrap(perr.StorageError, err, "encode channel %s", rec.ChannelID)
	}
	if err := r.store.Put(ctx, r.key(rec.ChannelID), data); err != nil {
		return perr.Wrap(perr.StorageError, err, "put channel %s", rec.ChannelID)
	}
	return nil
}

func (r *badgerRepo) Save(ctx context.Context, rec *channel.PaymentChannel) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	exists, err := r.store.Has(ctx, r.key(rec.ChannelID))
	if err != nil {
		return perr.Wrap(perr.StorageError, err, "check existence of %s", rec.ChannelID)
	}
	if exists {
		return perr.New(perr.Conflict, "channel %s already saved", rec.ChannelID)
	}
	return r.putRaw(ctx, rec)
}

func (r *badgerRepo) SaveOrUpdate(ctx context.Context, rec *channel.PaymentChannel) error {
	r.mutex.Lock()
	exists, err := r.store.Has(ctx, r.key(rec.ChannelID))
	r.mutex.Unlock()
	if err != nil {
		return perr.Wrap(perr.StorageError, err, "check existence of %s", rec.ChannelID)
	}
	if !exists {
		return r.Save(ctx, rec)
	}
	return r.Spend(ctx, rec.ChannelID, rec.Spent)
}

func (r *badgerRepo) FirstByID(ctx context.Context, id channel.ID) (*channel.PaymentChannel, error) {
	rec, err := r.getRaw(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.reconcile(ctx, rec)
}

func (r *badgerRepo) Spend(ctx context.Context, id channel.ID, newSpent *big.Int) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	rec, err := r.getRaw(ctx, id)
	if err != nil {
		return err
	}
	if newSpent.Cmp(rec.Spent) < 0 {
		return perr.New(perr.InvalidPayment, "spend %s is lower than stored %s", newSpent, rec.Spent)
	}
	rec.Spent = new(big.Int).Set(newSpent)
	return r.putRaw(ctx, rec)
}

func (r *badgerRepo) Deposit(ctx context.Context, id channel.ID, delta *big.Int) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	rec, err := r.getRaw(ctx, id)
	if err != nil {
		return err
	}
	rec.Value = new(big.Int).Add(rec.Value, delta)
	return r.putRaw(ctx, rec)
}

func (r *badgerRepo) UpdateState(ctx context.Context, id channel.ID, state channel.State, settlingUntil uint64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	rec, err := r.getRaw(ctx, id)
	if err != nil {
		return err
	}
	rec.State = state
	rec.SettlingUntil = settlingUntil
	return r.putRaw(ctx, rec)
}

func (r *badgerRepo) All(ctx context.Context) ([]*channel.PaymentChannel, error) {
	prefix := fmt.Sprintf("/%s/channels", r.opts.namespace())
	results, err := r.store.Query(ctx, query.Query{Prefix: prefix})
	if err != nil {
		return nil, perr.Wrap(perr.StorageError, err, "query all channels")
	}
	defer results.Close()

	var out []*channel.PaymentChannel
	for entry := range results.Next() {
		if entry.Error != nil {
			return nil, perr.Wrap(perr.StorageError, entry.Error, "iterate channels")
		}
		rec := &channel.PaymentChannel{}
		if err := rec.Decode(entry.Value); err != nil {
			return nil, perr.Wrap(perr.StorageError, err, "decode channel entry %s", entry.Key)
		}
		reconciled, err := r.reconcile(ctx, rec)
		if err != nil {
			return nil, err
		}
		out = append(out, reconciled)
	}
	return out, nil
}

func (r *badgerRepo) AllOpen(ctx context.Context) ([]*channel.PaymentChannel, error) {
	return r.filterByState(ctx, channel.OPEN)
}

func (r *badgerRepo) AllSettling(ctx context.Context) ([]*channel.PaymentChannel, error) {
	return r.filterByState(ctx, channel.SETTLING)
}

func (r *badgerRepo) filterByState(ctx context.Context, state channel.State) ([]*channel.PaymentChannel, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*channel.PaymentChannel, 0, len(all))
	for _, rec := range all {
		if rec.State == state {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *badgerRepo) FindUsable(ctx context.Context, sender, receiver common.Address, amount *big.Int) (*channel.PaymentChannel, error) {
	all, err := r.FindBySenderReceiver(ctx, sender, receiver)
	if err != nil {
		return nil, err
	}
	for _, rec := range all {
		if rec.IsOpen() && rec.Remaining().Cmp(amount) >= 0 {
			return rec, nil
		}
	}
	return nil, perr.New(perr.NotFound, "no usable channel from %s to %s for %s", sender.Hex(), receiver.Hex(), amount)
}

func (r *badgerRepo) FindBySenderReceiver(ctx context.Context, sender, receiver common.Address) ([]*channel.PaymentChannel, error) {
	all, err := r.All(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*channel.PaymentChannel, 0)
	for _, rec := range all {
		if rec.Sender == sender && rec.Receiver == receiver {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *badgerRepo) FindBySenderReceiverChannelID(ctx context.Context, sender, receiver common.Address, id channel.ID) (*channel.PaymentChannel, error) {
	rec, err := r.FirstByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Sender != sender || rec.Receiver != receiver {
		return nil, perr.New(perr.NotFound, "channel %s does not match sender/receiver", id)
	}
	return rec, nil
}
