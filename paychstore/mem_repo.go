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
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/contract"
	"github.com/wcgcyx/paychan/perr"
)

// memRepo is the engine=memory Repository: a guarded map, insertion
// order tracked separately for FindUsable's tie-break rule.
type memRepo struct {
	mutex      sync.RWMutex
	records    map[channel.ID]*channel.PaymentChannel
	insertedAt map[channel.ID]int
	seq        int
	reconcile  reconcileFn
}

// NewMemRepository returns an in-memory Repository. adapter may be nil
// in tests that don't exercise chain reconciliation.
func NewMemRepository(adapter contract.Adapter) Repository {
	return &memRepo{
		records:    make(map[channel.ID]*channel.PaymentChannel),
		insertedAt: make(map[channel.ID]int),
		reconcile:  newReconciler(adapter),
	}
}

func (r *memRepo) Save(ctx context.Context, rec *channel.PaymentChannel) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.records[rec.ChannelID]; ok {
		return perr.New(perr.Conflict, "channel %s already saved", rec.ChannelID)
	}
	cp := *rec
	r.records[rec.ChannelID] = &cp
	r.insertedAt[rec.ChannelID] = r.seq
	r.seq++
	return nil
}

func (r *memRepo) SaveOrUpdate(ctx context.Context, rec *channel.PaymentChannel) error {
	r.mutex.Lock()
	existing, ok := r.records[rec.ChannelID]
	r.mutex.Unlock()
	if !ok {
		return r.Save(ctx, rec)
	}
	if rec.Spent.Cmp(existing.Spent) < 0 {
		return perr.New(perr.InvalidPayment, "spend %s is lower than stored %s", rec.Spent, existing.Spent)
	}
	return r.Spend(ctx, rec.ChannelID, rec.Spent)
}

func (r *memRepo) FirstByID(ctx context.Context, id channel.ID) (*channel.PaymentChannel, error) {
	r.mutex.RLock()
	rec, ok := r.records[id]
	r.mutex.RUnlock()
	if !ok {
		return nil, perr.New(perr.NotFound, "channel %s not found", id)
	}
	cp := *rec
	return r.reconcile(ctx, &cp)
}

func (r *memRepo) Spend(ctx context.Context, id channel.ID, newSpent *big.Int) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return perr.New(perr.NotFound, "channel %s not found", id)
	}
	if newSpent.Cmp(rec.Spent) < 0 {
		return perr.New(perr.InvalidPayment, "spend %s is lower than stored %s", newSpent, rec.Spent)
	}
	rec.Spent = new(big.Int).Set(newSpent)
	return nil
}

func (r *memRepo) Deposit(ctx context.Context, id channel.ID, delta *big.Int) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return perr.New(perr.NotFound, "channel %s not found", id)
	}
	rec.Value = new(big.Int).Add(rec.Value, delta)
	return nil
}

func (r *memRepo) UpdateState(ctx context.Context, id channel.ID, state channel.State, settlingUntil uint64) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return perr.New(perr.NotFound, "channel %s not found", id)
	}
	rec.State = state
	rec.SettlingUntil = settlingUntil
	return nil
}

func (r *memRepo) All(ctx context.Context) ([]*channel.PaymentChannel, error) {
	r.mutex.RLock()
	rows := make([]*channel.PaymentChannel, 0, len(r.records))
	for _, rec := range r.records {
		cp := *rec
		rows = append(rows, &cp)
	}
	r.mutex.RUnlock()
	out := make([]*channel.PaymentChannel, 0, len(rows))
	for _, row := range rows {
		reconciled, err := r.reconcile(ctx, row)
		if err != nil {
			return nil, err
		}
		out = append(out, reconciled)
	}
	return out, nil
}

func (r *memRepo) AllOpen(ctx context.Context) ([]*channel.PaymentChannel, error) {
	return r.filterByState(ctx, channel.OPEN)
}

func (r *memRepo) AllSettling(ctx context.Context) ([]*channel.PaymentChannel, error) {
	return r.filterByState(ctx, channel.SETTLING)
}

func (r *memRepo) filterByState(ctx context.Context, state channel.State) ([]*channel.PaymentChannel, error) {
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

func (r *memRepo) FindUsable(ctx context.Context, sender, receiver common.Address, amount *big.Int) (*channel.PaymentChannel, error) {
	r.mutex.RLock()
	var candidates []channel.ID
	for id, rec := range r.records {
		if rec.Sender == sender && rec.Receiver == receiver {
			candidates = append(candidates, id)
		}
	}
	r.mutex.RUnlock()

	sortByInsertion(candidates, r.insertedAt)
	for _, id := range candidates {
		rec, err := r.FirstByID(ctx, id)
		if err != nil {
			continue
		}
		if rec.IsOpen() && rec.Remaining().Cmp(amount) >= 0 {
			return rec, nil
		}
	}
	return nil, perr.New(perr.NotFound, "no usable channel from %s to %s for %s", sender.Hex(), receiver.Hex(), amount)
}

func (r *memRepo) FindBySenderReceiver(ctx context.Context, sender, receiver common.Address) ([]*channel.PaymentChannel, error) {
	r.mutex.RLock()
	var candidates []channel.ID
	for id, rec := range r.records {
		if rec.Sender == sender && rec.Receiver == receiver {
			candidates = append(candidates, id)
		}
	}
	r.mutex.RUnlock()
	sortByInsertion(candidates, r.insertedAt)

	out := make([]*channel.PaymentChannel, 0, len(candidates))
	for _, id := range candidates {
		rec, err := r.FirstByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *memRepo) FindBySenderReceiverChannelID(ctx context.Context, sender, receiver common.Address, id channel.ID) (*channel.PaymentChannel, error) {
	rec, err := r.FirstByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec.Sender != sender || rec.Receiver != receiver {
		return nil, perr.New(perr.NotFound, "channel %s does not match sender/receiver", id)
	}
	return rec, nil
}

func sortByInsertion(ids []channel.ID, order map[channel.ID]int) {
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && order[ids[j-1]] > order[ids[j]]; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}
