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
	"fmt"
	"sync"
	"time"

	gcq "github.com/enriquebris/goconcurrentqueue"
	ds "github.com/ipfs/go-datastore"
	"github.com/ipfs/go-datastore/query"
	badger "github.com/ipfs/go-ds-badger"

	"github.com/wcgcyx/paychan/channel"
	"github.com/wcgcyx/paychan/contract"
	"github.com/wcgcyx/paychan/perr"
)

// control holds the per-channel signal channels a tracking routine
// listens on, letting Renew/Retire reach a goroutine already polling
// chain height for that channel.
type control struct {
	renew  chan uint64
	retire chan struct{}
}

// OnElapsedFunc is called once a tracked channel's settling period has
// passed. Wired by the caller to something like
// mgr.CloseChannel(ctx, channelID, sender).
type OnElapsedFunc func(ctx context.Context, channelID channel.ID) error

// MonitorImpl implements Monitor against a contract.Adapter for chain
// height polling, an embedded datastore for durable tracking records
// across restarts, and a background FIFO queue for the record removals
// a tracking routine makes, so a slow disk never blocks its timer loop.
// Track and Renew write their records synchronously.
type MonitorImpl struct {
	adapter   contract.Adapter
	onElapsed OnElapsedFunc
	store     ds.Datastore

	routineCtx context.Context
	cancelRt   context.CancelFunc

	queueCtx context.Context
	cancelQ  context.CancelFunc
	wg       sync.WaitGroup
	queue    gcq.Queue

	cacheMutex sync.RWMutex
	cache      map[channel.ID]*control

	checkFreq time.Duration
}

// NewMonitor creates a MonitorImpl, restoring any channels it was
// tracking before a prior shutdown and resuming their watch routines.
//
// @input - context, contract adapter, elapsed callback, options.
//
// @output - monitor, error.
func NewMonitor(ctx context.Context, adapter contract.Adapter, onElapsed OnElapsedFunc, opts Opts) (*MonitorImpl, error) {
	checkFreq := opts.CheckFreq
	if checkFreq == 0 {
		checkFreq = defaultCheckFreq
	}
	var store ds.Datastore
	var err error
	if opts.Path == "" {
		store = ds.NewMapDatastore()
	} else {
		store, err = badger.NewDatastore(opts.Path, &badger.DefaultOptions)
		if err != nil {
			return nil, perr.Wrap(perr.StorageError, err, "open badger at %s", opts.Path)
		}
	}

	routineCtx, cancelRt := context.WithCancel(context.Background())
	queueCtx, cancelQ := context.WithCancel(context.Background())
	m := &MonitorImpl{
		adapter:    adapter,
		onElapsed:  onElapsed,
		store:      store,
		routineCtx: routineCtx,
		cancelRt:   cancelRt,
		queueCtx:   queueCtx,
		cancelQ:    cancelQ,
		queue:      gcq.NewFIFO(),
		cache:      make(map[channel.ID]*control),
		checkFreq:  checkFreq,
	}
	go m.processQueue()

	results, err := store.Query(ctx, query.Query{})
	if err != nil {
		cancelRt()
		cancelQ()
		return nil, perr.Wrap(perr.StorageError, err, "query tracked channels")
	}
	defer results.Close()
	for entry := range results.Next() {
		if entry.Error != nil {
			cancelRt()
			cancelQ()
			return nil, perr.Wrap(perr.StorageError, entry.Error, "iterate tracked channels")
		}
		id, err := channel.IDFromHex(ds.NewKey(entry.Key).Name())
		if err != nil {
			log.Warnf("skip malformed tracking key %s: %s", entry.Key, err)
			continue
		}
		_, settlingUntil, err := decVal(entry.Value)
		if err != nil {
			log.Warnf("skip malformed tracking value for %s: %s", id, err)
			continue
		}
		m.spawn(id, settlingUntil)
	}
	log.Infof("started settling monitor, checkFreq %s", checkFreq)
	return m, nil
}

func (m *MonitorImpl) key(id channel.ID) ds.Key {
	return ds.NewKey(fmt.Sprintf("/%s", id.String()))
}

func (m *MonitorImpl) spawn(id channel.ID, settlingUntil uint64) {
	renew := make(chan uint64, 1)
	retire := make(chan struct{}, 1)
	m.cacheMutex.Lock()
	m.cache[id] = &control{renew: renew, retire: retire}
	m.cacheMutex.Unlock()
	go m.watch(id, settlingUntil, renew, retire)
}

func (m *MonitorImpl) addToQueue(op func()) {
	m.wg.Add(1)
	go func() {
		m.queue.Enqueue(func() {
			defer m.wg.Done()
			op()
		})
	}()
}

func (m *MonitorImpl) processQueue() {
	for {
		op, err := m.queue.DequeueOrWaitForNextElementContext(m.queueCtx)
		if err != nil {
			if err == context.Canceled {
				log.Infof("settling monitor queue shutdown")
				return
			}
			log.Errorf("settling monitor queue returned unexpected error: %s", err)
			continue
		}
		op.(func())()
	}
}

// watch polls chain height at checkFreq until channelID's settling
// period elapses, it is renewed to a new height, or it is retired.
func (m *MonitorImpl) watch(id channel.ID, settlingUntil uint64, renew chan uint64, retire chan struct{}) {
	ticker := time.NewTicker(m.checkFreq)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			height, err := m.adapter.CurrentBlock(m.routineCtx)
			if err != nil {
				log.Warnf("settling monitor failed to read chain height for %s: %s", id, err)
				continue
			}
			if height >= settlingUntil {
				m.fire(id)
				return
			}
		case settlingUntil = <-renew:
		case <-retire:
			m.forget(id)
			return
		case <-m.routineCtx.Done():
			return
		}
	}
}

func (m *MonitorImpl) fire(id channel.ID) {
	log.Infof("settling period elapsed for channel %s, firing callback", id)
	if err := m.onElapsed(m.routineCtx, id); err != nil {
		log.Errorf("elapsed callback failed for channel %s: %s", id, err)
	}
	m.forget(id)
}

func (m *MonitorImpl) forget(id channel.ID) {
	m.addToQueue(func() {
		if err := m.store.Delete(m.routineCtx, m.key(id)); err != nil {
			log.Warnf("failed to remove tracking record for %s: %s", id, err)
		}
	})
	m.cacheMutex.Lock()
	delete(m.cache, id)
	m.cacheMutex.Unlock()
}

func (m *MonitorImpl) Track(ctx context.Context, channelID channel.ID, settlingUntil uint64) error {
	m.cacheMutex.RLock()
	_, exists := m.cache[channelID]
	m.cacheMutex.RUnlock()
	if exists {
		return nil
	}
	now := time.Now()
	val, err := encVal(now, settlingUntil)
	if err != nil {
		return perr.Wrap(perr.StorageError, err, "encode tracking record for %s", channelID)
	}
	if err := m.store.Put(ctx, m.key(channelID), val); err != nil {
		return perr.Wrap(perr.StorageError, err, "persist tracking record for %s", channelID)
	}
	m.spawn(channelID, settlingUntil)
	log.Debugf("tracking channel %s, settlingUntil %d", channelID, settlingUntil)
	return nil
}

func (m *MonitorImpl) Check(ctx context.Context, channelID channel.ID) (time.Time, uint64, error) {
	val, err := m.store.Get(ctx, m.key(channelID))
	if err != nil {
		if err == ds.ErrNotFound {
			return time.Time{}, 0, perr.New(perr.NotFound, "channel %s is not tracked", channelID)
		}
		return time.Time{}, 0, perr.Wrap(perr.StorageError, err, "read tracking record for %s", channelID)
	}
	return decVal(val)
}

func (m *MonitorImpl) Renew(ctx context.Context, channelID channel.ID, settlingUntil uint64) error {
	m.cacheMutex.RLock()
	ctl, exists := m.cache[channelID]
	m.cacheMutex.RUnlock()
	if !exists {
		return perr.New(perr.NotFound, "channel %s is not tracked", channelID)
	}
	val, err := encVal(time.Now(), settlingUntil)
	if err != nil {
		return perr.Wrap(perr.StorageError, err, "encode tracking record for %s", channelID)
	}
	if err := m.store.Put(ctx, m.key(channelID), val); err != nil {
		return perr.Wrap(perr.StorageError, err, "persist renewed tracking record for %s", channelID)
	}
	ctl.renew <- settlingUntil
	return nil
}

func (m *MonitorImpl) Retire(ctx context.Context, channelID channel.ID) error {
	m.cacheMutex.RLock()
	ctl, exists := m.cache[channelID]
	m.cacheMutex.RUnlock()
	if !exists {
		return perr.New(perr.NotFound, "channel %s is not tracked", channelID)
	}
	ctl.retire <- struct{}{}
	return nil
}

func (m *MonitorImpl) Shutdown() {
	log.Infof("shutting down settling monitor")
	m.cancelRt()
	m.wg.Wait()
	m.cancelQ()
	if err := m.store.Close(); err != nil {
		log.Errorf("failed to close settling monitor store: %s", err)
	}
}
