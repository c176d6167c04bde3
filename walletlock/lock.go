// Copyright (c) 2023-2025 The txcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package walletlock serializes proposal mutations per wallet.

Every state transition of a proposal (create, publish, vote, broadcast) must
run under the wallet's advisory lock so concurrent requests cannot interleave
quorum arithmetic.  Acquisition waits a bounded time and then fails busy;
held leases expire so a crashed holder cannot wedge a wallet, and an expired
lease can be stolen by the next acquirer.
*/
package walletlock

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	// DefaultAcquireTimeout bounds how long an acquirer waits for a busy
	// wallet before failing.
	DefaultAcquireTimeout = 5 * time.Second

	// DefaultLeaseTTL is how long a lease stays valid without renewal
	// before the next acquirer may steal it.
	DefaultLeaseTTL = 2 * time.Minute
)

// Config tunes a lock manager.  Zero values select the defaults.
type Config struct {
	AcquireTimeout time.Duration
	LeaseTTL       time.Duration
}

// Manager hands out per-wallet leases.  It is safe for concurrent use.
type Manager struct {
	mu    sync.Mutex
	cfg   Config
	locks map[string]*walletLock
}

type walletLock struct {
	// sem queues waiters; the single permit is the wallet's lock.
	sem *semaphore.Weighted

	mu         sync.Mutex
	generation uint64
	held       bool
	expiresAt  time.Time
}

// Lease is proof of holding a wallet's lock.  It is invalidated by Release,
// by expiry followed by a steal, and by nothing else.
type Lease struct {
	WalletID string

	mgr        *Manager
	lock       *walletLock
	generation uint64
}

// NewManager returns a lock manager with the given configuration.
func NewManager(cfg Config) *Manager {
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultAcquireTimeout
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = DefaultLeaseTTL
	}
	return &Manager{
		cfg:   cfg,
		locks: make(map[string]*walletLock),
	}
}

func (m *Manager) walletLockFor(walletID string) *walletLock {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.locks[walletID]
	if !ok {
		l = &walletLock{sem: semaphore.NewWeighted(1)}
		m.locks[walletID] = l
	}
	return l
}

// Acquire takes the wallet's lock, waiting up to the configured timeout
// behind the current holder.  When the wait times out but the holder's lease
// has expired, the lease is stolen instead of failing.  The ctx may carry an
// earlier deadline; its cancellation fails the acquire with ErrBusy.
func (m *Manager) Acquire(ctx context.Context, walletID string) (*Lease, error) {
	l := m.walletLockFor(walletID)

	waitCtx, cancel := context.WithTimeout(ctx, m.cfg.AcquireTimeout)
	defer cancel()

	if err := l.sem.Acquire(waitCtx, 1); err != nil {
		// The permit is taken.  Steal it if the holder's lease
		// already expired, otherwise report busy.
		l.mu.Lock()
		if l.held && time.Now().After(l.expiresAt) {
			l.generation++
			l.expiresAt = time.Now().Add(m.cfg.LeaseTTL)
			gen := l.generation
			l.mu.Unlock()
			log.Warnf("Stole expired lock on wallet %s", walletID)
			return &Lease{
				WalletID:   walletID,
				mgr:        m,
				lock:       l,
				generation: gen,
			}, nil
		}
		l.mu.Unlock()
		return nil, newError(ErrBusy,
			"wallet "+walletID+" is locked", err)
	}

	l.mu.Lock()
	l.generation++
	l.held = true
	l.expiresAt = time.Now().Add(m.cfg.LeaseTTL)
	gen := l.generation
	l.mu.Unlock()

	return &Lease{
		WalletID:   walletID,
		mgr:        m,
		lock:       l,
		generation: gen,
	}, nil
}

// Extend renews the lease's expiry.  It fails if the lease was released or
// stolen in the meantime.
func (lease *Lease) Extend() error {
	l := lease.lock
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.held || l.generation != lease.generation {
		return newError(ErrStaleLease,
			"lease on wallet "+lease.WalletID+" is no longer held", nil)
	}
	l.expiresAt = time.Now().Add(lease.mgr.cfg.LeaseTTL)
	return nil
}

// Release gives the wallet's lock back.  Releasing a stale lease is a no-op
// error: a stolen lease's permit now belongs to the thief, so only the
// current generation may return it.
func (lease *Lease) Release() error {
	l := lease.lock
	l.mu.Lock()
	if !l.held || l.generation != lease.generation {
		l.mu.Unlock()
		return newError(ErrStaleLease,
			"lease on wallet "+lease.WalletID+" is no longer held", nil)
	}
	l.held = false
	l.mu.Unlock()

	l.sem.Release(1)
	return nil
}
