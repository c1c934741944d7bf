// Package options wraps the single options/global record with a
// brief-TTL cache so every operator iteration can read it cheaply
// without hammering the store, and exposes it only as an immutable
// snapshot so operators cannot accidentally mutate shared state.
package options

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hpe-cray/bos/internal/model"
	"github.com/hpe-cray/bos/internal/store"
)

// globalKey is the single record options are stored under: the options
// kind has exactly one row, the untenanted global record.
const globalKey = "/global"

// Snapshot is an immutable view of the options record as observed at
// some point in time. Operators take one Snapshot per loop iteration
// and read all the way through it rather than re-fetching fields.
type Snapshot struct {
	model.Options
	ObservedAt time.Time
}

// Provider serves Snapshots backed by store s, refreshing from the
// store no more often than ttl. A fresh store with no options record
// yet written serves model.DefaultOptions() until something is Put.
type Provider struct {
	s   store.Store
	ttl time.Duration

	mu       sync.Mutex
	cached   Snapshot
	cachedAt time.Time
}

// New constructs a Provider that refreshes from s at most once per ttl.
func New(s store.Store, ttl time.Duration) *Provider {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &Provider{
		s:      s,
		ttl:    ttl,
		cached: Snapshot{Options: model.DefaultOptions()},
	}
}

// Get returns the current options Snapshot, refreshing from the store
// if the cached copy is older than the provider's ttl. A store read
// failure returns the last good snapshot rather than an error — a
// transiently unreachable store must never stall every operator at
// once.
func (p *Provider) Get(ctx context.Context) Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	if time.Since(p.cachedAt) < p.ttl && !p.cachedAt.IsZero() {
		return p.cached
	}

	raw, found, err := p.s.Get(ctx, store.KindOptions, globalKey)
	if err != nil || !found {
		p.cachedAt = time.Now()
		return p.cached
	}

	opts := model.DefaultOptions()
	if err := json.Unmarshal(raw, &opts); err != nil {
		p.cachedAt = time.Now()
		return p.cached
	}

	p.cached = Snapshot{Options: opts, ObservedAt: time.Now()}
	p.cachedAt = p.cached.ObservedAt
	return p.cached
}

// Update patches the options record, applying mutate to the current
// typed value and persisting the result. Callers (the REST layer) get
// an up-to-date Snapshot back; the cache is invalidated so the very
// next Get re-reads rather than serving stale data for up to ttl.
func (p *Provider) Update(ctx context.Context, mutate func(*model.Options)) (Snapshot, error) {
	err := p.s.Patch(ctx, store.KindOptions, globalKey, func(before []byte, exists bool) ([]byte, error) {
		opts := model.DefaultOptions()
		if exists {
			if err := json.Unmarshal(before, &opts); err != nil {
				return nil, fmt.Errorf("options: decode current record: %w", err)
			}
		}
		mutate(&opts)
		return json.Marshal(opts)
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("options: update: %w", err)
	}

	p.mu.Lock()
	p.cachedAt = time.Time{}
	p.mu.Unlock()

	return p.Get(ctx), nil
}
