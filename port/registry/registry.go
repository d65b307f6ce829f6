// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package registry tracks a set of live ports under stable UUID
// identities, the way dcache.Cache tracks live mappings: a mutex-
// guarded map plus an injectable Logger for lifecycle events. It also
// deduplicates interned output-string ports by the siphash of their
// finalized contents, so that two open-output-string ports built from
// identical text collapse to a single registry entry.
package registry

import (
	"fmt"
	"sync"

	"github.com/dchest/siphash"
	"github.com/google/uuid"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/corvid-scheme/schemeport/port"
)

// Logger is the logging interface the registry needs, matching
// dcache.Cache's injectable Logger so the same *log.Logger (or a test
// double) satisfies both.
type Logger interface {
	Printf(f string, args ...interface{})
}

// entry is one tracked port.
type entry struct {
	id   uuid.UUID
	p    *port.Port
	name string
}

// Registry assigns stable UUID identities to ports and deduplicates
// interned output-string ports by content hash. Once MaxEntries is
// set to a positive value, Register and InternOutputString evict the
// oldest still-registered entry (by insertion order) whenever
// registering a new one would exceed it, the way dcache.Cache evicts
// its least-recently-opened mapping under pressure.
type Registry struct {
	Logger Logger

	// MaxEntries caps the number of tracked ports; zero means
	// unlimited. It is read under lock by Register and
	// InternOutputString, so it may be changed at any time via
	// SetMaxEntries.
	maxEntries int

	key0, key1 uint64 // siphash key, fixed for the registry's lifetime

	lock   sync.Mutex
	byID   map[uuid.UUID]*entry
	byHash map[uint64]uuid.UUID
	order  []uuid.UUID // insertion order, oldest first, for eviction
}

// New creates an empty registry. key0/key1 seed the siphash used for
// content deduplication; pass any two fixed 64-bit values distinct
// per-process if dedup is in use, or zero if dedup is never called.
func New(key0, key1 uint64) *Registry {
	return &Registry{
		key0:   key0,
		key1:   key1,
		byID:   make(map[uuid.UUID]*entry),
		byHash: make(map[uint64]uuid.UUID),
	}
}

// SetMaxEntries sets the eviction cap; zero (the default) means
// unlimited. It does not retroactively evict entries already over a
// newly-lowered cap — the next Register or InternOutputString call
// will.
func (r *Registry) SetMaxEntries(n int) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.maxEntries = n
}

// MaxEntries reports the current eviction cap.
func (r *Registry) MaxEntries() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.maxEntries
}

func (r *Registry) logf(f string, args ...interface{}) {
	if r.Logger != nil {
		r.Logger.Printf(f, args...)
	}
}

// insertLocked records e under id, appends it to the insertion order,
// and evicts the oldest entries while over maxEntries. Caller must
// hold r.lock.
func (r *Registry) insertLocked(id uuid.UUID, e *entry) {
	r.byID[id] = e
	r.order = append(r.order, id)
	for r.maxEntries > 0 && len(r.byID) > r.maxEntries {
		evict := r.order[0]
		r.order = r.order[1:]
		if ev, ok := r.byID[evict]; ok {
			r.forgetLocked(evict)
			r.logf("registry: evicted %s (%s), over MaxEntries=%d", ev.name, evict, r.maxEntries)
		}
	}
}

// forgetLocked removes id from byID/byHash but not from order; order
// entries for already-forgotten ids are skipped lazily by
// insertLocked's eviction loop. Caller must hold r.lock.
func (r *Registry) forgetLocked(id uuid.UUID) {
	delete(r.byID, id)
	for h, hid := range r.byHash {
		if hid == id {
			delete(r.byHash, h)
		}
	}
}

// Register assigns p a fresh UUID and tracks it under name for
// diagnostics. It returns the assigned id.
func (r *Registry) Register(name string, p *port.Port) uuid.UUID {
	r.lock.Lock()
	defer r.lock.Unlock()
	id := uuid.New()
	r.insertLocked(id, &entry{id: id, p: p, name: name})
	r.logf("registry: registered %s as %s", name, id)
	return id
}

// Lookup returns the port registered under id, if any.
func (r *Registry) Lookup(id uuid.UUID) (*port.Port, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	e, ok := r.byID[id]
	if !ok {
		return nil, false
	}
	return e.p, true
}

// Forget removes id from the registry. It does not close the port.
func (r *Registry) Forget(id uuid.UUID) {
	r.lock.Lock()
	defer r.lock.Unlock()
	if e, ok := r.byID[id]; ok {
		r.forgetLocked(id)
		r.logf("registry: forgot %s (%s)", e.name, id)
	}
}

// Len reports how many ports are currently tracked.
func (r *Registry) Len() int {
	r.lock.Lock()
	defer r.lock.Unlock()
	return len(r.byID)
}

// IDs returns a sorted snapshot of every tracked UUID, for
// deterministic diagnostics output.
func (r *Registry) IDs() []uuid.UUID {
	r.lock.Lock()
	defer r.lock.Unlock()
	ids := maps.Keys(r.byID)
	slices.SortFunc(ids, func(a, b uuid.UUID) bool {
		return a.String() < b.String()
	})
	return ids
}

// InternOutputString registers p (an output-string port, identified
// by name) under a content hash of its current bytes, returning the
// id of an existing registry entry with identical content instead of
// creating a duplicate. Finalize p (stop writing to it) before
// calling this, since the hash is taken once, at call time.
func (r *Registry) InternOutputString(name string, p *port.Port) (id uuid.UUID, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("registry: InternOutputString requires an output-string port: %v", rec)
		}
	}()
	data := p.Bytes()
	h := siphash.Hash(r.key0, r.key1, data)

	r.lock.Lock()
	defer r.lock.Unlock()
	if existing, ok := r.byHash[h]; ok {
		if _, stillLive := r.byID[existing]; stillLive {
			r.logf("registry: interned %s onto existing %s", name, existing)
			return existing, nil
		}
		delete(r.byHash, h)
	}
	id = uuid.New()
	r.insertLocked(id, &entry{id: id, p: p, name: name})
	r.byHash[h] = id
	r.logf("registry: registered %s as %s (new content hash)", name, id)
	return id, nil
}
