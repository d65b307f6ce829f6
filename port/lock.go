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

package port

import (
	"sync"

	"github.com/timandy/routine"
)

// reentrantLock is the per-port mutual-exclusion primitive. Unlike a
// plain sync.Mutex, it may be re-acquired by the goroutine that
// already holds it: a procedural backend's callback is free to call
// back into the port's safe API (e.g. a custom block reader that
// calls GetByte) on the same goroutine without deadlocking.
//
// Ownership is tracked by goroutine-local identity rather than a
// token threaded through every call, which keeps the safe/unsafe
// entry points symmetric with the rest of the package.
type reentrantLock struct {
	mu    sync.Mutex
	cond  *sync.Cond
	owner int64
	depth int
}

func newReentrantLock() *reentrantLock {
	l := &reentrantLock{}
	l.cond = sync.NewCond(&l.mu)
	return l
}

func (l *reentrantLock) Lock() {
	gid := routine.Goid()
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.depth > 0 && l.owner != gid {
		l.cond.Wait()
	}
	l.owner = gid
	l.depth++
}

func (l *reentrantLock) Unlock() {
	gid := routine.Goid()
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.depth == 0 || l.owner != gid {
		panic("port: Unlock called by a goroutine that does not hold the lock")
	}
	l.depth--
	if l.depth == 0 {
		l.owner = 0
		l.cond.Signal()
	}
}

// heldByCaller reports whether the calling goroutine currently holds
// the lock.
func (l *reentrantLock) heldByCaller() bool {
	gid := routine.Goid()
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.depth > 0 && l.owner == gid
}
