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

package registry

import (
	"testing"

	"github.com/corvid-scheme/schemeport/port"
)

type testLogger struct {
	lines []string
}

func (l *testLogger) Printf(f string, args ...interface{}) {
	l.lines = append(l.lines, f)
}

func TestRegisterLookupForget(t *testing.T) {
	r := New(1, 2)
	log := &testLogger{}
	r.Logger = log

	p := port.OpenOutputString()
	id := r.Register("test-port", p)

	got, ok := r.Lookup(id)
	if !ok || got != p {
		t.Fatalf("Lookup() = (%v, %v), want (p, true)", got, ok)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", r.Len())
	}
	if len(log.lines) == 0 {
		t.Fatal("expected registration to be logged")
	}

	r.Forget(id)
	if _, ok := r.Lookup(id); ok {
		t.Fatal("expected port to be forgotten")
	}
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", r.Len())
	}
}

func TestInternOutputStringDeduplicates(t *testing.T) {
	r := New(0x1234, 0x5678)

	p1 := port.OpenOutputString()
	if err := p1.PutString("same content"); err != nil {
		t.Fatal(err)
	}
	p2 := port.OpenOutputString()
	if err := p2.PutString("same content"); err != nil {
		t.Fatal(err)
	}

	id1, err := r.InternOutputString("p1", p1)
	if err != nil {
		t.Fatal(err)
	}
	id2, err := r.InternOutputString("p2", p2)
	if err != nil {
		t.Fatal(err)
	}
	if id1 != id2 {
		t.Fatalf("expected identical content to intern to the same id, got %s and %s", id1, id2)
	}
	if r.Len() != 1 {
		t.Fatalf("Len() = %d, want 1 after dedup", r.Len())
	}
}

func TestInternOutputStringRejectsNonOutputStringPort(t *testing.T) {
	r := New(0, 0)
	p := port.OpenInputString("x")
	if _, err := r.InternOutputString("bad", p); err == nil {
		t.Fatal("expected error interning a non-output-string port")
	}
}

func TestMaxEntriesEvictsOldest(t *testing.T) {
	r := New(0, 0)
	log := &testLogger{}
	r.Logger = log
	r.SetMaxEntries(2)

	id1 := r.Register("p1", port.OpenOutputString())
	id2 := r.Register("p2", port.OpenOutputString())
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", r.Len())
	}

	id3 := r.Register("p3", port.OpenOutputString())
	if r.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 after eviction", r.Len())
	}
	if _, ok := r.Lookup(id1); ok {
		t.Fatal("expected oldest entry (p1) to be evicted")
	}
	if _, ok := r.Lookup(id2); !ok {
		t.Fatal("expected p2 to still be registered")
	}
	if _, ok := r.Lookup(id3); !ok {
		t.Fatal("expected p3 to still be registered")
	}
}

func TestMaxEntriesZeroIsUnlimited(t *testing.T) {
	r := New(0, 0)
	for i := 0; i < 100; i++ {
		r.Register("p", port.OpenOutputString())
	}
	if r.Len() != 100 {
		t.Fatalf("Len() = %d, want 100 with MaxEntries unset", r.Len())
	}
}

func TestIDsSorted(t *testing.T) {
	r := New(0, 0)
	for i := 0; i < 5; i++ {
		r.Register("p", port.OpenOutputString())
	}
	ids := r.IDs()
	if len(ids) != 5 {
		t.Fatalf("got %d ids, want 5", len(ids))
	}
	for i := 1; i < len(ids); i++ {
		if ids[i-1].String() > ids[i].String() {
			t.Fatal("IDs() not sorted")
		}
	}
}
