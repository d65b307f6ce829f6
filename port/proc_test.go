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
	"bytes"
	"io"
	"sync"
	"testing"
)

func TestProceduralMissingCallbackIsUnsupported(t *testing.T) {
	p := OpenProcedural(Output, Procedural{})
	err := p.PutByte('x')
	perr, ok := err.(*Error)
	if !ok || perr.Kind != UnsupportedOperation {
		t.Fatalf("PutByte on empty Procedural: %v, want UnsupportedOperation", err)
	}
}

func TestProceduralPutStringFallsBackToPutByte(t *testing.T) {
	var got bytes.Buffer
	p := OpenProcedural(Output, Procedural{
		PutByte: func(_ *Port, b byte) error {
			return got.WriteByte(b)
		},
	})
	if err := p.PutString("hi"); err != nil {
		t.Fatal(err)
	}
	if got.String() != "hi" {
		t.Fatalf("got %q, want %q", got.String(), "hi")
	}
}

// A procedural backend whose GetBlock calls back into the same
// port's safe GetByte method on the same goroutine. This only
// terminates without deadlock because the port lock is reentrant.
func TestReentrantLockAllowsCallbackReentry(t *testing.T) {
	src := []byte("abc")
	idx := 0
	var p *Port
	p = OpenProcedural(Input, Procedural{
		GetByte: func(_ *Port) (int, error) {
			if idx >= len(src) {
				return EOF, nil
			}
			b := src[idx]
			idx++
			return int(b), nil
		},
		GetBlock: func(self *Port, dst []byte) (int, error) {
			n := 0
			for n < len(dst) {
				// Re-enters the safe API while this
				// very call is holding the port lock.
				b, err := self.GetByte()
				if err != nil {
					return n, err
				}
				if b == EOF {
					break
				}
				dst[n] = byte(b)
				n++
			}
			return n, nil
		},
	})

	buf := make([]byte, 3)
	n, err := p.GetBlock(buf)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 || string(buf) != "abc" {
		t.Fatalf("GetBlock() = (%q, %d), want (\"abc\", 3)", buf[:n], n)
	}
}

// Property 8 — linearizability: concurrent PutString calls against a
// single port never interleave within one safe call.
func TestConcurrentPutStringDoesNotInterleave(t *testing.T) {
	p := OpenOutputString()
	const n = 16
	const runLen = 64
	var wg sync.WaitGroup
	runs := make([]string, n)
	for i := 0; i < n; i++ {
		s := bytes.Repeat([]byte{byte('A' + i)}, runLen)
		runs[i] = string(s)
		wg.Add(1)
		go func(s string) {
			defer wg.Done()
			if err := p.PutString(s); err != nil {
				t.Error(err)
			}
		}(runs[i])
	}
	wg.Wait()

	out := p.String()
	if len(out) != n*runLen {
		t.Fatalf("got %d bytes, want %d", len(out), n*runLen)
	}
	seen := map[string]bool{}
	for i := 0; i < len(out); i += runLen {
		chunk := out[i : i+runLen]
		for j := 1; j < len(chunk); j++ {
			if chunk[j] != chunk[0] {
				t.Fatalf("run at offset %d is not contiguous/uniform: %q", i, chunk)
			}
		}
		seen[chunk] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d distinct runs, saw %d", n, len(seen))
	}
}

// The byte-fallback GetBlock loop must report io.EOF on an empty read,
// matching the file and input-string backends, so callers can test
// for io.EOF across every backend uniformly.
func TestProceduralGetBlockByteFallbackReportsEOF(t *testing.T) {
	p := OpenProcedural(Input, Procedural{
		GetByte: func(_ *Port) (int, error) {
			return EOF, nil
		},
	})
	buf := make([]byte, 4)
	n, err := p.GetBlock(buf)
	if n != 0 || err != io.EOF {
		t.Fatalf("GetBlock() = (%d, %v), want (0, io.EOF)", n, err)
	}
}

func TestGetBlockDrainsScratchThenBackend(t *testing.T) {
	p := OpenInputString("hello world")
	c, err := p.GetChar()
	if err != nil {
		t.Fatal(err)
	}
	if err := p.UngetChar(c); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 5)
	n, err := p.GetBlock(buf)
	if err != nil || n != 5 || string(buf) != "hello" {
		t.Fatalf("GetBlock() = (%q, %d, %v), want (\"hello\", 5, nil)", buf[:n], n, err)
	}
}
