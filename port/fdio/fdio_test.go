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

package fdio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/corvid-scheme/schemeport/port"
)

func TestOpenOutputThenInputRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "roundtrip.txt")

	out, err := OpenOutput(path, 64, port.BufferFull)
	if err != nil {
		t.Fatal(err)
	}
	if err := out.PutString("hello, fd\n"); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}

	in, err := OpenInput(path, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()

	line, err := in.ReadLine()
	if err != nil {
		t.Fatal(err)
	}
	if line != "hello, fd" {
		t.Fatalf("got %q, want %q", line, "hello, fd")
	}
}

func TestOpenInputMissingFile(t *testing.T) {
	_, err := OpenInput(filepath.Join(t.TempDir(), "does-not-exist"), 64)
	if err == nil {
		t.Fatal("expected error opening nonexistent file")
	}
}

func TestInputFromFDDoesNotCloseUnderlying(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stdin-like.txt")
	if err := os.WriteFile(path, []byte("abc"), 0644); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	p := InputFromFD(int(f.Fd()), 64)
	b, err := p.GetByte()
	if err != nil || b != 'a' {
		t.Fatalf("GetByte() = (%v, %v), want ('a', nil)", b, err)
	}
	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	// InputFromFD attaches no closer, so Port.Close left the raw
	// os.File handle (and the fd it wraps) valid here.
	var buf [1]byte
	if _, err := f.ReadAt(buf[:], 0); err != nil {
		t.Fatalf("underlying file should still be open: %v", err)
	}
}
