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

package zport

import (
	"bytes"
	"strings"
	"testing"

	"github.com/corvid-scheme/schemeport/port"
)

func TestCompressedRoundTrip(t *testing.T) {
	var sink bytes.Buffer
	out, err := OpenCompressedOutput(&sink, 64, port.BufferFull, Fast)
	if err != nil {
		t.Fatal(err)
	}
	text := strings.Repeat("the quick brown fox jumps over the lazy dog\n", 100)
	if err := out.PutString(text); err != nil {
		t.Fatal(err)
	}
	if err := out.Close(); err != nil {
		t.Fatal(err)
	}
	if sink.Len() == 0 {
		t.Fatal("expected compressed bytes in sink")
	}
	if sink.Len() >= len(text) {
		t.Fatalf("compressed size %d not smaller than input %d", sink.Len(), len(text))
	}

	in, err := OpenCompressedInput(bytes.NewReader(sink.Bytes()), 64)
	if err != nil {
		t.Fatal(err)
	}
	defer in.Close()

	buf := make([]byte, len(text))
	got := 0
	for got < len(buf) {
		n, err := in.GetBlock(buf[got:])
		got += n
		if err != nil {
			break
		}
		if n == 0 {
			break
		}
	}
	if got != len(text) || string(buf) != text {
		t.Fatalf("round trip mismatch: got %d bytes, want %d", got, len(text))
	}
}

func TestUnknownLevelRejected(t *testing.T) {
	var sink bytes.Buffer
	_, err := OpenCompressedOutput(&sink, 64, port.BufferFull, Level("bogus"))
	if err == nil {
		t.Fatal("expected error for unknown level")
	}
}
