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

// Package digest wraps an existing port.Port in a procedural shim
// that tees every byte read or written through a BLAKE2b hash, for
// content-addressed caching of port output (e.g. interning two
// open-output-string ports with identical finalized content, or
// verifying a downloaded input stream against a known digest).
package digest

import (
	"golang.org/x/crypto/blake2b"

	"github.com/corvid-scheme/schemeport/port"
)

// Port is a digest-teeing wrapper around an underlying port.Port.
type Port struct {
	*port.Port
	hasher interface {
		Write([]byte) (int, error)
		Sum([]byte) []byte
	}
}

// NewWriter wraps dst so that every byte written through the returned
// Port is also hashed. Sum is only meaningful after the caller is
// done writing (and has Flushed, if buffering is in effect).
func NewWriter(dst *port.Port) (*Port, error) {
	h, err := blake2b.New512(nil)
	if err != nil {
		return nil, err
	}
	d := &Port{hasher: h}
	d.Port = port.OpenProcedural(port.Output, port.Procedural{
		PutByte: func(_ *port.Port, b byte) error {
			h.Write([]byte{b})
			return dst.PutByte(b)
		},
		PutBlock: func(_ *port.Port, data []byte) error {
			h.Write(data)
			return dst.PutBlock(data)
		},
		Flush: func(_ *port.Port) error {
			return dst.Flush()
		},
		Close: func(_ *port.Port) error {
			return dst.Close()
		},
	})
	return d, nil
}

// NewReader wraps src so that every byte read through the returned
// Port is also hashed, letting a caller verify a stream's digest as
// it is consumed rather than buffering the whole thing up front.
func NewReader(src *port.Port) (*Port, error) {
	h, err := blake2b.New512(nil)
	if err != nil {
		return nil, err
	}
	d := &Port{hasher: h}
	d.Port = port.OpenProcedural(port.Input, port.Procedural{
		GetByte: func(_ *port.Port) (int, error) {
			b, err := src.GetByte()
			if err != nil || b == port.EOF {
				return b, err
			}
			h.Write([]byte{byte(b)})
			return b, nil
		},
		GetBlock: func(_ *port.Port, dst []byte) (int, error) {
			n, err := src.GetBlock(dst)
			if n > 0 {
				h.Write(dst[:n])
			}
			return n, err
		},
		Close: func(_ *port.Port) error {
			return src.Close()
		},
	})
	return d, nil
}

// Sum returns the BLAKE2b-512 digest of every byte that has passed
// through the port so far.
func (d *Port) Sum() [64]byte {
	var out [64]byte
	copy(out[:], d.hasher.Sum(nil))
	return out
}
