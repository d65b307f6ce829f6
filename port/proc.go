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

import "io"

// Procedural is the set of user-supplied callbacks backing a
// procedural (virtual) port. All fields are optional; an operation
// whose callback is nil signals UnsupportedOperation unless it has a
// fallback: PutChar and PutBlock fall back to PutByte, PutString to
// PutChar (or else PutByte) one code point at a time, and GetChar and
// GetBlock to GetByte; a nil Flush or Close does nothing. A GetBlock
// callback that returns (0, nil) is reported as io.EOF. Every callback executes under the
// port's lock and may call back into the port's safe API on the same
// goroutine without deadlocking.
type Procedural struct {
	GetByte func(p *Port) (int, error)
	GetChar func(p *Port) (rune, error)
	GetBlock func(p *Port, dst []byte) (int, error)

	PutByte  func(p *Port, b byte) error
	PutChar  func(p *Port, c rune) error
	PutString func(p *Port, s string) error
	PutBlock func(p *Port, data []byte) error

	Flush func(p *Port) error
	Close func(p *Port) error
}

type proceduralBackend = Procedural

// OpenProcedural opens a port dispatching every operation to the
// callbacks in cb.
func OpenProcedural(dir Direction, cb Procedural) *Port {
	p := newPort(dir, tagProcedural)
	c := cb
	p.proc = &c
	return p
}

func (p *Port) procPutByte(b byte) error {
	if p.proc.PutByte != nil {
		return p.proc.PutByte(p, b)
	}
	return newError("PutByte", p, UnsupportedOperation)
}

func (p *Port) procPutChar(c rune) error {
	if p.proc.PutChar != nil {
		return p.proc.PutChar(p, c)
	}
	if p.proc.PutByte != nil {
		var buf [MaxCharBytes]byte
		n := encode(buf[:], c)
		for _, b := range buf[:n] {
			if err := p.proc.PutByte(p, b); err != nil {
				return err
			}
		}
		return nil
	}
	return newError("PutChar", p, UnsupportedOperation)
}

func (p *Port) procPutString(s string) error {
	if p.proc.PutString != nil {
		return p.proc.PutString(p, s)
	}
	if p.proc.PutChar != nil || p.proc.PutByte != nil {
		for _, r := range s {
			if err := p.procPutChar(r); err != nil {
				return err
			}
		}
		return nil
	}
	return newError("PutString", p, UnsupportedOperation)
}

func (p *Port) procPutBlock(data []byte) error {
	if p.proc.PutBlock != nil {
		return p.proc.PutBlock(p, data)
	}
	if p.proc.PutByte != nil {
		for _, b := range data {
			if err := p.proc.PutByte(p, b); err != nil {
				return err
			}
		}
		return nil
	}
	return newError("PutBlock", p, UnsupportedOperation)
}

func (p *Port) procGetByte() (int, error) {
	if p.proc.GetByte != nil {
		return p.proc.GetByte(p)
	}
	return 0, newError("GetByte", p, UnsupportedOperation)
}

func (p *Port) procGetChar() (rune, error) {
	if p.proc.GetChar != nil {
		return p.proc.GetChar(p)
	}
	if p.proc.GetByte != nil {
		first, err := p.proc.GetByte(p)
		if err != nil {
			return 0, err
		}
		if first == EOF {
			return EOF, nil
		}
		nb := nfollows(byte(first))
		if nb == 0 {
			return rune(first), nil
		}
		var buf [MaxCharBytes]byte
		buf[0] = byte(first)
		for i := 1; i <= nb; i++ {
			b, err := p.proc.GetByte(p)
			if err != nil {
				return 0, err
			}
			if b == EOF {
				return 0, newError("GetChar", p, IncompleteChar)
			}
			buf[i] = byte(b)
		}
		c, _ := decode(buf[:nb+1])
		return c, nil
	}
	return 0, newError("GetChar", p, UnsupportedOperation)
}

func (p *Port) procGetBlock(dst []byte) (int, error) {
	if p.proc.GetBlock != nil {
		n, err := p.proc.GetBlock(p, dst)
		if n == 0 && err == nil {
			return 0, io.EOF
		}
		return n, err
	}
	if p.proc.GetByte != nil {
		for i := range dst {
			b, err := p.proc.GetByte(p)
			if err != nil {
				return i, err
			}
			if b == EOF {
				if i == 0 {
					return 0, io.EOF
				}
				return i, nil
			}
			dst[i] = byte(b)
		}
		return len(dst), nil
	}
	return 0, newError("GetBlock", p, UnsupportedOperation)
}

func (p *Port) procFlush() error {
	if p.proc.Flush != nil {
		return p.proc.Flush(p)
	}
	return nil
}
