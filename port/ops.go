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

// Every operation below follows the same shape: a safe entry point
// that locks, calls the Unsafe twin, and unlocks on every exit path;
// and an Unsafe entry point, which is the single body of logic and
// must only be called with the lock already held. Compound operations
// (GetChar's straddle path, ReadLine) are built out of Unsafe calls so
// they don't re-enter the lock per inner step.

// ---- output ----

// PutByte writes a single byte to p, bypassing any character
// encoding.
func (p *Port) PutByte(b byte) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.PutByteUnsafe(b)
}

// PutByteUnsafe is the lock-free twin of PutByte.
func (p *Port) PutByteUnsafe(b byte) error {
	if err := p.closedCheck("PutByte"); err != nil {
		return err
	}
	switch p.tag {
	case tagFile:
		f := p.file
		if f.current >= f.end {
			if err := f.drain(1); err != nil {
				p.closed = true
				return ioError("PutByte", p, err)
			}
		}
		f.buf[f.current] = b
		f.current++
		if f.mode == BufferNone {
			if err := f.drain(1); err != nil {
				p.closed = true
				return ioError("PutByte", p, err)
			}
		}
		return nil
	case tagOutputString:
		p.ostr.buf = append(p.ostr.buf, b)
		return nil
	case tagProcedural:
		return p.procPutByte(b)
	default:
		return newError("PutByte", p, BadPortType)
	}
}

// PutChar encodes and writes one code point to p.
func (p *Port) PutChar(c rune) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.PutCharUnsafe(c)
}

// PutCharUnsafe is the lock-free twin of PutChar.
func (p *Port) PutCharUnsafe(c rune) error {
	if err := p.closedCheck("PutChar"); err != nil {
		return err
	}
	switch p.tag {
	case tagFile:
		f := p.file
		n := nbytes(c)
		if f.current+n > f.end {
			if err := f.drain(n); err != nil {
				p.closed = true
				return ioError("PutChar", p, err)
			}
		}
		encode(f.buf[f.current:], c)
		f.current += n
		if f.mode == BufferLine && c == '\n' {
			if err := f.drain(n); err != nil {
				p.closed = true
				return ioError("PutChar", p, err)
			}
		} else if f.mode == BufferNone {
			if err := f.drain(n); err != nil {
				p.closed = true
				return ioError("PutChar", p, err)
			}
		}
		return nil
	case tagOutputString:
		var buf [MaxCharBytes]byte
		n := encode(buf[:], c)
		p.ostr.buf = append(p.ostr.buf, buf[:n]...)
		return nil
	case tagProcedural:
		return p.procPutChar(c)
	default:
		return newError("PutChar", p, BadPortType)
	}
}

// PutString writes every byte of s to p.
func (p *Port) PutString(s string) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.PutStringUnsafe(s)
}

// PutStringUnsafe is the lock-free twin of PutString.
func (p *Port) PutStringUnsafe(s string) error {
	return p.putBytesUnsafe(s, nil)
}

// PutBlock writes every byte of data to p.
func (p *Port) PutBlock(data []byte) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.PutBlockUnsafe(data)
}

// PutBlockUnsafe is the lock-free twin of PutBlock.
func (p *Port) PutBlockUnsafe(data []byte) error {
	return p.putBytesUnsafe("", data)
}

// putBytesUnsafe implements both PutString and PutBlock: exactly one
// of s/data is non-empty. They share a body because both land in the
// same file-buffer write path and the same line-mode backward scan.
func (p *Port) putBytesUnsafe(s string, data []byte) error {
	op := "PutBlock"
	if data == nil {
		op = "PutString"
	}
	if err := p.closedCheck(op); err != nil {
		return err
	}
	switch p.tag {
	case tagFile:
		f := p.file
		var err error
		if data != nil {
			err = f.writeBlock(data)
		} else {
			err = f.writeBlock([]byte(s))
		}
		if err != nil {
			p.closed = true
			return ioError(op, p, err)
		}
		switch f.mode {
		case BufferLine:
			// Scan the whole pending buffer: writeBlock may have
			// drained part of this write already, so the offset
			// where it started is no longer meaningful.
			if off, ok := f.lastNewlineOffset(0); ok {
				if derr := f.drainThrough(off); derr != nil {
					p.closed = true
					return ioError(op, p, derr)
				}
			}
		case BufferNone:
			if derr := f.drain(0); derr != nil {
				p.closed = true
				return ioError(op, p, derr)
			}
		}
		return nil
	case tagOutputString:
		if data != nil {
			p.ostr.buf = append(p.ostr.buf, data...)
		} else {
			p.ostr.buf = append(p.ostr.buf, s...)
		}
		return nil
	case tagProcedural:
		if data != nil {
			return p.procPutBlock(data)
		}
		return p.procPutString(s)
	default:
		return newError(op, p, BadPortType)
	}
}

// Flush drains any buffered output to the underlying sink.
func (p *Port) Flush() error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.FlushUnsafe()
}

// FlushUnsafe is the lock-free twin of Flush.
func (p *Port) FlushUnsafe() error {
	if err := p.closedCheck("Flush"); err != nil {
		return err
	}
	switch p.tag {
	case tagFile:
		if err := p.file.drain(0); err != nil {
			p.closed = true
			return ioError("Flush", p, err)
		}
		return nil
	case tagOutputString:
		return nil
	case tagProcedural:
		return p.procFlush()
	default:
		return newError("Flush", p, BadPortType)
	}
}

// SetBuffering changes the buffering mode of a file-backed output
// port. It is an error on any other backend.
func (p *Port) SetBuffering(mode BufferMode) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.SetBufferingUnsafe(mode)
}

// SetBufferingUnsafe is the lock-free twin of SetBuffering.
func (p *Port) SetBufferingUnsafe(mode BufferMode) error {
	if err := p.closedCheck("SetBuffering"); err != nil {
		return err
	}
	if p.tag != tagFile || p.direction != Output {
		return newError("SetBuffering", p, BadPortType)
	}
	p.file.mode = mode
	return nil
}

// ---- input ----

// shiftScratch drops the first n bytes from the scratch buffer.
func (p *Port) shiftScratch(n int) {
	copy(p.scratch[:p.scrcnt-n], p.scratch[n:p.scrcnt])
	p.scrcnt -= n
}

// materializeUngotten encodes the pending ungotten code point into
// scratch and clears ungotten, so that byte-level reads can be
// satisfied from the same scratch path as genuine pushback bytes.
func (p *Port) materializeUngotten() {
	n := encode(p.scratch[:], p.ungotten)
	p.scrcnt = n
	p.ungotten = noChar
}

// GetByte reads one byte, bypassing character decoding.
func (p *Port) GetByte() (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.GetByteUnsafe()
}

// GetByteUnsafe is the lock-free twin of GetByte.
func (p *Port) GetByteUnsafe() (int, error) {
	if err := p.closedCheck("GetByte"); err != nil {
		return 0, err
	}
	if p.scrcnt > 0 {
		b := p.scratch[0]
		p.shiftScratch(1)
		return int(b), nil
	}
	if p.ungotten != noChar {
		p.materializeUngotten()
		b := p.scratch[0]
		p.shiftScratch(1)
		return int(b), nil
	}
	switch p.tag {
	case tagFile:
		f := p.file
		if f.current >= f.end {
			n, err := f.fill(1, false)
			if err != nil {
				p.closed = true
				return 0, ioError("GetByte", p, err)
			}
			if n == 0 {
				return EOF, nil
			}
		}
		b := f.buf[f.current]
		f.current++
		return int(b), nil
	case tagInputString:
		s := p.istr
		if s.current >= len(s.data) {
			return EOF, nil
		}
		b := s.data[s.current]
		s.current++
		return int(b), nil
	case tagProcedural:
		return p.procGetByte()
	default:
		return 0, newError("GetByte", p, BadPortType)
	}
}

// getCharFromScratch decodes a code point that is (at least
// partially) already present in scratch, reading additional bytes one
// at a time via GetByteUnsafe if the scratch prefix is incomplete.
// This is the straddle path shared by every backend: scratch may hold
// a pushed-back character's bytes that were then partially consumed
// by a byte-level read.
func (p *Port) getCharFromScratch() (rune, error) {
	nb := nfollows(p.scratch[0])
	if nb < 0 {
		// A continuation byte left behind once the lead byte was
		// consumed: deliver it undecoded, as the backends do with a
		// byte that cannot begin a code point.
		b := p.scratch[0]
		p.shiftScratch(1)
		return rune(b), nil
	}
	var tmp [MaxCharBytes]byte
	have := p.scrcnt
	copy(tmp[:have], p.scratch[:have])
	p.scrcnt = 0
	for i := have; i <= nb; i++ {
		b, err := p.GetByteUnsafe()
		if err != nil {
			return 0, err
		}
		if b == EOF {
			return 0, newError("GetChar", p, IncompleteChar)
		}
		tmp[i] = byte(b)
	}
	c, _ := decode(tmp[:nb+1])
	if p.tag == tagFile && c == '\n' {
		p.line++
	}
	return c, nil
}

// GetChar reads and decodes one code point.
func (p *Port) GetChar() (rune, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.GetCharUnsafe()
}

// GetCharUnsafe is the lock-free twin of GetChar.
func (p *Port) GetCharUnsafe() (rune, error) {
	if err := p.closedCheck("GetChar"); err != nil {
		return 0, err
	}
	if p.scrcnt > 0 {
		return p.getCharFromScratch()
	}
	if p.ungotten != noChar {
		c := p.ungotten
		p.ungotten = noChar
		return c, nil
	}
	switch p.tag {
	case tagFile:
		return p.getCharFile()
	case tagInputString:
		return p.getCharInputString()
	case tagProcedural:
		return p.procGetChar()
	default:
		return 0, newError("GetChar", p, BadPortType)
	}
}

func (p *Port) getCharFile() (rune, error) {
	f := p.file
	if f.current >= f.end {
		n, err := f.fill(1, false)
		if err != nil {
			p.closed = true
			return 0, ioError("GetChar", p, err)
		}
		if n == 0 {
			return EOF, nil
		}
	}
	first := f.buf[f.current]
	f.current++
	nb := nfollows(first)
	if nb <= 0 {
		if first == '\n' {
			p.line++
		}
		return rune(first), nil
	}
	if f.current+nb <= f.end {
		c, _ := decode(f.buf[f.current-1 : f.current+nb])
		f.current += nb
		return c, nil
	}
	// Straddle path: the rest of the character hasn't been read
	// from the source yet. Move what we have into scratch and
	// keep filling until the character is complete or EOF hits
	// mid-character.
	p.scrcnt = f.end - f.current + 1
	copy(p.scratch[:p.scrcnt], f.buf[f.current-1:f.end])
	f.current = f.end
	rest := nb + 1 - p.scrcnt
	for rest > 0 {
		filled, err := f.fill(rest, false)
		if err != nil {
			p.closed = true
			return 0, ioError("GetChar", p, err)
		}
		if filled == 0 {
			return 0, newError("GetChar", p, IncompleteChar)
		}
		take := filled
		if take > rest {
			take = rest
		}
		copy(p.scratch[p.scrcnt:], f.buf[f.current:f.current+take])
		p.scrcnt += take
		f.current += take
		rest -= take
	}
	c, _ := decode(p.scratch[:nb+1])
	p.scrcnt = 0
	return c, nil
}

func (p *Port) getCharInputString() (rune, error) {
	s := p.istr
	if s.current >= len(s.data) {
		return EOF, nil
	}
	first := s.data[s.current]
	s.current++
	nb := nfollows(first)
	if nb <= 0 {
		return rune(first), nil
	}
	if s.current+nb > len(s.data) {
		return 0, newError("GetChar", p, IncompleteChar)
	}
	c, _ := decode(s.data[s.current-1 : s.current+nb])
	s.current += nb
	return c, nil
}

// GetBlock reads up to len(dst) bytes into dst. It returns (0, nil)
// and no error only when dst is empty; at end of input with no bytes
// copied it returns (0, io.EOF).
func (p *Port) GetBlock(dst []byte) (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.GetBlockUnsafe(dst)
}

// GetBlockUnsafe is the lock-free twin of GetBlock.
func (p *Port) GetBlockUnsafe(dst []byte) (int, error) {
	if err := p.closedCheck("GetBlock"); err != nil {
		return 0, err
	}
	if len(dst) == 0 {
		return 0, nil
	}
	got := 0
	if p.scrcnt > 0 {
		n := copy(dst, p.scratch[:p.scrcnt])
		p.shiftScratch(n)
		got += n
		dst = dst[n:]
	} else if p.ungotten != noChar {
		p.materializeUngotten()
		n := copy(dst, p.scratch[:p.scrcnt])
		p.shiftScratch(n)
		got += n
		dst = dst[n:]
	}
	if len(dst) == 0 {
		return got, nil
	}
	switch p.tag {
	case tagFile:
		n, err := p.file.readBlock(dst)
		if err != nil && err != io.EOF {
			p.closed = true
			return got, ioError("GetBlock", p, err)
		}
		return got + n, err
	case tagInputString:
		s := p.istr
		if s.current >= len(s.data) {
			if got == 0 {
				return 0, io.EOF
			}
			return got, nil
		}
		n := copy(dst, s.data[s.current:])
		s.current += n
		return got + n, nil
	case tagProcedural:
		n, err := p.procGetBlock(dst)
		return got + n, err
	default:
		return got, newError("GetBlock", p, BadPortType)
	}
}

// UngetChar pushes c back so the next GetChar (or the byte path,
// which materializes it) returns c. Only one code point of pushback
// is available; callers must only unget a code point they just read
// with no intervening reads.
func (p *Port) UngetChar(c rune) error {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.UngetCharUnsafe(c)
}

// UngetCharUnsafe is the lock-free twin of UngetChar.
func (p *Port) UngetCharUnsafe(c rune) error {
	if err := p.closedCheck("UngetChar"); err != nil {
		return err
	}
	p.ungotten = c
	return nil
}

// PeekByte returns the next byte without consuming it.
func (p *Port) PeekByte() (int, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.PeekByteUnsafe()
}

// PeekByteUnsafe is the lock-free twin of PeekByte.
func (p *Port) PeekByteUnsafe() (int, error) {
	if err := p.closedCheck("PeekByte"); err != nil {
		return 0, err
	}
	if p.scrcnt > 0 {
		return int(p.scratch[0]), nil
	}
	if p.ungotten != noChar {
		var buf [MaxCharBytes]byte
		encode(buf[:], p.ungotten)
		return int(buf[0]), nil
	}
	b, err := p.GetByteUnsafe()
	if err != nil || b == EOF {
		return b, err
	}
	p.scratch[0] = byte(b)
	p.scrcnt = 1
	return b, nil
}

// PeekChar returns the next code point without consuming it.
func (p *Port) PeekChar() (rune, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.PeekCharUnsafe()
}

// PeekCharUnsafe is the lock-free twin of PeekChar.
func (p *Port) PeekCharUnsafe() (rune, error) {
	c, err := p.GetCharUnsafe()
	if err != nil || c == EOF {
		return c, err
	}
	p.UngetCharUnsafe(c)
	return c, nil
}
