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

// fileBackend is a filled/drained byte window over an underlying
// source and sink. src is used for input ports, sink for output
// ports; a port never uses both at once. closer, if set, is closed
// after the final drain when the port is closed (used by layered
// backends such as compressing ports that need to flush a trailer).
type fileBackend struct {
	src    io.Reader
	sink   io.Writer
	closer io.Closer

	buf     []byte
	current int // next byte to read, or next free slot to write
	end     int // one past last valid byte (input) or capacity bound (output)
	mode    BufferMode
}

// OpenFileInput opens an input port backed by r, buffered in a window
// of bufSize bytes.
func OpenFileInput(r io.Reader, bufSize int) *Port {
	if bufSize <= 0 {
		bufSize = 4096
	}
	p := newPort(Input, tagFile)
	p.file = &fileBackend{src: r, buf: make([]byte, bufSize)}
	return p
}

// OpenFileOutput opens an output port backed by w, buffered according
// to mode.
func OpenFileOutput(w io.Writer, bufSize int, mode BufferMode) *Port {
	if bufSize <= 0 {
		bufSize = 4096
	}
	p := newPort(Output, tagFile)
	p.file = &fileBackend{sink: w, buf: make([]byte, bufSize), end: bufSize, mode: mode}
	return p
}

// SetCloser arranges for c to be closed after p's final drain when p
// is closed. It exists so layered backends (compressing ports, fdio's
// path-opened ports) can attach a resource to release, such as a
// trailer-flushing encoder, without reimplementing Close. It has no
// effect on a port that is not file-backed.
func (p *Port) SetCloser(c io.Closer) {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.tag == tagFile {
		p.file.closer = c
	}
}

func (f *fileBackend) close() error {
	var err error
	if f.sink != nil {
		err = f.drain(0)
	}
	if f.closer != nil {
		if cerr := f.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// fill attempts to make at least minBytes available after current. It
// compacts any unread remainder to the front of the buffer, then
// reads from src until minBytes bytes are available, the buffer is
// full, or (when allowPartial) any bytes at all have been read. It
// returns the number of newly available bytes; 0 means EOF.
func (f *fileBackend) fill(minBytes int, allowPartial bool) (int, error) {
	if f.current > 0 {
		n := copy(f.buf, f.buf[f.current:f.end])
		f.end = n
		f.current = 0
	}
	read := 0
	for f.end-f.current < minBytes && f.end < len(f.buf) {
		n, err := f.src.Read(f.buf[f.end:])
		if n > 0 {
			f.end += n
			read += n
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return read, err
		}
		if allowPartial && read > 0 {
			break
		}
		if n == 0 {
			break
		}
	}
	return read, nil
}

// drain writes the pending bytes [0, current) to sink, resets current
// to 0, and grows the buffer if necessary to guarantee minRoom free
// bytes afterward.
func (f *fileBackend) drain(minRoom int) error {
	if f.current > 0 {
		if _, err := f.sink.Write(f.buf[:f.current]); err != nil {
			return err
		}
		f.current = 0
	}
	if minRoom > len(f.buf) {
		f.buf = make([]byte, minRoom)
		f.end = minRoom
	}
	return nil
}

// drainThrough writes only the pending bytes [0, through) to sink and
// shifts the remainder [through, current) down to the front of the
// buffer, keeping it pending rather than reusing drain's whole-buffer
// semantics. through must be in [0, current]; it is the offset of the
// byte just after the line-buffering mode's triggering newline, so
// bytes written after that newline stay buffered until a later
// newline or an explicit Flush.
func (f *fileBackend) drainThrough(through int) error {
	if through <= 0 {
		return nil
	}
	if _, err := f.sink.Write(f.buf[:through]); err != nil {
		return err
	}
	f.current = copy(f.buf, f.buf[through:f.current])
	return nil
}

// writeBlock appends src to the output buffer, draining as needed so
// that arbitrarily large writes do not require the buffer itself to
// grow.
func (f *fileBackend) writeBlock(src []byte) error {
	for len(src) > 0 {
		if f.current >= f.end {
			if err := f.drain(1); err != nil {
				return err
			}
		}
		n := copy(f.buf[f.current:f.end], src)
		f.current += n
		src = src[n:]
	}
	return nil
}

// lastNewlineOffset scans backwards from current (exclusive) down to
// from (putBytesUnsafe passes 0, the start of the buffer) looking for
// the most recent '\n', mirroring the original's
// backward scan: it minimizes drain calls while still honoring the
// line-buffering contract that every completed line is flushed before
// the operation that completed it returns.
func (f *fileBackend) lastNewlineOffset(from int) (int, bool) {
	for i := f.current - 1; i >= from; i-- {
		if f.buf[i] == '\n' {
			return i + 1, true
		}
	}
	return 0, false
}

func (f *fileBackend) readBlock(dst []byte) (int, error) {
	got := 0
	if f.current < f.end {
		n := copy(dst, f.buf[f.current:f.end])
		f.current += n
		got += n
		dst = dst[n:]
	}
	if len(dst) == 0 {
		return got, nil
	}
	if got > 0 {
		// Don't force another fill once some data has already
		// been delivered; this matches the buffering-mode note
		// that less than len(dst) may be returned.
		return got, nil
	}
	n, err := f.fill(1, true)
	if err != nil {
		return got, err
	}
	if n == 0 {
		if got == 0 {
			return 0, io.EOF
		}
		return got, nil
	}
	m := copy(dst, f.buf[f.current:f.end])
	f.current += m
	return got + m, nil
}
