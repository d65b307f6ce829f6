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

// Package fdio opens port.Port values directly against raw OS file
// descriptors via golang.org/x/sys/unix, bypassing the os.File layer.
// This is the fill/drain primitive spec.md leaves unspecified for the
// File backend: something has to actually read and write bytes, and
// this package is that something for the common case of a file path
// or an inherited descriptor (stdin/stdout/a socket fd handed down by
// a supervisor).
package fdio

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/corvid-scheme/schemeport/port"
)

// FD wraps a raw file descriptor as an io.Reader/io.Writer/io.Closer
// triple, calling unix.Read/unix.Write/unix.Close directly instead of
// going through *os.File.
type FD struct {
	fd     int
	closed bool
}

// New wraps an already-open descriptor. The caller retains ownership
// until Close is called on the returned FD (or on a Port built from
// it, via SetCloser).
func New(fd int) *FD {
	return &FD{fd: fd}
}

// Open opens path with the given unix open(2) flags and permission
// bits and wraps the resulting descriptor.
func Open(path string, flags int, perm uint32) (*FD, error) {
	fd, err := unix.Open(path, flags, perm)
	if err != nil {
		return nil, fmt.Errorf("fdio: open %s: %w", path, err)
	}
	return &FD{fd: fd}, nil
}

// Fd returns the underlying OS descriptor.
func (f *FD) Fd() int { return f.fd }

func (f *FD) Read(p []byte) (int, error) {
	if f.closed {
		return 0, fmt.Errorf("fdio: read on closed fd %d", f.fd)
	}
	for {
		n, err := unix.Read(f.fd, p)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("fdio: read fd %d: %w", f.fd, err)
		}
		if n == 0 {
			return 0, nil
		}
		return n, nil
	}
}

func (f *FD) Write(p []byte) (int, error) {
	if f.closed {
		return 0, fmt.Errorf("fdio: write on closed fd %d", f.fd)
	}
	written := 0
	for written < len(p) {
		n, err := unix.Write(f.fd, p[written:])
		if err == unix.EINTR {
			continue
		}
		if n > 0 {
			written += n
		}
		if err != nil {
			return written, fmt.Errorf("fdio: write fd %d: %w", f.fd, err)
		}
	}
	return written, nil
}

func (f *FD) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	if err := unix.Close(f.fd); err != nil {
		return fmt.Errorf("fdio: close fd %d: %w", f.fd, err)
	}
	return nil
}

// OpenInput opens path read-only and returns an input Port reading
// directly from the descriptor, buffered in a window of bufSize
// bytes.
func OpenInput(path string, bufSize int) (*port.Port, error) {
	f, err := Open(path, unix.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	p := port.OpenFileInput(f, bufSize)
	p.SetCloser(f)
	return p, nil
}

// OpenOutput opens (creating/truncating as needed) path for writing
// and returns an output Port, buffered according to mode.
func OpenOutput(path string, bufSize int, mode port.BufferMode) (*port.Port, error) {
	f, err := Open(path, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	p := port.OpenFileOutput(f, bufSize, mode)
	p.SetCloser(f)
	return p, nil
}

// InputFromFD wraps an already-open descriptor (e.g. 0 for stdin) as
// an input Port without taking ownership of it: Close on the returned
// port will not close fd.
func InputFromFD(fd int, bufSize int) *port.Port {
	return port.OpenFileInput(New(fd), bufSize)
}

// OutputFromFD wraps an already-open descriptor (e.g. 1 for stdout)
// as an output Port without taking ownership of it.
func OutputFromFD(fd int, bufSize int, mode port.BufferMode) *port.Port {
	return port.OpenFileOutput(New(fd), bufSize, mode)
}
