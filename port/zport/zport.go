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

// Package zport layers streaming zstd compression under the File
// backend of package port: OpenCompressedInput/OpenCompressedOutput
// wrap an io.Reader/io.Writer the same way port.OpenFileInput and
// port.OpenFileOutput do, but transparently decompress on read and
// compress on write. This is Gauche's rfc.zlib port extension,
// reimplemented with the teacher's own compression library instead of
// zlib.
package zport

import (
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/corvid-scheme/schemeport/port"
)

// Level selects an encoder speed/ratio tradeoff by name, mirroring
// compr.Compression's name-based dispatch.
type Level string

const (
	Fast   Level = "zstd"
	Better Level = "zstd-better"
)

// encoderCloser adapts *zstd.Encoder to io.Closer so it can be
// attached via port.SetCloser: closing it flushes the final zstd
// frame (magic trailer) to the underlying writer.
type encoderCloser struct {
	enc *zstd.Encoder
}

func (e encoderCloser) Close() error { return e.enc.Close() }

// OpenCompressedOutput opens an output Port that zstd-compresses
// every byte written to it before it reaches w. bufSize controls the
// File backend's own buffering on top of the compressor, exactly as
// for an uncompressed port.OpenFileOutput.
func OpenCompressedOutput(w io.Writer, bufSize int, mode port.BufferMode, level Level) (*port.Port, error) {
	var opts []zstd.EOption
	switch level {
	case Better:
		opts = append(opts, zstd.WithEncoderLevel(zstd.SpeedBetterCompression), zstd.WithEncoderConcurrency(1))
	case Fast, "":
		opts = append(opts, zstd.WithEncoderConcurrency(1))
	default:
		return nil, fmt.Errorf("zport: unknown level %q", level)
	}
	enc, err := zstd.NewWriter(w, opts...)
	if err != nil {
		return nil, fmt.Errorf("zport: new encoder: %w", err)
	}
	p := port.OpenFileOutput(enc, bufSize, mode)
	p.SetCloser(encoderCloser{enc})
	return p, nil
}

// decoderCloser adapts *zstd.Decoder to io.Closer; the decoder itself
// holds worker goroutines that must be released.
type decoderCloser struct {
	dec *zstd.Decoder
}

func (d decoderCloser) Close() error {
	d.dec.Close()
	return nil
}

// OpenCompressedInput opens an input Port that transparently
// decompresses a zstd stream read from r.
func OpenCompressedInput(r io.Reader, bufSize int) (*port.Port, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("zport: new decoder: %w", err)
	}
	p := port.OpenFileInput(dec, bufSize)
	p.SetCloser(decoderCloser{dec})
	return p, nil
}
