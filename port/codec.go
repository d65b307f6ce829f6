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

import "unicode/utf8"

// MaxCharBytes is the scratch buffer's capacity: the largest number of
// bytes a single code point can occupy in the encoding this package
// transports. All variable-width handling is centralized in this
// file so the transported encoding is swappable in one place; no
// backend may short-circuit it.
const MaxCharBytes = utf8.UTFMax

// nfollows returns the number of continuation bytes that must follow
// a valid leading byte b, or -1 if b cannot begin a code point (a
// stray continuation byte, or a lead byte this encoding doesn't
// recognize).
func nfollows(b byte) int {
	switch {
	case b < 0x80:
		return 0
	case b&0xE0 == 0xC0:
		return 1
	case b&0xF0 == 0xE0:
		return 2
	case b&0xF8 == 0xF0:
		return 3
	default:
		return -1
	}
}

// nbytes returns the number of bytes required to encode cp.
func nbytes(cp rune) int {
	return utf8.RuneLen(cp)
}

// encode writes the encoding of cp into dst, which must have at least
// nbytes(cp) bytes available, and returns the number of bytes
// written.
func encode(dst []byte, cp rune) int {
	return utf8.EncodeRune(dst, cp)
}

// decode reads one code point from the front of src, which must hold
// at least nfollows(src[0])+1 bytes, and returns the code point and
// the number of bytes it occupied.
func decode(src []byte) (rune, int) {
	return utf8.DecodeRune(src)
}
