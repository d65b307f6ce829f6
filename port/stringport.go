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

// inputStringBackend is a read cursor over an immutable byte range.
type inputStringBackend struct {
	data    []byte
	current int
}

// OpenInputString opens an input port that reads from the (immutable,
// by convention) contents of s.
func OpenInputString(s string) *Port {
	p := newPort(Input, tagInputString)
	p.istr = &inputStringBackend{data: []byte(s)}
	return p
}

// outputStringBackend is an append-only dynamic byte builder.
type outputStringBackend struct {
	buf []byte
}

// OpenOutputString opens an output port that accumulates writes in
// memory. Use (*Port).String to retrieve the accumulated contents.
func OpenOutputString() *Port {
	p := newPort(Output, tagOutputString)
	p.ostr = &outputStringBackend{}
	return p
}

// String returns the bytes accumulated by an output-string port. It
// panics if p is not an output-string port.
func (p *Port) String() string {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.tag != tagOutputString {
		panic("port: String called on a non-output-string port")
	}
	return string(p.ostr.buf)
}

// Bytes is like String but avoids a copy by returning the backing
// slice directly; callers must not mutate it.
func (p *Port) Bytes() []byte {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.tag != tagOutputString {
		panic("port: Bytes called on a non-output-string port")
	}
	return p.ostr.buf
}
