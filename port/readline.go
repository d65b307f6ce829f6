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

import (
	"io"
	"strings"
)

// ReadLine reads one line, recognizing "\n", "\r", and "\r\n" as
// terminators; none of the terminator bytes are included in the
// returned string. At end of input with no characters read, it
// returns ("", io.EOF) — the same convention bufio.Reader uses —
// distinguishing that case from an empty line terminated by '\n',
// which returns ("", nil).
func (p *Port) ReadLine() (string, error) {
	p.lock.Lock()
	defer p.lock.Unlock()
	return p.ReadLineUnsafe()
}

// ReadLineUnsafe is the lock-free twin of ReadLine.
func (p *Port) ReadLineUnsafe() (string, error) {
	c1, err := p.GetCharUnsafe()
	if err != nil {
		return "", err
	}
	if c1 == EOF {
		return "", io.EOF
	}
	var b strings.Builder
	for {
		if c1 == EOF || c1 == '\n' {
			break
		}
		if c1 == '\r' {
			c2, err := p.GetCharUnsafe()
			if err != nil {
				return b.String(), err
			}
			if c2 == EOF || c2 == '\n' {
				break
			}
			p.UngetCharUnsafe(c2)
			break
		}
		b.WriteRune(c1)
		c1, err = p.GetCharUnsafe()
		if err != nil {
			return b.String(), err
		}
	}
	return b.String(), nil
}
