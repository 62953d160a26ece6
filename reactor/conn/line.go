/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package conn

import "bytes"

// LineFramer accumulates raw chunks and extracts complete '\n'-terminated
// lines, leaving a partial trailing line buffered for the next chunk. It
// is not itself a reactor.Connection; StreamClient.OnData feeds it, and it
// feeds a per-line callback such as MessageFramed.Feed.
type LineFramer struct {
	buf      bytes.Buffer
	maxLine  int
	onLine   func(line []byte)
	overflow func()
}

// DefaultMaxLine bounds a single buffered line before it is considered
// protocol garbage and the connection is signalled via overflow.
const DefaultMaxLine = 64 * 1024

// NewLineFramer builds a framer invoking onLine for each complete line
// (trailing '\n'/'\r\n' stripped) and overflow if a line exceeds maxLine
// before a terminator is seen. The limit is always DefaultMaxLine.
func NewLineFramer(onLine func(line []byte), overflow func()) *LineFramer {
	if onLine == nil {
		onLine = func([]byte) {}
	}
	return &LineFramer{maxLine: DefaultMaxLine, onLine: onLine, overflow: overflow}
}

// Feed appends a chunk and dispatches every complete line it now
// contains; it places no limit on how many lines one call dispatches.
func (f *LineFramer) Feed(chunk []byte) {
	f.buf.Write(chunk)

	for {
		b := f.buf.Bytes()
		idx := bytes.IndexByte(b, '\n')
		if idx < 0 {
			if f.buf.Len() > f.maxLine && f.overflow != nil {
				f.overflow()
			}
			return
		}

		line := make([]byte, idx)
		copy(line, b[:idx])
		if n := len(line); n > 0 && line[n-1] == '\r' {
			line = line[:n-1]
		}

		f.buf.Next(idx + 1)
		f.onLine(line)
	}
}
