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

package message

import (
	"net/url"
	"strconv"
	"strings"
)

// EncodeText renders m as one text-framing line, without a trailing
// newline: "[server:][service/]command[ name=value;name=value;...]".
func EncodeText(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	var b strings.Builder

	if m.Server != "" {
		b.WriteString(m.Server)
		b.WriteByte(':')
	}
	if m.Service != "" {
		b.WriteString(m.Service)
		b.WriteByte('/')
	}
	b.WriteString(m.Command)

	if n := m.Parameters.Len(); n > 0 {
		b.WriteByte(' ')
		first := true
		m.Parameters.Range(func(name, val string) bool {
			if !first {
				b.WriteByte(';')
			}
			first = false
			b.WriteString(name)
			b.WriteByte('=')
			b.WriteString(escapeValue(val))
			return true
		})
	}

	return []byte(b.String()), nil
}

// DecodeText parses one text-framing line (with or without a trailing
// newline) into a Message.
func DecodeText(line []byte) (Message, error) {
	s := strings.TrimRight(string(line), "\r\n")
	if s == "" {
		return Message{}, ErrorDecode.Error(nil)
	}

	head := s
	paramStr := ""
	if i := strings.IndexByte(s, ' '); i >= 0 {
		head = s[:i]
		paramStr = strings.TrimLeft(s[i+1:], " ")
	}

	var m Message
	m.Version = 1

	if i := strings.IndexByte(head, ':'); i >= 0 {
		m.Server = head[:i]
		head = head[i+1:]
	}
	if i := strings.IndexByte(head, '/'); i >= 0 {
		m.Service = head[:i]
		head = head[i+1:]
	}
	m.Command = head

	if err := m.Validate(); err != nil {
		return Message{}, err
	}

	if paramStr != "" {
		for _, kv := range strings.Split(paramStr, ";") {
			if kv == "" {
				continue
			}
			eq := strings.IndexByte(kv, '=')
			if eq < 0 {
				return Message{}, ErrorDecode.Error(nil)
			}
			name := kv[:eq]
			val, err := unescapeValue(kv[eq+1:])
			if err != nil {
				return Message{}, ErrorDecode.Error(err)
			}
			if _, dup := m.Parameters.Get(name); dup {
				return Message{}, ErrorDuplicateParam.Error(nil)
			}
			if err := m.Parameters.Set(name, val); err != nil {
				return Message{}, err
			}
		}
	}

	return m, nil
}

// escapeValue is URL form-encoding (net/url.QueryEscape): spaces become
// '+', everything else outside unreserved characters becomes %HH.
func escapeValue(v string) string {
	return url.QueryEscape(v)
}

func unescapeValue(v string) (string, error) {
	return url.QueryUnescape(v)
}

// FormatInt and FormatTimestamp are convenience helpers matching the wire
// convention for numeric/timestamp parameter values (decimal strings and
// seconds.nanoseconds respectively).
func FormatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}

func FormatTimestamp(seconds, nanoseconds int64) string {
	return strconv.FormatInt(seconds, 10) + "." + strconv.FormatInt(nanoseconds, 10)
}
