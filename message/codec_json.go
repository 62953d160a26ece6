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
	"bytes"
	"encoding/json"
)

type wireJSON struct {
	SentFromServer  string            `json:"sent_from_server,omitempty"`
	SentFromService string            `json:"sent_from_service,omitempty"`
	Server          string            `json:"server,omitempty"`
	Service         string            `json:"service,omitempty"`
	Command         string            `json:"command"`
	Parameters      map[string]string `json:"parameters,omitempty"`
	ParameterOrder  []string          `json:"parameter_order,omitempty"`
	Version         int               `json:"version,omitempty"`
}

// EncodeJSON renders m as a full-line JSON object.
func EncodeJSON(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	w := wireJSON{
		SentFromServer:  m.SentFromServer,
		SentFromService: m.SentFromService,
		Server:          m.Server,
		Service:         m.Service,
		Command:         m.Command,
		Version:         m.Version,
	}

	if n := m.Parameters.Len(); n > 0 {
		w.Parameters = make(map[string]string, n)
		w.ParameterOrder = append([]string(nil), m.Parameters.Names()...)
		m.Parameters.Range(func(name, val string) bool {
			w.Parameters[name] = val
			return true
		})
	}

	return json.Marshal(w)
}

// DecodeJSON parses a full-line JSON object into a Message. Parameter
// order follows parameter_order when present, else Go's map iteration is
// stabilized by sorting is NOT performed: callers that round-trip through
// EncodeJSON always receive parameter_order, so ordering survives.
func DecodeJSON(line []byte) (Message, error) {
	var w wireJSON
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return Message{}, ErrorDecode.Error(err)
	}

	m := Message{
		SentFromServer:  w.SentFromServer,
		SentFromService: w.SentFromService,
		Server:          w.Server,
		Service:         w.Service,
		Command:         w.Command,
		Version:         w.Version,
	}

	if err := m.Validate(); err != nil {
		return Message{}, err
	}

	order := w.ParameterOrder
	if order == nil {
		for name := range w.Parameters {
			order = append(order, name)
		}
	}
	for _, name := range order {
		val, ok := w.Parameters[name]
		if !ok {
			continue
		}
		if _, dup := m.Parameters.Get(name); dup {
			return Message{}, ErrorDuplicateParam.Error(nil)
		}
		if err := m.Parameters.Set(name, val); err != nil {
			return Message{}, err
		}
	}

	return m, nil
}

// IsJSON reports whether line looks like the JSON alternative encoding
// (auto-detected by a leading '{', per spec.md §6).
func IsJSON(line []byte) bool {
	for _, c := range line {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		case '{':
			return true
		default:
			return false
		}
	}
	return false
}

// Decode auto-detects the wire encoding and parses accordingly.
func Decode(line []byte) (Message, error) {
	if IsJSON(line) {
		return DecodeJSON(line)
	}
	return DecodeText(line)
}
