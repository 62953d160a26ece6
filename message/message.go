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

// Package message defines the Message record carried between services over
// the bus, and its two wire encodings (text framing and JSON).
package message

import (
	"fmt"
)

// Destination values with reserved meaning for server/service.
const (
	DestLocal = "." // empty string is equivalent
	DestAll   = "*"
	DestOthers = "?"
)

// Message is a single routable unit of the bus protocol.
type Message struct {
	SentFromServer  string
	SentFromService string

	Server  string
	Service string

	Command string

	Parameters Params

	Version int

	// The router's de-duplication and hop-cap bookkeeping (broadcast_msgid,
	// broadcast_timeout, broadcast_originator, broadcast_informed_neighbors)
	// travels only as ordinary entries in Parameters; Message has no typed
	// fields or accessors for it.
}

// New builds a Message addressed to server/service with the given command.
// Parameters may be added afterward via m.Parameters.Set.
func New(server, service, command string) Message {
	return Message{Server: server, Service: service, Command: command, Version: 1}
}

// Validate enforces the wire invariants: command non-empty when the message
// is meant to be transmitted, and parameter names unique (guaranteed by
// Params itself, so this only re-checks Command here).
func (m Message) Validate() error {
	if m.Command == "" {
		return ErrorEmptyCommand.Error(nil)
	}
	return nil
}

// IsLocal reports whether m targets the local daemon: server/service are
// both empty or ".".
func (m Message) IsLocal() bool {
	return isLocalDest(m.Server) && isLocalDest(m.Service)
}

func isLocalDest(s string) bool {
	return s == "" || s == DestLocal
}

// IsBroadcast reports whether m targets every server ("*") or every server
// but this one ("?").
func (m Message) IsBroadcast() bool {
	return m.Server == DestAll || m.Server == DestOthers ||
		m.Service == DestAll || m.Service == DestOthers
}

// ReplyTo builds the reply envelope for m: destination server/service
// become m's origin, and the reply's own origin fields start cleared, per
// spec.md's reply_to invariant. The caller still sets Command and
// Parameters on the result.
func (m Message) ReplyTo() Message {
	return Message{
		Server:  m.SentFromServer,
		Service: m.SentFromService,
		Version: m.Version,
	}
}

// String renders m using the text wire encoding, for logging.
func (m Message) String() string {
	b, err := EncodeText(m)
	if err != nil {
		return fmt.Sprintf("<message: %v>", err)
	}
	return string(b)
}
