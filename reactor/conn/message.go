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

import (
	"github.com/sabouaram/reactorbus/logger"
	"github.com/sabouaram/reactorbus/message"
)

// MessageFramed wires a StreamClient to the line/message wire format: raw
// bytes are split into lines by a LineFramer, each line is decoded with
// message.Decode, and successfully decoded messages are handed to
// Dispatch. Lines that fail to decode are logged and discarded rather
// than tearing down the connection, matching spec.md §6's "malformed
// input is reported, not fatal" framing rule.
type MessageFramed struct {
	client   *StreamClient
	framer   *LineFramer
	Dispatch func(m message.Message)
	log      logger.Logger
}

// NewMessageFramed attaches line/message framing to an existing
// StreamClient. Dispatch is invoked once per decoded message, from the
// reactor's loop goroutine (via StreamClient.ProcessRead), so it may
// safely call back into dispatcher.Dispatcher or similar single-threaded
// state.
func NewMessageFramed(client *StreamClient, dispatch func(m message.Message), log logger.Logger) *MessageFramed {
	if log == nil {
		log = logger.Std()
	}
	mf := &MessageFramed{client: client, Dispatch: dispatch, log: log}
	mf.framer = NewLineFramer(mf.onLine, mf.onOverflow)
	client.OnData(mf.framer.Feed)
	return mf
}

func (mf *MessageFramed) onLine(line []byte) {
	if len(line) == 0 {
		return
	}

	m, err := message.Decode(line)
	if err != nil {
		mf.log.Warn("discarding malformed message", logger.Fields{
			"connection": mf.client.Name(),
			"error":      err.Error(),
		})
		return
	}

	if mf.Dispatch != nil {
		mf.Dispatch(m)
	}
}

func (mf *MessageFramed) onOverflow() {
	mf.log.Warn("message line exceeds maximum size, closing connection", logger.Fields{
		"connection": mf.client.Name(),
	})
	mf.client.MarkDone()
}

// Send encodes m as a text-framed line and queues it for delivery.
func (mf *MessageFramed) Send(m message.Message) error {
	b, err := message.EncodeText(m)
	if err != nil {
		return err
	}
	b = append(b, '\n')
	mf.client.Write(b)
	return nil
}

// Name delegates to the underlying StreamClient, letting a MessageFramed
// stand in directly for daemon/registrar.Sender and daemon/control.Service.
func (mf *MessageFramed) Name() string { return mf.client.Name() }

// MarkDone delegates to the underlying StreamClient.
func (mf *MessageFramed) MarkDone() { mf.client.MarkDone() }

// OutputEmpty delegates to the underlying StreamClient.
func (mf *MessageFramed) OutputEmpty() bool { return mf.client.OutputEmpty() }
