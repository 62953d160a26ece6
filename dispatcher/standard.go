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

package dispatcher

import (
	"strconv"
	"strings"
	"time"

	"github.com/sabouaram/reactorbus/logger"
	"github.com/sabouaram/reactorbus/message"
)

// StandardHooks wires the daemon-commands handlers (spec.md §4.3) to the
// connection that owns this Dispatcher. Reply is required; the rest may
// be left nil for a no-op default.
type StandardHooks struct {
	// Reply sends m back to whoever sent the message currently being
	// dispatched.
	Reply func(m message.Message)
	// Commands lists every command this connection's owner recognizes,
	// for HELP's reply.
	Commands func() []string
	// Stop is invoked by QUITTING (graceful=true) and STOP (graceful=false).
	Stop func(graceful bool)
	// Ready is invoked by READY with the raw message (my_address already
	// recorded by the caller before Ready runs, if it cares).
	Ready func(m message.Message)
	// Restart is invoked by RESTART.
	Restart func(m message.Message)
	// Leak is an optional diagnostic hook for LEAK.
	Leak func(m message.Message)
	// Log is used to report INVALID/UNKNOWN and LOG_ROTATE; defaults to
	// logger.Std() if nil.
	Log logger.Logger
}

// RegisterStandard adds the auto-registered daemon-commands handlers
// (ALIVE, HELP, INVALID, UNKNOWN, LEAK, LOG_ROTATE, QUITTING, READY,
// RESTART, SERVICE_UNAVAILABLE, STOP) to d, tagged "standard" so they can
// later be removed as a group with RemoveByTag("standard").
func RegisterStandard(d *Dispatcher, hooks StandardHooks) error {
	log := hooks.Log
	if log == nil {
		log = logger.Std()
	}

	reply := func(m message.Message) {
		if hooks.Reply != nil {
			hooks.Reply(m)
		}
	}

	handlers := []Match{
		{Kind: OneToOne, Expression: "ALIVE", Tag: "standard", Handler: func(m message.Message) bool {
			r := m.ReplyTo()
			r.Command = "ABSOLUTELY"
			if v, ok := m.Parameters.Get("serial"); ok {
				_ = r.Parameters.Set("serial", v)
			}
			if v, ok := m.Parameters.Get("timestamp"); ok {
				_ = r.Parameters.Set("timestamp", v)
			}
			_ = r.Parameters.Set("reply_timestamp", strconv.FormatInt(time.Now().Unix(), 10))
			reply(r)
			return true
		}},
		{Kind: OneToOne, Expression: "HELP", Tag: "standard", Handler: func(m message.Message) bool {
			r := m.ReplyTo()
			r.Command = "COMMANDS"
			var list []string
			if hooks.Commands != nil {
				list = hooks.Commands()
			}
			_ = r.Parameters.Set("list", strings.Join(list, ","))
			reply(r)
			return true
		}},
		{Kind: OneToOne, Expression: "INVALID", Tag: "standard", Handler: func(m message.Message) bool {
			log.Warn("received INVALID", logger.Fields{"message": m.String()})
			return true
		}},
		{Kind: OneToOne, Expression: "UNKNOWN", Tag: "standard", Handler: func(m message.Message) bool {
			log.Warn("received UNKNOWN", logger.Fields{"message": m.String()})
			return true
		}},
		{Kind: OneToOne, Expression: "LEAK", Tag: "standard", Handler: func(m message.Message) bool {
			if hooks.Leak != nil {
				hooks.Leak(m)
			}
			return true
		}},
		{Kind: OneToOne, Expression: "LOG_ROTATE", Tag: "standard", Handler: func(m message.Message) bool {
			if err := log.Reopen(); err != nil {
				log.Error("log reopen failed", logger.Fields{"error": err.Error()})
			}
			return true
		}},
		{Kind: OneToOne, Expression: "QUITTING", Tag: "standard", Handler: func(m message.Message) bool {
			if hooks.Stop != nil {
				hooks.Stop(true)
			}
			return true
		}},
		{Kind: OneToOne, Expression: "READY", Tag: "standard", Handler: func(m message.Message) bool {
			if hooks.Ready != nil {
				hooks.Ready(m)
			}
			return true
		}},
		{Kind: OneToOne, Expression: "RESTART", Tag: "standard", Handler: func(m message.Message) bool {
			if hooks.Restart != nil {
				hooks.Restart(m)
			}
			return true
		}},
		{Kind: OneToOne, Expression: "SERVICE_UNAVAILABLE", Tag: "standard", Handler: func(m message.Message) bool {
			return true
		}},
		{Kind: OneToOne, Expression: "STOP", Tag: "standard", Handler: func(m message.Message) bool {
			if hooks.Stop != nil {
				hooks.Stop(false)
			}
			return true
		}},
	}

	return d.AddMany(handlers)
}
