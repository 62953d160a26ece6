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

// Package permclient wraps a reactor stream client with a reconnection
// policy and an outgoing-message cache, so a caller can Send at any time
// without regard to the underlying socket's current connection state.
package permclient

import (
	"sync"
	"time"

	"github.com/sabouaram/reactorbus/logger"
	"github.com/sabouaram/reactorbus/message"
	"github.com/sabouaram/reactorbus/netproto"
	"github.com/sabouaram/reactorbus/reactor"
	"github.com/sabouaram/reactorbus/reactor/conn"
)

// Priority is the cache priority a caller may attach to a cached message;
// low-priority entries are the first dropped when the cache is full.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
)

// SendOptions controls how one outgoing message behaves while the client
// is disconnected (spec.md §4.2 "Permanent client").
type SendOptions struct {
	Cache    bool
	Timeout  time.Duration
	Priority Priority
}

type cachedMessage struct {
	msg     message.Message
	opts    SendOptions
	enqueue time.Time
}

// DefaultPause is the reconnect delay used when Pause is zero.
const DefaultPause = 5 * time.Second

// DefaultMaxBackoff caps the exponential backoff applied to repeated
// failures.
const DefaultMaxBackoff = 2 * time.Minute

// DefaultCacheSize bounds the number of messages buffered while
// disconnected.
const DefaultCacheSize = 1024

// Client maintains a persistent connection to address, reconnecting on
// failure and replaying cached messages FIFO once reconnected.
type Client struct {
	name     string
	priority reactor.Priority
	proto    netproto.NetworkProtocol
	address  string

	// Pause is the base reconnect delay; -1 disables automatic reconnect.
	Pause      time.Duration
	MaxBackoff time.Duration
	CacheSize  int

	OnMessage func(m message.Message)

	log logger.Logger
	r   *reactor.Reactor

	mu        sync.Mutex
	current   *conn.StreamClient
	framed    *conn.MessageFramed
	connected bool
	attempt   int
	cache     []cachedMessage

	stopped bool
}

// New builds a permanent client. It does not dial until Start is called.
func New(name string, priority reactor.Priority, r *reactor.Reactor, proto netproto.NetworkProtocol, address string, log logger.Logger) *Client {
	if log == nil {
		log = logger.Std()
	}
	return &Client{
		name:       name,
		priority:   priority,
		proto:      proto,
		address:    address,
		Pause:      DefaultPause,
		MaxBackoff: DefaultMaxBackoff,
		CacheSize:  DefaultCacheSize,
		log:        log,
		r:          r,
	}
}

// Start performs the initial connection attempt, scheduling the usual
// reconnect policy on failure.
func (c *Client) Start() {
	c.dial()
}

// Stop disables further reconnection attempts and tears down the current
// connection, if any.
func (c *Client) Stop() {
	c.mu.Lock()
	c.stopped = true
	cur := c.current
	c.mu.Unlock()

	if cur != nil {
		_ = c.r.Remove(cur)
	}
}

func (c *Client) dial() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	sc, err := conn.DialStream(c.name, c.priority, c.proto, c.address)
	if err != nil {
		c.log.Warn("permanent client dial failed", logger.Fields{
			"connection": c.name,
			"address":    c.address,
			"error":      err.Error(),
		})
		c.scheduleRetry()
		return
	}

	c.mu.Lock()
	c.current = sc
	c.framed = conn.NewMessageFramed(sc, c.handleMessage, c.log)
	c.connected = true
	c.attempt = 0
	c.mu.Unlock()

	sc.OnHup(c.handleDisconnect)
	sc.OnError(func(error) { c.handleDisconnect() })

	if err := c.r.Add(sc); err != nil {
		c.log.Error("permanent client attach failed", logger.Fields{"connection": c.name, "error": err.Error()})
		return
	}

	c.flushCache()
}

func (c *Client) handleMessage(m message.Message) {
	if c.OnMessage != nil {
		c.OnMessage(m)
	}
}

func (c *Client) handleDisconnect() {
	c.mu.Lock()
	c.connected = false
	c.current = nil
	c.framed = nil
	stopped := c.stopped
	c.mu.Unlock()

	if !stopped {
		c.scheduleRetry()
	}
}

func (c *Client) scheduleRetry() {
	if c.Pause < 0 {
		return
	}

	c.mu.Lock()
	c.attempt++
	attempt := c.attempt
	c.mu.Unlock()

	delay := c.Pause
	for i := 1; i < attempt && delay < c.MaxBackoff; i++ {
		delay *= 2
	}
	if delay > c.MaxBackoff {
		delay = c.MaxBackoff
	}
	if delay <= 0 {
		delay = DefaultPause
	}

	timer := conn.NewTimer(c.name+"-retry", c.priority, delay, func() {
		c.dial()
	})
	_ = c.r.Add(timer)
}

// Send transmits m immediately if connected; otherwise, if opts.Cache is
// set, it is buffered for FIFO replay on reconnection.
func (c *Client) Send(m message.Message, opts SendOptions) error {
	c.mu.Lock()
	connected := c.connected
	framed := c.framed
	c.mu.Unlock()

	if connected && framed != nil {
		return framed.Send(m)
	}

	if !opts.Cache {
		return ErrorDisabled.Error(nil)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.cache) >= c.CacheSize {
		c.evictLowestPriorityLocked()
	}
	c.cache = append(c.cache, cachedMessage{msg: m, opts: opts, enqueue: time.Now()})
	return nil
}

func (c *Client) evictLowestPriorityLocked() {
	for i, cm := range c.cache {
		if cm.opts.Priority == PriorityLow {
			c.cache = append(c.cache[:i], c.cache[i+1:]...)
			return
		}
	}
	if len(c.cache) > 0 {
		c.cache = c.cache[1:]
	}
}

func (c *Client) flushCache() {
	c.mu.Lock()
	pending := c.cache
	c.cache = nil
	framed := c.framed
	c.mu.Unlock()

	now := time.Now()
	for _, cm := range pending {
		if cm.opts.Timeout > 0 && now.Sub(cm.enqueue) > cm.opts.Timeout {
			continue
		}
		if framed == nil {
			continue
		}
		if err := framed.Send(cm.msg); err != nil {
			c.log.Warn("replay of cached message failed", logger.Fields{
				"connection": c.name,
				"error":      err.Error(),
			})
		}
	}
}

// IsConnected reports whether the underlying socket is currently up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}
