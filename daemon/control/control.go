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

// Package control drives the ordered shutdown cascade of spec.md §4.7: once
// a stop is requested, new registrations and peer handshakes are refused,
// GOSSIP scheduling is cancelled, every peer and local service connection is
// given a chance to wind down, and listeners are withdrawn so the reactor
// can exit once its connection set empties out.
package control

import (
	"sync"

	"github.com/sabouaram/reactorbus/logger"
	"github.com/sabouaram/reactorbus/message"
)

// Exit codes per spec.md §6.
const (
	ExitClean       = 0
	ExitRestart     = 1
	ExitOptionError = 2
)

// Peer is the minimal surface control needs from a peer connection to wind
// it down: send a final handshake message and mark it for removal once that
// message has drained.
type Peer interface {
	Send(m message.Message) error
	MarkDone()
}

// Service is the minimal surface control needs from a local service
// connection. OutputEmpty lets the caller log whether a connection is
// being removed immediately or left to drain — the actual drain-then-remove
// decision belongs to the reactor's own OutputDrainer contract, not to this
// package.
type Service interface {
	Name() string
	Supports(command string) bool
	Send(m message.Message) error
	MarkDone()
	OutputEmpty() bool
}

// Listener is a listening or signal connection withdrawn during step 5 of
// the cascade.
type Listener interface {
	MarkDone()
}

// Controller tracks the shutting-down flag and the set of cancellable
// GOSSIP timers, and drives the cascade described by spec.md §4.7.
type Controller struct {
	mu           sync.Mutex
	shuttingDown bool
	clusterWide  bool
	gossipCancel []func()
	log          logger.Logger
}

// New returns a Controller in the running (not shutting down) state.
func New(log logger.Logger) *Controller {
	return &Controller{log: log}
}

// ShuttingDown reports whether a shutdown is in progress; callers handling
// REGISTER or CONNECT consult this before admitting a new participant.
func (c *Controller) ShuttingDown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shuttingDown
}

// RegisterReply is the reply a REGISTER attempt receives once shutdown has
// begun (spec.md §4.7 step 1).
func (c *Controller) RegisterReply() message.Message {
	return message.New("", "", "QUITTING")
}

// OnGossipCancel records a cancellation hook (typically a reactor timer's
// MarkDone) to be invoked when the cascade reaches step 2.
func (c *Controller) OnGossipCancel(cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gossipCancel = append(c.gossipCancel, cancel)
}

// Begin starts the cascade: it sets shutting_down, cancels every registered
// GOSSIP timer, and returns an error if shutdown was already in progress.
// clusterWide distinguishes a single-daemon STOP from a cluster-wide
// SHUTDOWN, which changes the message sent to peers in SignalPeers.
func (c *Controller) Begin(clusterWide bool) error {
	c.mu.Lock()
	if c.shuttingDown {
		c.mu.Unlock()
		return ErrorAlreadyShuttingDown.Error(nil)
	}
	c.shuttingDown = true
	c.clusterWide = clusterWide
	cancels := c.gossipCancel
	c.gossipCancel = nil
	c.mu.Unlock()

	for _, cancel := range cancels {
		if cancel != nil {
			cancel()
		}
	}
	return nil
}

// peerMessage returns the message sent to a peer connection during step 3:
// SHUTDOWN when the cascade is cluster-wide, DISCONNECT otherwise.
func (c *Controller) peerMessage() message.Message {
	c.mu.Lock()
	clusterWide := c.clusterWide
	c.mu.Unlock()

	if clusterWide {
		return message.New("", "", "SHUTDOWN")
	}
	return message.New("", "", "DISCONNECT")
}

// SignalPeers implements step 3: every peer is sent SHUTDOWN or DISCONNECT
// and marked done so the reactor removes it once the write drains.
func (c *Controller) SignalPeers(peers []Peer) {
	m := c.peerMessage()
	for _, p := range peers {
		if p == nil {
			continue
		}
		if err := p.Send(m); err != nil && c.log != nil {
			c.log.Warn("failed sending shutdown message to peer", logger.Fields{
				"command": m.Command,
				"error":   err.Error(),
			})
		}
		p.MarkDone()
	}
}

// SignalServices implements step 4: services advertising DISCONNECTING
// support receive that message first; every service is then marked done.
// Whether a given connection drains its output or is removed immediately
// is left to the reactor, which only removes a Done connection once
// OutputEmpty is true.
func (c *Controller) SignalServices(services []Service) {
	disconnecting := message.New("", "", "DISCONNECTING")
	for _, s := range services {
		if s == nil {
			continue
		}
		if s.Supports("DISCONNECTING") {
			if err := s.Send(disconnecting); err != nil && c.log != nil {
				c.log.Warn("failed sending DISCONNECTING to service", logger.Fields{
					"service": s.Name(),
					"error":   err.Error(),
				})
			}
		}
		s.MarkDone()
	}
}

// WithdrawListeners implements step 5: every listener and the signal
// connection are marked done so no further clients are accepted.
func (c *Controller) WithdrawListeners(listeners []Listener) {
	for _, l := range listeners {
		if l != nil {
			l.MarkDone()
		}
	}
}

// Shutdown runs steps 1 through 5 of the cascade in order; step 6 (the
// reactor exiting once its connection set is empty) is the reactor's own
// responsibility once every connection here has been marked done.
func (c *Controller) Shutdown(clusterWide bool, peers []Peer, services []Service, listeners []Listener) error {
	if err := c.Begin(clusterWide); err != nil {
		return err
	}
	c.SignalPeers(peers)
	c.SignalServices(services)
	c.WithdrawListeners(listeners)
	return nil
}

// ReloadExitCode returns the process exit code a RELOAD_CONFIG request maps
// to: a graceful stop with exit code 1, so a supervisor restarts the daemon
// (spec.md §4.7).
func ReloadExitCode() int {
	return ExitRestart
}
