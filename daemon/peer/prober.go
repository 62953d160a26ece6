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

package peer

import (
	"io"

	"github.com/hashicorp/memberlist"

	"github.com/sabouaram/reactorbus/address"
	"github.com/sabouaram/reactorbus/logger"
)

// Prober is a secondary, SWIM-based liveness detector layered alongside
// the CONNECT/ACCEPT/GOSSIP handshake (spec.md §4.6). It never replaces
// that handshake or the quorum math in EvaluateClusterStatus: memberlist's
// join/leave events only flag a peer via Manager.ProbeAlive/ProbeFailed,
// which race ahead of this package's own TCP-timeout-driven
// RecordFailure/RecordSuccess to give an operator (and OnProbeSuspect) a
// faster signal than waiting out a dead TCP connection.
type Prober struct {
	mgr *Manager
	ml  *memberlist.Memberlist
	log logger.Logger
}

// NewProber starts a memberlist agent bound to bindAddr:bindPort,
// identified by self's endpoint string, feeding join/leave events into
// mgr. Join(seeds) must be called separately once the initial neighbor
// set is known.
func NewProber(mgr *Manager, self address.Endpoint, bindAddr string, bindPort int, log logger.Logger) (*Prober, error) {
	if log == nil {
		log = logger.Std()
	}

	p := &Prober{mgr: mgr, log: log}

	cfg := memberlist.DefaultLocalConfig()
	cfg.Name = self.String()
	cfg.BindAddr = bindAddr
	cfg.BindPort = bindPort
	cfg.AdvertisePort = bindPort
	cfg.Events = p
	cfg.LogOutput = io.Discard

	ml, err := memberlist.Create(cfg)
	if err != nil {
		return nil, err
	}
	p.ml = ml
	return p, nil
}

// Join contacts existing SWIM members at the given "host:port" addresses,
// returning how many were successfully contacted.
func (p *Prober) Join(seeds []string) (int, error) {
	if len(seeds) == 0 {
		return 0, nil
	}
	return p.ml.Join(seeds)
}

// NumMembers reports the current SWIM membership count, fed into the
// cluster-size gauge in package metrics.
func (p *Prober) NumMembers() int {
	return p.ml.NumMembers()
}

// Shutdown leaves the SWIM cluster and releases the agent's socket.
func (p *Prober) Shutdown() error {
	_ = p.ml.Leave(FailureFlagWindow / 120)
	return p.ml.Shutdown()
}

// NotifyJoin satisfies memberlist.EventDelegate: a member became reachable.
func (p *Prober) NotifyJoin(n *memberlist.Node) {
	if ep, err := address.Parse(n.Name); err == nil {
		p.mgr.ProbeAlive(ep)
	}
}

// NotifyLeave satisfies memberlist.EventDelegate: a member left or was
// declared dead by the SWIM failure detector.
func (p *Prober) NotifyLeave(n *memberlist.Node) {
	if ep, err := address.Parse(n.Name); err == nil {
		p.mgr.ProbeFailed(ep)
	}
}

// NotifyUpdate satisfies memberlist.EventDelegate; metadata updates carry
// no information this daemon's peer table tracks.
func (p *Prober) NotifyUpdate(n *memberlist.Node) {}
