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

package daemon

import (
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sabouaram/reactorbus/address"
	"github.com/sabouaram/reactorbus/daemon/registrar"
	"github.com/sabouaram/reactorbus/dispatcher"
	"github.com/sabouaram/reactorbus/logger"
	"github.com/sabouaram/reactorbus/message"
	"github.com/sabouaram/reactorbus/reactor"
	"github.com/sabouaram/reactorbus/reactor/conn"
)

// LoadAvgInterval is how often LOAD_AVG is broadcast to registered
// listeners, once at least one connection has asked for it. Grounded on
// server.cpp's load_timer, which the original only enables while at
// least one connection wants the report.
const LoadAvgInterval = 10 * time.Second

// loadAvgTracker implements spec.md §6's REGISTER_FOR_LOAD_AVG/
// UNREGISTER_FOR_LOAD_AVG/LOAD_AVG/LISTEN_LOAD_AVG command quartet: local
// services and peer daemons can ask for this host's own /proc/loadavg
// reports, and a local service can ask to be relayed a specific
// neighbor's reports via LISTEN_LOAD_AVG.
type loadAvgTracker struct {
	d *Daemon

	mu        sync.Mutex
	listeners map[registrar.Sender]struct{}

	// relay tracks, per neighbor endpoint string, which local listeners
	// asked (via LISTEN_LOAD_AVG) to be forwarded that neighbor's
	// LOAD_AVG reports, and whether this daemon has already sent that
	// neighbor a REGISTER_FOR_LOAD_AVG of its own.
	relay        map[string]map[registrar.Sender]struct{}
	subscribedTo map[string]bool

	ticker *conn.Timer
}

func newLoadAvgTracker(d *Daemon) *loadAvgTracker {
	t := &loadAvgTracker{
		d:            d,
		listeners:    map[registrar.Sender]struct{}{},
		relay:        map[string]map[registrar.Sender]struct{}{},
		subscribedTo: map[string]bool{},
	}
	t.ticker = conn.NewTicker("loadavg-timer", reactor.PriorityLow, LoadAvgInterval, t.tick)
	t.ticker.SetEnabled(false)
	_ = d.Reactor.Add(t.ticker)
	return t
}

// registerLoadAvgHandlers wires REGISTER_FOR_LOAD_AVG/UNREGISTER_FOR_LOAD_AVG/
// LOAD_AVG/LISTEN_LOAD_AVG for one connection (local service or peer) into
// disp; framed is both the Sender used to reply/relay and the key used to
// track this connection's subscriptions.
func (d *Daemon) registerLoadAvgHandlers(disp *dispatcher.Dispatcher, framed registrar.Sender) {
	t := d.loadAvg
	_ = disp.Add(dispatcher.Match{Kind: dispatcher.OneToOne, Expression: "REGISTER_FOR_LOAD_AVG", Handler: func(m message.Message) bool {
		t.register(framed)
		return true
	}})
	_ = disp.Add(dispatcher.Match{Kind: dispatcher.OneToOne, Expression: "UNREGISTER_FOR_LOAD_AVG", Handler: func(m message.Message) bool {
		t.unregister(framed)
		return true
	}})
	_ = disp.Add(dispatcher.Match{Kind: dispatcher.OneToOne, Expression: "LISTEN_LOAD_AVG", Handler: func(m message.Message) bool {
		t.listen(framed, m)
		return true
	}})
	_ = disp.Add(dispatcher.Match{Kind: dispatcher.OneToOne, Expression: "LOAD_AVG", Handler: func(m message.Message) bool {
		t.relayIncoming(m)
		return true
	}})
}

// register adds sender to the set that receives this host's own LOAD_AVG
// reports and arms the ticker if it was idle.
func (t *loadAvgTracker) register(sender registrar.Sender) {
	t.mu.Lock()
	t.listeners[sender] = struct{}{}
	n := len(t.listeners)
	t.mu.Unlock()

	if n == 1 {
		t.ticker.SetEnabled(true)
	}
}

// unregister removes sender from every set it may be tracked in
// (own-report listeners and any neighbor relay), disarming the ticker
// once nobody wants reports anymore.
func (t *loadAvgTracker) unregister(sender registrar.Sender) {
	t.mu.Lock()
	delete(t.listeners, sender)
	n := len(t.listeners)
	for ip, set := range t.relay {
		delete(set, sender)
		if len(set) == 0 {
			delete(t.relay, ip)
		}
	}
	t.mu.Unlock()

	if n == 0 {
		t.ticker.SetEnabled(false)
	}
}

// listen handles LISTEN_LOAD_AVG: a local listener asks to be relayed a
// specific neighbor's LOAD_AVG reports. This daemon subscribes to that
// neighbor once (REGISTER_FOR_LOAD_AVG over its peer connection, if
// connected) and remembers to forward whatever LOAD_AVG it sends back.
func (t *loadAvgTracker) listen(sender registrar.Sender, m message.Message) {
	raw, ok := m.Parameters.Get("neighbor")
	if !ok || raw == "" {
		return
	}
	ep, err := address.Parse(raw)
	if err != nil {
		t.d.log.Warn("LISTEN_LOAD_AVG with unparseable neighbor", logger.Fields{"error": err.Error()})
		return
	}
	key := ep.String()

	t.mu.Lock()
	set, ok := t.relay[key]
	if !ok {
		set = map[registrar.Sender]struct{}{}
		t.relay[key] = set
	}
	set[sender] = struct{}{}
	alreadySubscribed := t.subscribedTo[key]
	t.mu.Unlock()

	if alreadySubscribed {
		return
	}
	rec := t.d.Peers.Get(ep)
	if err := rec.Send(message.New("", "", "REGISTER_FOR_LOAD_AVG")); err != nil {
		return
	}
	t.mu.Lock()
	t.subscribedTo[key] = true
	t.mu.Unlock()
}

// relayIncoming forwards a LOAD_AVG arriving from a peer connection to
// every local listener that asked to hear about it via LISTEN_LOAD_AVG.
func (t *loadAvgTracker) relayIncoming(m message.Message) {
	from, ok := m.Parameters.Get("server")
	if !ok || from == "" {
		return
	}
	ep, err := address.Parse(from)
	if err != nil {
		return
	}

	t.mu.Lock()
	set := t.relay[ep.String()]
	senders := make([]registrar.Sender, 0, len(set))
	for s := range set {
		senders = append(senders, s)
	}
	t.mu.Unlock()

	for _, s := range senders {
		_ = s.Send(m)
	}
}

// tick reads /proc/loadavg and broadcasts a LOAD_AVG report to every
// registered listener, local or remote (spec.md §6; grounded on
// server.cpp's save_loadavg/register_for_loadavg pairing).
func (t *loadAvgTracker) tick() {
	avg, err := readLoadAvg()
	if err != nil {
		t.d.log.Warn("failed reading /proc/loadavg", logger.Fields{"error": err.Error()})
		return
	}

	report := message.New("", "", "LOAD_AVG")
	_ = report.Parameters.Set("server", t.d.self.String())
	_ = report.Parameters.Set("avg", strconv.FormatFloat(avg, 'f', 2, 64))

	t.mu.Lock()
	senders := make([]registrar.Sender, 0, len(t.listeners))
	for s := range t.listeners {
		senders = append(senders, s)
	}
	t.mu.Unlock()

	for _, s := range senders {
		_ = s.Send(report)
	}
}

// readLoadAvg parses the 1-minute load average out of /proc/loadavg.
func readLoadAvg() (float64, error) {
	b, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return 0, err
	}
	fields := strings.Fields(string(b))
	if len(fields) == 0 {
		return 0, ErrorLoadAvgUnavailable.Error(nil)
	}
	return strconv.ParseFloat(fields[0], 64)
}
