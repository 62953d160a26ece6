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

// Package daemon composes daemon/registrar, daemon/router, daemon/peer and
// daemon/control with the reactor and wire framing into the running
// communicator described by spec.md §4: local services register and
// exchange messages through it, peer daemons form a cluster over it, and a
// shutdown request drains both cleanly.
package daemon

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sabouaram/reactorbus/address"
	"github.com/sabouaram/reactorbus/config"
	"github.com/sabouaram/reactorbus/daemon/control"
	"github.com/sabouaram/reactorbus/daemon/httpapi"
	"github.com/sabouaram/reactorbus/daemon/peer"
	"github.com/sabouaram/reactorbus/daemon/registrar"
	"github.com/sabouaram/reactorbus/daemon/router"
	"github.com/sabouaram/reactorbus/dispatcher"
	"github.com/sabouaram/reactorbus/logger"
	"github.com/sabouaram/reactorbus/message"
	"github.com/sabouaram/reactorbus/metrics"
	"github.com/sabouaram/reactorbus/netproto"
	"github.com/sabouaram/reactorbus/permclient"
	"github.com/sabouaram/reactorbus/reactor"
	"github.com/sabouaram/reactorbus/reactor/conn"
	"github.com/sabouaram/reactorbus/sockcfg"
)

// GossipInterval is the steady-state period between cluster maintenance
// sweeps: dialing any peer still down and past its back-off, sending
// GOSSIP to every unconnected numerically-larger peer that has not yet
// acknowledged with RECEIVED, and re-evaluating cluster status.
const GossipInterval = 30 * time.Second

// Daemon wires one reactor instance to the registrar/router/peer/control
// quartet and owns every listener and outbound peer client it creates.
type Daemon struct {
	log  logger.Logger
	opts config.Options
	self address.Endpoint

	Reactor   *reactor.Reactor
	Registrar *registrar.Registrar
	Router    *router.Router
	Peers     *peer.Manager
	Control   *control.Controller

	listeners []control.Listener
	outbound  map[string]*permclient.Client
	gossip    map[string]*permclient.Client
	loadAvg   *loadAvgTracker

	Metrics *metrics.Collector
	httpSrv *http.Server
	prober  *peer.Prober
}

// New builds a Daemon from already-validated Options. It does not bind any
// socket until Start is called.
func New(log logger.Logger, opts config.Options) (*Daemon, error) {
	if log == nil {
		log = logger.Std()
	}

	selfAddr := opts.MyAddress
	if selfAddr == "" {
		selfAddr = opts.LocalListen.Address
	}
	self, err := address.Parse(selfAddr)
	if err != nil {
		return nil, ErrorBadSelfAddress.Error(err)
	}

	reg := registrar.New(opts.ServerName, self.String(), log)
	peers := peer.New(self, opts.ServerName, log)
	rtr := router.New(opts.ServerName, self, reg, peers, log)
	ctl := control.New(log)

	reg.FlushCache = rtr.FlushCache

	d := &Daemon{
		log:       log,
		opts:      opts,
		self:      self,
		Reactor:   reactor.New(log),
		Registrar: reg,
		Router:    rtr,
		Peers:     peers,
		Control:   ctl,
		outbound:  map[string]*permclient.Client{},
		gossip:    map[string]*permclient.Client{},
	}
	d.loadAvg = newLoadAvgTracker(d)

	d.Metrics = metrics.New(opts.ServerName)
	rtr.Metrics = d.Metrics
	d.Reactor.StepObserver = d.Metrics.ObserveStep

	reg.OnStatus = d.onServiceStatus
	rtr.Unavailable = d.onUnavailable
	peers.OnClusterChange = d.onClusterChange
	peers.OnFailureFlag = d.onFailureFlag
	peers.OnProbeSuspect = d.onProbeSuspect

	return d, nil
}

// onProbeSuspect reacts to Prober's faster SWIM-based failure signal by
// retrying the handshake immediately instead of waiting for the next
// gossip tick (spec.md §4.6; the authoritative state machine itself is
// untouched, only prompted to act sooner).
func (d *Daemon) onProbeSuspect(ep address.Endpoint) {
	if d.Peers.Outbound(ep) {
		d.dialOutboundPeers()
	}
}

// ServerName satisfies daemon/httpapi.Source.
func (d *Daemon) ServerName() string { return d.opts.ServerName }

// SelfAddress satisfies daemon/httpapi.Source.
func (d *Daemon) SelfAddress() string { return d.self.String() }

// ClusterStatus satisfies daemon/httpapi.Source.
func (d *Daemon) ClusterStatus() (up, complete bool) { return d.Peers.LastStatus() }

// Services satisfies daemon/httpapi.Source.
func (d *Daemon) Services() []httpapi.ServiceView {
	regs := d.Registrar.All()
	out := make([]httpapi.ServiceView, 0, len(regs))
	for _, reg := range regs {
		cmds := make([]string, 0, len(reg.Commands))
		for c := range reg.Commands {
			cmds = append(cmds, c)
		}
		out = append(out, httpapi.ServiceView{
			Service:      reg.Service,
			Ready:        reg.IsReady,
			RegisteredAt: reg.RegisteredAt,
			Commands:     cmds,
		})
	}
	return out
}

// PeerViews satisfies daemon/httpapi.Source.
func (d *Daemon) PeerViews() []httpapi.PeerView {
	recs := d.Peers.Records()
	out := make([]httpapi.PeerView, 0, len(recs))
	for _, r := range recs {
		out = append(out, httpapi.PeerView{
			Endpoint: r.Endpoint().String(),
			State:    r.State().String(),
			Load:     r.Load(),
		})
	}
	return out
}

// MetricsHandler satisfies daemon/httpapi.Source.
func (d *Daemon) MetricsHandler() http.Handler {
	if d.Metrics == nil {
		return nil
	}
	return d.Metrics.Handler()
}

// onServiceStatus routes a STATUS notification to this daemon's local
// services (service ".") when a local service registers or unregisters
// (spec.md §4.4).
func (d *Daemon) onServiceStatus(reg *registrar.Registration, up bool) {
	m := message.New(message.DestAll, message.DestLocal, "STATUS")
	_ = m.Parameters.Set("service", reg.Service)
	state := "down"
	if up {
		state = "up"
	}
	_ = m.Parameters.Set("state", state)
	d.Router.Route(m, nil)
}

// onUnavailable tells the originator of a message that its target service
// could not be reached (spec.md §4.5's SERVICE_UNAVAILABLE reply).
func (d *Daemon) onUnavailable(to router.Peer, service, command string) {
	if to == nil {
		return
	}
	m := message.New("", "", "SERVICE_UNAVAILABLE")
	_ = m.Parameters.Set("service", service)
	_ = m.Parameters.Set("command", command)
	_ = to.Send(m)
}

// onClusterChange broadcasts CLUSTER_UP/CLUSTER_DOWN and
// CLUSTER_COMPLETE/CLUSTER_INCOMPLETE to local services on a quorum
// transition (spec.md §4.6).
func (d *Daemon) onClusterChange(up, complete bool) {
	upCmd := "CLUSTER_DOWN"
	if up {
		upCmd = "CLUSTER_UP"
	}
	completeCmd := "CLUSTER_INCOMPLETE"
	if complete {
		completeCmd = "CLUSTER_COMPLETE"
	}
	d.Router.Route(message.New(message.DestLocal, message.DestLocal, upCmd), nil)
	d.Router.Route(message.New(message.DestLocal, message.DestLocal, completeCmd), nil)
}

func (d *Daemon) onFailureFlag(ep address.Endpoint) {
	d.log.Warn("peer has failed repeatedly and is flagged for operator attention", logger.Fields{
		"peer": ep.String(),
	})
}

// Start binds every configured listener and begins dialing outbound peers
// and the steady-state gossip ticker. The reactor itself is not run here;
// the caller drives it (Reactor.Run/Poll) on its own goroutine.
func (d *Daemon) Start() error {
	if d.opts.LocalListen.Address == "" {
		return ErrorNoListenAddress.Error(nil)
	}

	if err := d.listenServicesOn("local", d.opts.LocalListen); err != nil {
		return err
	}
	if d.opts.UnixListen.Address != "" {
		if err := d.listenServicesOn("unix", d.opts.UnixListen); err != nil {
			return err
		}
	}
	if d.opts.RemoteListen.Address != "" {
		if err := d.listenPeersOn("remote", d.opts.RemoteListen); err != nil {
			return err
		}
	}
	if d.opts.SecureListen.Address != "" {
		if err := d.listenPeersOn("secure", d.opts.SecureListen); err != nil {
			return err
		}
	}
	if d.opts.Signal.Address != "" {
		if err := d.listenSignal(d.opts.Signal); err != nil {
			return err
		}
	}

	neighbors, err := d.opts.NeighborEndpoints()
	if err != nil {
		return ErrorBadSelfAddress.Error(err)
	}
	d.Peers.AddNeighbors(neighbors)
	d.dialOutboundPeers()

	ticker := conn.NewTicker("gossip-ticker", reactor.PriorityLow, GossipInterval, d.gossipTick)
	if err := d.Reactor.Add(ticker); err != nil {
		return err
	}
	d.Control.OnGossipCancel(ticker.MarkDone)

	if d.opts.StatusListen != "" {
		d.startStatusAPI()
	}

	if d.opts.ProbeListen != "" {
		if err := d.startProber(); err != nil {
			d.log.Warn("SWIM prober failed to start, continuing without it", logger.Fields{"error": err.Error()})
		}
	}

	return nil
}

// startProber boots daemon/peer.Prober on opts.ProbeListen and joins the
// configured neighbors' SWIM agents, assuming each peer also runs one on
// the same port (spec.md §4.6's own handshake remains authoritative; this
// is a faster, redundant failure signal layered alongside it).
func (d *Daemon) startProber() error {
	probeEp, err := address.Parse(d.opts.ProbeListen)
	if err != nil {
		return err
	}

	prober, err := peer.NewProber(d.Peers, d.self, probeEp.IP().String(), probeEp.Port(), d.log)
	if err != nil {
		return err
	}
	d.prober = prober

	probePort := strconv.Itoa(probeEp.Port())
	seeds := make([]string, 0, len(d.Peers.Records()))
	for _, rec := range d.Peers.Records() {
		ep := rec.Endpoint()
		seeds = append(seeds, net.JoinHostPort(ep.IP().String(), probePort))
	}
	if n, err := prober.Join(seeds); err != nil {
		d.log.Warn("SWIM prober joined no seeds", logger.Fields{"error": err.Error(), "contacted": n})
	}

	return nil
}

// startStatusAPI mounts daemon/httpapi and its Prometheus proxy on
// opts.StatusListen. It runs on the standard net/http server, off the
// reactor's own goroutine, since it is an operator surface rather than a
// participant in spec.md's wire protocol (§1 Non-goals: no metrics/HTTP
// surface is part of the bus itself).
func (d *Daemon) startStatusAPI() {
	api := httpapi.New(d)
	d.httpSrv = &http.Server{Addr: d.opts.StatusListen, Handler: api.Handler()}
	go func() {
		if err := d.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			d.log.Warn("status API server exited", logger.Fields{"error": err.Error()})
		}
	}()
}

// listenServicesOn binds a local-service listener (local_listen or
// unix_listen): accepted connections speak REGISTER/COMMANDS and are
// tracked by the registrar.
func (d *Daemon) listenServicesOn(label string, s sockcfg.Server) error {
	var (
		srv *conn.StreamServer
		err error
	)
	bind := func() error {
		srv, err = conn.ListenStream(label+"-listener", reactor.PriorityNormal, s.Network, s.Address, func(nc net.Conn) reactor.Connection {
			sc := d.acceptService(label, nc)
			if e := d.Reactor.Add(sc); e != nil {
				d.log.Warn("failed attaching accepted service connection to the reactor", logger.Fields{"error": e.Error()})
			}
			return sc
		})
		return err
	}

	if s.Network.IsUnix() {
		err = bindUnixListener(s, bind)
	} else {
		err = bind()
	}
	if err != nil {
		return ErrorListenFailed.Error(err)
	}

	if err := d.Reactor.Add(srv); err != nil {
		return err
	}
	d.listeners = append(d.listeners, srv)
	return nil
}

// listenPeersOn binds a peer listener (remote_listen or secure_listen):
// accepted connections speak the CONNECT/ACCEPT/REFUSE handshake.
func (d *Daemon) listenPeersOn(label string, s sockcfg.Server) error {
	srv, err := conn.ListenStream(label+"-listener", reactor.PriorityNormal, s.Network, s.Address, func(nc net.Conn) reactor.Connection {
		sc := d.acceptPeer(label, nc)
		if err := d.Reactor.Add(sc); err != nil {
			d.log.Warn("failed attaching accepted peer connection to the reactor", logger.Fields{"error": err.Error()})
		}
		return sc
	})
	if err != nil {
		return ErrorListenFailed.Error(err)
	}
	if err := d.Reactor.Add(srv); err != nil {
		return err
	}
	d.listeners = append(d.listeners, srv)
	return nil
}

// listenSignal binds the UDP ping listener (spec.md §6's signal option,
// grounded on snapcommunicator/daemon/ping.cpp's udp_server_message_connection
// and eventdispatcher/logrotate_udp_messenger.cpp's one-shot "send a command
// and exit" pattern for the common case of a logrotate postrotate script
// firing LOG_ROTATE at this daemon). Any datagram whose secret_code does
// not match signal_secret is dropped and logged, never acted on.
func (d *Daemon) listenSignal(s sockcfg.Server) error {
	dg, err := conn.ListenDatagram("signal-listener", reactor.PriorityLow, s.Network, s.Address)
	if err != nil {
		return ErrorListenFailed.Error(err)
	}

	dg.OnDatagram(func(b []byte, from net.Addr) {
		m, err := message.Decode(b)
		if err != nil {
			d.log.Warn("discarding malformed signal datagram", logger.Fields{"error": err.Error()})
			return
		}
		if d.opts.SignalSecret != "" {
			got, ok := m.Parameters.Get("secret_code")
			if !ok || got != d.opts.SignalSecret {
				d.log.Warn(ErrorSecretMismatch.Error(nil).Error(), logger.Fields{"from": from.String()})
				return
			}
		}

		switch m.Command {
		case "LOG_ROTATE":
			if err := d.log.Reopen(); err != nil {
				d.log.Warn("LOG_ROTATE reopen failed", logger.Fields{"error": err.Error()})
			}
		case "STOP":
			_ = d.Shutdown(false)
		case "SHUTDOWN":
			_ = d.Shutdown(true)
		}
	})

	if err := d.Reactor.Add(dg); err != nil {
		return err
	}
	d.listeners = append(d.listeners, dg)
	return nil
}

func (d *Daemon) acceptService(label string, nc net.Conn) reactor.Connection {
	sc := conn.NewStreamClient(label+"-service-"+nc.RemoteAddr().String(), reactor.PriorityNormal, nc)
	disp := dispatcher.New()
	var framed *conn.MessageFramed
	framed = conn.NewMessageFramed(sc, func(m message.Message) {
		disp.Dispatch(m)
	}, d.log)

	_ = dispatcher.RegisterStandard(disp, dispatcher.StandardHooks{
		Reply:    func(m message.Message) { _ = framed.Send(m) },
		Commands: func() []string { return []string{"REGISTER", "COMMANDS", "UNREGISTER"} },
		Stop:     func(graceful bool) { sc.MarkDone() },
		Log:      d.log,
	})

	_ = disp.Add(dispatcher.Match{Kind: dispatcher.OneToOne, Expression: "REGISTER", Handler: func(m message.Message) bool {
		if d.Control.ShuttingDown() {
			_ = framed.Send(d.Control.RegisterReply())
			return true
		}
		if err := d.Registrar.Register(framed, m); err != nil {
			d.log.Warn("REGISTER rejected", logger.Fields{"error": err.Error()})
		}
		return true
	}})
	_ = disp.Add(dispatcher.Match{Kind: dispatcher.OneToOne, Expression: "COMMANDS", Handler: func(m message.Message) bool {
		service, _ := m.Parameters.Get("service")
		if service == "" {
			service = m.SentFromService
		}
		d.Registrar.HandleCommands(service, m)
		return true
	}})
	_ = disp.Add(dispatcher.Match{Kind: dispatcher.OneToOne, Expression: "UNREGISTER", Handler: func(m message.Message) bool {
		d.Registrar.UnregisterByConn(framed)
		sc.MarkDone()
		return true
	}})
	_ = disp.Add(dispatcher.Match{Kind: dispatcher.OneToOne, Expression: "CLUSTER_STATUS", Handler: func(m message.Message) bool {
		up, complete := d.Peers.LastStatus()
		upCmd := "CLUSTER_DOWN"
		if up {
			upCmd = "CLUSTER_UP"
		}
		completeCmd := "CLUSTER_INCOMPLETE"
		if complete {
			completeCmd = "CLUSTER_COMPLETE"
		}
		_ = framed.Send(message.New("", "", upCmd))
		_ = framed.Send(message.New("", "", completeCmd))
		return true
	}})
	d.registerLoadAvgHandlers(disp, framed)
	_ = disp.Add(dispatcher.Match{Kind: dispatcher.Always, Handler: func(m message.Message) bool {
		return d.Router.Route(m, nil)
	}})

	sc.OnHup(func() {
		d.Registrar.UnregisterByConn(framed)
		d.loadAvg.unregister(framed)
	})
	sc.OnError(func(error) {
		d.Registrar.UnregisterByConn(framed)
		d.loadAvg.unregister(framed)
	})

	return sc
}

func (d *Daemon) acceptPeer(label string, nc net.Conn) reactor.Connection {
	sc := conn.NewStreamClient(label+"-peer-"+nc.RemoteAddr().String(), reactor.PriorityNormal, nc)

	state := &peerConnState{}
	framed := conn.NewMessageFramed(sc, func(m message.Message) {
		d.handlePeerMessage(framed, state, m)
	}, d.log)

	sc.OnHup(func() {
		if state.known {
			d.Peers.RecordFailure(state.endpoint, time.Now())
		}
		d.loadAvg.unregister(framed)
	})
	sc.OnError(func(error) {
		if state.known {
			d.Peers.RecordFailure(state.endpoint, time.Now())
		}
		d.loadAvg.unregister(framed)
	})

	return sc
}

// peerConnState tracks the endpoint a peer connection identifies itself as
// once its CONNECT (inbound) or our own dial target (outbound) is known.
type peerConnState struct {
	endpoint address.Endpoint
	known    bool
}

// handlePeerMessage processes one message arriving on a peer connection,
// whichever direction it was dialed. sender is how replies and forwarded
// traffic reach this specific connection.
func (d *Daemon) handlePeerMessage(sender peer.Sender, state *peerConnState, m message.Message) {
	switch m.Command {
	case "CONNECT":
		ep, err := peerEndpointFromMessage(m)
		if err != nil {
			d.log.Warn("CONNECT with unparseable my_address", logger.Fields{"error": err.Error()})
			return
		}
		state.endpoint = ep
		state.known = true

		reply := d.Peers.HandleConnect(ep, sender, m, d.Control.ShuttingDown(), d.Registrar.List())
		_ = sender.Send(reply)
		if reply.Command == "ACCEPT" {
			d.Peers.RecordSuccess(ep)
			d.stopGossipingTo(ep)
		}
	case "ACCEPT":
		if state.known {
			d.Peers.HandleAccept(state.endpoint, sender, m)
			d.Peers.RecordSuccess(state.endpoint)
			d.evaluateCluster()
		}
	case "REFUSE":
		if state.known {
			d.Peers.HandleRefuse(state.endpoint, m, time.Now())
		}
	case "GOSSIP":
		d.handleGossip(sender, m)
	case "RECEIVED":
		if state.known {
			d.Peers.Get(state.endpoint).MarkGossipReceived()
		}
	case "FORGET":
		if ip, ok := m.Parameters.Get("ip"); ok {
			if ep, err := address.Parse(ip); err == nil {
				forget := d.Peers.RemoveNeighbor(ep)
				for _, p := range d.Peers.LivePeers() {
					_ = p.Send(forget)
				}
			}
		}
	case "DISCONNECT", "SHUTDOWN":
		if state.known {
			d.Peers.RecordFailure(state.endpoint, time.Now())
		}
		if md, ok := sender.(interface{ MarkDone() }); ok {
			md.MarkDone()
		}
	case "REGISTER_FOR_LOAD_AVG":
		d.loadAvg.register(sender)
	case "UNREGISTER_FOR_LOAD_AVG":
		d.loadAvg.unregister(sender)
	case "LOAD_AVG":
		d.loadAvg.relayIncoming(m)
	default:
		d.Router.Route(m, peerAdapter{sender: sender, self: state.endpoint})
	}
}

// peerAdapter lets a raw peer connection satisfy router.Peer for messages
// arriving before the CONNECT handshake has recorded a full peer.Record.
type peerAdapter struct {
	sender peer.Sender
	self   address.Endpoint
}

func (p peerAdapter) Endpoint() address.Endpoint   { return p.self }
func (p peerAdapter) Load() int                    { return 0 }
func (p peerAdapter) Send(m message.Message) error { return p.sender.Send(m) }

// handleGossip processes an inbound GOSSIP. A bare announcement (just
// my_address) is a smaller peer telling us it exists because it expects
// us, the numerically larger side, to dial it; we record it as a
// neighbor, ack with RECEIVED so its gossip connection stops resending,
// and let dialOutboundPeers pick it up. A heard_of list is the flooding
// form used to propagate neighbor knowledge (spec.md §4.6).
func (d *Daemon) handleGossip(sender peer.Sender, m message.Message) {
	if raw, ok := m.Parameters.Get("my_address"); ok && raw != "" {
		if ep, err := address.Parse(raw); err == nil {
			d.Peers.AddNeighbors([]address.Endpoint{ep})
			_ = sender.Send(message.New("", "", "RECEIVED"))
		}
	}

	if heard, ok := m.Parameters.Get("heard_of"); ok && heard != "" {
		var eps []address.Endpoint
		for _, raw := range strings.Split(heard, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			if ep, err := address.Parse(raw); err == nil {
				eps = append(eps, ep)
			}
		}
		d.Peers.AddNeighbors(eps)
	}

	d.dialOutboundPeers()
}

func peerEndpointFromMessage(m message.Message) (address.Endpoint, error) {
	raw, ok := m.Parameters.Get("my_address")
	if !ok || raw == "" {
		return address.Endpoint{}, ErrorBadSelfAddress.Error(nil)
	}
	return address.Parse(raw)
}

// dialOutboundPeers starts a permclient.Client for every known peer this
// daemon is responsible for dialing (directionality rule, spec.md §4.6)
// that is not already connected or connecting and is past its back-off.
func (d *Daemon) dialOutboundPeers() {
	now := time.Now()
	for _, rec := range d.Peers.Records() {
		ep := rec.Endpoint()
		if !d.Peers.Outbound(ep) {
			continue
		}
		if rec.State() == peer.StateConnected || rec.State() == peer.StateConnecting {
			continue
		}
		if rec.BackedOff(now) {
			continue
		}
		key := ep.String()
		if _, exists := d.outbound[key]; exists {
			continue
		}
		d.dialPeer(ep)
	}
}

// permClientAdapter lets a permclient.Client (outbound dial) stand in for
// peer.Sender and control.Peer, the way a *conn.MessageFramed does for an
// inbound peer connection.
type permClientAdapter struct {
	client *permclient.Client
}

func (p permClientAdapter) Send(m message.Message) error {
	return p.client.Send(m, permclient.SendOptions{Cache: true, Priority: permclient.PriorityNormal})
}
func (p permClientAdapter) MarkDone() { p.client.Stop() }

func (d *Daemon) dialPeer(ep address.Endpoint) {
	client := permclient.New("peer-"+ep.String(), reactor.PriorityNormal, d.Reactor, netproto.NetworkTCP, ep.String(), d.log)
	d.outbound[ep.String()] = client
	adapter := permClientAdapter{client: client}

	state := &peerConnState{endpoint: ep, known: true}
	client.OnMessage = func(m message.Message) {
		d.handlePeerMessage(adapter, state, m)
	}

	client.Start()
	connect := d.Peers.BuildConnect(d.Registrar.List(), d.neighborStrings())
	_ = adapter.Send(connect)
}

// stopGossipingTo tears down any ephemeral gossip connection still open
// to ep, once the real persistent connection has taken over.
func (d *Daemon) stopGossipingTo(ep address.Endpoint) {
	key := ep.String()
	if client, ok := d.gossip[key]; ok {
		client.Stop()
		delete(d.gossip, key)
	}
}

func (d *Daemon) gossipTick() {
	d.dialOutboundPeers()
	d.gossipToLargerPeers()
	d.evaluateCluster()
}

// gossipToLargerPeers opens (or reuses) a short-lived connection to every
// known peer with a numerically larger address that has not yet
// connected to us and has not RECEIVED-acked a prior gossip, and sends
// it a bare my_address announcement. The connection is torn down once
// RECEIVED comes back or once the real CONNECT/ACCEPT handshake
// supersedes it (spec.md §4.6 Glossary "Gossip"; grounded on
// gossip_connection.h's gossip_to_remote_snap_communicator, which exists
// solely to deliver this announcement and stops once acknowledged).
func (d *Daemon) gossipToLargerPeers() {
	for _, rec := range d.Peers.UnconnectedLarger() {
		ep := rec.Endpoint()
		if rec.GossipReceived() {
			continue
		}
		key := ep.String()
		if _, exists := d.gossip[key]; exists {
			continue
		}

		client := permclient.New("gossip-"+key, reactor.PriorityLow, d.Reactor, netproto.NetworkTCP, ep.String(), d.log)
		d.gossip[key] = client
		client.OnMessage = func(m message.Message) {
			if m.Command != "RECEIVED" {
				return
			}
			d.Peers.Get(ep).MarkGossipReceived()
			client.Stop()
			delete(d.gossip, key)
		}

		client.Start()
		announce := message.New("", "", "GOSSIP")
		_ = announce.Parameters.Set("my_address", d.self.String())
		_ = client.Send(announce, permclient.SendOptions{Cache: false, Priority: permclient.PriorityLow})
	}
}

func (d *Daemon) neighborStrings() []string {
	recs := d.Peers.Records()
	out := make([]string, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Endpoint().String())
	}
	return out
}

func (d *Daemon) evaluateCluster() {
	up, complete := d.Peers.EvaluateClusterStatus()
	if d.Metrics != nil {
		d.Metrics.SetClusterStatus(up, complete)
		d.Metrics.SetPeersConnected(len(d.Peers.LivePeers()))
		if d.prober != nil {
			d.Metrics.SetSwimMembers(d.prober.NumMembers())
		}
	}
}

// Shutdown runs the §4.7 cascade: peers get SHUTDOWN (cluster-wide) or
// DISCONNECT, local services supporting DISCONNECTING are told so, every
// listener is withdrawn, and the reactor is left to exit once its
// connection set empties (its own responsibility, not this package's).
func (d *Daemon) Shutdown(clusterWide bool) error {
	if d.httpSrv != nil {
		_ = d.httpSrv.Close()
	}
	if d.prober != nil {
		_ = d.prober.Shutdown()
	}

	var peers []control.Peer
	for _, rec := range d.Peers.Records() {
		c := rec.Conn()
		if c == nil {
			continue
		}
		if p, ok := c.(control.Peer); ok {
			peers = append(peers, p)
		}
	}

	var services []control.Service
	for _, reg := range d.Registrar.All() {
		if svc, ok := reg.Conn.(interface {
			MarkDone()
			OutputEmpty() bool
		}); ok {
			services = append(services, serviceHandle{reg: reg, svc: svc})
		}
	}

	return d.Control.Shutdown(clusterWide, peers, services, d.listeners)
}

// serviceHandle adapts a Registration plus its connection's MarkDone/
// OutputEmpty capability to control.Service.
type serviceHandle struct {
	reg *registrar.Registration
	svc interface {
		MarkDone()
		OutputEmpty() bool
	}
}

func (s serviceHandle) Name() string                 { return s.reg.Service }
func (s serviceHandle) Supports(command string) bool { return s.reg.Supports(command) }
func (s serviceHandle) Send(m message.Message) error { return s.reg.Conn.Send(m) }
func (s serviceHandle) MarkDone()                    { s.svc.MarkDone() }
func (s serviceHandle) OutputEmpty() bool            { return s.svc.OutputEmpty() }
