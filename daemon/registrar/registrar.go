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

// Package registrar tracks local service connections: their name, the
// connection they arrived on, and the command vocabulary they advertise,
// per spec.md §4.4.
package registrar

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sabouaram/reactorbus/logger"
	"github.com/sabouaram/reactorbus/message"
)

// MinSupportedVersion is the lowest REGISTER version this daemon accepts.
const MinSupportedVersion = 1

// Sender is the minimal outbound capability the registrar needs from a
// service connection; *reactor/conn.MessageFramed satisfies it.
type Sender interface {
	Send(m message.Message) error
}

// Registration is one local service's entry in the registrar's table.
type Registration struct {
	Service      string
	Conn         Sender
	RegisteredAt time.Time
	Commands     map[string]struct{}
	WantsLoadAvg bool
	IsReady      bool
}

// Supports reports whether the service advertised command in its COMMANDS
// vocabulary. An empty vocabulary (COMMANDS never received) supports
// everything, since the router still forwards and lets the service itself
// reply UNKNOWN (spec.md §4.5 step 4).
func (r *Registration) Supports(command string) bool {
	if len(r.Commands) == 0 {
		return true
	}
	_, ok := r.Commands[command]
	return ok
}

// Registrar is the daemon-local table of registered services.
type Registrar struct {
	mu         sync.Mutex
	services   map[string]*Registration
	serverName string
	myAddress  string
	log        logger.Logger

	// OnStatus is invoked after a service transitions up or down, so the
	// router can broadcast STATUS to local services that declared
	// interest (spec.md §4.4 step 6/7).
	OnStatus func(reg *Registration, up bool)

	// FlushCache is invoked once a new registration completes, so the
	// router can replay any messages it cached for this service while it
	// was absent (spec.md §4.4 "flushed in FIFO order").
	FlushCache func(service string)
}

// New builds a Registrar for a daemon identifying itself as serverName,
// reachable at myAddress (echoed in READY).
func New(serverName, myAddress string, log logger.Logger) *Registrar {
	if log == nil {
		log = logger.Std()
	}
	return &Registrar{
		services:   map[string]*Registration{},
		serverName: serverName,
		myAddress:  myAddress,
		log:        log,
	}
}

// Register processes a first-contact REGISTER message from conn. On
// success it replies HELP then READY and returns nil; on failure it
// returns the error and the caller should drop the connection without
// replying (spec.md §4.4 step 1: "on failure, drops").
func (r *Registrar) Register(conn Sender, m message.Message) error {
	service, _ := m.Parameters.Get("service")
	versionStr, _ := m.Parameters.Get("version")

	version := 1
	if versionStr != "" {
		if v, err := strconv.Atoi(versionStr); err == nil {
			version = v
		}
	}
	if version < MinSupportedVersion {
		return ErrorVersionTooOld.Error(nil)
	}

	r.mu.Lock()
	if _, exists := r.services[service]; exists {
		r.mu.Unlock()
		return ErrorDuplicateService.Error(nil)
	}

	reg := &Registration{
		Service:      service,
		Conn:         conn,
		RegisteredAt: time.Now(),
		Commands:     map[string]struct{}{},
	}
	r.services[service] = reg
	r.mu.Unlock()

	help := message.New("", "", "HELP")
	_ = conn.Send(help)

	ready := message.New("", "", "READY")
	_ = ready.Parameters.Set("my_address", r.myAddress)
	_ = conn.Send(ready)

	if r.FlushCache != nil {
		r.FlushCache(service)
	}
	if r.OnStatus != nil {
		r.OnStatus(reg, true)
	}
	return nil
}

// HandleCommands records the command vocabulary a service reports via
// COMMANDS{list=a,b,c}.
func (r *Registrar) HandleCommands(service string, m message.Message) {
	list, _ := m.Parameters.Get("list")

	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.services[service]
	if !ok {
		return
	}
	reg.Commands = map[string]struct{}{}
	for _, c := range strings.Split(list, ",") {
		c = strings.TrimSpace(c)
		if c != "" {
			reg.Commands[c] = struct{}{}
		}
	}
}

// MarkReady records that the service's READY handshake completed.
func (r *Registrar) MarkReady(service string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.services[service]; ok {
		reg.IsReady = true
	}
}

// Unregister evicts service, whether from an explicit UNREGISTER, the
// connection closing, or an error (spec.md §4.4 step 7).
func (r *Registrar) Unregister(service string) {
	r.mu.Lock()
	reg, ok := r.services[service]
	if ok {
		delete(r.services, service)
	}
	r.mu.Unlock()

	if ok && r.OnStatus != nil {
		r.OnStatus(reg, false)
	}
}

// UnregisterByConn finds and evicts whichever service is bound to conn;
// used when a connection closes without an explicit UNREGISTER.
func (r *Registrar) UnregisterByConn(conn Sender) {
	r.mu.Lock()
	var service string
	for name, reg := range r.services {
		if reg.Conn == conn {
			service = name
			break
		}
	}
	r.mu.Unlock()

	if service != "" {
		r.Unregister(service)
	}
}

// Lookup returns the registration for service, if any.
func (r *Registrar) Lookup(service string) (*Registration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.services[service]
	return reg, ok
}

// List returns a snapshot of every currently registered service name.
func (r *Registrar) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.services))
	for name := range r.services {
		out = append(out, name)
	}
	return out
}

// All returns a snapshot of every registration, for the router's local
// broadcast fan-out.
func (r *Registrar) All() []*Registration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Registration, 0, len(r.services))
	for _, reg := range r.services {
		out = append(out, reg)
	}
	return out
}
