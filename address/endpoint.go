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

// Package address defines the tagged endpoint value type shared by every
// connection kind the reactor and daemon packages work with: IPv4, IPv6 and
// Unix-domain socket addresses.
package address

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
	"strings"
)

// Family tags which variant of Endpoint is populated.
type Family uint8

const (
	FamilyIPv4 Family = iota
	FamilyIPv6
	FamilyUnix
)

func (f Family) String() string {
	switch f {
	case FamilyIPv4:
		return "ipv4"
	case FamilyIPv6:
		return "ipv6"
	case FamilyUnix:
		return "unix"
	default:
		return "unknown"
	}
}

// NetworkType classifies the reachability scope of an Endpoint.
type NetworkType uint8

const (
	NetworkUnknown NetworkType = iota
	NetworkLoopback
	NetworkPrivate
	NetworkPublic
	NetworkMulticast
	NetworkBroadcast
)

func (n NetworkType) String() string {
	switch n {
	case NetworkLoopback:
		return "loopback"
	case NetworkPrivate:
		return "private"
	case NetworkPublic:
		return "public"
	case NetworkMulticast:
		return "multicast"
	case NetworkBroadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// Endpoint is an immutable value type sufficient to dial or listen on a
// peer: an IPv4 or IPv6 (address, port, scope) pair, or a Unix socket path.
//
// Zero value is not a valid Endpoint; build one with New/NewUnix/Parse.
type Endpoint struct {
	family   Family
	ip       netip.Addr
	port     uint16
	scope    string
	path     string
	abstract bool
	unnamed  bool
}

// New builds an IPv4 or IPv6 Endpoint from a net.IP and a port.
func New(ip net.IP, port int) (Endpoint, error) {
	if port < 0 || port > 65535 {
		return Endpoint{}, ErrorPort.Error(nil)
	}

	a, ok := netip.AddrFromSlice(ip)
	if !ok {
		return Endpoint{}, ErrorParse.Error(nil)
	}
	a = a.Unmap()

	f := FamilyIPv4
	if a.Is6() {
		f = FamilyIPv6
	}

	return Endpoint{family: f, ip: a, port: uint16(port)}, nil
}

// NewUnix builds a Unix-domain Endpoint. An empty path with abstract=false
// and unnamed=true denotes an unnamed socket (as produced by socketpair).
func NewUnix(path string, abstract bool, unnamed bool) (Endpoint, error) {
	if path == "" && !unnamed {
		return Endpoint{}, ErrorEmptyPath.Error(nil)
	}
	return Endpoint{family: FamilyUnix, path: path, abstract: abstract, unnamed: unnamed}, nil
}

// Parse accepts "host:port" (IPv4/IPv6, brackets optional for v6), a bare
// Unix path (starting with "/" or "./"), or "@name" for an abstract Unix
// socket in the Linux sense.
func Parse(s string) (Endpoint, error) {
	if s == "" {
		return Endpoint{}, ErrorParse.Error(nil)
	}

	if strings.HasPrefix(s, "@") {
		return NewUnix(s[1:], true, false)
	}
	if strings.HasPrefix(s, "/") || strings.HasPrefix(s, "./") {
		return NewUnix(s, false, false)
	}

	host, portStr, err := net.SplitHostPort(s)
	if err != nil {
		return Endpoint{}, ErrorParse.Error(err)
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return Endpoint{}, ErrorPort.Error(err)
	}

	addr := host
	scope := ""
	if i := strings.IndexByte(host, '%'); i >= 0 {
		addr = host[:i]
		scope = host[i+1:]
	}

	a, err := netip.ParseAddr(addr)
	if err != nil {
		return Endpoint{}, ErrorParse.Error(err)
	}

	e, err := New(a.AsSlice(), port)
	if err != nil {
		return Endpoint{}, err
	}
	e.scope = scope
	return e, nil
}

func (e Endpoint) Family() Family   { return e.family }
func (e Endpoint) IsUnix() bool     { return e.family == FamilyUnix }
func (e Endpoint) Port() int        { return int(e.port) }
func (e Endpoint) Path() string     { return e.path }
func (e Endpoint) Abstract() bool   { return e.abstract }
func (e Endpoint) Unnamed() bool    { return e.unnamed }
func (e Endpoint) Scope() string    { return e.scope }
func (e Endpoint) IP() net.IP {
	if e.family == FamilyUnix {
		return nil
	}
	return e.ip.AsSlice()
}

// String renders the endpoint the way it would appear in a config file or
// log line: "host:port" for IP endpoints, the raw path (or "@name") for Unix.
func (e Endpoint) String() string {
	switch e.family {
	case FamilyUnix:
		if e.abstract {
			return "@" + e.path
		}
		if e.unnamed {
			return "@"
		}
		return e.path
	case FamilyIPv6:
		host := e.ip.String()
		if e.scope != "" {
			host += "%" + e.scope
		}
		return net.JoinHostPort(host, strconv.Itoa(int(e.port)))
	default:
		return net.JoinHostPort(e.ip.String(), strconv.Itoa(int(e.port)))
	}
}

// NetworkType classifies the endpoint's reachability scope.
func (e Endpoint) NetworkType() NetworkType {
	if e.family == FamilyUnix {
		return NetworkLoopback
	}

	switch {
	case e.ip.IsLoopback():
		return NetworkLoopback
	case e.ip.IsMulticast():
		return NetworkMulticast
	case isIPv4Broadcast(e.ip):
		return NetworkBroadcast
	case e.ip.IsPrivate() || e.ip.IsLinkLocalUnicast():
		return NetworkPrivate
	default:
		return NetworkPublic
	}
}

func isIPv4Broadcast(a netip.Addr) bool {
	return a.Is4() && a == netip.AddrFrom4([4]byte{255, 255, 255, 255})
}

// Compare orders endpoints: IPv4 < IPv6 < Unix, and within a family
// lexicographically on the raw address bytes, then by port. It is the
// ordering the peer manager's directionality rule (the higher endpoint
// dials the lower one) and the remote-service tie-break (lowest endpoint
// wins) both rely on.
func (e Endpoint) Compare(o Endpoint) int {
	if e.family != o.family {
		if e.family < o.family {
			return -1
		}
		return 1
	}

	switch e.family {
	case FamilyUnix:
		return strings.Compare(e.String(), o.String())
	default:
		if c := e.ip.Compare(o.ip); c != 0 {
			return c
		}
		switch {
		case e.port < o.port:
			return -1
		case e.port > o.port:
			return 1
		default:
			return 0
		}
	}
}

// Less reports whether e sorts before o under Compare.
func (e Endpoint) Less(o Endpoint) bool { return e.Compare(o) < 0 }

// Equal reports value equality, including scope and Unix abstract/unnamed
// flags.
func (e Endpoint) Equal(o Endpoint) bool {
	return e.family == o.family &&
		e.ip == o.ip &&
		e.port == o.port &&
		e.scope == o.scope &&
		e.path == o.path &&
		e.abstract == o.abstract &&
		e.unnamed == o.unnamed
}

// IsZero reports whether e was never assigned a value.
func (e Endpoint) IsZero() bool {
	return e.family == FamilyIPv4 && !e.ip.IsValid() && e.path == ""
}

// MarshalText implements encoding.TextMarshaler for config/log round trips.
func (e Endpoint) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Endpoint) UnmarshalText(b []byte) error {
	p, err := Parse(string(b))
	if err != nil {
		return err
	}
	*e = p
	return nil
}

// GoString renders a debug-friendly representation for %#v.
func (e Endpoint) GoString() string {
	return fmt.Sprintf("address.Endpoint{%s}", e.String())
}
