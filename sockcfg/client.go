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

// Package sockcfg carries the per-socket configuration shared by every
// listener and client connection kind the reactor builds: which transport
// family to use, the address to bind/dial, and optional TLS plumbing.
package sockcfg

import (
	"net"

	"github.com/go-playground/validator/v10"

	"github.com/sabouaram/reactorbus/errors"
	"github.com/sabouaram/reactorbus/netproto"
)

// Client describes an outbound connection: a permanent client, a peer
// CONNECT dial, or the UDP ping sender.
type Client struct {
	Network netproto.NetworkProtocol `mapstructure:"network" json:"network" yaml:"network" toml:"network" validate:"required"`
	Address string                   `mapstructure:"address" json:"address" yaml:"address" toml:"address"`
	TLS     TLS                      `mapstructure:"tls" json:"tls" yaml:"tls" toml:"tls"`
}

// Validate checks the protocol is known and, for IP-based protocols, that
// Address resolves as the kind of address the protocol expects.
func (c Client) Validate() errors.Error {
	val := validator.New()
	if err := val.Struct(c); err != nil {
		return ErrorInvalidProtocol.Error(err)
	}

	if !c.Network.IsValid() {
		return ErrorInvalidProtocol.Error(nil)
	}

	if err := validateAddress(c.Network, c.Address); err != nil {
		return ErrorInvalidAddress.Error(err)
	}

	if c.TLS.Enable && (c.TLS.Certificate == "" || c.TLS.PrivateKey == "") {
		return ErrorMissingCertificate.Error(nil)
	}

	return nil
}

func validateAddress(n netproto.NetworkProtocol, addr string) error {
	if addr == "" {
		return nil
	}

	switch {
	case n.IsUnix():
		return nil
	case n == netproto.NetworkTCP, n == netproto.NetworkTCP4, n == netproto.NetworkTCP6:
		_, err := net.ResolveTCPAddr(n.String(), addr)
		return err
	case n == netproto.NetworkUDP, n == netproto.NetworkUDP4, n == netproto.NetworkUDP6:
		_, err := net.ResolveUDPAddr(n.String(), addr)
		return err
	default:
		return nil
	}
}
