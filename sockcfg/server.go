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

package sockcfg

import (
	"github.com/go-playground/validator/v10"

	"github.com/sabouaram/reactorbus/errors"
	"github.com/sabouaram/reactorbus/file/perm"
	"github.com/sabouaram/reactorbus/netproto"
)

// Server describes a listener: local_listen, remote_listen, secure_listen,
// or unix_listen (spec.md §6). PermFile/GroupPerm apply only to
// NetworkUnix/NetworkUnixGram listeners, setting the socket file's mode and
// group-ownership bit after bind.
type Server struct {
	Network   netproto.NetworkProtocol `mapstructure:"network" json:"network" yaml:"network" toml:"network" validate:"required"`
	Address   string                   `mapstructure:"address" json:"address" yaml:"address" toml:"address"`
	PermFile  perm.Perm                `mapstructure:"perm_file" json:"perm_file" yaml:"perm_file" toml:"perm_file"`
	GroupPerm int32                    `mapstructure:"group_perm" json:"group_perm" yaml:"group_perm" toml:"group_perm"`
	TLS       TLS                      `mapstructure:"tls" json:"tls" yaml:"tls" toml:"tls"`
}

// Validate mirrors Client.Validate; additionally, a Unix listener with no
// PermFile set defaults to 0600 (owner-only), the conservative default a
// message bus socket should carry.
func (s *Server) Validate() errors.Error {
	val := validator.New()
	if err := val.Struct(s); err != nil {
		return ErrorInvalidProtocol.Error(err)
	}

	if !s.Network.IsValid() {
		return ErrorInvalidProtocol.Error(nil)
	}

	if err := validateAddress(s.Network, s.Address); err != nil {
		return ErrorInvalidAddress.Error(err)
	}

	if s.TLS.Enable && (s.TLS.Certificate == "" || s.TLS.PrivateKey == "") {
		return ErrorMissingCertificate.Error(nil)
	}

	if s.Network.IsUnix() && s.PermFile == 0 {
		s.PermFile = perm.Perm(0600)
	}

	return nil
}
