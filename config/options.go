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

// Package config loads and validates the daemon's recognized options and
// drives the hot-reload of anything a running daemon can safely pick up
// without a restart.
package config

import (
	"os"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sabouaram/reactorbus/address"
	"github.com/sabouaram/reactorbus/errors"
	"github.com/sabouaram/reactorbus/sockcfg"
)

const (
	DefaultServicesDir          = "/usr/share/reactorbus/services"
	DefaultDataPath             = "/var/lib/reactorbus"
	DefaultMaxConnections       = 100
	DefaultMaxPendingConn       = 25
	MinMaxPendingConn           = 5
	MaxMaxPendingConn           = 1000
)

// Options is the full set of recognized daemon options. Every field maps
// onto one option named in the configuration reference; fields not present
// in a loaded file keep their Default-applied value.
type Options struct {
	LocalListen  sockcfg.Server `mapstructure:"local_listen" json:"local_listen" yaml:"local_listen" validate:"required"`
	RemoteListen sockcfg.Server `mapstructure:"remote_listen" json:"remote_listen" yaml:"remote_listen"`
	SecureListen sockcfg.Server `mapstructure:"secure_listen" json:"secure_listen" yaml:"secure_listen"`
	UnixListen   sockcfg.Server `mapstructure:"unix_listen" json:"unix_listen" yaml:"unix_listen"`
	Signal       sockcfg.Server `mapstructure:"signal" json:"signal" yaml:"signal"`
	SignalSecret string         `mapstructure:"signal_secret" json:"signal_secret" yaml:"signal_secret"`

	// StatusListen binds the read-only operator HTTP API (daemon/httpapi)
	// and Prometheus exporter (package metrics), e.g. "127.0.0.1:4051".
	// Left empty, neither is started: this is an ambient-stack addition,
	// not part of the wire protocol in spec.md.
	StatusListen string `mapstructure:"status_listen" json:"status_listen" yaml:"status_listen"`

	// ProbeListen binds the secondary SWIM liveness prober
	// (daemon/peer.Prober, backed by hashicorp/memberlist), e.g.
	// "0.0.0.0:7946". Left empty, the prober is not started and
	// liveness is tracked solely by the CONNECT/ACCEPT/GOSSIP handshake.
	ProbeListen string `mapstructure:"probe_listen" json:"probe_listen" yaml:"probe_listen"`

	ServerName string `mapstructure:"server_name" json:"server_name" yaml:"server_name"`
	MyAddress  string `mapstructure:"my_address" json:"my_address" yaml:"my_address"`
	Neighbors  string `mapstructure:"neighbors" json:"neighbors" yaml:"neighbors"`

	ServicesDir string `mapstructure:"services_dir" json:"services_dir" yaml:"services_dir"`
	DataPath    string `mapstructure:"data_path" json:"data_path" yaml:"data_path"`

	MaxConnections        int `mapstructure:"max_connections" json:"max_connections" yaml:"max_connections" validate:"min=1"`
	MaxPendingConnections int `mapstructure:"max_pending_connections" json:"max_pending_connections" yaml:"max_pending_connections" validate:"min=5,max=1000"`

	DebugAllMessages bool `mapstructure:"debug_all_messages" json:"debug_all_messages" yaml:"debug_all_messages"`
}

// ApplyDefaults fills in every option spec.md §6 documents a default for,
// without overwriting anything the caller already set.
func (o *Options) ApplyDefaults() {
	if o.ServerName == "" {
		if h, err := os.Hostname(); err == nil {
			o.ServerName = h
		}
	}
	if o.ServicesDir == "" {
		o.ServicesDir = DefaultServicesDir
	}
	if o.DataPath == "" {
		o.DataPath = DefaultDataPath
	}
	if o.MaxConnections == 0 {
		o.MaxConnections = DefaultMaxConnections
	}
	if o.MaxPendingConnections == 0 {
		o.MaxPendingConnections = DefaultMaxPendingConn
	}
	if o.LocalListen.Network == "" {
		o.LocalListen.Network = "tcp"
	}
	if o.Signal.Network == "" {
		o.Signal.Network = "udp"
	}
}

// Validate checks every option against spec.md §6's constraints: a
// loopback local_listen, sane listener protocols, and a pending-connection
// bound within [5,1000].
func (o *Options) Validate() errors.Error {
	val := validator.New()
	if err := val.Struct(o); err != nil {
		return ErrorInvalidOption.Error(err)
	}

	if o.LocalListen.Address == "" {
		return ErrorMissingLocalListen.Error(nil)
	}
	if err := o.LocalListen.Validate(); err != nil {
		return ErrorInvalidOption.Error(err)
	}
	if ep, perr := address.Parse(o.LocalListen.Address); perr == nil && ep.NetworkType() != address.NetworkLoopback {
		return ErrorInvalidOption.Error(perr)
	}

	if o.RemoteListen.Address != "" {
		if err := o.RemoteListen.Validate(); err != nil {
			return ErrorInvalidOption.Error(err)
		}
	}
	if o.SecureListen.Address != "" {
		if err := o.SecureListen.Validate(); err != nil {
			return ErrorInvalidOption.Error(err)
		}
		if o.SecureListen.TLS.Certificate == "" || o.SecureListen.TLS.PrivateKey == "" {
			return ErrorInvalidOption.Error(nil)
		}
	}
	if o.UnixListen.Address != "" {
		if err := o.UnixListen.Validate(); err != nil {
			return ErrorInvalidOption.Error(err)
		}
	}
	if o.Signal.Address != "" {
		if err := o.Signal.Validate(); err != nil {
			return ErrorInvalidOption.Error(err)
		}
	}

	if _, err := o.NeighborEndpoints(); err != nil {
		return ErrorInvalidOption.Error(err)
	}

	if o.MaxPendingConnections < MinMaxPendingConn || o.MaxPendingConnections > MaxMaxPendingConn {
		return ErrorInvalidOption.Error(nil)
	}

	return nil
}

// NeighborEndpoints parses the comma-separated Neighbors option into
// Endpoint values, skipping blank entries.
func (o *Options) NeighborEndpoints() ([]address.Endpoint, error) {
	if strings.TrimSpace(o.Neighbors) == "" {
		return nil, nil
	}

	parts := strings.Split(o.Neighbors, ",")
	out := make([]address.Endpoint, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		ep, err := address.Parse(p)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	return out, nil
}
