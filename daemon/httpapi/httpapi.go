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

// Package httpapi is a small read-only operator status surface for one
// running daemon: GET /status, /services, /peers, and a GET /metrics proxy
// in front of the Prometheus handler from package metrics. It never
// accepts a write: every mutation to daemon state happens over the
// reactor's own connections, per spec.md §4.
package httpapi

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	golerr "github.com/sabouaram/reactorbus/errors"
)

// Status is the snapshot this package reports at GET /status.
type Status struct {
	Server          string `json:"server"`
	Address         string `json:"address"`
	Up              bool   `json:"cluster_up"`
	Complete        bool   `json:"cluster_complete"`
	RegisteredCount int    `json:"registered_services"`
	PeerCount       int    `json:"peer_count"`
	GoVersion       string `json:"go_version"`
}

// ServiceView is one entry of GET /services.
type ServiceView struct {
	Service      string    `json:"service"`
	Ready        bool      `json:"ready"`
	RegisteredAt time.Time `json:"registered_at"`
	Commands     []string  `json:"commands"`
}

// PeerView is one entry of GET /peers.
type PeerView struct {
	Endpoint string `json:"endpoint"`
	State    string `json:"state"`
	Load     int    `json:"load"`
}

// Source is the read-only view of daemon state this package renders;
// *daemon.Daemon satisfies it without httpapi importing package daemon
// (which already imports httpapi's sibling packages), avoiding an import
// cycle.
type Source interface {
	ServerName() string
	SelfAddress() string
	ClusterStatus() (up, complete bool)
	Services() []ServiceView
	PeerViews() []PeerView
	MetricsHandler() http.Handler
}

// API is the gin.Engine wrapper mounted by daemon.Daemon.startStatusAPI.
type API struct {
	engine *gin.Engine
	src    Source
}

// New builds the status API against src. gin runs in ReleaseMode: this
// is an operator surface, not a development server.
func New(src Source) *API {
	gin.SetMode(gin.ReleaseMode)
	e := gin.New()
	e.Use(gin.Recovery())

	a := &API{engine: e, src: src}
	e.GET("/status", a.handleStatus)
	e.GET("/services", a.handleServices)
	e.GET("/peers", a.handlePeers)
	e.GET("/metrics", a.handleMetrics)
	return a
}

// Handler returns the underlying http.Handler, for net/http.Server or the
// reactor's own listener plumbing to serve.
func (a *API) Handler() http.Handler {
	return a.engine
}

func (a *API) handleStatus(c *gin.Context) {
	up, complete := a.src.ClusterStatus()
	c.JSON(http.StatusOK, Status{
		Server:          a.src.ServerName(),
		Address:         a.src.SelfAddress(),
		Up:              up,
		Complete:        complete,
		RegisteredCount: len(a.src.Services()),
		PeerCount:       len(a.src.PeerViews()),
		GoVersion:       runtime.Version(),
	})
}

func (a *API) handleServices(c *gin.Context) {
	c.JSON(http.StatusOK, a.src.Services())
}

func (a *API) handlePeers(c *gin.Context) {
	c.JSON(http.StatusOK, a.src.PeerViews())
}

func (a *API) handleMetrics(c *gin.Context) {
	h := a.src.MetricsHandler()
	if h == nil {
		r := &golerr.DefaultReturn{}
		r.SetError(int(golerr.UnknownError), "metrics collector not wired", "httpapi.go", 0)
		r.GinTonicAbort(c, http.StatusServiceUnavailable)
		return
	}
	h.ServeHTTP(c.Writer, c.Request)
}
