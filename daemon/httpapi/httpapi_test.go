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

package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeSource struct {
	up, complete bool
	services     []ServiceView
	peers        []PeerView
	metrics      http.Handler
}

func (f *fakeSource) ServerName() string                 { return "test-server" }
func (f *fakeSource) SelfAddress() string                 { return "10.0.0.1:9000" }
func (f *fakeSource) ClusterStatus() (bool, bool)         { return f.up, f.complete }
func (f *fakeSource) Services() []ServiceView             { return f.services }
func (f *fakeSource) PeerViews() []PeerView               { return f.peers }
func (f *fakeSource) MetricsHandler() http.Handler        { return f.metrics }

func TestHandleStatusReportsClusterAndCounts(t *testing.T) {
	src := &fakeSource{
		up:       true,
		complete: false,
		services: []ServiceView{{Service: "A"}},
		peers:    []PeerView{{Endpoint: "10.0.0.2:9000"}, {Endpoint: "10.0.0.3:9000"}},
	}
	api := New(src)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var got Status
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal status: %v", err)
	}
	if got.Server != "test-server" || !got.Up || got.Complete {
		t.Fatalf("unexpected status body: %+v", got)
	}
	if got.RegisteredCount != 1 || got.PeerCount != 2 {
		t.Fatalf("expected 1 service and 2 peers, got %+v", got)
	}
}

func TestHandleMetricsAbortsWhenNotWired(t *testing.T) {
	api := New(&fakeSource{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when no collector is wired, got %d", rec.Code)
	}
}

func TestHandleMetricsProxiesWiredHandler(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("fake_metric 1\n"))
	})
	api := New(&fakeSource{metrics: inner})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	api.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "fake_metric 1\n" {
		t.Fatalf("expected proxied body, got %q", rec.Body.String())
	}
}
