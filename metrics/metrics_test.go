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

package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRouteCountersIncrement(t *testing.T) {
	c := New("test-server")

	c.RouteDelivered()
	c.RouteDelivered()
	c.RouteCached()
	c.RouteDropped()
	c.RouteBroadcast()

	if got := testutil.ToFloat64(c.routeDelivered); got != 2 {
		t.Fatalf("routeDelivered = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.routeCached); got != 1 {
		t.Fatalf("routeCached = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.routeDropped); got != 1 {
		t.Fatalf("routeDropped = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.routeBroadcast); got != 1 {
		t.Fatalf("routeBroadcast = %v, want 1", got)
	}
}

func TestSetClusterStatusGauges(t *testing.T) {
	c := New("test-server")

	c.SetClusterStatus(true, false)
	if got := testutil.ToFloat64(c.clusterUp); got != 1 {
		t.Fatalf("clusterUp = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.clusterComplete); got != 0 {
		t.Fatalf("clusterComplete = %v, want 0", got)
	}

	c.SetClusterStatus(true, true)
	if got := testutil.ToFloat64(c.clusterComplete); got != 1 {
		t.Fatalf("clusterComplete = %v, want 1 after full quorum", got)
	}
}

func TestSetPeersConnectedAndSwimMembers(t *testing.T) {
	c := New("test-server")

	c.SetPeersConnected(3)
	if got := testutil.ToFloat64(c.peersConnected); got != 3 {
		t.Fatalf("peersConnected = %v, want 3", got)
	}

	c.SetSwimMembers(5)
	if got := testutil.ToFloat64(c.swimMembers); got != 5 {
		t.Fatalf("swimMembers = %v, want 5", got)
	}
}

func TestObserveStepRecordsAgainstHistogram(t *testing.T) {
	c := New("test-server")
	c.ObserveStep(10 * time.Millisecond)

	if got := testutil.CollectAndCount(c.stepDuration); got != 1 {
		t.Fatalf("expected one histogram observation, got %d", got)
	}
}

func TestHandlerServesOwnRegistry(t *testing.T) {
	c := New("test-server")
	c.RouteDelivered()

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, "reactorbus_router_messages_delivered_total") {
		t.Fatalf("expected exposition to include the delivered-messages metric, got: %s", body)
	}
}
