package config

import (
	"os"
	"path/filepath"
	"testing"
)

const minimalYAML = `
local_listen:
  network: tcp
  address: 127.0.0.1:9000
`

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadAppliesDefaults(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, "daemon.yaml", minimalYAML)

	c := New(nil)
	if err := c.Load(p); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	o := c.Options()
	if o.ServicesDir != DefaultServicesDir {
		t.Fatalf("expected default services dir, got %q", o.ServicesDir)
	}
	if o.DataPath != DefaultDataPath {
		t.Fatalf("expected default data path, got %q", o.DataPath)
	}
	if o.MaxConnections != DefaultMaxConnections {
		t.Fatalf("expected default max connections, got %d", o.MaxConnections)
	}
	if o.MaxPendingConnections != DefaultMaxPendingConn {
		t.Fatalf("expected default max pending connections, got %d", o.MaxPendingConnections)
	}
	if o.ServerName == "" {
		t.Fatalf("expected server name to default to hostname")
	}
}

func TestLoadRejectsMissingLocalListen(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, "daemon.yaml", "server_name: test\n")

	c := New(nil)
	if err := c.Load(p); err == nil {
		t.Fatalf("expected error for missing local_listen")
	}
}

func TestLoadRejectsNonLoopbackLocalListen(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, "daemon.yaml", `
local_listen:
  network: tcp
  address: 8.8.8.8:9000
`)

	c := New(nil)
	if err := c.Load(p); err == nil {
		t.Fatalf("expected error for non-loopback local_listen")
	}
}

func TestLoadRejectsPendingConnectionsOutOfRange(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, "daemon.yaml", minimalYAML+"max_pending_connections: 3\n")

	c := New(nil)
	if err := c.Load(p); err == nil {
		t.Fatalf("expected error for out-of-range max_pending_connections")
	}
}

func TestNeighborEndpointsParsesCommaList(t *testing.T) {
	o := Options{Neighbors: "10.0.0.1:9000, 10.0.0.2:9000"}
	eps, err := o.NeighborEndpoints()
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(eps) != 2 {
		t.Fatalf("expected 2 endpoints, got %d", len(eps))
	}
}

func TestStartRunsRegisteredHook(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, "daemon.yaml", minimalYAML)

	c := New(nil)
	if err := c.Load(p); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	var started bool
	c.RegisterFuncStart(func(o Options) error {
		started = true
		return nil
	})

	if err := c.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !started {
		t.Fatalf("expected start hook to run")
	}
	if !c.IsStarted() {
		t.Fatalf("expected component to report started")
	}
}

func TestReloadSwapsOptionsAndRunsHook(t *testing.T) {
	dir := t.TempDir()
	p := writeConfig(t, dir, "daemon.yaml", minimalYAML)

	c := New(nil)
	if err := c.Load(p); err != nil {
		t.Fatalf("load failed: %v", err)
	}

	var gotOld, gotNew Options
	c.RegisterFuncReload(func(old, nw Options) error {
		gotOld, gotNew = old, nw
		return nil
	})

	writeConfig(t, dir, "daemon.yaml", minimalYAML+"debug_all_messages: true\n")
	if err := c.Reload(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if gotOld.DebugAllMessages {
		t.Fatalf("expected old options to predate the change")
	}
	if !gotNew.DebugAllMessages {
		t.Fatalf("expected new options to reflect the change")
	}
}
