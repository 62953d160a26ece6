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

package daemon

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/sabouaram/reactorbus/file/perm"
	"github.com/sabouaram/reactorbus/netproto"
	"github.com/sabouaram/reactorbus/sockcfg"
)

func TestBindUnixListenerAppliesConfiguredPerm(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bus.sock")
	s := sockcfg.Server{
		Network:  netproto.NetworkUnix,
		Address:  path,
		PermFile: perm.Perm(0640),
	}

	var ln net.Listener
	err := bindUnixListener(s, func() error {
		var lerr error
		ln, lerr = net.Listen("unix", path)
		return lerr
	})
	if err != nil {
		t.Fatalf("bindUnixListener: %v", err)
	}
	defer ln.Close()

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat socket file: %v", err)
	}
	if got := info.Mode().Perm(); got != 0640 {
		t.Fatalf("expected socket mode 0640, got %v", got)
	}
}
