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
	"os"

	"golang.org/x/sys/unix"

	"github.com/sabouaram/reactorbus/sockcfg"
)

// bindUnixListener opens a Unix-domain listener through listen, with the
// process umask tightened to 0077 for the duration of the bind so the
// socket file is never briefly more permissive than sockcfg.Server's
// owner-only default (spec.md §6), then pins the listener's configured
// PermFile/GroupPerm once bound. net.Listen itself has no hook for the
// mode a Unix socket file is created with; it always inherits the current
// umask, which is exactly the race unix.Umask closes here.
func bindUnixListener(s sockcfg.Server, listen func() error) error {
	old := unix.Umask(0o077)
	defer unix.Umask(old)

	if err := listen(); err != nil {
		return err
	}

	if err := os.Chmod(s.Address, s.PermFile.FileMode()); err != nil {
		return err
	}
	if s.GroupPerm != 0 {
		if err := os.Chown(s.Address, -1, int(s.GroupPerm)); err != nil {
			return err
		}
	}
	return nil
}
