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

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sabouaram/reactorbus/config"
	"github.com/sabouaram/reactorbus/daemon"
	"github.com/sabouaram/reactorbus/daemon/control"
	"github.com/sabouaram/reactorbus/logger"
)

func newServeCommand() *cobra.Command {
	var (
		configPath string
		debug      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "load a configuration file and run the daemon until signalled",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(configPath, debug)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "/etc/reactorbus/communicatord.yaml", "path to the configuration file")
	cmd.Flags().BoolVar(&debug, "debug", false, "log at debug level instead of info")

	return cmd
}

// runServe drives config.Component and daemon.Daemon through the same
// load/start/reload/watch lifecycle the log component itself uses: Load the
// file once up front so a bad configuration fails fast with ExitOptionError,
// Start builds and starts the daemon, Watch arms the fsnotify-backed hot
// reload, and the reactor's own Run/Stop/Wait pair is what the OS signal
// handler below drains on the way out.
func runServe(configPath string, debug bool) error {
	lvl := logger.InfoLevel
	if debug {
		lvl = logger.DebugLevel
	}
	log := logger.New(lvl, os.Stderr)

	var d *daemon.Daemon

	comp := config.New(log)
	comp.RegisterFuncStart(func(o config.Options) error {
		var err error
		d, err = daemon.New(log, o)
		if err != nil {
			return err
		}
		return d.Start()
	})
	comp.RegisterFuncReload(func(old, new config.Options) error {
		log.Warn("configuration changed on disk; restart the daemon to apply it", logger.Fields{"file": configPath})
		return nil
	})

	if err := comp.Load(configPath); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(control.ExitOptionError)
	}
	if err := comp.Start(); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(control.ExitOptionError)
	}
	if err := comp.Watch(); err != nil {
		log.Warn("configuration hot-reload not armed", logger.Fields{"error": err.Error()})
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		d.Reactor.Run()
		close(done)
	}()

	select {
	case s := <-sig:
		clusterWide := s == syscall.SIGTERM
		if err := d.Shutdown(clusterWide); err != nil {
			log.Warn("shutdown cascade reported an error", logger.Fields{"error": err.Error()})
		}
		d.Reactor.Stop()
	case <-done:
	}

	d.Reactor.Wait()
	os.Exit(control.ExitClean)
	return nil
}
