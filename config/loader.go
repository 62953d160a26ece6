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

package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/sabouaram/reactorbus/file/perm"
	"github.com/sabouaram/reactorbus/logger"
)

// Component carries the loaded Options plus the load/validate/watch
// lifecycle a daemon drives it through: Load populates it from a file,
// Start makes it live, and an fsnotify-backed watch calls back into the
// daemon whenever the file changes, mirroring the before/after hook shape
// the log component uses for its own Init/Start/Reload.
type Component struct {
	mu      sync.Mutex
	v       *viper.Viper
	opts    Options
	path    string
	started bool
	log     logger.Logger

	funcStart  func(o Options) error
	funcReload func(old, new Options) error
}

// New builds a Component bound to log for diagnostics; log defaults to
// logger.Std() if nil.
func New(log logger.Logger) *Component {
	if log == nil {
		log = logger.Std()
	}
	return &Component{log: log}
}

// RegisterFuncStart sets the hook run once, after the first successful
// Load, when Start is called.
func (c *Component) RegisterFuncStart(fn func(o Options) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcStart = fn
}

// RegisterFuncReload sets the hook run after every successful reload,
// whether triggered by Reload or by the file watch.
func (c *Component) RegisterFuncReload(fn func(old, new Options) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.funcReload = fn
}

// Load reads path, applies defaults, and validates the result. It does not
// invoke any registered hook; call Start for that.
func (c *Component) Load(path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("REACTORBUS")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return ErrorLoadFailed.Error(err)
	}

	var o Options
	opt := viper.DecoderConfigOption(func(dc *mapstructure.DecoderConfig) {
		dc.DecodeHook = perm.ViperDecoderHook()
	})
	if err := v.Unmarshal(&o, opt); err != nil {
		return ErrorLoadFailed.Error(err)
	}
	o.ApplyDefaults()
	if err := o.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.v = v
	c.opts = o
	c.path = path
	c.mu.Unlock()

	return nil
}

// Options returns a copy of the currently loaded options.
func (c *Component) Options() Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

// IsStarted reports whether Start has completed successfully.
func (c *Component) IsStarted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.started
}

// Start marks the component live and runs the registered start hook, if
// any, with the currently loaded Options. Load must have succeeded first.
func (c *Component) Start() error {
	c.mu.Lock()
	o := c.opts
	fn := c.funcStart
	path := c.path
	c.mu.Unlock()

	if path == "" {
		return ErrorLoadFailed.Error(nil)
	}

	if fn != nil {
		if err := fn(o); err != nil {
			return err
		}
	}

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()
	return nil
}

// Stop marks the component no longer started; it does not tear down a
// file watch armed by Watch, and nothing in Component cancels that watch.
func (c *Component) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = false
}

// Reload re-reads the bound file and, if it parses and validates, swaps in
// the new Options and runs the registered reload hook with the old and
// new values. A failed reload leaves the previously loaded Options intact.
func (c *Component) Reload() error {
	c.mu.Lock()
	path := c.path
	old := c.opts
	fn := c.funcReload
	c.mu.Unlock()

	if path == "" {
		return ErrorLoadFailed.Error(nil)
	}
	if err := c.Load(path); err != nil {
		return err
	}

	if fn != nil {
		return fn(old, c.Options())
	}
	return nil
}

// Watch arms an fsnotify-backed hot-reload on the bound configuration
// file via viper's own watch support, calling Reload on every write. Call
// after a successful Load.
func (c *Component) Watch() error {
	c.mu.Lock()
	v := c.v
	c.mu.Unlock()

	if v == nil {
		return ErrorWatchFailed.Error(nil)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if err := c.Reload(); err != nil {
			c.log.Warn("configuration reload failed", logger.Fields{
				"file":  e.Name,
				"error": err.Error(),
			})
		}
	})
	v.WatchConfig()
	return nil
}
