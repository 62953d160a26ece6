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

package logger

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	liblogrus "github.com/sirupsen/logrus"
)

// Logger is the facade every package in this module logs through.
//
// LOG_ROTATE (spec.md §4.3) calls Reopen; this module does not own a
// rotating-file appender (spec.md §1 places that out of scope), so Reopen
// is the hook point an external log shipper / copytruncate policy observes
// by re-opening its output file, not a rotation implementation.
type Logger interface {
	WithFields(f Fields) Logger
	Debug(msg string, f ...Fields)
	Info(msg string, f ...Fields)
	Warn(msg string, f ...Fields)
	Error(msg string, f ...Fields)
	Fatal(msg string, f ...Fields)
	SetLevel(l Level)
	GetLevel() Level
	Reopen() error
}

type logger struct {
	mu  sync.Mutex
	l   *liblogrus.Logger
	lvl int32 // atomic mirror of l.Level for GetLevel without locking
	out func() (io.Writer, error)
}

// New builds a Logger writing JSON lines to out (os.Stderr if nil).
func New(lvl Level, out io.Writer) Logger {
	if out == nil {
		out = os.Stderr
	}

	l := liblogrus.New()
	l.SetFormatter(&liblogrus.JSONFormatter{})
	l.SetOutput(out)
	l.SetLevel(lvl.toLogrus())

	g := &logger{l: l}
	atomic.StoreInt32(&g.lvl, int32(lvl))
	return g
}

func (g *logger) entry(f ...Fields) *liblogrus.Entry {
	var merged Fields
	for _, ff := range f {
		for k, v := range ff {
			if merged == nil {
				merged = Fields{}
			}
			merged[k] = v
		}
	}
	return g.l.WithFields(merged.toLogrus())
}

func (g *logger) WithFields(f Fields) Logger {
	return &boundLogger{parent: g, fields: f}
}

func (g *logger) Debug(msg string, f ...Fields) { g.entry(f...).Debug(msg) }
func (g *logger) Info(msg string, f ...Fields)  { g.entry(f...).Info(msg) }
func (g *logger) Warn(msg string, f ...Fields)  { g.entry(f...).Warn(msg) }
func (g *logger) Error(msg string, f ...Fields) { g.entry(f...).Error(msg) }
func (g *logger) Fatal(msg string, f ...Fields) { g.entry(f...).Error(msg) }

func (g *logger) SetLevel(l Level) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.l.SetLevel(l.toLogrus())
	atomic.StoreInt32(&g.lvl, int32(l))
}

func (g *logger) GetLevel() Level {
	return Level(atomic.LoadInt32(&g.lvl))
}

func (g *logger) Reopen() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.out == nil {
		return nil
	}
	w, e := g.out()
	if e != nil {
		return e
	}
	g.l.SetOutput(w)
	return nil
}

// boundLogger carries a fixed field set across calls, in the style of
// logrus.Entry chaining.
type boundLogger struct {
	parent *logger
	fields Fields
}

func (b *boundLogger) WithFields(f Fields) Logger {
	m := make(Fields, len(b.fields)+len(f))
	for k, v := range b.fields {
		m[k] = v
	}
	for k, v := range f {
		m[k] = v
	}
	return &boundLogger{parent: b.parent, fields: m}
}

func (b *boundLogger) Debug(msg string, f ...Fields) { b.parent.entry(append([]Fields{b.fields}, f...)...).Debug(msg) }
func (b *boundLogger) Info(msg string, f ...Fields)  { b.parent.entry(append([]Fields{b.fields}, f...)...).Info(msg) }
func (b *boundLogger) Warn(msg string, f ...Fields)  { b.parent.entry(append([]Fields{b.fields}, f...)...).Warn(msg) }
func (b *boundLogger) Error(msg string, f ...Fields) { b.parent.entry(append([]Fields{b.fields}, f...)...).Error(msg) }
func (b *boundLogger) Fatal(msg string, f ...Fields) { b.parent.entry(append([]Fields{b.fields}, f...)...).Error(msg) }
func (b *boundLogger) SetLevel(l Level)              { b.parent.SetLevel(l) }
func (b *boundLogger) GetLevel() Level               { return b.parent.GetLevel() }
func (b *boundLogger) Reopen() error                 { return b.parent.Reopen() }

var std = New(InfoLevel, os.Stderr)

// Std returns the process-wide default logger, in the teacher's
// shared-singleton-at-the-edges idiom (spec.md §9 "Shared mutable singletons").
func Std() Logger { return std }

// SetStd replaces the process-wide default logger.
func SetStd(l Logger) { std = l }
