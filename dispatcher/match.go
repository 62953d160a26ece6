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

// Package dispatcher routes decoded messages to handler callbacks by
// command name, in registration order, with regex and catch-all support.
package dispatcher

import (
	"regexp"

	"github.com/sabouaram/reactorbus/message"
)

// Kind selects how a Match's expression is tested against a command.
type Kind int

const (
	// OneToOne matches when the command equals Expression exactly, and
	// stops dispatch iteration once its Handler runs.
	OneToOne Kind = iota
	// OneToOneCallback matches like OneToOne but lets dispatch continue,
	// so later matches may also observe the same command.
	OneToOneCallback
	// Regex matches when Expression, compiled as a POSIX extended regex,
	// matches the command.
	Regex
	// Always matches every message; reserved for a single catch-all.
	Always
)

// Handler processes one dispatched message. It returns true if it handled
// the message (used only for bookkeeping; dispatch continuation is
// governed by the Match's Kind, not the return value).
type Handler func(m message.Message) bool

// Match pairs a command-matching rule with the handler it triggers.
type Match struct {
	Kind       Kind
	Expression string
	Handler    Handler
	Tag        string

	re *regexp.Regexp
}

func (mt *Match) compile() error {
	if mt.Kind != Regex {
		return nil
	}
	re, err := regexp.CompilePOSIX(mt.Expression)
	if err != nil {
		e := ErrorInvalidRegex.Error(nil)
		e.Add(err)
		return e
	}
	mt.re = re
	return nil
}

func (mt *Match) matches(command string) bool {
	switch mt.Kind {
	case OneToOne, OneToOneCallback:
		return command == mt.Expression
	case Regex:
		return mt.re != nil && mt.re.MatchString(command)
	case Always:
		return true
	default:
		return false
	}
}

// stopsDispatch reports whether a successful match of this kind should
// end iteration over the remaining matches.
func (mt *Match) stopsDispatch() bool {
	return mt.Kind == OneToOne || mt.Kind == Regex
}
