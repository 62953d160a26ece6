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

package message

import (
	"regexp"
)

var paramNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidParamName reports whether name matches [A-Za-z_][A-Za-z0-9_]*.
func ValidParamName(name string) bool {
	return paramNameRe.MatchString(name)
}

// Params is an insertion-ordered name→value mapping. The zero value is an
// empty, ready-to-use Params.
type Params struct {
	order []string
	value map[string]string
}

// Set assigns name=val, preserving the original insertion position if name
// is already present. Returns an error if name is not a valid parameter
// identifier.
func (p *Params) Set(name, val string) error {
	if !ValidParamName(name) {
		return ErrorInvalidParamName.Error(nil)
	}
	if p.value == nil {
		p.value = map[string]string{}
	}
	if _, ok := p.value[name]; !ok {
		p.order = append(p.order, name)
	}
	p.value[name] = val
	return nil
}

// MustSet is Set, panicking on an invalid name; for call sites building
// Params from constants known to be valid at compile time.
func (p *Params) MustSet(name, val string) *Params {
	if err := p.Set(name, val); err != nil {
		panic(err)
	}
	return p
}

// Get returns the value for name and whether it was present.
func (p Params) Get(name string) (string, bool) {
	if p.value == nil {
		return "", false
	}
	v, ok := p.value[name]
	return v, ok
}

// Del removes name, if present.
func (p *Params) Del(name string) {
	if p.value == nil {
		return
	}
	if _, ok := p.value[name]; !ok {
		return
	}
	delete(p.value, name)
	for i, n := range p.order {
		if n == name {
			p.order = append(p.order[:i], p.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of parameters.
func (p Params) Len() int { return len(p.order) }

// Names returns the parameter names in insertion order. The returned slice
// must not be mutated.
func (p Params) Names() []string { return p.order }

// Range calls fn for each parameter in insertion order, stopping early if
// fn returns false.
func (p Params) Range(fn func(name, val string) bool) {
	for _, n := range p.order {
		if !fn(n, p.value[n]) {
			return
		}
	}
}

// Clone returns a deep copy.
func (p Params) Clone() Params {
	c := Params{
		order: append([]string(nil), p.order...),
		value: make(map[string]string, len(p.value)),
	}
	for k, v := range p.value {
		c.value[k] = v
	}
	return c
}

// Equal reports whether p and o hold the same name/value pairs,
// irrespective of insertion order (order affects wire serialization, not
// value identity — spec.md §8's round-trip property compares values).
func (p Params) Equal(o Params) bool {
	if len(p.order) != len(o.order) {
		return false
	}
	for k, v := range p.value {
		if ov, ok := o.value[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// NewParams builds a Params from name/value pairs given in order,
// validating every name. It is a convenience for tests and literals.
func NewParams(pairs ...string) (Params, error) {
	var p Params
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := p.Set(pairs[i], pairs[i+1]); err != nil {
			return Params{}, err
		}
	}
	return p, nil
}
