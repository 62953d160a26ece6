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

import liblogrus "github.com/sirupsen/logrus"

// Fields is a structured key/value bag attached to a single log line.
type Fields map[string]interface{}

func (f Fields) toLogrus() liblogrus.Fields {
	if f == nil {
		return liblogrus.Fields{}
	}
	r := make(liblogrus.Fields, len(f))
	for k, v := range f {
		r[k] = v
	}
	return r
}

// Add returns a copy of f with k=v set, leaving f untouched.
func (f Fields) Add(k string, v interface{}) Fields {
	r := make(Fields, len(f)+1)
	for kk, vv := range f {
		r[kk] = vv
	}
	r[k] = v
	return r
}
