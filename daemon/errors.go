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

import "github.com/sabouaram/reactorbus/errors"

const (
	ErrorNoListenAddress errors.CodeError = iota + errors.MinPkgDaemon
	ErrorListenFailed
	ErrorBadSelfAddress
	ErrorSecretMismatch
	ErrorLoadAvgUnavailable
)

var isCodeError = false

func IsCodeError() bool {
	return isCodeError
}

func init() {
	isCodeError = errors.ExistInMapMessage(ErrorNoListenAddress)
	errors.RegisterIdFctMessage(ErrorNoListenAddress, getMessage)
}

func getMessage(code errors.CodeError) (message string) {
	switch code {
	case errors.UnknownError:
		return ""
	case ErrorNoListenAddress:
		return "local_listen must be set before Start"
	case ErrorListenFailed:
		return "failed to bind a configured listener"
	case ErrorBadSelfAddress:
		return "my_address/local_listen does not parse as an endpoint"
	case ErrorSecretMismatch:
		return "datagram secret_code did not match the configured signal_secret"
	case ErrorLoadAvgUnavailable:
		return "/proc/loadavg did not contain a parseable load average"
	}

	return ""
}
