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

package errors

// Per-package CodeError ranges. Each package registers its own block with
// RegisterIdFctMessage(MinPkgXxx, ...) at init so codes never collide.
const (
	MinPkgAddress    = 100
	MinPkgMessage    = 200
	MinPkgNetProto   = 300
	MinPkgSockCfg    = 400
	MinPkgReactor    = 500
	MinPkgConn       = 600
	MinPkgDispatcher = 700
	MinPkgPermClient = 800
	MinPkgConfig     = 900
	MinPkgDaemon     = 1000
	MinPkgRegistrar  = 1100
	MinPkgRouter     = 1200
	MinPkgPeer       = 1300
	MinPkgControl    = 1400
	MinPkgMetrics    = 1500
	MinPkgHttpApi    = 1600

	MinAvailable = 2000
)
