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

package sockcfg

// TLS carries the bare plumbing needed to build a *tls.Config for the
// secure_listen option (spec.md §6): certificate/key file paths and a
// minimum protocol version. TLS *policy* (cipher suite curation, client
// auth modes, OCSP) is explicitly left to an external provider; this
// struct only ever feeds crypto/tls.LoadX509KeyPair and tls.Config.MinVersion.
type TLS struct {
	Enable      bool   `mapstructure:"enable" json:"enable" yaml:"enable" toml:"enable"`
	Certificate string `mapstructure:"certificate" json:"certificate" yaml:"certificate" toml:"certificate" validate:"required_if=Enable true"`
	PrivateKey  string `mapstructure:"private_key" json:"private_key" yaml:"private_key" toml:"private_key" validate:"required_if=Enable true"`
	MinVersion  uint16 `mapstructure:"min_version" json:"min_version" yaml:"min_version" toml:"min_version"`
}
