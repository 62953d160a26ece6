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
	"bufio"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/sabouaram/reactorbus/address"
	"github.com/sabouaram/reactorbus/message"
)

func newGossipPingCommand() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "gossip-ping <self-address> <peer-address>",
		Short: "send a single GOSSIP announcement and wait for RECEIVED, without running a reactor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGossipPing(cmd, args[0], args[1], timeout)
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "how long to wait for a RECEIVED reply")

	return cmd
}

// runGossipPing is a diagnostic one-shot: it dials peerAddr directly rather
// than through permclient.Client, since that type requires a running
// reactor.Reactor for a single request/reply this CLI has no use for, and
// frames the GOSSIP/RECEIVED exchange by hand with message.EncodeText,
// mirroring the newline-delimited framing reactor/conn.MessageFramed uses
// on the wire.
func runGossipPing(cmd *cobra.Command, selfAddr, peerAddr string, timeout time.Duration) error {
	self, err := address.Parse(selfAddr)
	if err != nil {
		return fmt.Errorf("self address: %w", err)
	}
	peer, err := address.Parse(peerAddr)
	if err != nil {
		return fmt.Errorf("peer address: %w", err)
	}

	conn, err := net.DialTimeout("tcp", peer.String(), timeout)
	if err != nil {
		return fmt.Errorf("dial %s: %w", peer.String(), err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	announce := message.New("", "", "GOSSIP")
	_ = announce.Parameters.Set("my_address", self.String())
	line, err := message.EncodeText(announce)
	if err != nil {
		return err
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("send GOSSIP: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		m, err := message.Decode(scanner.Bytes())
		if err != nil {
			continue
		}
		if m.Command == "RECEIVED" {
			fmt.Fprintf(cmd.OutOrStdout(), "RECEIVED from %s\n", peer.String())
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("waiting for RECEIVED: %w", err)
	}
	return fmt.Errorf("connection closed by %s before RECEIVED", peer.String())
}
