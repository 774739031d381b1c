// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gojlink

import (
	"bytes"
	"testing"

	"github.com/boljen/go-bitmap"
)

// mockExchange scripts one expected bulk transfer. A nil expectOut skips
// the outbound comparison (pure reads pass nil anyway).
type mockExchange struct {
	name      string
	expectOut []byte
	reply     []byte
	err       error
}

type mockLink struct {
	t      *testing.T
	script []mockExchange
	pos    int

	// handler, when set, services transfers instead of the script
	handler func(out []byte, inLen int) ([]byte, error)
}

func (m *mockLink) transfer(out []byte, inLen int) ([]byte, error) {
	if m.handler != nil {
		return m.handler(out, inLen)
	}

	if m.pos >= len(m.script) {
		m.t.Fatalf("unexpected transfer #%d: out [% x], want %d bytes back", m.pos, out, inLen)
	}

	exchange := m.script[m.pos]
	m.pos++

	if exchange.expectOut != nil && !bytes.Equal(out, exchange.expectOut) {
		m.t.Errorf("%s: sent [% x], expected [% x]", exchange.name, out, exchange.expectOut)
	}

	if exchange.err != nil {
		return nil, exchange.err
	}

	if len(exchange.reply) > inLen {
		m.t.Errorf("%s: scripted %d reply bytes but caller reads %d", exchange.name, len(exchange.reply), inLen)
	}

	return exchange.reply, nil
}

func (m *mockLink) close() {}

func (m *mockLink) assertDrained() {
	if m.handler == nil && m.pos != len(m.script) {
		m.t.Errorf("script not drained: %d of %d exchanges run", m.pos, len(m.script))
	}
}

// newTestProbe builds a session around a scripted link, advertising the
// given capability bits and both debug transports.
func newTestProbe(t *testing.T, caps []int, script []mockExchange) (*JLink, *mockLink) {
	link := &mockLink{t: t, script: script}

	h := &JLink{
		link:                link,
		currentInterface:    -1,
		capabilities:        bitmap.New(32),
		availableInterfaces: bitmap.New(maxInterfaces),
	}

	for _, c := range caps {
		h.capabilities.Set(c, true)
	}

	h.availableInterfaces.Set(int(IfaceJtag), true)
	h.availableInterfaces.Set(int(IfaceSwd), true)

	return h, link
}

// ioTxBytes renders the expected command buffer of an IO transaction.
func ioTxBytes(cycles int, tms []byte, tdi []byte) []byte {
	byteCount := bitsToBytes(cycles)

	out := []byte{cmdIOTransact, 0x00, byte(cycles), byte(cycles >> 8)}
	out = append(out, tms[:byteCount]...)
	out = append(out, tdi[:byteCount]...)

	return out
}

// statusOk is the trailing status exchange every IO transaction ends with.
func statusOk() mockExchange {
	return mockExchange{name: "status", expectOut: nil, reply: []byte{0x00}}
}
