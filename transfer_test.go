// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gojlink

import (
	"bytes"
	"testing"
)

func TestIOTransactBufferLayout(t *testing.T) {
	h, link := newTestProbe(t, nil, []mockExchange{
		{
			name:      "io transaction",
			expectOut: []byte{0xCF, 0x00, 0x06, 0x00, 0x1F, 0x2A},
			reply:     []byte{0x15},
		},
		statusOk(),
	})

	tdo, err := h.ioTransact(6, []byte{0x1F}, []byte{0x2A})

	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(tdo, []byte{0x15}) {
		t.Errorf("tdo = [% x]; want [15]", tdo)
	}

	link.assertDrained()
}

// command length 4 + 2*ceil(n/8), reply length ceil(n/8) + 1 status byte
func TestIOTransactSizeInvariant(t *testing.T) {
	for _, cycles := range []int{1, 7, 8, 9, 64, 4095, 4096} {
		byteCount := bitsToBytes(cycles)

		tms := make([]byte, byteCount)
		tdi := make([]byte, byteCount)
		reply := make([]byte, byteCount)

		h, link := newTestProbe(t, nil, []mockExchange{
			{name: "io transaction", expectOut: ioTxBytes(cycles, tms, tdi), reply: reply},
			statusOk(),
		})

		if len(ioTxBytes(cycles, tms, tdi)) != 4+2*byteCount {
			t.Fatalf("cycles=%d: command buffer is %d bytes; want %d",
				cycles, len(ioTxBytes(cycles, tms, tdi)), 4+2*byteCount)
		}

		tdo, err := h.ioTransact(cycles, tms, tdi)

		if err != nil {
			t.Fatalf("cycles=%d: %v", cycles, err)
		}

		if len(tdo) != byteCount {
			t.Errorf("cycles=%d: tdo is %d bytes; want %d", cycles, len(tdo), byteCount)
		}

		link.assertDrained()
	}
}

func TestIOTransactZeroCyclesNoTraffic(t *testing.T) {
	h, link := newTestProbe(t, nil, nil)

	tdo, err := h.ioTransact(0, nil, nil)

	if err != nil {
		t.Fatal(err)
	}

	if len(tdo) != 0 {
		t.Errorf("zero cycle transaction returned %d bytes", len(tdo))
	}

	link.assertDrained()
}

func TestIOTransactTooLargeRejected(t *testing.T) {
	h, link := newTestProbe(t, nil, nil)

	buf := make([]byte, bitsToBytes(4097))

	_, err := h.ioTransact(4097, buf, buf)

	if err == nil {
		t.Fatal("4097 cycle transaction was not rejected")
	}

	link.assertDrained()
}

func TestIOTransactShortBitBuffers(t *testing.T) {
	h, link := newTestProbe(t, nil, nil)

	_, err := h.ioTransact(16, []byte{0x00}, []byte{0x00, 0x00})

	if err == nil {
		t.Fatal("transaction with a short TMS buffer was not rejected")
	}

	link.assertDrained()
}

func TestIOTransactStatusError(t *testing.T) {
	h, link := newTestProbe(t, nil, []mockExchange{
		{name: "io transaction", expectOut: nil, reply: []byte{0x00}},
		{name: "status", expectOut: nil, reply: []byte{0x01}},
	})

	_, err := h.ioTransact(8, []byte{0x00}, []byte{0x00})

	if err == nil {
		t.Fatal("non-zero adaptor status was not reported")
	}

	if !IsProtocolError(err) {
		t.Errorf("status error has wrong type: %v", err)
	}

	link.assertDrained()
}

func TestSimpleRequestEncoding(t *testing.T) {
	h, link := newTestProbe(t, nil, []mockExchange{
		{name: "u8 request", expectOut: []byte{0xC7, 0xFE}, reply: []byte{0x01, 0x00, 0x00, 0x00}},
		{name: "u16 request", expectOut: []byte{0x05, 0xB8, 0x0B}, reply: nil},
		{name: "u32 request", expectOut: []byte{0xC1, 0x01, 0x00, 0x00, 0x00}, reply: []byte{0x00, 0x00, 0x00, 0x00}},
	})

	if _, err := h.simpleRequestU8(cmdSelectInterface, selectIfaceGetCurrent, 4); err != nil {
		t.Fatal(err)
	}

	if _, err := h.simpleRequestU16(cmdSetSpeed, 3000, 0); err != nil {
		t.Fatal(err)
	}

	if _, err := h.simpleRequestU32(cmdGetHwInfo, 0x01, 4); err != nil {
		t.Fatal(err)
	}

	link.assertDrained()
}

func TestRequestShortReply(t *testing.T) {
	h, link := newTestProbe(t, nil, []mockExchange{
		{name: "truncated", expectOut: []byte{0xE8}, reply: []byte{0xFF, 0x07}},
	})

	_, err := h.simpleQuery(cmdGetCapabilities, 4)

	if err == nil {
		t.Fatal("short reply was not reported")
	}

	linkErr, ok := err.(*linkError)

	if !ok || linkErr.LinkCode != linkErrorShortRead {
		t.Errorf("short reply error has wrong type: %v", err)
	}

	link.assertDrained()
}
