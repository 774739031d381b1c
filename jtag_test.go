// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gojlink

import (
	"bytes"
	"testing"
)

// the 72 cycle switch sequence goes out as TDI with TMS held low
func TestJtagInit(t *testing.T) {
	h, link := newTestProbe(t, nil, []mockExchange{
		{name: "get current", expectOut: []byte{0xC7, 0xFE}, reply: []byte{0x00, 0x00, 0x00, 0x00}},
		{
			name:      "switch sequence",
			expectOut: ioTxBytes(72, make([]byte, 9), []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x3C, 0xE7}),
			reply:     make([]byte, 9),
		},
		statusOk(),
	})

	if err := h.JtagInit(); err != nil {
		t.Fatal(err)
	}

	link.assertDrained()
}

func TestTmsSeq(t *testing.T) {
	h, link := newTestProbe(t, nil, []mockExchange{
		{
			name:      "tms sequence",
			expectOut: []byte{0xCF, 0x00, 0x06, 0x00, 0x1F, 0x1F},
			reply:     []byte{0x00},
		},
		statusOk(),
	})

	if err := h.TmsSeq(0x1F, 6); err != nil {
		t.Fatal(err)
	}

	link.assertDrained()
}

func TestTapReset(t *testing.T) {
	h, link := newTestProbe(t, nil, []mockExchange{
		{
			name:      "soft reset",
			expectOut: []byte{0xCF, 0x00, 0x06, 0x00, 0x1F, 0x1F},
			reply:     []byte{0x00},
		},
		statusOk(),
	})

	if err := h.TapReset(); err != nil {
		t.Fatal(err)
	}

	link.assertDrained()
}

func TestTdiTdoSeqFinalTms(t *testing.T) {
	h, link := newTestProbe(t, nil, []mockExchange{
		{
			name:      "8 bit shift",
			expectOut: ioTxBytes(8, []byte{0x80}, []byte{0xA5}),
			reply:     []byte{0x5A},
		},
		statusOk(),
		{
			name:      "9 bit shift",
			expectOut: ioTxBytes(9, []byte{0x00, 0x01}, []byte{0xA5, 0x01}),
			reply:     []byte{0x5A, 0x01},
		},
		statusOk(),
	})

	tdo, err := h.TdiTdoSeq(true, []byte{0xA5}, 8)

	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(tdo, []byte{0x5A}) {
		t.Errorf("tdo = [% x]; want [5a]", tdo)
	}

	tdo, err = h.TdiTdoSeq(true, []byte{0xA5, 0x01}, 9)

	if err != nil {
		t.Fatal(err)
	}

	if !bytes.Equal(tdo, []byte{0x5A, 0x01}) {
		t.Errorf("tdo = [% x]; want [5a 01]", tdo)
	}

	link.assertDrained()
}

func TestTdiTdoSeqNoFinalTms(t *testing.T) {
	h, link := newTestProbe(t, nil, []mockExchange{
		{
			name:      "plain shift",
			expectOut: ioTxBytes(16, []byte{0x00, 0x00}, []byte{0x34, 0x12}),
			reply:     []byte{0x00, 0x00},
		},
		statusOk(),
	})

	if err := h.TdiSeq(false, []byte{0x34, 0x12}, 16); err != nil {
		t.Fatal(err)
	}

	link.assertDrained()
}

func TestTdiTdoSeqShortBuffer(t *testing.T) {
	h, link := newTestProbe(t, nil, nil)

	if _, err := h.TdiTdoSeq(false, []byte{0x00}, 9); err == nil {
		t.Fatal("short TDI buffer was not rejected")
	}

	link.assertDrained()
}

func TestJtagNext(t *testing.T) {
	h, link := newTestProbe(t, nil, []mockExchange{
		{
			name:      "single step",
			expectOut: []byte{0xCF, 0x00, 0x01, 0x00, 0x01, 0x00},
			reply:     []byte{0x01},
		},
		statusOk(),
	})

	tdo, err := h.JtagNext(true, false)

	if err != nil {
		t.Fatal(err)
	}

	if !tdo {
		t.Error("tdo should read high")
	}

	link.assertDrained()
}
