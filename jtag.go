// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the openocd and blackmagic
// project source code of the SEGGER J-Link vendor protocol
// for detailed information see

// https://sourceforge.net/p/openocd/code

package gojlink

import (
	"errors"
	"fmt"
)

// 72 TCK cycles of the ARM SWD-to-JTAG switch sequence, TDI held high
// around the 0x3C 0xE7 selection word, TMS low throughout.
var jtagSwitchSeq = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x3C, 0xE7}

// JtagInit selects the JTAG transport on the adaptor and moves targets
// with a shared SWJ-DP pin set back onto their JTAG TAP.
func (h *JLink) JtagInit() error {
	err := h.SelectInterface(IfaceJtag)

	if err != nil {
		return err
	}

	tms := make([]byte, len(jtagSwitchSeq))

	_, err = h.ioTransact(len(jtagSwitchSeq)*8, tms, jtagSwitchSeq)

	if err != nil {
		return err
	}

	logger.Debug("JTAG transport initialized")

	return nil
}

// TapReset soft-resets the TAP state machine: five cycles of TMS high land
// in Test-Logic-Reset from any state, the trailing low cycle moves to
// Run-Test/Idle.
func (h *JLink) TapReset() error {
	return h.TmsSeq(0x1F, 6)
}

// TmsSeq clocks the low n bits of states out on TMS, n <= 32. TDI carries
// the same bytes; its value does not matter during state navigation.
func (h *JLink) TmsSeq(states uint32, n int) error {
	if n <= 0 || n > 32 {
		return fmt.Errorf("TMS sequence of %d cycles out of range", n)
	}

	buffer := NewBuffer(4)
	buffer.WriteUint32LE(states)

	_, err := h.ioTransact(n, buffer.Bytes(), buffer.Bytes())

	return err
}

// TdiTdoSeq shifts n bits of dataIn through the scan chain and returns the
// sampled TDO bits. With finalTms the last cycle raises TMS, ending the
// shift in the Exit1 state.
func (h *JLink) TdiTdoSeq(finalTms bool, dataIn []byte, n int) ([]byte, error) {
	if n <= 0 {
		return nil, errors.New("empty TDI/TDO sequence")
	}

	byteCount := bitsToBytes(n)

	if len(dataIn) < byteCount {
		return nil, fmt.Errorf("TDI buffer holds %d bytes, %d cycles need %d", len(dataIn), n, byteCount)
	}

	tms := make([]byte, byteCount)

	if finalTms {
		bufSetBit(tms, n-1)
	}

	return h.ioTransact(n, tms, dataIn)
}

// TdiSeq is TdiTdoSeq with the TDO response discarded.
func (h *JLink) TdiSeq(finalTms bool, dataIn []byte, n int) error {
	_, err := h.TdiTdoSeq(finalTms, dataIn, n)

	return err
}

// JtagNext performs a single TCK cycle and samples TDO.
func (h *JLink) JtagNext(tms bool, tdi bool) (bool, error) {
	tmsBuf := []byte{0x00}
	tdiBuf := []byte{0x00}

	if tms {
		tmsBuf[0] = 0x01
	}

	if tdi {
		tdiBuf[0] = 0x01
	}

	tdo, err := h.ioTransact(1, tmsBuf, tdiBuf)

	if err != nil {
		return false, err
	}

	return tdo[0]&1 != 0, nil
}

const maxScanChainDevices = 32

// ScanChain counts the devices on the chain described by irLengths. All
// instruction registers are loaded with BYPASS, then a single high bit is
// chased through the one-cycle-per-device bypass path.
func (h *JLink) ScanChain(irLengths []int) (int, error) {
	err := h.TapReset()

	if err != nil {
		return 0, err
	}

	totalIrBits := 0

	for _, l := range irLengths {
		totalIrBits += l
	}

	if totalIrBits == 0 {
		return 0, errors.New("scan chain without instruction registers")
	}

	// Run-Test/Idle -> Shift-IR
	err = h.TmsSeq(0x03, 4)

	if err != nil {
		return 0, err
	}

	ones := make([]byte, bitsToBytes(totalIrBits))

	for i := range ones {
		ones[i] = 0xFF
	}

	err = h.TdiSeq(true, ones, totalIrBits)

	if err != nil {
		return 0, err
	}

	// Exit1-IR -> Shift-DR
	err = h.TmsSeq(0x03, 4)

	if err != nil {
		return 0, err
	}

	// flush the bypass registers
	zeros := make([]byte, bitsToBytes(maxScanChainDevices))

	err = h.TdiSeq(false, zeros, maxScanChainDevices)

	if err != nil {
		return 0, err
	}

	devices := -1

	for i := 0; i <= maxScanChainDevices; i++ {
		tdo, err := h.JtagNext(false, true)

		if err != nil {
			return 0, err
		}

		if tdo {
			devices = i
			break
		}
	}

	if devices < 0 {
		return 0, errors.New("no TDO activity on the scan chain")
	}

	// Shift-DR -> Run-Test/Idle
	err = h.TmsSeq(0x03, 3)

	if err != nil {
		return 0, err
	}

	logger.Debugf("scan chain carries %d device(s)", devices)

	return devices, nil
}
