// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the openocd and blackmagic
// project source code of the SEGGER J-Link vendor protocol
// for detailed information see

// https://sourceforge.net/p/openocd/code

package gojlink

import (
	"fmt"
	"time"
)

// In SWD mode the TMS buffer of an IO transaction carries the per-cycle bus
// direction (1 = probe drives SWDIO, 0 = target drives) and the TDI buffer
// the output data bits.
var (
	// 8 request bits out, then turnaround and acknowledgement in. The
	// 13 cycle write form reuses the table with one more in bit.
	swdDirRequest = []byte{0xFF, 0xF0}

	// 32 data bits, parity and 8 idle cycles, all driven by the probe.
	swdDirDataOut = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}

	// 32 data bits and parity from the target, then 2 driven idle cycles.
	swdDirDataIn = []byte{0x00, 0x00, 0x00, 0x00, 0xFE}

	// 64 cycles of probe-driven line reset: 60 high bits, 4 low.
	swdDirLineReset  = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	swdDataLineReset = []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xF0}
)

const (
	swdReadRequestCycles  = 11
	swdWriteRequestCycles = 13
	swdDataOutCycles      = 41
	swdDataInCycles       = 35
	swdLineResetCycles    = 64
)

// SwdDp is the host side state of one serial wire debug port. On a DPv2
// multi-drop bus TargetSel holds the TARGETSEL value reselecting this
// target after a line reset.
type SwdDp struct {
	probe *JLink

	Version   uint8
	TargetSel uint32

	// last failing acknowledgement; non zero blocks AP accesses until
	// ClearError has run
	fault byte
}

func (dp *SwdDp) Fault() byte {
	return dp.fault
}

// swdRequest builds the 8 bit packet request: start, APnDP, RnW, A[2:3],
// parity, stop, park. Bit 0 of addr selects the AP address space.
func swdRequest(rnw bool, addr uint16) byte {
	request := byte(0x81) // start and park

	if addr&1 != 0 {
		request |= 1 << 1
	}

	if rnw {
		request |= 1 << 2
	}

	request |= byte(addr&0x0C) << 1

	if oddParity32(uint32(request>>1)&0x0F) == 1 {
		request |= 1 << 5
	}

	return request
}

/* --- sequence primitives --------------------------------------------- */

// SwdSeqOut clocks the low n bits of data out on SWDIO, n <= 32.
func (h *JLink) SwdSeqOut(data uint32, n int) error {
	if n <= 0 || n > 32 {
		return fmt.Errorf("SWD output sequence of %d cycles out of range", n)
	}

	buffer := NewBuffer(4)
	buffer.WriteUint32LE(data)

	direction := []byte{0xFF, 0xFF, 0xFF, 0xFF}

	_, err := h.ioTransact(n, direction, buffer.Bytes())

	return err
}

// SwdSeqOutParity clocks the low n bits of data out followed by their
// parity bit, n <= 32.
func (h *JLink) SwdSeqOutParity(data uint32, n int) error {
	if n <= 0 || n > 32 {
		return fmt.Errorf("SWD output sequence of %d cycles out of range", n)
	}

	if n < 32 {
		data &= (1 << uint(n)) - 1
	}

	buffer := NewBuffer(5)
	buffer.WriteUint32LE(data)
	buffer.WriteByte(0)

	if oddParity32(data) == 1 {
		bufSetBit(buffer.Bytes(), n)
	}

	direction := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

	_, err := h.ioTransact(n+1, direction, buffer.Bytes())

	return err
}

// SwdSeqIn samples n bits from SWDIO, n <= 32.
func (h *JLink) SwdSeqIn(n int) (uint32, error) {
	if n <= 0 || n > 32 {
		return 0, fmt.Errorf("SWD input sequence of %d cycles out of range", n)
	}

	direction := []byte{0x00, 0x00, 0x00, 0x00}
	data := []byte{0x00, 0x00, 0x00, 0x00}

	tdo, err := h.ioTransact(n, direction, data)

	if err != nil {
		return 0, err
	}

	return readBits(tdo, n), nil
}

// SwdSeqInParity samples n bits plus a parity bit, n <= 32. The boolean is
// true when the received parity matches the sampled bits.
func (h *JLink) SwdSeqInParity(n int) (uint32, bool, error) {
	if n <= 0 || n > 32 {
		return 0, false, fmt.Errorf("SWD input sequence of %d cycles out of range", n)
	}

	direction := []byte{0x00, 0x00, 0x00, 0x00, 0x00}
	data := []byte{0x00, 0x00, 0x00, 0x00, 0x00}

	tdo, err := h.ioTransact(n+1, direction, data)

	if err != nil {
		return 0, false, err
	}

	value := readBits(tdo, n)
	parity := byte(0)

	if bufGetBit(tdo, n) {
		parity = 1
	}

	return value, parity == oddParity32(value), nil
}

// readBits assembles up to 32 LSB-first bits from a reply buffer.
func readBits(buf []byte, n int) uint32 {
	var value uint32

	for i := 0; i < len(buf) && i < 4; i++ {
		value |= uint32(buf[i]) << uint(8*i)
	}

	if n < 32 {
		value &= (1 << uint(n)) - 1
	}

	return value
}

/* --- raw DP accesses -------------------------------------------------- */

// sendRequest clocks a request phase and returns the 3 bit
// acknowledgement. Read requests take 11 cycles, write requests 13 (one
// more turnaround before the probe drives the data phase).
func (dp *SwdDp) sendRequest(rnw bool, addr uint16) (byte, error) {
	cycles := swdWriteRequestCycles

	if rnw {
		cycles = swdReadRequestCycles
	}

	data := []byte{swdRequest(rnw, addr), 0x00}

	reply, err := dp.probe.ioTransact(cycles, swdDirRequest, data)

	if err != nil {
		return 0, err
	}

	return reply[1] & 0x07, nil
}

func (dp *SwdDp) sendDataOut(value uint32) error {
	buffer := NewBuffer(6)

	buffer.WriteUint32LE(value)
	buffer.WriteByte(oddParity32(value))
	buffer.WriteByte(0)

	_, err := dp.probe.ioTransact(swdDataOutCycles, swdDirDataOut, buffer.Bytes())

	return err
}

func (dp *SwdDp) recvDataIn() (uint32, bool, error) {
	zero := []byte{0x00, 0x00, 0x00, 0x00, 0x00}

	reply, err := dp.probe.ioTransact(swdDataInCycles, swdDirDataIn, zero)

	if err != nil {
		return 0, false, err
	}

	value := convertToUint32(reply, littleEndian)
	parity := reply[4] & 1

	return value, parity == oddParity32(value), nil
}

// rawWriteNoCheck performs a DP write without WAIT handling or fault
// latching. The data phase is clocked regardless of the acknowledgement;
// the return value reports whether the target acknowledged OK. Used during
// protocol recovery where the target may legitimately not answer.
func (dp *SwdDp) rawWriteNoCheck(addr uint16, value uint32) (bool, error) {
	ack, err := dp.sendRequest(false, addr)

	if err != nil {
		return false, err
	}

	err = dp.sendDataOut(value)

	if err != nil {
		return false, err
	}

	return ack == swdAckOK, nil
}

// rawReadNoCheck performs a DP read without WAIT handling or fault
// latching. Parity failures downgrade to a zero result.
func (dp *SwdDp) rawReadNoCheck(addr uint16) (uint32, error) {
	ack, err := dp.sendRequest(true, addr)

	if err != nil {
		return 0, err
	}

	value, parityOk, err := dp.recvDataIn()

	if err != nil {
		return 0, err
	}

	if ack != swdAckOK || !parityOk {
		return 0, nil
	}

	return value, nil
}

// lineReset drives 60 high cycles followed by 4 low ones, returning the DP
// to the reset state.
func (h *JLink) lineReset() error {
	_, err := h.ioTransact(swdLineResetCycles, swdDirLineReset, swdDataLineReset)

	return err
}

/* --- error recovery --------------------------------------------------- */

// ClearError clears the sticky error flags of the DP and releases the
// fault latch. With protocolRecovery set (or after a fault on a DPv2 part)
// the line is reset first and, on multi-drop capable DPs, the target is
// reselected through TARGETSEL before DPIDR is read to reactivate it.
// Returns the sticky flags that were found set.
func (dp *SwdDp) ClearError(protocolRecovery bool) (uint32, error) {
	logger.Debugf("SWD clear error, protocol recovery: %v", protocolRecovery)

	if protocolRecovery || (dp.Version >= 2 && dp.fault != 0) {
		err := dp.probe.lineReset()

		if err != nil {
			return 0, err
		}

		if dp.Version >= 2 {
			_, err = dp.rawWriteNoCheck(dpRegTargetSel, dp.TargetSel)

			if err != nil {
				return 0, err
			}
		}

		_, err = dp.rawReadNoCheck(dpRegDpidr)

		if err != nil {
			return 0, err
		}
	}

	ctrlStat, err := dp.rawReadNoCheck(dpRegCtrlStat)

	if err != nil {
		return 0, err
	}

	sticky := ctrlStat & (ctrlStatStickyOrun | ctrlStatStickyCmp | ctrlStatStickyErr | ctrlStatWDataErr)

	if sticky != 0 {
		var clearMask uint32

		if sticky&ctrlStatStickyOrun != 0 {
			clearMask |= abortOrunErrClr
		}

		if sticky&ctrlStatStickyCmp != 0 {
			clearMask |= abortStkCmpClr
		}

		if sticky&ctrlStatStickyErr != 0 {
			clearMask |= abortStkErrClr
		}

		if sticky&ctrlStatWDataErr != 0 {
			clearMask |= abortWdErrClr
		}

		_, err = dp.rawWriteNoCheck(dpRegAbort, clearMask)

		if err != nil {
			return 0, err
		}
	}

	dp.fault = 0

	return sticky, nil
}

/* --- low access state machine ----------------------------------------- */

// RawAccess performs one ADIv5 low access. WAIT acknowledgements are
// retried against a deadline, the first FAULT is cleared through ABORT and
// retried once. Unrecovered faults latch on the DP and make the access
// return a neutral zero; while the latch is set AP accesses short circuit
// without wire traffic (DP accesses still run, they are what clears the
// latch).
func (dp *SwdDp) RawAccess(rnw bool, addr uint16, value uint32) (uint32, error) {
	if addr&1 != 0 && dp.fault != 0 {
		return 0, nil
	}

	var ack byte = swdAckOK
	var lastAck byte = swdAckOK
	faultRetried := false
	deadline := time.Now().Add(time.Millisecond * swdWaitRetryTimeoutMs)
	timedOut := false

	for {
		// a not-OK acknowledgement left the target driving the bus; on
		// reads the probe has to reclaim it before the next request
		if lastAck != swdAckOK && rnw {
			if _, err := dp.probe.ioTransact(2, []byte{0xFF}, []byte{0x00}); err != nil {
				return 0, err
			}
		}

		var err error
		ack, err = dp.sendRequest(rnw, addr)

		if err != nil {
			return 0, err
		}

		if ack == swdAckWait {
			lastAck = ack

			if time.Now().After(deadline) {
				timedOut = true
				break
			}

			continue
		}

		if ack == swdAckFault && !faultRetried {
			lastAck = ack
			faultRetried = true

			_, err = dp.rawWriteNoCheck(dpRegAbort, abortClearAllErrors)

			if err != nil {
				return 0, err
			}

			continue
		}

		break
	}

	if timedOut {
		logger.Warnf("SWD access stuck in WAIT for %d ms, aborting", swdWaitRetryTimeoutMs)

		_, err := dp.rawWriteNoCheck(dpRegAbort, abortDapAbort)

		if err != nil {
			return 0, err
		}

		dp.fault = ack

		return 0, nil
	}

	switch ack {
	case swdAckOK:
		// handled below

	case swdAckFault:
		_, err := dp.rawWriteNoCheck(dpRegAbort, abortClearAllErrors)

		if err != nil {
			return 0, err
		}

		dp.fault = ack

		return 0, nil

	case swdAckNoResponse:
		dp.fault = ack

		return 0, nil

	default:
		return 0, newProtocolError(fmt.Sprintf("invalid SWD acknowledgement 0x%x", ack), ack)
	}

	if rnw {
		result, parityOk, err := dp.recvDataIn()

		if err != nil {
			return 0, err
		}

		if !parityOk {
			dp.fault = swdAckFault

			return 0, &parityError{result}
		}

		return result, nil
	}

	err := dp.sendDataOut(value)

	if err != nil {
		return 0, err
	}

	return 0, nil
}

// DpRead performs a read of a DP or AP register through the low access
// state machine.
func (dp *SwdDp) DpRead(addr uint16) (uint32, error) {
	return dp.RawAccess(true, addr, 0)
}

// DpWrite performs a write of a DP or AP register through the low access
// state machine.
func (dp *SwdDp) DpWrite(addr uint16, value uint32) error {
	_, err := dp.RawAccess(false, addr, value)

	return err
}

// Abort writes the given mask straight to DP.ABORT, bypassing WAIT
// handling.
func (dp *SwdDp) Abort(mask uint32) error {
	_, err := dp.rawWriteNoCheck(dpRegAbort, mask)

	return err
}
