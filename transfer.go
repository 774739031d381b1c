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
)

// simpleQuery sends a bare command byte and reads replyLen bytes back.
func (h *JLink) simpleQuery(cmd byte, replyLen int) ([]byte, error) {
	return h.request([]byte{cmd}, replyLen)
}

func (h *JLink) simpleRequestU8(cmd byte, arg uint8, replyLen int) ([]byte, error) {
	return h.request([]byte{cmd, arg}, replyLen)
}

func (h *JLink) simpleRequestU16(cmd byte, arg uint16, replyLen int) ([]byte, error) {
	buffer := NewBuffer(3)

	buffer.WriteByte(cmd)
	buffer.WriteUint16LE(arg)

	return h.request(buffer.Bytes(), replyLen)
}

func (h *JLink) simpleRequestU32(cmd byte, arg uint32, replyLen int) ([]byte, error) {
	buffer := NewBuffer(5)

	buffer.WriteByte(cmd)
	buffer.WriteUint32LE(arg)

	return h.request(buffer.Bytes(), replyLen)
}

func (h *JLink) request(cmd []byte, replyLen int) ([]byte, error) {
	reply, err := h.link.transfer(cmd, replyLen)

	if err != nil {
		return nil, err
	}

	if len(reply) < replyLen {
		return nil, newLinkError(fmt.Sprintf("adaptor replied %d bytes to command 0x%02x, expected %d",
			len(reply), cmd[0], replyLen), linkErrorShortRead)
	}

	return reply, nil
}

/** Run one IO transaction (command 0xCF) of cycles TCK periods.

  tms carries the TMS bits in JTAG mode and the per-cycle bus direction in
  SWD mode, tdi the TDI/output data bits. Both are LSB first per byte and
  must cover ceil(cycles/8) bytes; the packet layer never invents bytes.

  The adaptor answers with the sampled TDO/input bits and, in a separate
  bulk packet, one status byte. The status byte has to be drained even when
  the caller does not care for it, the adaptor desyncs otherwise.
*/
func (h *JLink) ioTransact(cycles int, tms []byte, tdi []byte) ([]byte, error) {
	if cycles == 0 {
		return []byte{}, nil
	}

	if cycles < 0 || cycles > maxTransactionCycles {
		return nil, fmt.Errorf("%d cycles exceed the %d cycle transaction limit", cycles, maxTransactionCycles)
	}

	byteCount := bitsToBytes(cycles)

	if len(tms) < byteCount || len(tdi) < byteCount {
		return nil, fmt.Errorf("bit buffers too short for %d cycles (tms %d, tdi %d, need %d bytes)",
			cycles, len(tms), len(tdi), byteCount)
	}

	buffer := NewBuffer(4 + 2*byteCount)

	buffer.WriteByte(cmdIOTransact)
	buffer.WriteByte(0)
	buffer.WriteUint16LE(uint16(cycles))
	buffer.Write(tms[:byteCount])
	buffer.Write(tdi[:byteCount])

	tdo, err := h.request(buffer.Bytes(), byteCount)

	if err != nil {
		return nil, err
	}

	status, err := h.link.transfer(nil, 1)

	if err != nil {
		return nil, err
	}

	if len(status) < 1 {
		return nil, newLinkError("adaptor did not report an IO transaction status", linkErrorShortRead)
	}

	if status[0] != 0 {
		return nil, newProtocolError(fmt.Sprintf("IO transaction of %d cycles failed with status 0x%02x",
			cycles, status[0]), status[0])
	}

	return tdo, nil
}
