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

// loadInterfaceFreq queries base frequency and minimum divisor of the
// currently selected transport and caches them. The record counts as valid
// once baseHz is non zero.
func (h *JLink) loadInterfaceFreq(iface uint8) error {
	reply, err := h.simpleQuery(cmdGetSpeeds, 5)

	if err != nil {
		return err
	}

	record := &h.interfaceFreqs[iface]

	record.baseHz = convertToUint32(reply, littleEndian)
	record.minDivisor = uint16(reply[4])

	if record.baseHz == 0 {
		return errors.New("adaptor reported a zero base frequency")
	}

	if record.minDivisor == 0 {
		record.minDivisor = 1
	}

	if record.currentDivisor < record.minDivisor {
		record.currentDivisor = record.minDivisor
	}

	logger.Debugf("%s clock: base %d Hz, minimum divisor %d",
		interfaceToString(iface), record.baseHz, record.minDivisor)

	return nil
}

func (h *JLink) ensureInterfaceFreq(iface uint8) (*interfaceFreq, error) {
	err := h.SelectInterface(iface)

	if err != nil {
		return nil, err
	}

	record := &h.interfaceFreqs[iface]

	if record.baseHz == 0 {
		err = h.loadInterfaceFreq(iface)

		if err != nil {
			return nil, err
		}
	}

	return record, nil
}

// SetInterfaceFrequency programs the transport clock to the highest
// frequency not above hz the adaptor can divide down to.
func (h *JLink) SetInterfaceFrequency(iface uint8, hz uint32) error {
	if !h.HasCapability(capGetSpeeds) {
		return &capabilityError{capGetSpeeds}
	}

	if hz == 0 {
		return errors.New("requested frequency of 0 Hz")
	}

	record, err := h.ensureInterfaceFreq(iface)

	if err != nil {
		return err
	}

	divisor := (record.baseHz + hz - 1) / hz

	if divisor < uint32(record.minDivisor) {
		divisor = uint32(record.minDivisor)
	}

	frequency := record.baseHz / divisor

	_, err = h.simpleRequestU16(cmdSetSpeed, uint16(frequency/1000), 0)

	if err != nil {
		return err
	}

	record.currentDivisor = uint16(divisor)

	logger.Debugf("%s clock set to %d Hz (divisor %d)", interfaceToString(iface), frequency, divisor)

	return nil
}

// GetInterfaceFrequency returns the effective transport clock in Hz, or
// FixedFrequencyHz when the adaptor runs a fixed clock it cannot report.
func (h *JLink) GetInterfaceFrequency(iface uint8) (uint32, error) {
	if !h.HasCapability(capGetSpeeds) {
		return FixedFrequencyHz, nil
	}

	if int(iface) >= maxInterfaces {
		return 0, fmt.Errorf("interface id %d out of range", iface)
	}

	record, err := h.ensureInterfaceFreq(iface)

	if err != nil {
		return 0, err
	}

	return record.baseHz / uint32(record.currentDivisor), nil
}
