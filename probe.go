// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gojlink

import (
	"errors"
	"fmt"
	"time"
)

// SignalState mirrors the 0x07 reply: target reference voltage in
// millivolts and the raw pin levels of the debug connector.
type SignalState struct {
	TargetVoltage uint16
	Tck           byte
	Tdi           byte
	Tdo           byte
	Tms           byte
	Tres          byte
	Trst          byte
}

func (h *JLink) GetSignalState() (*SignalState, error) {
	reply, err := h.simpleQuery(cmdGetSignalState, 8)

	if err != nil {
		return nil, err
	}

	state := &SignalState{
		TargetVoltage: convertToUint16(reply, littleEndian),
		Tck:           reply[2],
		Tdi:           reply[3],
		Tdo:           reply[4],
		Tms:           reply[5],
		Tres:          reply[6],
		Trst:          reply[7],
	}

	return state, nil
}

func (h *JLink) TargetVoltageMillivolts() (uint16, error) {
	state, err := h.GetSignalState()

	if err != nil {
		return 0, err
	}

	return state.TargetVoltage, nil
}

// TargetVoltageString renders the target reference voltage as "NN.mmm",
// e.g. " 3.300".
func (h *JLink) TargetVoltageString() (string, error) {
	millivolts, err := h.TargetVoltageMillivolts()

	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%2d.%03d", millivolts/1000, millivolts%1000), nil
}

// NrstSet drives the target reset line; assert pulls nRST low. The pin
// needs a moment to settle before the next command.
func (h *JLink) NrstSet(assert bool) error {
	cmd := byte(cmdResetTargetHigh)

	if assert {
		cmd = cmdResetTargetLow
	}

	_, err := h.simpleQuery(cmd, 0)

	if err != nil {
		return err
	}

	time.Sleep(time.Millisecond * nrstSettleTimeMs)

	return nil
}

// NrstGet reports whether the target reset line is asserted (pin low).
func (h *JLink) NrstGet() (bool, error) {
	state, err := h.GetSignalState()

	if err != nil {
		return false, err
	}

	return state.Tres == 0, nil
}

// MaxFrequencySet programs the clock of the currently active transport.
func (h *JLink) MaxFrequencySet(hz uint32) error {
	if h.currentInterface < 0 {
		return errors.New("no debug transport selected")
	}

	return h.SetInterfaceFrequency(uint8(h.currentInterface), hz)
}

// MaxFrequencyGet reports the effective clock of the currently active
// transport.
func (h *JLink) MaxFrequencyGet() (uint32, error) {
	if h.currentInterface < 0 {
		return 0, errors.New("no debug transport selected")
	}

	return h.GetInterfaceFrequency(uint8(h.currentInterface))
}

// TargetPowerSet switches the 5 V kickstart supply on pin 19.
func (h *JLink) TargetPowerSet(on bool) error {
	if !h.HasCapability(capSetKickstartPower) {
		return &capabilityError{capSetKickstartPower}
	}

	arg := uint8(0)

	if on {
		arg = 1
	}

	_, err := h.simpleRequestU8(cmdSetKickstartPower, arg, 0)

	return err
}

// TargetPowerGet reads back whether the kickstart supply is switched on.
func (h *JLink) TargetPowerGet() (bool, error) {
	if !h.HasCapability(capGetHwInfo) {
		return false, &capabilityError{capGetHwInfo}
	}

	reply, err := h.simpleRequestU32(cmdGetHwInfo, 0x01, 4)

	if err != nil {
		return false, err
	}

	return convertToUint32(reply, littleEndian) != 0, nil
}

// SwdDpInit brings the serial wire transport up and wakes the debug port:
// line reset, optional multi-drop target selection and a DPIDR read,
// retried against a deadline while the target powers up.
func (h *JLink) SwdDpInit(dp *SwdDp) error {
	dp.probe = h

	err := h.SelectInterface(IfaceSwd)

	if err != nil {
		return err
	}

	deadline := time.Now().Add(time.Millisecond * swdSetupTimeoutMs)

	for {
		_, err = dp.ClearError(true)

		if err != nil {
			return err
		}

		idr, err := dp.RawAccess(true, dpRegDpidr, 0)

		if err == nil && dp.fault == 0 && idr != 0 {
			dp.Version = uint8((idr >> 12) & 0x0F)

			logger.Debugf("DPIDR %08x (DP version %d)", idr, dp.Version)

			return nil
		}

		if time.Now().After(deadline) {
			return errors.New("no response from SWD target")
		}
	}
}
