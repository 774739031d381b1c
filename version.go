// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gojlink

import (
	"fmt"
	"strings"
)

// readFirmwareVersion fetches the firmware identification string. The
// adaptor first reports the string length and then streams the string in a
// separate bulk packet.
func (h *JLink) readFirmwareVersion() error {
	reply, err := h.simpleQuery(cmdGetVersion, 2)

	if err != nil {
		return err
	}

	length := int(convertToUint16(reply, littleEndian))

	if length == 0 || length > maxFirmwareVersionLen {
		return fmt.Errorf("implausible firmware version length %d", length)
	}

	version, err := h.link.transfer(nil, length)

	if err != nil {
		return err
	}

	h.firmwareVersion = strings.TrimRight(string(version), "\x00")

	return nil
}

func (h *JLink) readHardwareVersion() error {
	reply, err := h.simpleQuery(cmdGetHwVersion, 4)

	if err != nil {
		return err
	}

	h.hardwareVersion = convertToUint32(reply, littleEndian)

	return nil
}

// HardwareVersion returns the packed decimal version word TTMMmmrr.
func (h *JLink) HardwareVersion() uint32 {
	return h.hardwareVersion
}

// hardwareTypeString resolves the TT field of the packed version word.
func hardwareTypeString(hwType uint32) string {
	switch hwType {
	case hwTypeJLink:
		return "J-Link"
	case hwTypeJTrace:
		return "J-Trace"
	case hwTypeFlasher:
		return "Flasher"
	case hwTypeJLinkPro:
		return "J-Link Pro"
	case hwTypeLpcLink2:
		return "LPC-Link2"
	default:
		return "unknown"
	}
}

// HardwareVersionString renders the packed decimal version word, e.g.
// "J-Link V9.20.0". The word is decimal, not hex: TT*1000000 + MM*10000 +
// mm*100 + rr.
func (h *JLink) HardwareVersionString() string {
	hwType := h.hardwareVersion / 1000000
	major := (h.hardwareVersion / 10000) % 100
	minor := (h.hardwareVersion / 100) % 100
	revision := h.hardwareVersion % 100

	return fmt.Sprintf("%s V%d.%02d.%d", hardwareTypeString(hwType), major, minor, revision)
}
