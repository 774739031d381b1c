// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gojlink

import (
	"fmt"
	"time"

	"github.com/boljen/go-bitmap"
)

func interfaceToString(iface uint8) string {
	switch iface {
	case IfaceJtag:
		return "JTAG"
	case IfaceSwd:
		return "SWD"
	default:
		return fmt.Sprintf("interface %d", iface)
	}
}

func (h *JLink) readAvailableInterfaces() error {
	reply, err := h.simpleRequestU8(cmdSelectInterface, selectIfaceGetAvailable, 4)

	if err != nil {
		return err
	}

	word := convertToUint32(reply, littleEndian)

	h.availableInterfaces = bitmap.New(maxInterfaces)

	for k := 0; k < maxInterfaces; k++ {
		if word&(1<<uint(k)) != 0 {
			h.availableInterfaces.Set(k, true)
		}
	}

	logger.Debugf("available debug transports [%08x]", word)

	return nil
}

// HasInterface reports whether the adaptor advertises the given debug
// transport.
func (h *JLink) HasInterface(iface uint8) bool {
	if int(iface) >= maxInterfaces {
		return false
	}

	return h.availableInterfaces.Get(int(iface))
}

func (h *JLink) queryCurrentInterface() (uint8, error) {
	reply, err := h.simpleRequestU8(cmdSelectInterface, selectIfaceGetCurrent, 4)

	if err != nil {
		return 0, err
	}

	return uint8(convertToUint32(reply, littleEndian)), nil
}

// SelectInterface switches the adaptor to the given debug transport. When
// the transport is already active no traffic is generated beyond the
// current-interface query.
func (h *JLink) SelectInterface(iface uint8) error {
	if !h.HasInterface(iface) {
		return fmt.Errorf("adaptor does not support the %s transport", interfaceToString(iface))
	}

	current, err := h.queryCurrentInterface()

	if err != nil {
		return err
	}

	if current == iface {
		h.currentInterface = int(iface)
		return nil
	}

	// reply carries the previously selected interface, nothing to act on
	_, err = h.simpleRequestU8(cmdSelectInterface, iface, 4)

	if err != nil {
		return err
	}

	// the adaptor needs a moment to reroute its pin drivers
	time.Sleep(time.Millisecond * interfaceSettleTimeMs)

	h.currentInterface = int(iface)

	logger.Debugf("switched adaptor to %s", interfaceToString(iface))

	return nil
}
