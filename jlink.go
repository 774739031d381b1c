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

	"github.com/boljen/go-bitmap"
	"github.com/google/gousb"
)

const AllSupportedVIds = 0xFFFF
const AllSupportedPIds = 0xFFFF

var goJLinkSupportedVIds = []gousb.ID{0x1366} // SEGGER vendor id
var goJLinkSupportedPIds = []gousb.ID{jLinkPid, jLinkCdcPid, jLinkFlasherPid, jLinkEduMiniPid}

// interfaceFreq caches the clock parameters of one debug transport. The
// record is valid once baseHz is non zero; selecting another interface
// does not invalidate it.
type interfaceFreq struct {
	baseHz         uint32
	minDivisor     uint16
	currentDivisor uint16
}

/** */
type JLink struct {
	libUsbDevice *gousb.Device // reference to libusb device
	link         usbLink       // claimed vendor interface with its bulk endpoint pair

	vid gousb.ID // vendor id of device
	pid gousb.ID // product id of device

	firmwareVersion string
	hardwareVersion uint32

	capabilities        bitmap.Bitmap // command classes advertised by the adaptor
	availableInterfaces bitmap.Bitmap // debug transports advertised by the adaptor

	currentInterface int // selected transport, -1 before the first query

	interfaceFreqs [maxInterfaces]interfaceFreq
}

type JLinkInterfaceConfig struct {
	vid    gousb.ID
	pid    gousb.ID
	serial string
}

func NewJLinkConfig(vid gousb.ID, pid gousb.ID, serial string) *JLinkInterfaceConfig {

	config := &JLinkInterfaceConfig{
		vid:    vid,
		pid:    pid,
		serial: serial,
	}

	return config
}

func NewJLink(config *JLinkInterfaceConfig) (*JLink, error) {
	var err error
	var devices []*gousb.Device

	handle := &JLink{currentInterface: -1}

	if config.vid == AllSupportedVIds && config.pid == AllSupportedPIds {
		devices, err = usbFindDevices(goJLinkSupportedVIds, goJLinkSupportedPIds)

	} else if config.vid == AllSupportedVIds && config.pid != AllSupportedPIds {
		devices, err = usbFindDevices(goJLinkSupportedVIds, []gousb.ID{config.pid})

	} else if config.vid != AllSupportedVIds && config.pid == AllSupportedPIds {
		devices, err = usbFindDevices([]gousb.ID{config.vid}, goJLinkSupportedPIds)

	} else {
		devices, err = usbFindDevices([]gousb.ID{config.vid}, []gousb.ID{config.pid})
	}

	if len(devices) > 0 {
		if config.serial == "" && len(devices) > 1 {

			for _, d := range devices {
				d.Close()
			}

			return nil, errors.New("could not identify exact j-link by given parameters. (Perhaps a serial no is missing?)")

		} else if len(devices) == 1 {
			handle.libUsbDevice = devices[0]

			logger.Infof("Found j-link with matching product and vendor id [%04x, %04x]",
				uint16(handle.libUsbDevice.Desc.Product),
				uint16(handle.libUsbDevice.Desc.Vendor))

		} else {
			for _, dev := range devices {
				devSerialNo, _ := dev.SerialNumber()

				logger.Tracef("compare serial no %s with number %s", devSerialNo, config.serial)

				if devSerialNo == config.serial {
					handle.libUsbDevice = dev

					logger.Infof("found j-link with serial number %s", devSerialNo)
				} else {
					dev.Close()
				}
			}
		}
	} else {
		return nil, errors.New("could not find any J-Link connected to computer")
	}

	if handle.libUsbDevice == nil {
		return nil, errors.New("critical error during device scan")
	}

	handle.vid = handle.libUsbDevice.Desc.Vendor
	handle.pid = handle.libUsbDevice.Desc.Product

	handle.link, err = openBulkLink(handle.libUsbDevice)

	if err != nil {
		handle.libUsbDevice.Close()
		return nil, err
	}

	// init is all or nothing. Any failure releases the interface and
	// closes the device again.
	err = handle.initSession()

	if err != nil {
		handle.Close()
		return nil, err
	}

	return handle, nil
}

func (h *JLink) initSession() error {
	err := h.readCapabilities()

	if err != nil {
		return err
	}

	err = h.readFirmwareVersion()

	if err != nil {
		return err
	}

	if h.HasCapability(capGetHwVersion) {
		err = h.readHardwareVersion()

		if err != nil {
			return err
		}

		logger.Debugf("adaptor hardware is a %s", h.HardwareVersionString())
	}

	if h.HasCapability(capSelectInterface) {
		err = h.readAvailableInterfaces()

		if err != nil {
			return err
		}
	} else {
		// old firmware is JTAG only
		h.availableInterfaces = bitmap.New(maxInterfaces)
		h.availableInterfaces.Set(int(IfaceJtag), true)
	}

	logger.Debugf("firmware: %s", h.firmwareVersion)

	return nil
}

func (h *JLink) readCapabilities() error {
	reply, err := h.simpleQuery(cmdGetCapabilities, 4)

	if err != nil {
		return err
	}

	word := convertToUint32(reply, littleEndian)

	h.capabilities = bitmap.New(32)

	for k := 0; k < 32; k++ {
		if word&(1<<uint(k)) != 0 {
			h.capabilities.Set(k, true)
		}
	}

	logger.Debugf("adaptor capabilities [%08x]", word)

	for k := 0; k < 32; k++ {
		if h.capabilities.Get(k) {
			logger.Tracef("  capability %s", capabilityToString(k))
		}
	}

	return nil
}

func capabilityToString(bit int) string {
	switch bit {
	case capGetHwVersion:
		return "get hardware version"
	case capAdaptiveClocking:
		return "adaptive clocking"
	case capGetSpeeds:
		return "speed info"
	case capGetHwInfo:
		return "hardware info"
	case capSetKickstartPower:
		return "kickstart power"
	case capSelectInterface:
		return "select interface"
	case capSwo:
		return "swo capture"
	case capRegister:
		return "register connection"
	default:
		return fmt.Sprintf("bit %d", bit)
	}
}

// HasCapability reports whether the adaptor advertises the given command
// class. Commands of classes not advertised are never sent.
func (h *JLink) HasCapability(bit int) bool {
	if bit < 0 || bit > 31 {
		return false
	}

	return h.capabilities.Get(bit)
}

func (h *JLink) FirmwareVersion() string {
	return h.firmwareVersion
}

func (h *JLink) Close() {
	if h.libUsbDevice != nil {
		logger.Debugf("close j-link device [%04x:%04x]", uint16(h.vid), uint16(h.pid))

		h.link.close()
		h.libUsbDevice.Close()
	} else {
		logger.Warn("tried to close invalid j-link handle")
	}
}
