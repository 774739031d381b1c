// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gojlink

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/gousb"
)

var (
	libUsbCtx *gousb.Context = nil
)

func InitUsb() error {
	if libUsbCtx == nil {

		libUsbCtx = gousb.NewContext()
		libUsbCtx.Debug(3)

		if libUsbCtx != nil {
			return nil
		} else {
			return errors.New("could not initialize libusb context")
		}
	} else {
		logger.Warn("libusb context already initialized")
		return nil
	}
}

func CloseUsb() {
	if libUsbCtx != nil {
		libUsbCtx.Close()
	} else {
		logger.Warn("tried to close non initialized libusb context")
	}
}

func usbFindDevices(vids []gousb.ID, pids []gousb.ID) ([]*gousb.Device, error) {
	devices, err := libUsbCtx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if idExists(vids, desc.Vendor) == true && idExists(pids, desc.Product) == true {
			logger.Debugf("inspect usb device [%04x:%04x] on bus %03d:%03d...", uint16(desc.Vendor), uint16(desc.Product), desc.Bus, desc.Address)

			return true
		} else {
			return false
		}
	})

	// Error of OpenDevices is ignored cause of lack
	// of information on which specific device the error
	// occurred. So as long we got a valid device handle
	// returned there is no actual error

	if len(devices) > 0 {
		return devices, nil
	} else {
		return nil, err
	}
}

// usbLink is the transfer primitive everything above the USB layer runs on.
// A nil/empty out buffer with inLen > 0 is a pure read, used to fetch the
// trailing status byte of an IO transaction.
type usbLink interface {
	transfer(out []byte, inLen int) ([]byte, error)
	close()
}

type bulkLink struct {
	libUsbConfig    *gousb.Config
	libUsbInterface *gousb.Interface

	rxEndpoint *gousb.InEndpoint
	txEndpoint *gousb.OutEndpoint
}

// openBulkLink claims the first vendor/vendor interface of configuration #1
// carrying at least two bulk endpoints and resolves the lowest addressed
// IN and OUT endpoint on it.
func openBulkLink(device *gousb.Device) (*bulkLink, error) {
	device.SetAutoDetach(true)

	logger.Trace("request usb configuration #1 on usb device")
	config, err := device.Config(1)
	if err != nil {
		logger.Debug(err)
		return nil, errors.New("could not request configuration #1 for j-link adaptor")
	}

	var inNum, outNum = -1, -1
	var ifaceNum, altNum = -1, -1

	for _, iface := range config.Desc.Interfaces {
		for _, alt := range iface.AltSettings {
			if alt.Class != usbVendorClass || alt.SubClass != usbVendorSubclass {
				continue
			}

			if len(alt.Endpoints) < 2 {
				continue
			}

			inNum, outNum = -1, -1

			for _, endpoint := range alt.Endpoints {
				if endpoint.TransferType != gousb.TransferTypeBulk {
					continue
				}

				if endpoint.Direction == gousb.EndpointDirectionIn {
					if inNum == -1 || endpoint.Number < inNum {
						inNum = endpoint.Number
					}
				} else {
					if outNum == -1 || endpoint.Number < outNum {
						outNum = endpoint.Number
					}
				}
			}

			if inNum != -1 && outNum != -1 {
				ifaceNum = alt.Number
				altNum = alt.Alternate
				break
			}
		}

		if ifaceNum != -1 {
			break
		}
	}

	if ifaceNum == -1 {
		config.Close()
		return nil, errors.New("could not find vendor interface with bulk endpoint pair on adaptor")
	}

	logger.Tracef("claim interface %d,%d on usb device", ifaceNum, altNum)
	iface, err := config.Interface(ifaceNum, altNum)
	if err != nil {
		logger.Debug(err)
		config.Close()
		return nil, errors.New("could not claim vendor interface for j-link adaptor")
	}

	link := &bulkLink{
		libUsbConfig:    config,
		libUsbInterface: iface,
	}

	link.rxEndpoint, err = iface.InEndpoint(inNum)
	if err != nil {
		link.close()
		return nil, errors.New("could not get rx endpoint for adaptor")
	}

	link.txEndpoint, err = iface.OutEndpoint(outNum)
	if err != nil {
		link.close()
		return nil, errors.New("could not get tx endpoint for adaptor")
	}

	logger.Debugf("using bulk endpoint pair IN-%d / OUT-%d", inNum, outNum)

	return link, nil
}

func (l *bulkLink) close() {
	if l.libUsbInterface != nil {
		l.libUsbInterface.Close()
	}

	if l.libUsbConfig != nil {
		l.libUsbConfig.Close()
	}
}

func (l *bulkLink) transfer(out []byte, inLen int) ([]byte, error) {
	if len(out) > 0 {
		_, err := usbWrite(l.txEndpoint, out)

		if err != nil {
			return nil, mapUsbError(err, "bulk write failed")
		}
	}

	if inLen == 0 {
		return nil, nil
	}

	buffer := make([]byte, inLen)

	bytesRead, err := usbRead(l.rxEndpoint, buffer)

	if err != nil {
		return nil, mapUsbError(err, "bulk read failed")
	}

	return buffer[:bytesRead], nil
}

func usbWrite(endpoint *gousb.OutEndpoint, buffer []byte) (int, error) {

	opCtx := context.Background()

	var done func()
	opCtx, done = context.WithTimeout(opCtx, time.Millisecond*usbTransferTimeoutMs)
	defer done()

	bytesWritten, err := endpoint.WriteContext(opCtx, buffer)

	if err != nil {
		return -1, err
	} else {
		logger.Tracef("%d Bytes -> EP-%d", bytesWritten, endpoint.Desc.Number)
		return bytesWritten, nil
	}
}

func usbRead(endpoint *gousb.InEndpoint, buffer []byte) (int, error) {
	opCtx := context.Background()

	var done func()
	opCtx, done = context.WithTimeout(opCtx, time.Millisecond*usbTransferTimeoutMs)
	defer done()

	bytesRead, err := endpoint.ReadContext(opCtx, buffer)

	if err != nil {
		return -1, err
	} else {
		logger.Tracef("EP-%d -> %d Bytes", endpoint.Desc.Number, bytesRead)
		return bytesRead, nil
	}
}

func mapUsbError(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return newLinkError(fmt.Sprintf("%s: transfer timed out", msg), linkErrorTimeout)
	}

	switch err {
	case gousb.ErrorNoDevice, gousb.ErrorNotFound:
		return newLinkError(fmt.Sprintf("%s: adaptor disappeared", msg), linkErrorDeviceLost)

	case gousb.ErrorTimeout:
		return newLinkError(fmt.Sprintf("%s: transfer timed out", msg), linkErrorTimeout)

	default:
		return newLinkError(fmt.Sprintf("%s: %v", msg, err), linkErrorTransferFailed)
	}
}
