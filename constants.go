// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

// this code is mainly inspired and based on the openocd and blackmagic
// project source code of the SEGGER J-Link vendor protocol
// for detailed information see

// https://sourceforge.net/p/openocd/code

package gojlink

// J-Link command bytes, sent as the first byte of a bulk OUT transfer.
// All multi-byte operands are little endian.
const (
	cmdGetVersion        = 0x01
	cmdSetSpeed          = 0x05
	cmdGetSignalState    = 0x07
	cmdSetKickstartPower = 0x08
	cmdGetSpeeds         = 0xC0
	cmdGetHwInfo         = 0xC1
	cmdSelectInterface   = 0xC7
	cmdIOTransact        = 0xCF
	cmdResetTargetLow    = 0xDC
	cmdResetTargetHigh   = 0xDD
	cmdGetCapabilities   = 0xE8
	cmdGetHwVersion      = 0xF0
)

// Capability bits of the 0xE8 reply. A clear bit means the command class
// must not be sent to the adaptor.
const (
	capGetHwVersion      = 1
	capWriteDcc          = 2
	capAdaptiveClocking  = 3
	capReadConfig        = 4
	capWriteConfig       = 5
	capTrace             = 6
	capWriteMemory       = 7
	capReadMemory        = 8
	capGetSpeeds         = 9
	capExecuteCode       = 10
	capGetMaxBlockSize   = 11
	capGetHwInfo         = 12
	capSetKickstartPower = 13
	capResetStopTimed    = 14
	capMeasureRtckReact  = 16
	capSelectInterface   = 17
	capRwMemoryArm79     = 18
	capGetCounters       = 19
	capReadDcc           = 20
	capGetCpuCaps        = 21
	capExecuteCpuCmd     = 22
	capSwo               = 23
	capWriteDccEx        = 24
	capUpdateFirmwareEx  = 25
	capFileIO            = 26
	capRegister          = 27
	capIndicators        = 28
	capTestNetSpeed      = 29
	capRawTrace          = 30
	capGetCapsEx         = 31
)

// Debug transport numbers of the 0xC7 select command and the
// available-interface bitfield.
const (
	IfaceJtag uint8 = 0
	IfaceSwd  uint8 = 1

	maxInterfaces = 8

	selectIfaceGetCurrent   = 0xFE
	selectIfaceGetAvailable = 0xFF
)

// Adaptor family in the TT field of the packed hardware version.
const (
	hwTypeJLink    = 0
	hwTypeJTrace   = 1
	hwTypeFlasher  = 2
	hwTypeJLinkPro = 3
	hwTypeLpcLink2 = 18
)

// SWD acknowledgement values, 3 bits little endian on the wire.
const (
	swdAckOK         = 0x01
	swdAckWait       = 0x02
	swdAckFault      = 0x04
	swdAckNoResponse = 0x07
)

// ADIv5 DP register addresses. ABORT shares 0x00 with DPIDR (write vs read),
// TARGETSEL shares 0x0C with RDBUFF and exists on DPv2 only.
const (
	dpRegDpidr     uint16 = 0x00
	dpRegAbort     uint16 = 0x00
	dpRegCtrlStat  uint16 = 0x04
	dpRegTargetSel uint16 = 0x0C
	dpRegRdbuff    uint16 = 0x0C
)

// DP.CTRLSTAT sticky error flags and the DP.ABORT bits clearing them.
const (
	ctrlStatStickyOrun = 1 << 1
	ctrlStatStickyCmp  = 1 << 4
	ctrlStatStickyErr  = 1 << 5
	ctrlStatWDataErr   = 1 << 7

	abortDapAbort   = 1 << 0
	abortStkCmpClr  = 1 << 1
	abortStkErrClr  = 1 << 2
	abortWdErrClr   = 1 << 3
	abortOrunErrClr = 1 << 4

	abortClearAllErrors = abortStkCmpClr | abortStkErrClr | abortWdErrClr | abortOrunErrClr
)

// J-Link product ids carrying the two-bulk-endpoint vendor interface.
// Single-endpoint V3/V4 hardware is not supported.
const (
	jLinkPid        = 0x0101
	jLinkCdcPid     = 0x0105
	jLinkFlasherPid = 0x1015
	jLinkEduMiniPid = 0x1020
)

const (
	usbVendorClass    = 0xFF
	usbVendorSubclass = 0xFF

	usbTransferTimeoutMs = 5000
)

const (
	// The adaptor accepts larger IO transactions but the driver refuses
	// them to keep the bulk buffers bounded.
	maxTransactionCycles = 4096

	swdWaitRetryTimeoutMs = 250
	swdSetupTimeoutMs     = 2000

	nrstSettleTimeMs      = 2
	interfaceSettleTimeMs = 10

	maxFirmwareVersionLen = 255
)

// FixedFrequencyHz is reported by GetInterfaceFrequency when the adaptor
// does not advertise the speed-info command class and the clock cannot be
// negotiated.
const FixedFrequencyHz uint32 = 0
