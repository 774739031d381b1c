// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package gojlink

import (
	"fmt"
)

type linkErrorCode int

const (
	linkErrorTimeout linkErrorCode = iota + 1
	linkErrorTransferFailed
	linkErrorDeviceLost
	linkErrorShortRead
)

// linkError is a USB level failure. It is fatal to the running operation
// and usually to the whole probe session.
type linkError struct {
	errorString string
	LinkCode    linkErrorCode
}

func (e *linkError) Error() string {
	return e.errorString
}

func newLinkError(msg string, code linkErrorCode) error {
	return &linkError{msg, code}
}

// protocolError reports a non-zero status byte of an IO transaction or an
// acknowledgement value the SWD engine cannot act on.
type protocolError struct {
	errorString string
	Status      byte
}

func (e *protocolError) Error() string {
	return e.errorString
}

func newProtocolError(msg string, status byte) error {
	return &protocolError{msg, status}
}

// parityError reports an SWD read data phase whose parity bit does not
// match the received word. The DP fault latch is set before it is raised.
type parityError struct {
	Value uint32
}

func (e *parityError) Error() string {
	return fmt.Sprintf("SWD read parity mismatch on data 0x%08x", e.Value)
}

// capabilityError reports a command class the adaptor does not advertise.
// Callers are expected to log it and continue with fixed parameters.
type capabilityError struct {
	Capability int
}

func (e *capabilityError) Error() string {
	return fmt.Sprintf("adaptor does not advertise capability bit %d", e.Capability)
}

func IsTimeout(err error) bool {
	linkErr, ok := err.(*linkError)

	return ok && linkErr.LinkCode == linkErrorTimeout
}

func IsDeviceLost(err error) bool {
	linkErr, ok := err.(*linkError)

	return ok && linkErr.LinkCode == linkErrorDeviceLost
}

func IsProtocolError(err error) bool {
	switch err.(type) {
	case *protocolError, *parityError:
		return true
	default:
		return false
	}
}

func IsCapabilityMissing(err error) bool {
	_, ok := err.(*capabilityError)

	return ok
}
