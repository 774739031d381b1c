// Copyright 2020 Sebastian Lehmann. All rights reserved.
// Use of this source code is governed by a GNU-style
// license that can be found in the LICENSE file.

package main

import (
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"

	"github.com/bbnote/gojlink"
)

var logger *logrus.Logger

func initLogger() {
	formatter := &prefixed.TextFormatter{
		DisableColors:   false,
		TimestampFormat: "15:04:05",
		FullTimestamp:   true,
	}

	logger = logrus.New()
	logger.SetFormatter(formatter)
	logger.SetLevel(gojlink.MaxLogLevel)

	gojlink.SetLogger(logger)
}

func main() {
	initLogger()

	logger.Info("Starting j-link info tool...")

	err := gojlink.InitUsb()

	if err != nil {
		logger.Panic(err)
	}

	defer gojlink.CloseUsb()

	config := gojlink.NewJLinkConfig(gojlink.AllSupportedVIds, gojlink.AllSupportedPIds, "")

	jlink, err := gojlink.NewJLink(config)

	if jlink != nil {
		logger.Info("Found J-Link on your computer! :)")
	} else {
		logger.Fatal("Could not find any j-link on your computer: ", err)
	}

	defer jlink.Close()

	logger.Infof("Firmware: %s", jlink.FirmwareVersion())
	logger.Infof("Hardware: %s", jlink.HardwareVersionString())

	voltage, err := jlink.TargetVoltageString()

	if err == nil {
		logger.Infof("Target voltage: %s V", voltage)
	}

	for _, iface := range []uint8{gojlink.IfaceJtag, gojlink.IfaceSwd} {
		if !jlink.HasInterface(iface) {
			continue
		}

		hz, err := jlink.GetInterfaceFrequency(iface)

		if err != nil {
			logger.Warn(err)
			continue
		}

		if hz == gojlink.FixedFrequencyHz {
			logger.Infof("Interface %d: fixed clock", iface)
		} else {
			logger.Infof("Interface %d: %d Hz", iface, hz)
		}
	}
}
