// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package edf reads and writes the EDF/EDF+ signal files produced by
// polysomnography systems.
package edf

import (
	"strings"
	"time"
)

type Version string

const (
	// Version0 represents the version of the EDF/EDF+ standard.
	Version0 Version = "0"
)

// SaturationLabels are the channel labels PSG systems use for the pulse
// oximetry trace, in order of preference.
var SaturationLabels = []string{"SaO2", "SpO2", "SAO2", "SPO2", "Sat"}

// Header represents the EDF/EDF+ file header.
type Header struct {
	Version            Version       // Version of the EDF/EDF+ standard (usually "0")
	PatientID          string        // Identification of the patient
	RecordingID        string        // Identification of the recording session
	StartTime          time.Time     // Start date of the recording
	HeaderBytes        int           // Number of bytes in the header
	DataRecordDuration time.Duration // Duration of a single data record in seconds
	DataRecords        int           // Number of data records, -1 if unknown
	SignalCount        int           // Number of signals in each data record
	Signals            []Signal      // Details of each signal
}

// SignalIndex returns the index of the first signal whose label matches one
// of labels (case-insensitive, surrounding space ignored), or -1.
func (h *Header) SignalIndex(labels ...string) int {
	for _, want := range labels {
		for i, sig := range h.Signals {
			if strings.EqualFold(strings.TrimSpace(sig.Label), want) {
				return i
			}
		}
	}
	return -1
}

// Signal represents the characteristics of each signal in the EDF/EDF+ file.
type Signal struct {
	Label             string  // Label of the signal (e.g., SaO2)
	TransducerType    string  // Type of transducer used
	PhysicalDimension string  // Physical dimension (e.g., %, uV)
	PhysicalMin       float64 // Minimum physical value
	PhysicalMax       float64 // Maximum physical value
	DigitalMin        int     // Minimum digital value
	DigitalMax        int     // Maximum digital value
	Prefiltering      string  // Pre-filtering information
	SamplesPerRecord  int     // Number of samples in each data record for this signal
	Reserved          string  // Reserved for future use
}

// SamplePeriod is the time between consecutive samples of the signal.
func (s Signal) SamplePeriod(recordDuration time.Duration) time.Duration {
	if s.SamplesPerRecord <= 0 {
		return 0
	}
	return recordDuration / time.Duration(s.SamplesPerRecord)
}
