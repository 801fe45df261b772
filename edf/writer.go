// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"strconv"
)

// maxRecordBytes is the data record size limit recommended by the EDF standard.
const maxRecordBytes = 61440

// Writer writes EDF files.
type Writer struct {
	w           io.WriteSeeker
	hdr         *Header
	dataRecords int // Number of data records written so far.
}

// Create creates a new EDF writer that writes to the given writer.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	hdr.DataRecords = -1 // Unknown until Close.
	hdr.SignalCount = len(hdr.Signals)

	ew := &Writer{w: w, hdr: &hdr}
	if err := ew.writeHeader(); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	return ew, nil
}

// Close finalizes the EDF file by updating the header with the total number of data records.
func (ew *Writer) Close() error {
	ew.hdr.DataRecords = ew.dataRecords
	if err := ew.writeHeader(); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	return nil
}

// WriteRecord writes a single data record to the EDF file. Each signal must
// supply exactly its SamplesPerRecord values.
func (ew *Writer) WriteRecord(signals [][]float64) error {
	if len(signals) != ew.hdr.SignalCount {
		return fmt.Errorf("expected %d signals, got %d", ew.hdr.SignalCount, len(signals))
	}

	var totalSamples int
	for i, samples := range signals {
		if want := ew.hdr.Signals[i].SamplesPerRecord; len(samples) != want {
			return fmt.Errorf("signal %d: expected %d samples, got %d", i, want, len(samples))
		}
		totalSamples += len(samples)
	}
	if totalSamples*2 > maxRecordBytes {
		return fmt.Errorf("data record too large: %d bytes, max is %d bytes", totalSamples*2, maxRecordBytes)
	}

	// Records are appended after the header regardless of where the header
	// rewrite left the cursor.
	pos := int64(ew.hdr.HeaderBytes) + int64(ew.dataRecords)*int64(totalSamples*2)
	if _, err := ew.w.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("error seeking to record: %w", err)
	}

	writer := bufio.NewWriter(ew.w)
	for i, samples := range signals {
		sig := ew.hdr.Signals[i]
		for _, v := range samples {
			digital := convertPhysicalToDigital(v, sig.PhysicalMin, sig.PhysicalMax, sig.DigitalMin, sig.DigitalMax)
			if err := binary.Write(writer, binary.LittleEndian, digital); err != nil {
				return err
			}
		}
	}
	if err := writer.Flush(); err != nil {
		return err
	}

	ew.dataRecords++
	return nil
}

func (ew *Writer) writeHeader() error {
	if _, err := ew.w.Seek(0, io.SeekStart); err != nil {
		return err
	}

	ew.hdr.HeaderBytes = 256 + ew.hdr.SignalCount*256

	var buf bytes.Buffer
	pad := func(s string, width int) {
		if len(s) > width {
			s = s[:width]
		}
		fmt.Fprintf(&buf, "%-*s", width, s)
	}

	pad(string(ew.hdr.Version), 8)
	pad(ew.hdr.PatientID, 80)
	pad(ew.hdr.RecordingID, 80)
	pad(ew.hdr.StartTime.Format("02.01.06"), 8)
	pad(ew.hdr.StartTime.Format("15.04.05"), 8)
	pad(strconv.Itoa(ew.hdr.HeaderBytes), 8)
	pad("", 44)
	pad(strconv.Itoa(ew.hdr.DataRecords), 8)
	pad(strconv.FormatFloat(ew.hdr.DataRecordDuration.Seconds(), 'f', -1, 64), 8)
	pad(strconv.Itoa(ew.hdr.SignalCount), 4)

	// Field-major, mirroring signalFields in the reader.
	perSignal := []func(Signal){
		func(s Signal) { pad(s.Label, 16) },
		func(s Signal) { pad(s.TransducerType, 80) },
		func(s Signal) { pad(s.PhysicalDimension, 8) },
		func(s Signal) { pad(formatPhysicalValue(s.PhysicalMin), 8) },
		func(s Signal) { pad(formatPhysicalValue(s.PhysicalMax), 8) },
		func(s Signal) { pad(strconv.Itoa(s.DigitalMin), 8) },
		func(s Signal) { pad(strconv.Itoa(s.DigitalMax), 8) },
		func(s Signal) { pad(s.Prefiltering, 80) },
		func(s Signal) { pad(strconv.Itoa(s.SamplesPerRecord), 8) },
		func(s Signal) { pad(s.Reserved, 32) },
	}
	for _, emit := range perSignal {
		for _, sig := range ew.hdr.Signals {
			emit(sig)
		}
	}

	_, err := ew.w.Write(buf.Bytes())
	return err
}

// convertPhysicalToDigital converts a physical value to a digital value using
// the calibration factors, clamping to the digital range.
func convertPhysicalToDigital(physical float64, pmin, pmax float64, dmin, dmax int) int16 {
	if pmax == pmin {
		return 0 // Avoid division by zero
	}
	digital := math.Round((physical-pmin)*float64(dmax-dmin)/(pmax-pmin)) + float64(dmin)
	digital = math.Max(float64(dmin), math.Min(float64(dmax), digital))
	return int16(digital)
}

func formatPhysicalValue(val float64) string {
	s := strconv.FormatFloat(val, 'f', 2, 64)
	if len(s) > 8 {
		s = strconv.FormatFloat(val, 'f', 0, 64)
	}
	return s
}
