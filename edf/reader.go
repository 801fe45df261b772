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
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// ErrSignalNotFound is returned when no signal carries a requested label.
var ErrSignalNotFound = errors.New("signal not found")

// Reader reads EDF/EDF+ files.
type Reader struct {
	r   io.ReadSeeker
	hdr *Header
}

// signalField describes one per-signal block of the header: its width and
// how to store the trimmed text into the signal.
type signalField struct {
	name  string
	width int
	set   func(sig *Signal, s string) error
}

var signalFields = []signalField{
	{"label", 16, func(sig *Signal, s string) error { sig.Label = s; return nil }},
	{"transducer type", 80, func(sig *Signal, s string) error { sig.TransducerType = s; return nil }},
	{"physical dimension", 8, func(sig *Signal, s string) error { sig.PhysicalDimension = s; return nil }},
	{"physical minimum", 8, func(sig *Signal, s string) (err error) { sig.PhysicalMin, err = parseFloat(s); return }},
	{"physical maximum", 8, func(sig *Signal, s string) (err error) { sig.PhysicalMax, err = parseFloat(s); return }},
	{"digital minimum", 8, func(sig *Signal, s string) (err error) { sig.DigitalMin, err = parseInt(s); return }},
	{"digital maximum", 8, func(sig *Signal, s string) (err error) { sig.DigitalMax, err = parseInt(s); return }},
	{"prefiltering", 80, func(sig *Signal, s string) error { sig.Prefiltering = s; return nil }},
	{"samples per record", 8, func(sig *Signal, s string) (err error) { sig.SamplesPerRecord, err = parseInt(s); return }},
	{"reserved", 32, func(sig *Signal, s string) error { sig.Reserved = s; return nil }},
}

// Open opens an EDF/EDF+ file for reading.
func Open(r io.ReadSeeker) (*Reader, error) {
	reader := bufio.NewReader(r)

	b := make([]byte, 256)
	if _, err := io.ReadFull(reader, b); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}
	field := func(from, to int) string { return strings.TrimSpace(string(b[from:to])) }

	hdr := &Header{
		Version:     Version(field(0, 8)),
		PatientID:   field(8, 88),
		RecordingID: field(88, 168),
	}

	start, err := time.Parse("02.01.06 15.04.05", field(168, 176)+" "+field(176, 184))
	if err != nil {
		return nil, fmt.Errorf("error parsing start time: %w", err)
	}
	hdr.StartTime = start

	if hdr.HeaderBytes, err = parseInt(field(184, 192)); err != nil {
		return nil, fmt.Errorf("error parsing header bytes: %w", err)
	}
	if hdr.DataRecords, err = parseInt(field(236, 244)); err != nil {
		return nil, fmt.Errorf("error parsing number of data records: %w", err)
	}
	seconds, err := parseFloat(field(244, 252))
	if err != nil {
		return nil, fmt.Errorf("error parsing data record duration: %w", err)
	}
	hdr.DataRecordDuration = time.Duration(seconds * float64(time.Second))
	if hdr.SignalCount, err = parseInt(field(252, 256)); err != nil {
		return nil, fmt.Errorf("error parsing signal count: %w", err)
	}
	if hdr.SignalCount < 0 {
		return nil, fmt.Errorf("error parsing signal count: negative value %d", hdr.SignalCount)
	}

	// Signal headers are stored field-major: every signal's label, then
	// every signal's transducer type, and so on.
	hdr.Signals = make([]Signal, hdr.SignalCount)
	for _, f := range signalFields {
		buf := make([]byte, f.width)
		for i := range hdr.Signals {
			if _, err := io.ReadFull(reader, buf); err != nil {
				return nil, fmt.Errorf("error reading signal %s: %w", f.name, err)
			}
			if err := f.set(&hdr.Signals[i], strings.TrimSpace(string(buf))); err != nil {
				return nil, fmt.Errorf("error parsing signal %d %s: %w", i, f.name, err)
			}
		}
	}

	return &Reader{
		r:   r,
		hdr: hdr,
	}, nil
}

// Header returns the parsed file header.
func (er *Reader) Header() Header {
	return *er.hdr
}

// SignalReader reads continuous signal data from an EDF/EDF+ file.
type SignalReader struct {
	r             io.ReadSeeker
	hdr           *Header
	signal        Signal
	currentRecord int    // Current record being processed
	currentSample int    // Current sample in the record
	recordSize    int    // Total size of one data record
	signalOffset  int    // Byte offset of the signal in a record
	record        []byte // Raw samples of the signal in the current record
}

// Signal creates a new SignalReader for a specified signal index.
func (er *Reader) Signal(signalIndex int) (*SignalReader, error) {
	if signalIndex < 0 || signalIndex >= len(er.hdr.Signals) {
		return nil, fmt.Errorf("signal index %d out of range", signalIndex)
	}

	recordSize := 0
	signalOffset := 0
	for i, sig := range er.hdr.Signals {
		if i < signalIndex {
			signalOffset += sig.SamplesPerRecord * 2
		}
		recordSize += sig.SamplesPerRecord * 2
	}

	return &SignalReader{
		r:            er.r,
		hdr:          er.hdr,
		signal:       er.hdr.Signals[signalIndex],
		recordSize:   recordSize,
		signalOffset: signalOffset,
	}, nil
}

// Read fills the provided float64 slice with the physical values from the signal.
func (sr *SignalReader) Read(data []float64) (int, error) {
	n := 0
	for n < len(data) {
		if sr.currentRecord >= sr.hdr.DataRecords || sr.signal.SamplesPerRecord <= 0 {
			return n, io.EOF
		}

		if sr.currentSample == 0 || sr.record == nil {
			if err := sr.loadRecord(); err != nil {
				return n, err
			}
		}

		for n < len(data) && sr.currentSample < sr.signal.SamplesPerRecord {
			digital := int16(binary.LittleEndian.Uint16(sr.record[sr.currentSample*2:]))
			data[n] = convertDigitalToPhysical(digital, sr.signal.DigitalMin, sr.signal.DigitalMax, sr.signal.PhysicalMin, sr.signal.PhysicalMax)
			n++
			sr.currentSample++
		}

		if sr.currentSample >= sr.signal.SamplesPerRecord {
			sr.currentSample = 0
			sr.currentRecord++
		}
	}

	return n, nil
}

// loadRecord reads this signal's slice of the current data record.
func (sr *SignalReader) loadRecord() error {
	pos := int64(sr.hdr.HeaderBytes) + int64(sr.currentRecord)*int64(sr.recordSize) + int64(sr.signalOffset)
	if _, err := sr.r.Seek(pos, io.SeekStart); err != nil {
		return fmt.Errorf("error seeking to position: %w", err)
	}
	if sr.record == nil {
		sr.record = make([]byte, sr.signal.SamplesPerRecord*2)
	}
	if _, err := io.ReadFull(sr.r, sr.record); err != nil {
		return fmt.Errorf("error reading sample data: %w", err)
	}
	return nil
}

// Sample is one physical value of a signal at an offset from the recording start.
type Sample struct {
	Offset time.Duration
	Value  float64
}

// ReadSamples reads the whole signal, stamping each value with its offset
// from the start of the recording.
func (sr *SignalReader) ReadSamples() ([]Sample, error) {
	period := sr.signal.SamplePeriod(sr.hdr.DataRecordDuration)
	if period <= 0 {
		return nil, fmt.Errorf("signal %q has no sample period", sr.signal.Label)
	}

	var samples []Sample
	if sr.hdr.DataRecords > 0 {
		samples = make([]Sample, 0, sr.hdr.DataRecords*sr.signal.SamplesPerRecord)
	}

	buf := make([]float64, max(sr.signal.SamplesPerRecord, 1))
	for {
		n, err := sr.Read(buf)
		for _, v := range buf[:n] {
			samples = append(samples, Sample{Offset: time.Duration(len(samples)) * period, Value: v})
		}
		if errors.Is(err, io.EOF) {
			return samples, nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// ReadSaturation locates the oxygen-saturation channel and returns its samples.
// When no labels are given SaturationLabels is used.
func ReadSaturation(r io.ReadSeeker, labels ...string) ([]Sample, error) {
	if len(labels) == 0 {
		labels = SaturationLabels
	}

	er, err := Open(r)
	if err != nil {
		return nil, err
	}

	idx := er.hdr.SignalIndex(labels...)
	if idx < 0 {
		return nil, fmt.Errorf("%w: none of %v", ErrSignalNotFound, labels)
	}

	sr, err := er.Signal(idx)
	if err != nil {
		return nil, err
	}
	return sr.ReadSamples()
}

// convertDigitalToPhysical converts a digital value from the data record to a physical value using the calibration factors.
func convertDigitalToPhysical(digital int16, dmin, dmax int, pmin, pmax float64) float64 {
	if dmax == dmin {
		return 0 // Avoid division by zero
	}
	return pmin + (float64(digital)-float64(dmin))*(pmax-pmin)/float64(dmax-dmin)
}

func parseFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}
