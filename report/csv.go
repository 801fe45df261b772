// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/OpenPSG/casecross"
)

// CSVWriter writes records as comma separated rows under a header line.
type CSVWriter struct {
	w      *csv.Writer
	closer io.Closer
}

// NewCSVWriter writes the header to w. When w is an io.Closer, Close closes it.
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	cw := &CSVWriter{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		cw.closer = c
	}
	if err := cw.w.Write(Columns); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}
	return cw, nil
}

// Write appends records as rows and flushes them to the underlying writer.
func (cw *CSVWriter) Write(records []casecross.Record) error {
	for _, rec := range records {
		if err := cw.w.Write(textValues(rec)); err != nil {
			return fmt.Errorf("error writing record: %w", err)
		}
	}
	cw.w.Flush()
	return cw.w.Error()
}

// Close flushes buffered rows and closes the underlying file, if any.
func (cw *CSVWriter) Close() error {
	cw.w.Flush()
	if err := cw.w.Error(); err != nil {
		return err
	}
	if cw.closer != nil {
		return cw.closer.Close()
	}
	return nil
}
