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
	"fmt"

	"github.com/OpenPSG/casecross"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding the records.
const SheetName = "Records"

// XLSXWriter accumulates records in a workbook saved to path on Close.
type XLSXWriter struct {
	f    *excelize.File
	path string
	row  int
}

// NewXLSXWriter starts a workbook with a frozen, bold header row.
func NewXLSXWriter(path string) (*XLSXWriter, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(SheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		f.Close()
		return nil, fmt.Errorf("error removing default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("error creating header style: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("error writing header: %w", err)
	}
	last, err := excelize.CoordinatesToCellName(len(Columns), 1)
	if err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		f.Close()
		return nil, fmt.Errorf("error styling header: %w", err)
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("error freezing header: %w", err)
	}

	return &XLSXWriter{f: f, path: path, row: 2}, nil
}

// Write appends records as rows below the last written row.
func (xw *XLSXWriter) Write(records []casecross.Record) error {
	for _, rec := range records {
		cell, err := excelize.CoordinatesToCellName(1, xw.row)
		if err != nil {
			return err
		}
		row := values(rec)
		if err := xw.f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("error writing row %d: %w", xw.row, err)
		}
		xw.row++
	}
	return nil
}

// Close saves the workbook.
func (xw *XLSXWriter) Close() error {
	if err := xw.f.SaveAs(xw.path); err != nil {
		xw.f.Close()
		return fmt.Errorf("error saving workbook: %w", err)
	}
	return xw.f.Close()
}
