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
	"database/sql"
	"fmt"
	"strings"

	"github.com/OpenPSG/casecross"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

// TableName is the SQLite table holding the records.
const TableName = "records"

// SQLiteWriter inserts records into a SQLite database, tagging every row
// with the run that produced it.
type SQLiteWriter struct {
	db    *sql.DB
	runID uuid.UUID
}

// NewSQLiteWriter opens or creates the database at path and its table.
func NewSQLiteWriter(path string, runID uuid.UUID) (*SQLiteWriter, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	cols := make([]string, 0, len(Columns)+1)
	cols = append(cols, "run_id TEXT NOT NULL")
	for _, c := range Columns {
		cols = append(cols, quote(c))
	}
	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", TableName, strings.Join(cols, ", "))
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating table: %w", err)
	}

	return &SQLiteWriter{db: db, runID: runID}, nil
}

// Write inserts records under the run ID in a single transaction.
func (sw *SQLiteWriter) Write(records []casecross.Record) error {
	tx, err := sw.db.Begin()
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	names := make([]string, 0, len(Columns)+1)
	names = append(names, "run_id")
	for _, c := range Columns {
		names = append(names, quote(c))
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(names)), ", ")
	stmt, err := tx.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", TableName, strings.Join(names, ", "), placeholders))
	if err != nil {
		return fmt.Errorf("error preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		args := append([]any{sw.runID.String()}, values(rec)...)
		if _, err := stmt.Exec(args...); err != nil {
			return fmt.Errorf("error inserting record for %s: %w", rec.PatientID, err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (sw *SQLiteWriter) Close() error {
	return sw.db.Close()
}

func quote(name string) string {
	return `"` + name + `"`
}
