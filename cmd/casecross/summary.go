// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/OpenPSG/casecross"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

func printSummary(w io.Writer, result *casecross.RunResult) {
	bold := color.New(color.Bold)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed)
	grey := color.New(color.FgHiBlack)

	totals := result.Totals()

	bold.Fprintf(w, "Run %s\n", result.ID)
	fmt.Fprintf(w, "  patients analysed: %s\n", humanize.Comma(int64(len(result.Summaries))))
	fmt.Fprintf(w, "  case events:       %s\n", humanize.Comma(int64(totals.Cases)))
	green.Fprintf(w, "  retained:          %s\n", humanize.Comma(int64(totals.Retained)))

	reasons := make([]string, 0, len(totals.Skipped))
	for reason := range totals.Skipped {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		yellow.Fprintf(w, "  skipped (%s): %s\n", reason, humanize.Comma(int64(totals.Skipped[reason])))
	}

	fmt.Fprintf(w, "  records written:   %s\n", humanize.Comma(int64(len(result.Records))))
	for _, f := range result.Failed {
		red.Fprintf(w, "  failed %s: %v\n", f.PatientID, f.Err)
	}
	grey.Fprintf(w, "  elapsed %s\n", result.Elapsed.Round(time.Millisecond))
}
