// Package extract decodes daily fixed-width transaction extract files into
// ledger records.
//
// An extract is newline-separated text. Every non-blank line is one record;
// fields are fixed byte ranges of the line, preserved verbatim with no
// trimming, validation, or type conversion.
package extract

import "github.com/rbergman/daybook/internal/ledger"

// FieldRange binds a ledger column to its byte range within an extract line.
// End is exclusive.
type FieldRange struct {
	Column string
	Start  int
	End    int
}

// Layout is the extract record layout in field order. Column names match
// the ledger schema bindings, so the decoder assigns by name rather than
// by struct position.
var Layout = []FieldRange{
	{"transaction_id", 0, 6},
	{"customer_id", 6, 12},
	{"customer_name", 12, 32},
	{"customer_addr_id", 32, 37},
	{"product_id", 37, 44},
	{"product_name", 44, 74},
	{"product_price", 74, 80},
	{"product_quantity", 80, 84},
	{"status", 84, 96},
	{"transaction_timestamp", 96, 116},
	{"ordered_date", 116, 127},
	{"shipment_date", 127, 138},
	{"delivered_date", 138, 149},
}

// LineWidth is the full width of a well-formed extract line.
const LineWidth = 149

// Decode slices one extract line into a record. Pure; a line shorter than
// the layout yields short or empty trailing fields rather than an error.
func Decode(line string) ledger.Record {
	var rec ledger.Record
	for _, f := range Layout {
		ledger.SetColumn(&rec, f.Column, slice(line, f.Start, f.End))
	}
	return rec
}

// slice extracts line[start:end] with both bounds clamped to the line.
func slice(line string, start, end int) string {
	if start > len(line) {
		start = len(line)
	}
	if end > len(line) {
		end = len(line)
	}
	return line[start:end]
}
