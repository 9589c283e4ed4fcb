package extract

import (
	"errors"
	"strings"
	"testing"

	"github.com/rbergman/daybook/internal/ledger"
)

// buildLine assembles a full-width extract line from per-field values,
// right-padding each to its layout width.
func buildLine(t *testing.T, values map[string]string) string {
	t.Helper()
	var b strings.Builder
	for _, f := range Layout {
		width := f.End - f.Start
		v := values[f.Column]
		if len(v) > width {
			t.Fatalf("value %q for %s exceeds field width %d", v, f.Column, width)
		}
		b.WriteString(v)
		b.WriteString(strings.Repeat(" ", width-len(v)))
	}
	line := b.String()
	if len(line) != LineWidth {
		t.Fatalf("fixture line width = %d, want %d", len(line), LineWidth)
	}
	return line
}

func TestLayout_MatchesSchema(t *testing.T) {
	names := ledger.ColumnNames()
	if len(Layout) != len(names) {
		t.Fatalf("layout has %d fields, schema has %d columns", len(Layout), len(names))
	}
	for i, f := range Layout {
		if f.Column != names[i] {
			t.Errorf("layout[%d] = %q, schema column = %q", i, f.Column, names[i])
		}
	}
}

func TestLayout_Contiguous(t *testing.T) {
	prev := 0
	for _, f := range Layout {
		if f.Start != prev {
			t.Errorf("field %s starts at %d, want %d", f.Column, f.Start, prev)
		}
		if f.End <= f.Start {
			t.Errorf("field %s has non-positive width [%d:%d]", f.Column, f.Start, f.End)
		}
		prev = f.End
	}
	if prev != LineWidth {
		t.Errorf("layout ends at %d, want %d", prev, LineWidth)
	}
}

func TestDecode_FullLine(t *testing.T) {
	line := buildLine(t, map[string]string{
		"transaction_id":        "TX0001",
		"customer_id":           "CU0042",
		"customer_name":         "ACME CORP",
		"customer_addr_id":      "AD001",
		"product_id":            "PRD0007",
		"product_name":          "WIDGET DELUXE",
		"product_price":         "019.99",
		"product_quantity":      "0003",
		"status":                "ORDERED",
		"transaction_timestamp": "2026-01-05T08:30:00Z",
		"ordered_date":          "2026-01-05",
		"shipment_date":         "",
		"delivered_date":        "",
	})

	rec := Decode(line)

	if rec.TransactionID != "TX0001" {
		t.Errorf("TransactionID = %q, want %q", rec.TransactionID, "TX0001")
	}
	if rec.CustomerID != "CU0042" {
		t.Errorf("CustomerID = %q, want %q", rec.CustomerID, "CU0042")
	}
	// padding survives verbatim
	if rec.CustomerName != "ACME CORP"+strings.Repeat(" ", 11) {
		t.Errorf("CustomerName = %q, padding should be preserved", rec.CustomerName)
	}
	if rec.ProductID != "PRD0007" {
		t.Errorf("ProductID = %q, want %q", rec.ProductID, "PRD0007")
	}
	if rec.ProductPrice != "019.99" {
		t.Errorf("ProductPrice = %q, want %q", rec.ProductPrice, "019.99")
	}
	if rec.ProductQuantity != "0003" {
		t.Errorf("ProductQuantity = %q, want %q", rec.ProductQuantity, "0003")
	}
	if rec.Status != "ORDERED"+strings.Repeat(" ", 5) {
		t.Errorf("Status = %q, want right-padded ORDERED", rec.Status)
	}
	if rec.TransactionTimestamp != "2026-01-05T08:30:00Z" {
		t.Errorf("TransactionTimestamp = %q", rec.TransactionTimestamp)
	}
	if rec.OrderedDate != "2026-01-05 " {
		t.Errorf("OrderedDate = %q, want right-padded date", rec.OrderedDate)
	}
	if rec.ShipmentDate != strings.Repeat(" ", 11) {
		t.Errorf("ShipmentDate = %q, want 11 blanks", rec.ShipmentDate)
	}
	if rec.DeliveredDate != strings.Repeat(" ", 11) {
		t.Errorf("DeliveredDate = %q, want 11 blanks", rec.DeliveredDate)
	}
}

func TestDecode_ByteOffsets(t *testing.T) {
	// A line where every byte encodes its field index, so any offset
	// mistake shows up as bleed between adjacent fields.
	var b strings.Builder
	for i, f := range Layout {
		ch := byte('A' + i)
		b.WriteString(strings.Repeat(string(ch), f.End-f.Start))
	}
	rec := Decode(b.String())

	for i, f := range Layout {
		want := strings.Repeat(string(byte('A'+i)), f.End-f.Start)
		got, ok := ledger.ColumnValue(&rec, f.Column)
		if !ok {
			t.Fatalf("unknown column %s", f.Column)
		}
		if got != want {
			t.Errorf("%s = %q, want %q", f.Column, got, want)
		}
	}
}

func TestDecode_ShortLine(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"key fields only", "TX0001CU0042"},
		{"truncated mid-field", "TX0001CU0042ACME"},
		{"full minus dates", strings.Repeat("x", 116)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Decode(tt.line)

			// no panics, and fields past the end come back empty
			for _, f := range Layout {
				got, _ := ledger.ColumnValue(&rec, f.Column)
				switch {
				case f.Start >= len(tt.line):
					if got != "" {
						t.Errorf("%s = %q, want empty past end of line", f.Column, got)
					}
				case f.End > len(tt.line):
					if got != tt.line[f.Start:] {
						t.Errorf("%s = %q, want truncated %q", f.Column, got, tt.line[f.Start:])
					}
				default:
					if got != tt.line[f.Start:f.End] {
						t.Errorf("%s = %q, want %q", f.Column, got, tt.line[f.Start:f.End])
					}
				}
			}
		})
	}
}

func TestDecode_LongLine(t *testing.T) {
	line := strings.Repeat("z", LineWidth+20)
	rec := Decode(line)

	// trailing excess is ignored, last field keeps its declared width
	last := Layout[len(Layout)-1]
	if rec.DeliveredDate != line[last.Start:last.End] {
		t.Errorf("DeliveredDate = %q, want exactly [%d:%d]", rec.DeliveredDate, last.Start, last.End)
	}
}

func TestReadBatch(t *testing.T) {
	lineA := buildLine(t, map[string]string{"transaction_id": "TX0001", "customer_id": "CU0001", "product_id": "PRD0001"})
	lineB := buildLine(t, map[string]string{"transaction_id": "TX0002", "customer_id": "CU0002", "product_id": "PRD0002"})

	tests := []struct {
		name    string
		input   string
		wantIDs []string
	}{
		{
			name:    "two records trailing newline",
			input:   lineA + "\n" + lineB + "\n",
			wantIDs: []string{"TX0001", "TX0002"},
		},
		{
			name:    "no trailing newline",
			input:   lineA + "\n" + lineB,
			wantIDs: []string{"TX0001", "TX0002"},
		},
		{
			name:    "blank lines dropped",
			input:   "\n" + lineA + "\n\n" + lineB + "\n\n",
			wantIDs: []string{"TX0001", "TX0002"},
		},
		{
			name:    "crlf line endings",
			input:   lineA + "\r\n" + lineB + "\r\n",
			wantIDs: []string{"TX0001", "TX0002"},
		},
		{
			name:    "empty input",
			input:   "",
			wantIDs: nil,
		},
		{
			name:    "only blank lines",
			input:   "\n\n\n",
			wantIDs: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batch, err := ReadBatch(strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ReadBatch() error = %v", err)
			}
			if len(batch) != len(tt.wantIDs) {
				t.Fatalf("got %d records, want %d", len(batch), len(tt.wantIDs))
			}
			for i, id := range tt.wantIDs {
				if batch[i].TransactionID != id {
					t.Errorf("batch[%d].TransactionID = %q, want %q", i, batch[i].TransactionID, id)
				}
			}
		})
	}
}

func TestReadBatch_PreservesOrder(t *testing.T) {
	var input strings.Builder
	ids := []string{"TX0009", "TX0003", "TX0007", "TX0001"}
	for _, id := range ids {
		input.WriteString(buildLine(t, map[string]string{"transaction_id": id}))
		input.WriteString("\n")
	}

	batch, err := ReadBatch(strings.NewReader(input.String()))
	if err != nil {
		t.Fatalf("ReadBatch() error = %v", err)
	}
	for i, id := range ids {
		if batch[i].TransactionID != id {
			t.Errorf("batch[%d].TransactionID = %q, want %q", i, batch[i].TransactionID, id)
		}
	}
}

func TestReadBatch_OversizedLine(t *testing.T) {
	// a line past the scanner buffer cap surfaces as a DecodeError
	_, err := ReadBatch(strings.NewReader(strings.Repeat("x", 2*1024*1024)))
	if err == nil {
		t.Fatal("expected error for oversized line")
	}
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error type = %T, want *DecodeError", err)
	}
}

func TestDecodeError_Message(t *testing.T) {
	err := &DecodeError{Line: 7, Err: errors.New("boom")}
	if !strings.Contains(err.Error(), "line 7") {
		t.Errorf("Error() = %q, should name the line", err.Error())
	}
	if !errors.Is(err, err.Err) {
		t.Error("Unwrap should expose the cause")
	}
}
