package ledger

import "testing"

func TestColumnNames(t *testing.T) {
	names := ColumnNames()
	if len(names) != 13 {
		t.Fatalf("ColumnNames() length = %d, want 13", len(names))
	}
	if names[0] != "transaction_id" {
		t.Errorf("first column = %q, want transaction_id", names[0])
	}
	if names[len(names)-1] != "delivered_date" {
		t.Errorf("last column = %q, want delivered_date", names[len(names)-1])
	}
}

func TestSetColumn(t *testing.T) {
	var r Record

	if !SetColumn(&r, "customer_name", "ACME") {
		t.Fatal("SetColumn(customer_name) = false")
	}
	if r.CustomerName != "ACME" {
		t.Errorf("CustomerName = %q, want ACME", r.CustomerName)
	}

	if SetColumn(&r, "no_such_column", "x") {
		t.Error("SetColumn should reject unknown columns")
	}
}

func TestColumnValue(t *testing.T) {
	r := Record{Status: "SHIPPED"}

	got, ok := ColumnValue(&r, "status")
	if !ok || got != "SHIPPED" {
		t.Errorf("ColumnValue(status) = %q, %v; want SHIPPED, true", got, ok)
	}

	if _, ok := ColumnValue(&r, "no_such_column"); ok {
		t.Error("ColumnValue should reject unknown columns")
	}
}

func TestRecordKey(t *testing.T) {
	r := Record{
		TransactionID: "TX0001",
		CustomerID:    "CU0001",
		ProductID:     "PRD001",
		CustomerName:  "ACME",
		Status:        "ORDERED",
	}
	k := r.Key()
	want := Key{TransactionID: "TX0001", CustomerID: "CU0001", ProductID: "PRD001"}
	if k != want {
		t.Errorf("Key() = %+v, want %+v", k, want)
	}
}
