// Package ledger defines the versioned transaction ledger: the record and
// row types, the store contract, and its PostgreSQL and in-memory drivers.
//
// The ledger is append-only. Rows are created by insertion and are never
// updated in place except to flip the active indicator from Y to N; no row
// is ever deleted. Each row carries a store-assigned sequence number that
// is strictly increasing in insertion order and serves as the row's
// identity.
package ledger

// Record is one transaction extract record. All fields are verbatim
// fixed-width slices of the source line; numeric-looking fields stay text
// and padding is preserved.
type Record struct {
	TransactionID        string `json:"transactionId"`
	CustomerID           string `json:"customerId"`
	CustomerName         string `json:"customerName"`
	CustomerAddrID       string `json:"customerAddrId"`
	ProductID            string `json:"productId"`
	ProductName          string `json:"productName"`
	ProductPrice         string `json:"productPrice"`
	ProductQuantity      string `json:"productQuantity"`
	Status               string `json:"status"`
	TransactionTimestamp string `json:"transactionTimestamp"`
	OrderedDate          string `json:"orderedDate"`
	ShipmentDate         string `json:"shipmentDate"`
	DeliveredDate        string `json:"deliveredDate"`
}

// Key is the business key identifying one logical entity across versions.
// Matching during reconciliation considers these three fields only.
type Key struct {
	TransactionID string `json:"transactionId"`
	CustomerID    string `json:"customerId"`
	ProductID     string `json:"productId"`
}

// Key returns the record's business key.
func (r Record) Key() Key {
	return Key{
		TransactionID: r.TransactionID,
		CustomerID:    r.CustomerID,
		ProductID:     r.ProductID,
	}
}

// Row is one physical ledger row: a record version plus its identity and
// lifecycle state.
type Row struct {
	Sequence int64  `json:"sequence"`
	Record   Record `json:"record"`
	Active   bool   `json:"active"`
}

// Key returns the business key of the row's record.
func (w Row) Key() Key { return w.Record.Key() }
