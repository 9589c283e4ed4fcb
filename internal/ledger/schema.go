package ledger

// schema.go is the single source of truth for the record's column set.
//
// The bindings below drive three things by column name rather than by
// position: the fixed-width decoder's assignment targets, the INSERT
// parameter list of the Postgres store, and name-based scanning of result
// rows. Adding a field means adding one binding here (plus its byte range
// in the extract layout); nothing keeps a parallel column-order list in
// sync by hand.

// columnBinding ties a physical column name to the Record field backing it.
type columnBinding struct {
	Name string
	Ref  func(*Record) *string
}

// recordColumns lists the record columns in physical table order.
var recordColumns = []columnBinding{
	{"transaction_id", func(r *Record) *string { return &r.TransactionID }},
	{"customer_id", func(r *Record) *string { return &r.CustomerID }},
	{"customer_name", func(r *Record) *string { return &r.CustomerName }},
	{"customer_addr_id", func(r *Record) *string { return &r.CustomerAddrID }},
	{"product_id", func(r *Record) *string { return &r.ProductID }},
	{"product_name", func(r *Record) *string { return &r.ProductName }},
	{"product_price", func(r *Record) *string { return &r.ProductPrice }},
	{"product_quantity", func(r *Record) *string { return &r.ProductQuantity }},
	{"status", func(r *Record) *string { return &r.Status }},
	{"transaction_timestamp", func(r *Record) *string { return &r.TransactionTimestamp }},
	{"ordered_date", func(r *Record) *string { return &r.OrderedDate }},
	{"shipment_date", func(r *Record) *string { return &r.ShipmentDate }},
	{"delivered_date", func(r *Record) *string { return &r.DeliveredDate }},
}

// ColumnNames returns the record column names in table order.
func ColumnNames() []string {
	names := make([]string, len(recordColumns))
	for i, c := range recordColumns {
		names[i] = c.Name
	}
	return names
}

// SetColumn assigns value to the record field bound to the named column.
// Returns false if the column is unknown.
func SetColumn(r *Record, column, value string) bool {
	for _, c := range recordColumns {
		if c.Name == column {
			*c.Ref(r) = value
			return true
		}
	}
	return false
}

// ColumnValue returns the record field bound to the named column.
func ColumnValue(r *Record, column string) (string, bool) {
	for _, c := range recordColumns {
		if c.Name == column {
			return *c.Ref(r), true
		}
	}
	return "", false
}

// columnRefs returns pointers to the record's fields in the order given by
// names. Unknown names yield a throwaway destination so callers can scan
// result sets that carry extra columns.
func columnRefs(r *Record, names []string) []any {
	refs := make([]any, len(names))
	for i, name := range names {
		var dst *string
		for _, c := range recordColumns {
			if c.Name == name {
				dst = c.Ref(r)
				break
			}
		}
		if dst == nil {
			dst = new(string)
		}
		refs[i] = dst
	}
	return refs
}
