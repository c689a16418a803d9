package domain

// Product is a catalog row. Prices are integers in the smallest currency unit.
type Product struct {
	Code      string `db:"product_code" json:"code"`
	Name      string `db:"product_name" json:"name"`
	UnitPrice int64  `db:"unit_price" json:"unit_price"`
}

type Customer struct {
	ID     string `db:"customer_id"`
	Name   string `db:"customer_name"`
	Age    int    `db:"age"`
	Gender string `db:"gender"`
}

// LineInput is one cart line as submitted by the register.
type LineInput struct {
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int64  `json:"quantity"`
}

type PurchaseHeader struct {
	ID          string `db:"purchase_id" json:"header_id"`
	CustomerID  string `db:"customer_id" json:"customer_id"`
	Date        string `db:"purchase_date" json:"date"` // YYYY-MM-DD, UTC
	TotalAmount int64  `db:"total_amount" json:"total_amount"`
	CreatedAt   string `db:"created_at" json:"created_at"`
}

// PurchaseLine keeps the unit price captured at sale time, not the catalog's current one.
type PurchaseLine struct {
	HeaderID    string `db:"purchase_id" json:"-"`
	LineNo      int    `db:"line_no" json:"line_no"`
	ProductCode string `db:"product_code" json:"product_code"`
	ProductName string `db:"product_name" json:"product_name"`
	Quantity    int64  `db:"quantity" json:"quantity"`
	UnitPrice   int64  `db:"unit_price" json:"unit_price"`
	Subtotal    int64  `db:"subtotal" json:"subtotal"`
}

type CommitResult struct {
	HeaderID    string
	TotalAmount int64
	Lines       int
}

// PurchaseSummary is a committed header with its lines, for listings.
type PurchaseSummary struct {
	PurchaseHeader
	Lines []PurchaseLine `json:"items"`
}
