package store

// Customer is a buyer that orders are placed against. Names are unique
// so a repeated registration surfaces as a conflict instead of a
// silent duplicate row.
type Customer struct {
	ID     int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Name   string  `gorm:"column:name;size:190;not null;uniqueIndex"`
	Orders []Order `gorm:"foreignKey:CustomerID"`
}

// TableName provides the explicit table binding for GORM.
func (Customer) TableName() string {
	return "customers"
}

// Product is a catalog item that can appear on any number of orders.
type Product struct {
	ID          int64   `gorm:"column:id;primaryKey;autoIncrement"`
	Description string  `gorm:"column:description;size:190;not null"`
	Orders      []Order `gorm:"many2many:order_products;"`
}

// TableName provides the explicit table binding for GORM.
func (Product) TableName() string {
	return "products"
}

// Order is a customer order. The update timestamp is indexed so the
// table fingerprint aggregate stays cheap.
type Order struct {
	ID               int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Description      string    `gorm:"column:description;size:190;not null"`
	CustomerID       int64     `gorm:"column:customer_id;not null;index"`
	Customer         *Customer `gorm:"foreignKey:CustomerID"`
	CreatedAtSeconds int64     `gorm:"column:created_at_s;not null;autoCreateTime"`
	UpdatedAtSeconds int64     `gorm:"column:updated_at_s;not null;autoUpdateTime;index:idx_orders_updated_at"`
	Products         []Product `gorm:"many2many:order_products;"`
}

// TableName provides the explicit table binding for GORM.
func (Order) TableName() string {
	return "orders"
}

// OrderRow is the lean projection of one order joined to its customer.
type OrderRow struct {
	ID           int64
	Description  string
	CustomerID   int64
	CustomerName string
}

// ProductJoinRow is one (order, product) association from the join
// table, carrying the product description.
type ProductJoinRow struct {
	OrderID            int64
	ProductID          int64
	ProductDescription string
}

// ProductOrderRow is one (product, order) association from the join
// table, scanned once to back the product listing.
type ProductOrderRow struct {
	ProductID int64
	OrderID   int64
}

// ProductSummary is the per-order product entry of a stitched view.
type ProductSummary struct {
	ID          int64
	Description string
}

// CustomerRef is the embedded customer of a stitched view.
type CustomerRef struct {
	ID   int64
	Name string
}

// OrderView is the composite listing entry assembled from the two row
// scans. Products is always non-nil.
type OrderView struct {
	ID          int64
	Description string
	Customer    CustomerRef
	Products    []ProductSummary
}
