package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound reports that a requested entity has no matching row.
	ErrNotFound = errors.New("store: entity not found")
	// ErrConflict reports that a create collided with an existing row.
	ErrConflict = errors.New("store: entity already exists")
)

// ListingRows is the read surface of the order listing subsystem: two
// full scans for the stitch path, the fingerprint aggregate for the
// freshness oracle, and the page query. Keeping it narrow lets the
// listing logic run against an in-memory fake.
type ListingRows interface {
	LeanOrderRows(ctx context.Context) ([]OrderRow, error)
	OrderProductJoinRows(ctx context.Context) ([]ProductJoinRow, error)
	OrderTableFingerprint(ctx context.Context) (rowCount int64, maxUpdatedAtSeconds int64, err error)
	OrderPage(ctx context.Context, limit, offset int) ([]Order, int64, error)
}

// RowStore extends ListingRows with the catalog read and write queries
// used by the customer and product endpoints.
type RowStore interface {
	ListingRows

	Customers(ctx context.Context) ([]Customer, error)
	CustomerPage(ctx context.Context, limit, offset int) ([]Customer, int64, error)
	CustomersByName(ctx context.Context, name string) ([]Customer, error)
	CustomerPageByName(ctx context.Context, name string, limit, offset int) ([]Customer, int64, error)
	Products(ctx context.Context) ([]Product, error)
	ProductPage(ctx context.Context, limit, offset int) ([]Product, int64, error)
	OrderIDsByProduct(ctx context.Context, productID int64) ([]int64, error)
	ProductOrderRows(ctx context.Context) ([]ProductOrderRow, error)

	OrderByID(ctx context.Context, id int64) (Order, error)
	CustomerByID(ctx context.Context, id int64) (Customer, error)
	ProductByID(ctx context.Context, id int64) (Product, error)
	ProductExists(ctx context.Context, id int64) (bool, error)

	CreateOrder(ctx context.Context, order *Order) error
	CreateCustomer(ctx context.Context, customer *Customer) error
	CreateProduct(ctx context.Context, product *Product) error
}

// gormRows backs RowStore with a GORM connection.
type gormRows struct {
	db *gorm.DB
}

// NewRowStore wraps a database handle in the RowStore query surface.
func NewRowStore(db *gorm.DB) (RowStore, error) {
	if db == nil {
		return nil, errors.New("store: database handle is required")
	}
	return &gormRows{db: db}, nil
}

const leanOrderRowsQuery = `
SELECT o.id AS id,
       o.description AS description,
       c.id AS customer_id,
       c.name AS customer_name
FROM orders o
JOIN customers c ON c.id = o.customer_id
ORDER BY o.created_at_s DESC, o.id DESC`

const orderProductJoinRowsQuery = `
SELECT op.order_id AS order_id,
       p.id AS product_id,
       p.description AS product_description
FROM order_products op
JOIN products p ON p.id = op.product_id
ORDER BY op.order_id ASC, p.id ASC`

const orderFingerprintQuery = `
SELECT COUNT(*) AS row_count,
       COALESCE(MAX(updated_at_s), 0) AS max_updated_at_s
FROM orders`

func (g *gormRows) LeanOrderRows(ctx context.Context) ([]OrderRow, error) {
	rows := make([]OrderRow, 0)
	if err := g.db.WithContext(ctx).Raw(leanOrderRowsQuery).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: lean order scan: %w", err)
	}
	return rows, nil
}

func (g *gormRows) OrderProductJoinRows(ctx context.Context) ([]ProductJoinRow, error) {
	rows := make([]ProductJoinRow, 0)
	if err := g.db.WithContext(ctx).Raw(orderProductJoinRowsQuery).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("store: order product scan: %w", err)
	}
	return rows, nil
}

func (g *gormRows) OrderTableFingerprint(ctx context.Context) (int64, int64, error) {
	var aggregate struct {
		RowCount      int64 `gorm:"column:row_count"`
		MaxUpdatedAtS int64 `gorm:"column:max_updated_at_s"`
	}
	if err := g.db.WithContext(ctx).Raw(orderFingerprintQuery).Scan(&aggregate).Error; err != nil {
		return 0, 0, fmt.Errorf("store: order fingerprint: %w", err)
	}
	return aggregate.RowCount, aggregate.MaxUpdatedAtS, nil
}

func (g *gormRows) OrderPage(ctx context.Context, limit, offset int) ([]Order, int64, error) {
	var total int64
	if err := g.db.WithContext(ctx).Model(&Order{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("store: order count: %w", err)
	}
	items := make([]Order, 0, limit)
	err := g.db.WithContext(ctx).
		Preload("Customer").
		Preload("Products").
		Order("created_at_s DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("store: order page: %w", err)
	}
	return items, total, nil
}

func (g *gormRows) Customers(ctx context.Context) ([]Customer, error) {
	items := make([]Customer, 0)
	if err := g.db.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("store: customer scan: %w", err)
	}
	return items, nil
}

func (g *gormRows) CustomerPage(ctx context.Context, limit, offset int) ([]Customer, int64, error) {
	var total int64
	if err := g.db.WithContext(ctx).Model(&Customer{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("store: customer count: %w", err)
	}
	items := make([]Customer, 0, limit)
	err := g.db.WithContext(ctx).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("store: customer page: %w", err)
	}
	return items, total, nil
}

func (g *gormRows) CustomersByName(ctx context.Context, name string) ([]Customer, error) {
	items := make([]Customer, 0)
	err := g.db.WithContext(ctx).
		Where("name LIKE ? COLLATE NOCASE", "%"+name+"%").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("store: customer search: %w", err)
	}
	return items, nil
}

func (g *gormRows) CustomerPageByName(ctx context.Context, name string, limit, offset int) ([]Customer, int64, error) {
	pattern := "%" + name + "%"
	var total int64
	err := g.db.WithContext(ctx).
		Model(&Customer{}).
		Where("name LIKE ? COLLATE NOCASE", pattern).
		Count(&total).Error
	if err != nil {
		return nil, 0, fmt.Errorf("store: customer search count: %w", err)
	}
	items := make([]Customer, 0, limit)
	err = g.db.WithContext(ctx).
		Where("name LIKE ? COLLATE NOCASE", pattern).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("store: customer search page: %w", err)
	}
	return items, total, nil
}

func (g *gormRows) Products(ctx context.Context) ([]Product, error) {
	items := make([]Product, 0)
	if err := g.db.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("store: product scan: %w", err)
	}
	return items, nil
}

func (g *gormRows) ProductPage(ctx context.Context, limit, offset int) ([]Product, int64, error) {
	var total int64
	if err := g.db.WithContext(ctx).Model(&Product{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("store: product count: %w", err)
	}
	items := make([]Product, 0, limit)
	err := g.db.WithContext(ctx).
		Order("id ASC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("store: product page: %w", err)
	}
	return items, total, nil
}

func (g *gormRows) ProductOrderRows(ctx context.Context) ([]ProductOrderRow, error) {
	rows := make([]ProductOrderRow, 0)
	err := g.db.WithContext(ctx).
		Raw("SELECT product_id, order_id FROM order_products ORDER BY product_id ASC, order_id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("store: product order scan: %w", err)
	}
	return rows, nil
}

func (g *gormRows) OrderIDsByProduct(ctx context.Context, productID int64) ([]int64, error) {
	ids := make([]int64, 0)
	err := g.db.WithContext(ctx).
		Raw("SELECT order_id FROM order_products WHERE product_id = ? ORDER BY order_id ASC", productID).
		Scan(&ids).Error
	if err != nil {
		return nil, fmt.Errorf("store: order ids by product: %w", err)
	}
	return ids, nil
}

func (g *gormRows) OrderByID(ctx context.Context, id int64) (Order, error) {
	var order Order
	err := g.db.WithContext(ctx).
		Preload("Customer").
		Preload("Products").
		Take(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("store: order by id: %w", err)
	}
	return order, nil
}

func (g *gormRows) CustomerByID(ctx context.Context, id int64) (Customer, error) {
	var customer Customer
	err := g.db.WithContext(ctx).Take(&customer, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Customer{}, ErrNotFound
	}
	if err != nil {
		return Customer{}, fmt.Errorf("store: customer by id: %w", err)
	}
	return customer, nil
}

func (g *gormRows) ProductByID(ctx context.Context, id int64) (Product, error) {
	var product Product
	err := g.db.WithContext(ctx).Take(&product, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Product{}, ErrNotFound
	}
	if err != nil {
		return Product{}, fmt.Errorf("store: product by id: %w", err)
	}
	return product, nil
}

func (g *gormRows) ProductExists(ctx context.Context, id int64) (bool, error) {
	var count int64
	if err := g.db.WithContext(ctx).Model(&Product{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, fmt.Errorf("store: product exists: %w", err)
	}
	return count > 0, nil
}

func (g *gormRows) CreateOrder(ctx context.Context, order *Order) error {
	if err := g.db.WithContext(ctx).Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return fmt.Errorf("store: create order: %w", err)
	}
	return nil
}

func (g *gormRows) CreateCustomer(ctx context.Context, customer *Customer) error {
	if err := g.db.WithContext(ctx).Create(customer).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return fmt.Errorf("store: create customer: %w", err)
	}
	return nil
}

func (g *gormRows) CreateProduct(ctx context.Context, product *Product) error {
	if err := g.db.WithContext(ctx).Create(product).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return fmt.Errorf("store: create product: %w", err)
	}
	return nil
}
