package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	errMissingRowStore = errors.New("row store is required")
	noOpLogger         = zap.NewNop()
)

// StoreError carries an operation.reason code alongside its cause so
// handlers and logs can report failures uniformly.
type StoreError struct {
	code string
	err  error
}

func (e *StoreError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *StoreError) Unwrap() error {
	return e.err
}

// Code returns the operation.reason identifier.
func (e *StoreError) Code() string {
	return e.code
}

const (
	opServiceNew     = "store.service.new"
	opListOrders     = "store.list_orders"
	opOrderPage      = "store.order_page"
	opCustomerList   = "store.list_customers"
	opCustomerSearch = "store.search_customers"
	opProductList    = "store.list_products"
	opGetOrder       = "store.get_order"
	opGetCustomer    = "store.get_customer"
	opGetProduct     = "store.get_product"
	opCreateOrder    = "store.create_order"
	opCreateCustomer = "store.create_customer"
	opCreateProduct  = "store.create_product"
)

func newStoreError(operation, reason string, cause error) error {
	return &StoreError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}

// ServiceConfig describes the dependencies of the store service.
type ServiceConfig struct {
	Rows   RowStore
	Logger *zap.Logger
}

// Service exposes the catalog listing and CRUD operations over a row
// store. It holds no mutable state; every method is safe for
// concurrent use.
type Service struct {
	rows   RowStore
	oracle *Oracle
	logger *zap.Logger
}

// NewService validates the configuration and constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Rows == nil {
		return nil, newStoreError(opServiceNew, "missing_row_store", errMissingRowStore)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	oracle, err := NewOracle(cfg.Rows)
	if err != nil {
		return nil, newStoreError(opServiceNew, "missing_row_store", err)
	}
	return &Service{rows: cfg.Rows, oracle: oracle, logger: logger}, nil
}

func (s *Service) logError(operation, reason string, err error) {
	s.logger.Error("store operation failed",
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.Error(err))
}

// CurrentSnapshot computes the order table fingerprint for this request.
func (s *Service) CurrentSnapshot(ctx context.Context) (Snapshot, error) {
	snapshot, err := s.oracle.Current(ctx)
	if err != nil {
		s.logError(opListOrders, "fingerprint_failed", err)
		return Snapshot{}, newStoreError(opListOrders, "fingerprint_failed", err)
	}
	return snapshot, nil
}

// ListOrdersWithProducts assembles the full order listing from two row
// scans instead of one product fetch per order. When the order scan
// comes back empty the join scan is skipped entirely.
//
// The fingerprint computed by CurrentSnapshot and the scans here are
// separate queries; a write landing between them can leave the body one
// step ahead of the tag attached to it. That staleness window is
// bounded by the request and is accepted rather than closed with a
// transaction.
func (s *Service) ListOrdersWithProducts(ctx context.Context) ([]OrderView, error) {
	orders, err := s.rows.LeanOrderRows(ctx)
	if err != nil {
		s.logError(opListOrders, "order_scan_failed", err)
		return nil, newStoreError(opListOrders, "order_scan_failed", err)
	}
	if len(orders) == 0 {
		return []OrderView{}, nil
	}
	joins, err := s.rows.OrderProductJoinRows(ctx)
	if err != nil {
		s.logError(opListOrders, "join_scan_failed", err)
		return nil, newStoreError(opListOrders, "join_scan_failed", err)
	}
	return StitchOrders(orders, joins), nil
}

// OrderPage returns one page of orders plus the total order count.
func (s *Service) OrderPage(ctx context.Context, limit, offset int) ([]Order, int64, error) {
	items, total, err := s.rows.OrderPage(ctx, limit, offset)
	if err != nil {
		return nil, 0, newStoreError(opOrderPage, "page_failed", err)
	}
	return items, total, nil
}

// Customers returns every customer.
func (s *Service) Customers(ctx context.Context) ([]Customer, error) {
	items, err := s.rows.Customers(ctx)
	if err != nil {
		return nil, newStoreError(opCustomerList, "scan_failed", err)
	}
	return items, nil
}

// CustomerPage returns one page of customers plus the total count.
func (s *Service) CustomerPage(ctx context.Context, limit, offset int) ([]Customer, int64, error) {
	items, total, err := s.rows.CustomerPage(ctx, limit, offset)
	if err != nil {
		return nil, 0, newStoreError(opCustomerList, "page_failed", err)
	}
	return items, total, nil
}

// SearchCustomers returns every customer whose name contains the given
// fragment, case-insensitively.
func (s *Service) SearchCustomers(ctx context.Context, name string) ([]Customer, error) {
	items, err := s.rows.CustomersByName(ctx, strings.TrimSpace(name))
	if err != nil {
		return nil, newStoreError(opCustomerSearch, "scan_failed", err)
	}
	return items, nil
}

// SearchCustomerPage is the paginated variant of SearchCustomers.
func (s *Service) SearchCustomerPage(ctx context.Context, name string, limit, offset int) ([]Customer, int64, error) {
	items, total, err := s.rows.CustomerPageByName(ctx, strings.TrimSpace(name), limit, offset)
	if err != nil {
		return nil, 0, newStoreError(opCustomerSearch, "page_failed", err)
	}
	return items, total, nil
}

// Products returns every product.
func (s *Service) Products(ctx context.Context) ([]Product, error) {
	items, err := s.rows.Products(ctx)
	if err != nil {
		return nil, newStoreError(opProductList, "scan_failed", err)
	}
	return items, nil
}

// ProductPage returns one page of products plus the total count.
func (s *Service) ProductPage(ctx context.Context, limit, offset int) ([]Product, int64, error) {
	items, total, err := s.rows.ProductPage(ctx, limit, offset)
	if err != nil {
		return nil, 0, newStoreError(opProductList, "page_failed", err)
	}
	return items, total, nil
}

// ProductOrderIndex scans the join table once and groups the order ids
// of every product, so listing N products costs one query instead of
// one membership lookup per product.
func (s *Service) ProductOrderIndex(ctx context.Context) (map[int64][]int64, error) {
	rows, err := s.rows.ProductOrderRows(ctx)
	if err != nil {
		return nil, newStoreError(opProductList, "order_index_failed", err)
	}
	index := make(map[int64][]int64, len(rows))
	for _, row := range rows {
		index[row.ProductID] = append(index[row.ProductID], row.OrderID)
	}
	return index, nil
}

// OrderIDsForProduct lists the ids of orders containing a product.
func (s *Service) OrderIDsForProduct(ctx context.Context, productID int64) ([]int64, error) {
	ids, err := s.rows.OrderIDsByProduct(ctx, productID)
	if err != nil {
		return nil, newStoreError(opGetProduct, "order_ids_failed", err)
	}
	return ids, nil
}

// GetOrder loads a single order with its customer and products.
func (s *Service) GetOrder(ctx context.Context, id int64) (Order, error) {
	order, err := s.rows.OrderByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Order{}, err
	}
	if err != nil {
		return Order{}, newStoreError(opGetOrder, "load_failed", err)
	}
	return order, nil
}

// GetCustomer loads a single customer.
func (s *Service) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	customer, err := s.rows.CustomerByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Customer{}, err
	}
	if err != nil {
		return Customer{}, newStoreError(opGetCustomer, "load_failed", err)
	}
	return customer, nil
}

// GetProduct loads a single product.
func (s *Service) GetProduct(ctx context.Context, id int64) (Product, error) {
	product, err := s.rows.ProductByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Product{}, err
	}
	if err != nil {
		return Product{}, newStoreError(opGetProduct, "load_failed", err)
	}
	return product, nil
}

// CreateOrder persists a new order after checking the customer exists.
// The referenced customer is returned alongside the stored order.
func (s *Service) CreateOrder(ctx context.Context, description string, customerID int64) (Order, error) {
	customer, err := s.rows.CustomerByID(ctx, customerID)
	if errors.Is(err, ErrNotFound) {
		return Order{}, newStoreError(opCreateOrder, "unknown_customer", err)
	}
	if err != nil {
		return Order{}, newStoreError(opCreateOrder, "customer_lookup_failed", err)
	}
	order := Order{Description: description, CustomerID: customer.ID}
	if err := s.rows.CreateOrder(ctx, &order); err != nil {
		return Order{}, newStoreError(opCreateOrder, "insert_failed", err)
	}
	order.Customer = &customer
	return order, nil
}

// CreateCustomer persists a new customer.
func (s *Service) CreateCustomer(ctx context.Context, name string) (Customer, error) {
	customer := Customer{Name: name}
	if err := s.rows.CreateCustomer(ctx, &customer); err != nil {
		if errors.Is(err, ErrConflict) {
			return Customer{}, err
		}
		return Customer{}, newStoreError(opCreateCustomer, "insert_failed", err)
	}
	return customer, nil
}

// CreateProduct persists a new product. A request naming an id that is
// already taken is a conflict; the stored row always gets a fresh id.
func (s *Service) CreateProduct(ctx context.Context, requestedID int64, description string) (Product, error) {
	if requestedID != 0 {
		exists, err := s.rows.ProductExists(ctx, requestedID)
		if err != nil {
			return Product{}, newStoreError(opCreateProduct, "exists_check_failed", err)
		}
		if exists {
			return Product{}, ErrConflict
		}
	}
	product := Product{Description: description}
	if err := s.rows.CreateProduct(ctx, &product); err != nil {
		if errors.Is(err, ErrConflict) {
			return Product{}, err
		}
		return Product{}, newStoreError(opCreateProduct, "insert_failed", err)
	}
	return product, nil
}
