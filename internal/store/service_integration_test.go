package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func openTestDatabase(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:store_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&Customer{}, &Product{}, &Order{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func newSQLiteService(t *testing.T, db *gorm.DB) *Service {
	t.Helper()
	rows, err := NewRowStore(db)
	if err != nil {
		t.Fatalf("failed to build row store: %v", err)
	}
	service, err := NewService(ServiceConfig{Rows: rows, Logger: zap.NewNop()})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service
}

func seedCustomer(t *testing.T, db *gorm.DB, name string) Customer {
	t.Helper()
	customer := Customer{Name: name}
	if err := db.Create(&customer).Error; err != nil {
		t.Fatalf("failed to seed customer: %v", err)
	}
	return customer
}

func seedOrder(t *testing.T, db *gorm.DB, customerID, createdAt int64, description string) Order {
	t.Helper()
	order := Order{
		Description:      description,
		CustomerID:       customerID,
		CreatedAtSeconds: createdAt,
		UpdatedAtSeconds: createdAt,
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("failed to seed order: %v", err)
	}
	return order
}

func seedProduct(t *testing.T, db *gorm.DB, description string) Product {
	t.Helper()
	product := Product{Description: description}
	if err := db.Create(&product).Error; err != nil {
		t.Fatalf("failed to seed product: %v", err)
	}
	return product
}

func attachProduct(t *testing.T, db *gorm.DB, orderID, productID int64) {
	t.Helper()
	if err := db.Exec("INSERT INTO order_products (order_id, product_id) VALUES (?, ?)", orderID, productID).Error; err != nil {
		t.Fatalf("failed to attach product: %v", err)
	}
}

func TestLeanOrderRowsNewestFirstWithIDTieBreak(t *testing.T) {
	db := openTestDatabase(t)
	customer := seedCustomer(t, db, "Acme")
	first := seedOrder(t, db, customer.ID, 100, "oldest")
	second := seedOrder(t, db, customer.ID, 200, "newer")
	third := seedOrder(t, db, customer.ID, 200, "newest tie")

	rows, err := NewRowStore(db)
	if err != nil {
		t.Fatalf("failed to build row store: %v", err)
	}
	leanRows, err := rows.LeanOrderRows(context.Background())
	if err != nil {
		t.Fatalf("unexpected scan error: %v", err)
	}

	if len(leanRows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(leanRows))
	}
	wantIDs := []int64{third.ID, second.ID, first.ID}
	for position, wantID := range wantIDs {
		if leanRows[position].ID != wantID {
			t.Fatalf("unexpected row order: got %+v, want ids %v", leanRows, wantIDs)
		}
	}
	if leanRows[0].CustomerName != "Acme" {
		t.Fatalf("expected customer name on lean row, got %+v", leanRows[0])
	}
}

func TestListOrdersWithProductsAgainstSQLite(t *testing.T) {
	db := openTestDatabase(t)
	customer := seedCustomer(t, db, "Acme")
	orderA := seedOrder(t, db, customer.ID, 100, "Order A")
	orderB := seedOrder(t, db, customer.ID, 200, "Order B")
	widget := seedProduct(t, db, "Widget")
	gadget := seedProduct(t, db, "Gadget")
	attachProduct(t, db, orderA.ID, widget.ID)
	attachProduct(t, db, orderA.ID, gadget.ID)

	service := newSQLiteService(t, db)
	views, err := service.ListOrdersWithProducts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	if views[0].ID != orderB.ID {
		t.Fatalf("expected newest order first, got %+v", views[0])
	}
	if len(views[0].Products) != 0 {
		t.Fatalf("expected no products on order B, got %+v", views[0].Products)
	}
	if views[0].Products == nil {
		t.Fatalf("expected empty products slice, got nil")
	}
	if len(views[1].Products) != 2 {
		t.Fatalf("expected 2 products on order A, got %+v", views[1].Products)
	}
	if views[1].Products[0].ID != widget.ID || views[1].Products[1].ID != gadget.ID {
		t.Fatalf("expected products ordered by product id, got %+v", views[1].Products)
	}
}

func TestSnapshotStableUntilTableChanges(t *testing.T) {
	db := openTestDatabase(t)
	customer := seedCustomer(t, db, "Acme")
	seedOrder(t, db, customer.ID, 100, "Order A")

	service := newSQLiteService(t, db)

	first, err := service.CurrentSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected snapshot error: %v", err)
	}
	second, err := service.CurrentSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected snapshot error: %v", err)
	}
	if first != second {
		t.Fatalf("expected stable snapshot, got %+v then %+v", first, second)
	}

	seedOrder(t, db, customer.ID, 200, "Order B")

	third, err := service.CurrentSnapshot(context.Background())
	if err != nil {
		t.Fatalf("unexpected snapshot error: %v", err)
	}
	if third.Tag == first.Tag {
		t.Fatalf("expected tag to change after insert")
	}
	if third.LastModified != 200*1000 {
		t.Fatalf("unexpected last modified: %d", third.LastModified)
	}
}

func TestOrderPageReturnsWindowAndTotal(t *testing.T) {
	db := openTestDatabase(t)
	customer := seedCustomer(t, db, "Acme")
	for orderIndex := int64(1); orderIndex <= 7; orderIndex++ {
		seedOrder(t, db, customer.ID, 100+orderIndex, fmt.Sprintf("order %d", orderIndex))
	}

	service := newSQLiteService(t, db)
	items, total, err := service.OrderPage(context.Background(), 3, 3)
	if err != nil {
		t.Fatalf("unexpected page error: %v", err)
	}
	if total != 7 {
		t.Fatalf("expected total 7, got %d", total)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	// Newest first: page two of three holds orders 4..2.
	if items[0].Description != "order 4" {
		t.Fatalf("unexpected page window: %+v", items)
	}
	if items[0].Customer == nil || items[0].Customer.Name != "Acme" {
		t.Fatalf("expected customer preloaded, got %+v", items[0].Customer)
	}
}

func TestGetOrderNotFound(t *testing.T) {
	db := openTestDatabase(t)
	service := newSQLiteService(t, db)

	_, err := service.GetOrder(context.Background(), 42)
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSearchCustomersIsCaseInsensitive(t *testing.T) {
	db := openTestDatabase(t)
	seedCustomer(t, db, "Bob Smith")
	seedCustomer(t, db, "Alice Jones")

	service := newSQLiteService(t, db)
	matches, err := service.SearchCustomers(context.Background(), "bob")
	if err != nil {
		t.Fatalf("unexpected search error: %v", err)
	}
	if len(matches) != 1 || matches[0].Name != "Bob Smith" {
		t.Fatalf("unexpected matches: %+v", matches)
	}
}

func TestCreateCustomerRejectsDuplicateName(t *testing.T) {
	db := openTestDatabase(t)
	seedCustomer(t, db, "Acme")

	service := newSQLiteService(t, db)
	_, err := service.CreateCustomer(context.Background(), "Acme")
	if err != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestProductOrderIndexGroupsByProduct(t *testing.T) {
	db := openTestDatabase(t)
	customer := seedCustomer(t, db, "Acme")
	orderA := seedOrder(t, db, customer.ID, 100, "Order A")
	orderB := seedOrder(t, db, customer.ID, 200, "Order B")
	widget := seedProduct(t, db, "Widget")
	gadget := seedProduct(t, db, "Gadget")
	attachProduct(t, db, orderA.ID, widget.ID)
	attachProduct(t, db, orderB.ID, widget.ID)
	attachProduct(t, db, orderA.ID, gadget.ID)

	service := newSQLiteService(t, db)
	index, err := service.ProductOrderIndex(context.Background())
	if err != nil {
		t.Fatalf("unexpected index error: %v", err)
	}

	widgetOrders := index[widget.ID]
	if len(widgetOrders) != 2 || widgetOrders[0] != orderA.ID || widgetOrders[1] != orderB.ID {
		t.Fatalf("unexpected widget membership: %v", widgetOrders)
	}
	gadgetOrders := index[gadget.ID]
	if len(gadgetOrders) != 1 || gadgetOrders[0] != orderA.ID {
		t.Fatalf("unexpected gadget membership: %v", gadgetOrders)
	}
	if _, present := index[widget.ID+gadget.ID]; present {
		t.Fatalf("unexpected entry for an unknown product")
	}
}

func TestCreateProductRejectsTakenID(t *testing.T) {
	db := openTestDatabase(t)
	existing := seedProduct(t, db, "Widget")

	service := newSQLiteService(t, db)
	_, err := service.CreateProduct(context.Background(), existing.ID, "Duplicate")
	if err != ErrConflict {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}
