package store

import (
	"context"
	"errors"
	"testing"
)

type fakeListingRows struct {
	RowStore
	orders        []OrderRow
	joins         []ProductJoinRow
	ordersErr     error
	joinsErr      error
	joinScanCalls int
}

func (f *fakeListingRows) LeanOrderRows(ctx context.Context) ([]OrderRow, error) {
	return f.orders, f.ordersErr
}

func (f *fakeListingRows) OrderProductJoinRows(ctx context.Context) ([]ProductJoinRow, error) {
	f.joinScanCalls++
	return f.joins, f.joinsErr
}

func (f *fakeListingRows) OrderTableFingerprint(ctx context.Context) (int64, int64, error) {
	return int64(len(f.orders)), 0, nil
}

func newFakeService(t *testing.T, rows RowStore) *Service {
	t.Helper()
	service, err := NewService(ServiceConfig{Rows: rows})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return service
}

func TestNewServiceRequiresRowStore(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	if err == nil {
		t.Fatalf("expected construction to fail without a row store")
	}
}

func TestListOrdersSkipsJoinScanWhenNoOrders(t *testing.T) {
	rows := &fakeListingRows{}
	service := newFakeService(t, rows)

	views, err := service.ListOrdersWithProducts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if views == nil || len(views) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", views)
	}
	if rows.joinScanCalls != 0 {
		t.Fatalf("expected join scan to be skipped, called %d times", rows.joinScanCalls)
	}
}

func TestListOrdersStitchesBothScans(t *testing.T) {
	rows := &fakeListingRows{
		orders: []OrderRow{
			{ID: 2, Description: "Order B", CustomerID: 10, CustomerName: "Acme"},
			{ID: 1, Description: "Order A", CustomerID: 10, CustomerName: "Acme"},
		},
		joins: []ProductJoinRow{
			{OrderID: 1, ProductID: 100, ProductDescription: "Widget"},
		},
	}
	service := newFakeService(t, rows)

	views, err := service.ListOrdersWithProducts(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("expected 2 views, got %d", len(views))
	}
	if views[0].ID != 2 || len(views[0].Products) != 0 {
		t.Fatalf("unexpected first view: %+v", views[0])
	}
	if views[1].ID != 1 || len(views[1].Products) != 1 {
		t.Fatalf("unexpected second view: %+v", views[1])
	}
	if rows.joinScanCalls != 1 {
		t.Fatalf("expected exactly one join scan, got %d", rows.joinScanCalls)
	}
}

func TestListOrdersWrapsOrderScanFailure(t *testing.T) {
	rows := &fakeListingRows{ordersErr: errors.New("connection reset")}
	service := newFakeService(t, rows)

	_, err := service.ListOrdersWithProducts(context.Background())
	if err == nil {
		t.Fatalf("expected scan failure to propagate")
	}
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected a StoreError, got %T", err)
	}
	if storeErr.Code() != "store.list_orders.order_scan_failed" {
		t.Fatalf("unexpected error code: %s", storeErr.Code())
	}
}

func TestListOrdersWrapsJoinScanFailure(t *testing.T) {
	rows := &fakeListingRows{
		orders:   []OrderRow{{ID: 1, Description: "Order A", CustomerID: 10, CustomerName: "Acme"}},
		joinsErr: errors.New("connection reset"),
	}
	service := newFakeService(t, rows)

	_, err := service.ListOrdersWithProducts(context.Background())
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected a StoreError, got %v", err)
	}
	if storeErr.Code() != "store.list_orders.join_scan_failed" {
		t.Fatalf("unexpected error code: %s", storeErr.Code())
	}
}
