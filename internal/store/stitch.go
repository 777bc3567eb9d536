package store

// StitchOrders joins the lean order rows with the order-product join
// rows into composite views. One view is produced per order row, in the
// input order, with its products taken from the join rows sharing the
// order id. An order with no join rows gets an empty product list,
// never nil. Runs in O(len(orders) + len(joins)) with no I/O.
func StitchOrders(orders []OrderRow, joins []ProductJoinRow) []OrderView {
	if len(orders) == 0 {
		return []OrderView{}
	}

	productsByOrder := make(map[int64][]ProductSummary, len(orders))
	for _, join := range joins {
		productsByOrder[join.OrderID] = append(productsByOrder[join.OrderID], ProductSummary{
			ID:          join.ProductID,
			Description: join.ProductDescription,
		})
	}

	views := make([]OrderView, 0, len(orders))
	for _, row := range orders {
		products := productsByOrder[row.ID]
		if products == nil {
			products = []ProductSummary{}
		}
		views = append(views, OrderView{
			ID:          row.ID,
			Description: row.Description,
			Customer:    CustomerRef{ID: row.CustomerID, Name: row.CustomerName},
			Products:    products,
		})
	}
	return views
}
