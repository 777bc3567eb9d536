package server

import "github.com/harborline/store/internal/store"

type productSummaryPayload struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
}

type orderCustomerPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type orderPayload struct {
	ID          int64                   `json:"id"`
	Description string                  `json:"description"`
	Customer    orderCustomerPayload    `json:"customer"`
	Products    []productSummaryPayload `json:"products"`
}

type customerPayload struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type productPayload struct {
	ID          int64   `json:"id"`
	Description string  `json:"description"`
	Orders      []int64 `json:"orders"`
}

func orderViewPayload(view store.OrderView) orderPayload {
	products := make([]productSummaryPayload, 0, len(view.Products))
	for _, product := range view.Products {
		products = append(products, productSummaryPayload{ID: product.ID, Description: product.Description})
	}
	return orderPayload{
		ID:          view.ID,
		Description: view.Description,
		Customer:    orderCustomerPayload{ID: view.Customer.ID, Name: view.Customer.Name},
		Products:    products,
	}
}

func orderEntityPayload(order store.Order) orderPayload {
	products := make([]productSummaryPayload, 0, len(order.Products))
	for _, product := range order.Products {
		products = append(products, productSummaryPayload{ID: product.ID, Description: product.Description})
	}
	customer := orderCustomerPayload{ID: order.CustomerID}
	if order.Customer != nil {
		customer.Name = order.Customer.Name
	}
	return orderPayload{
		ID:          order.ID,
		Description: order.Description,
		Customer:    customer,
		Products:    products,
	}
}

func customerPayloads(customers []store.Customer) []customerPayload {
	payload := make([]customerPayload, 0, len(customers))
	for _, customer := range customers {
		payload = append(payload, customerPayload{ID: customer.ID, Name: customer.Name})
	}
	return payload
}
