package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/harborline/store/internal/store"
)

var errMissingStoreService = errors.New("store service dependency required")

// Dependencies carries everything the HTTP layer needs.
type Dependencies struct {
	StoreService *store.Service
	Logger       *zap.Logger
}

// NewHTTPHandler builds the gin router for the store API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.StoreService == nil {
		return nil, errMissingStoreService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware())

	handler := &httpHandler{
		storeService: deps.StoreService,
		logger:       logger,
	}

	router.GET("/healthz", handler.handleHealthz)

	router.GET("/order", handler.handleListOrders)
	router.POST("/order", handler.handleCreateOrder)
	router.GET("/order/:id", handler.handleGetOrder)

	router.GET("/customer", handler.handleListCustomers)
	router.GET("/customer/search", handler.handleSearchCustomers)
	router.POST("/customer", handler.handleCreateCustomer)
	router.GET("/customer/:id", handler.handleGetCustomer)

	router.GET("/product", handler.handleListProducts)
	router.POST("/product", handler.handleCreateProduct)
	router.GET("/product/:id", handler.handleGetProduct)

	return router, nil
}

// corsMiddleware opens the API to any origin without credentials and
// exposes the pagination and freshness headers to browser callers.
// Preflight results may be cached for an hour.
func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowAllOrigins:  true,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "If-None-Match", "If-Modified-Since"},
		ExposeHeaders:    []string{"X-Total-Count", "Link", "ETag", "Last-Modified"},
		AllowCredentials: false,
		MaxAge:           time.Hour,
	})
}

type httpHandler struct {
	storeService *store.Service
	logger       *zap.Logger
}

func (h *httpHandler) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleListOrders is the listing coordinator. No limit parameter (or
// limit=0) selects the conditional-cache-aware full listing; a positive
// limit selects the paginated path with navigation links.
func (h *httpHandler) handleListOrders(c *gin.Context) {
	limit, offset, paginated, ok := h.pageParams(c)
	if !ok {
		return
	}

	if !paginated {
		h.respondUnpaginatedOrders(c)
		return
	}

	pageIndex := offset / limit
	items, total, err := h.storeService.OrderPage(c.Request.Context(), limit, pageIndex*limit)
	if err != nil {
		h.respondStorageError(c, err)
		return
	}

	payload := make([]orderPayload, 0, len(items))
	for _, item := range items {
		payload = append(payload, orderEntityPayload(item))
	}

	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	c.Header("Link", store.FormatLinkHeader(store.BuildLinks(limit, offset, total, c.Request.URL)))
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) respondUnpaginatedOrders(c *gin.Context) {
	snapshot, err := h.storeService.CurrentSnapshot(c.Request.Context())
	if err != nil {
		h.respondStorageError(c, err)
		return
	}

	ifNoneMatch := c.GetHeader("If-None-Match")
	ifModifiedSince := int64(-1)
	if raw := c.GetHeader("If-Modified-Since"); raw != "" {
		if parsed, parseErr := http.ParseTime(raw); parseErr == nil {
			ifModifiedSince = parsed.UnixMilli()
		}
	}

	c.Header("ETag", snapshot.Tag)
	c.Header("Last-Modified", httpDate(snapshot.LastModified))

	if store.MatchesConditional(ifNoneMatch, ifModifiedSince, snapshot) {
		c.Status(http.StatusNotModified)
		return
	}

	views, err := h.storeService.ListOrdersWithProducts(c.Request.Context())
	if err != nil {
		h.respondStorageError(c, err)
		return
	}

	payload := make([]orderPayload, 0, len(views))
	for _, view := range views {
		payload = append(payload, orderViewPayload(view))
	}

	// Header exposure for browser callers is handled centrally by the
	// CORS middleware; setting it here again would shadow that list.
	c.Header("X-Total-Count", strconv.Itoa(len(payload)))
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleGetOrder(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	order, err := h.storeService.GetOrder(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		h.respondStorageError(c, err)
		return
	}
	c.JSON(http.StatusOK, orderEntityPayload(order))
}

type createOrderRequest struct {
	Description string `json:"description"`
	CustomerID  int64  `json:"customer_id"`
}

func (h *httpHandler) handleCreateOrder(c *gin.Context) {
	var request createOrderRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.CustomerID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	order, err := h.storeService.CreateOrder(c.Request.Context(), request.Description, request.CustomerID)
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown_customer"})
		return
	}
	if err != nil {
		h.respondStorageError(c, err)
		return
	}
	c.Header("Location", "/order/"+strconv.FormatInt(order.ID, 10))
	c.JSON(http.StatusCreated, orderEntityPayload(order))
}

func (h *httpHandler) handleListCustomers(c *gin.Context) {
	limit, offset, paginated, ok := h.pageParams(c)
	if !ok {
		return
	}

	if !paginated {
		customers, err := h.storeService.Customers(c.Request.Context())
		if err != nil {
			h.respondStorageError(c, err)
			return
		}
		c.JSON(http.StatusOK, customerPayloads(customers))
		return
	}

	pageIndex := offset / limit
	customers, total, err := h.storeService.CustomerPage(c.Request.Context(), limit, pageIndex*limit)
	if err != nil {
		h.respondStorageError(c, err)
		return
	}
	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	c.Header("Link", store.FormatLinkHeader(store.BuildLinks(limit, offset, total, c.Request.URL)))
	c.JSON(http.StatusOK, customerPayloads(customers))
}

func (h *httpHandler) handleSearchCustomers(c *gin.Context) {
	name := c.Query("name")
	limit, offset, paginated, ok := h.pageParams(c)
	if !ok {
		return
	}

	if !paginated {
		customers, err := h.storeService.SearchCustomers(c.Request.Context(), name)
		if err != nil {
			h.respondStorageError(c, err)
			return
		}
		c.JSON(http.StatusOK, customerPayloads(customers))
		return
	}

	pageIndex := offset / limit
	customers, total, err := h.storeService.SearchCustomerPage(c.Request.Context(), name, limit, pageIndex*limit)
	if err != nil {
		h.respondStorageError(c, err)
		return
	}
	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	c.Header("Link", store.FormatLinkHeader(store.BuildLinks(limit, offset, total, c.Request.URL)))
	c.JSON(http.StatusOK, customerPayloads(customers))
}

func (h *httpHandler) handleGetCustomer(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	customer, err := h.storeService.GetCustomer(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		h.respondStorageError(c, err)
		return
	}
	c.JSON(http.StatusOK, customerPayload{ID: customer.ID, Name: customer.Name})
}

type createCustomerRequest struct {
	Name string `json:"name"`
}

func (h *httpHandler) handleCreateCustomer(c *gin.Context) {
	var request createCustomerRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	customer, err := h.storeService.CreateCustomer(c.Request.Context(), request.Name)
	if errors.Is(err, store.ErrConflict) {
		c.Status(http.StatusConflict)
		return
	}
	if err != nil {
		h.respondStorageError(c, err)
		return
	}
	c.Header("Location", "/customer/"+strconv.FormatInt(customer.ID, 10))
	c.JSON(http.StatusCreated, customerPayload{ID: customer.ID, Name: customer.Name})
}

func (h *httpHandler) handleListProducts(c *gin.Context) {
	limit, offset, paginated, ok := h.pageParams(c)
	if !ok {
		return
	}

	if !paginated {
		products, err := h.storeService.Products(c.Request.Context())
		if err != nil {
			h.respondStorageError(c, err)
			return
		}
		payload, ok := h.productPayloads(c, products)
		if !ok {
			return
		}
		// The full product listing still reports its size, but carries
		// no navigation links.
		c.Header("X-Total-Count", strconv.Itoa(len(products)))
		c.JSON(http.StatusOK, payload)
		return
	}

	pageIndex := offset / limit
	products, total, err := h.storeService.ProductPage(c.Request.Context(), limit, pageIndex*limit)
	if err != nil {
		h.respondStorageError(c, err)
		return
	}
	payload, ok := h.productPayloads(c, products)
	if !ok {
		return
	}
	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	c.Header("Link", store.FormatLinkHeader(store.BuildLinks(limit, offset, total, c.Request.URL)))
	c.JSON(http.StatusOK, payload)
}

func (h *httpHandler) handleGetProduct(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	product, err := h.storeService.GetProduct(c.Request.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		c.Status(http.StatusNotFound)
		return
	}
	if err != nil {
		h.respondStorageError(c, err)
		return
	}
	orderIDs, err := h.storeService.OrderIDsForProduct(c.Request.Context(), product.ID)
	if err != nil {
		h.respondStorageError(c, err)
		return
	}
	c.JSON(http.StatusOK, productPayload{ID: product.ID, Description: product.Description, Orders: orderIDs})
}

type createProductRequest struct {
	ID          int64  `json:"id"`
	Description string `json:"description"`
}

func (h *httpHandler) handleCreateProduct(c *gin.Context) {
	var request createProductRequest
	if err := c.ShouldBindJSON(&request); err != nil || request.Description == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	product, err := h.storeService.CreateProduct(c.Request.Context(), request.ID, request.Description)
	if errors.Is(err, store.ErrConflict) {
		c.Status(http.StatusConflict)
		return
	}
	if err != nil {
		h.respondStorageError(c, err)
		return
	}
	c.Header("Location", "/product/"+strconv.FormatInt(product.ID, 10))
	c.JSON(http.StatusCreated, productPayload{ID: product.ID, Description: product.Description, Orders: []int64{}})
}

// pageParams reads the limit/offset query parameters. A missing or zero
// limit selects the unpaginated mode; a negative or unparsable value is
// rejected. Offset is clamped to zero.
func (h *httpHandler) pageParams(c *gin.Context) (limit, offset int, paginated, ok bool) {
	rawLimit := c.Query("limit")
	if rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return 0, 0, false, false
		}
		limit = parsed
	}

	if rawOffset := c.Query("offset"); rawOffset != "" {
		parsed, err := strconv.Atoi(rawOffset)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_offset"})
			return 0, 0, false, false
		}
		offset = parsed
	}
	if offset < 0 {
		offset = 0
	}

	return limit, offset, limit > 0, true
}

// productPayloads resolves order membership for a product slice from a
// single join-table scan rather than one lookup per product.
func (h *httpHandler) productPayloads(c *gin.Context, products []store.Product) ([]productPayload, bool) {
	orderIndex, err := h.storeService.ProductOrderIndex(c.Request.Context())
	if err != nil {
		h.respondStorageError(c, err)
		return nil, false
	}
	payload := make([]productPayload, 0, len(products))
	for _, product := range products {
		orderIDs := orderIndex[product.ID]
		if orderIDs == nil {
			orderIDs = []int64{}
		}
		payload = append(payload, productPayload{ID: product.ID, Description: product.Description, Orders: orderIDs})
	}
	return payload, true
}

func (h *httpHandler) respondStorageError(c *gin.Context, err error) {
	h.logger.Error("request failed", zap.Error(err))
	var storeErr *store.StoreError
	if errors.As(err, &storeErr) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_unavailable", "code": storeErr.Code()})
		return
	}
	c.JSON(http.StatusInternalServerError, gin.H{"error": "storage_unavailable"})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.Status(http.StatusNotFound)
		return 0, false
	}
	return id, true
}

func httpDate(epochMillis int64) string {
	return time.UnixMilli(epochMillis).UTC().Format(http.TimeFormat)
}
