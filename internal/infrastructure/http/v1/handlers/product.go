package handlers

import (
	"github.com/gin-gonic/gin"

	"pharmastock/internal/domain/product"
	"pharmastock/internal/infrastructure/http/v1/dto"
)

// ProductHandler handles HTTP requests for the product catalog.
type ProductHandler struct {
	*BaseHandler
	service *product.Service
}

// NewProductHandler creates a new product handler.
func NewProductHandler(base *BaseHandler, service *product.Service) *ProductHandler {
	return &ProductHandler{
		BaseHandler: base,
		service:     service,
	}
}

// List handles GET /products
func (h *ProductHandler) List(c *gin.Context) {
	filter := product.ListFilter{
		Search: c.Query("search"),
		Limit:  h.ParseIntQuery(c, "limit", 50),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	items, total, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	out := make([]dto.ProductResponse, len(items))
	for i, p := range items {
		out[i] = dto.FromProduct(p)
	}

	h.OK(c, dto.ListResponse{
		Items:      out,
		TotalCount: int64(total),
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	})
}

// Create handles POST /products
func (h *ProductHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p := req.ToEntity()
	if err := h.service.Create(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.FromProduct(p))
}

// Get handles GET /products/:id
func (h *ProductHandler) Get(c *gin.Context) {
	productID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	p, err := h.service.GetByID(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromProduct(p))
}

// GetByBarcode handles GET /products/barcode/:barcode
func (h *ProductHandler) GetByBarcode(c *gin.Context) {
	p, err := h.service.GetByBarcode(c.Request.Context(), c.Param("barcode"))
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromProduct(p))
}

// Update handles PUT /products/:id
func (h *ProductHandler) Update(c *gin.Context) {
	productID, ok := h.ParseIDParam(c, "id")
	if !ok {
		return
	}

	var req dto.UpdateProductRequest
	if !h.BindJSON(c, &req) {
		return
	}

	p := &product.Product{ID: productID}
	req.ApplyTo(p)
	if err := h.service.Update(c.Request.Context(), p); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromProduct(p))
}

// RegisterRoutes registers product routes.
func (h *ProductHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/barcode/:barcode", h.GetByBarcode)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
}
