package handlers

import (
	"net/http"

	"festival-backend/internal/services"
	"festival-backend/models"

	"github.com/pocketbase/pocketbase/core"
)

type ProductHandler struct {
	catalogService *services.CatalogService
}

func NewProductHandler(catalogService *services.CatalogService) *ProductHandler {
	return &ProductHandler{catalogService: catalogService}
}

type productView struct {
	models.Product
	Price string `json:"price"`
}

// ListProducts - List purchasable products
func (h *ProductHandler) ListProducts(e *core.RequestEvent) error {
	products, err := h.catalogService.List(e.Request.Context())
	if err != nil {
		return apiError(err)
	}

	views := make([]productView, 0, len(products))
	for _, p := range products {
		views = append(views, productView{Product: p, Price: models.FormatMinor(p.UnitAmount)})
	}

	return e.JSON(http.StatusOK, map[string]any{"products": views})
}
