package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mobix/storefront/internal/catalog"
	"github.com/mobix/storefront/internal/catalog/domain"
	"github.com/mobix/storefront/pkg/format"
)

// summaryLength caps the product description in list views.
const summaryLength = 80

// CatalogHandler serves the filtered, paginated product grid. It owns
// the debounced filter engine; explicit query parameters on a request
// override the engine's state for that request only.
type CatalogHandler struct {
	service  *catalog.Service
	filter   *catalog.Filter
	pageSize int
}

// NewCatalogHandler creates a catalog handler
func NewCatalogHandler(service *catalog.Service, filter *catalog.Filter, pageSize int) *CatalogHandler {
	if pageSize < 1 {
		pageSize = 12
	}
	return &CatalogHandler{service: service, filter: filter, pageSize: pageSize}
}

// RegisterRoutes mounts the catalog endpoints
func (h *CatalogHandler) RegisterRoutes(router fiber.Router) {
	api := router.Group("/api")
	api.Get("/products", h.ListProducts)
	api.Get("/products/:id", h.GetProduct)
	api.Get("/categories", h.ListCategories)
	api.Get("/filters", h.GetFilters)
	api.Put("/filters", h.UpdateFilters)
}

// productView decorates a product with its display fields.
type productView struct {
	domain.Product
	DisplayPrice string `json:"display_price"`
	Summary      string `json:"summary"`
}

func newProductView(p domain.Product) productView {
	return productView{
		Product:      p,
		DisplayPrice: format.Price(p.Price, "EUR"),
		Summary:      format.Truncate(p.Description, summaryLength),
	}
}

// ListProducts handles GET /api/products. The query string is the
// shareable filter state: search, category and page re-derive the same
// grid from a URL alone. Parameters left out of the request fall back
// to the handler's filter engine, so a search typed through the filter
// endpoint drives the grid once it settles.
func (h *CatalogHandler) ListProducts(c *fiber.Ctx) error {
	args := c.Request().URI().QueryArgs()

	search := h.filter.DebouncedSearchText()
	if args.Has("search") {
		search = c.Query("search")
	}

	category := h.filter.Category()
	if args.Has(catalog.CategoryParam) {
		category = c.Query(catalog.CategoryParam)
		if !domain.ValidCategory(category) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown category"})
		}
	}

	filtered := catalog.FilterProducts(h.service.Products(), search, category)
	page := c.QueryInt("page", 1)
	window, totalPages := catalog.Paginate(filtered, page, h.pageSize)
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	views := make([]productView, 0, len(window))
	for _, p := range window {
		views = append(views, newProductView(p))
	}

	return c.JSON(fiber.Map{
		"products":    views,
		"total":       len(filtered),
		"page":        page,
		"total_pages": totalPages,
		"loading":     h.service.Loading(),
	})
}

// GetProduct handles GET /api/products/:id
func (h *CatalogHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.service.Product(c.UserContext(), c.Params("id"))
	if err != nil || product == nil {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
	}
	return c.JSON(newProductView(*product))
}

// ListCategories handles GET /api/categories
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	return c.JSON(domain.Categories)
}

func (h *CatalogHandler) filterState() fiber.Map {
	return fiber.Map{
		"search":           h.filter.SearchText(),
		"debounced_search": h.filter.DebouncedSearchText(),
		"category":         h.filter.Category(),
		"query":            h.filter.ShareableQuery(),
	}
}

// GetFilters handles GET /api/filters
func (h *CatalogHandler) GetFilters(c *fiber.Ctx) error {
	return c.JSON(h.filterState())
}

// UpdateFilters handles PUT /api/filters. Search input lands in the
// engine immediately but only reaches the grid after the debounce
// window; category changes apply at once.
func (h *CatalogHandler) UpdateFilters(c *fiber.Ctx) error {
	var req struct {
		Search   *string `json:"search"`
		Category *string `json:"category"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	if req.Category != nil {
		if !domain.ValidCategory(*req.Category) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unknown category"})
		}
		h.filter.SetCategory(*req.Category)
	}
	if req.Search != nil {
		h.filter.SetSearchText(*req.Search)
	}

	return c.JSON(h.filterState())
}
