package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mobix/storefront/internal/cart"
	cartdomain "github.com/mobix/storefront/internal/cart/domain"
	"github.com/mobix/storefront/internal/catalog/client"
	catalogdomain "github.com/mobix/storefront/internal/catalog/domain"
	"github.com/mobix/storefront/pkg/format"
	"github.com/mobix/storefront/pkg/logger"
)

// ProductSource resolves products for add-time snapshots.
type ProductSource interface {
	Product(ctx context.Context, id string) (*catalogdomain.Product, error)
}

// RemoteCart is the best-effort session server collaborator.
type RemoteCart interface {
	AddToCart(ctx context.Context, item client.AddToCartRequest) (int, error)
}

// CartHandler exposes the cart over HTTP. It is a thin consumer: every
// action delegates straight into the manager, the only handler-local
// state being Prometheus instruments.
type CartHandler struct {
	manager  *cart.Manager
	products ProductSource
	remote   RemoteCart

	opsCounter    *prometheus.CounterVec
	unitsGauge    prometheus.Gauge
	eventsCounter *prometheus.CounterVec
}

// NewCartHandler creates a cart handler and registers its metrics
func NewCartHandler(manager *cart.Manager, products ProductSource, remote RemoteCart, reg prometheus.Registerer) *CartHandler {
	opsCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_operations_total",
			Help: "Total number of cart operations",
		},
		[]string{"operation", "status"},
	)

	unitsGauge := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_cart_units",
			Help: "Current number of units in the cart",
		},
	)

	eventsCounter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_cart_events_total",
			Help: "Cart lifecycle events (expiry, session reset)",
		},
		[]string{"kind"},
	)

	reg.MustRegister(opsCounter)
	reg.MustRegister(unitsGauge)
	reg.MustRegister(eventsCounter)

	return &CartHandler{
		manager:       manager,
		products:      products,
		remote:        remote,
		opsCounter:    opsCounter,
		unitsGauge:    unitsGauge,
		eventsCounter: eventsCounter,
	}
}

// RegisterRoutes mounts the cart endpoints
func (h *CartHandler) RegisterRoutes(router fiber.Router) {
	api := router.Group("/api/cart")
	api.Get("/", h.GetCart)
	api.Post("/items", h.AddItem)
	api.Put("/items/:index", h.UpdateQuantity)
	api.Delete("/items/:index", h.RemoveItem)
	api.Delete("/", h.ClearCart)
	api.Post("/reconcile", h.Reconcile)
	api.Delete("/notifications", h.DismissNotification)
	api.Post("/checkout", h.Checkout)
}

// WatchNotifications consumes the cart event stream until ctx is
// canceled, feeding the events metric.
func (h *CartHandler) WatchNotifications(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-h.manager.Notifications():
			h.eventsCounter.WithLabelValues(string(n.Kind)).Inc()
			logger.Info(ctx).
				Str("kind", string(n.Kind)).
				Int("count", n.Count).
				Msg("cart notification")
		}
	}
}

type cartStateResponse struct {
	Items        []cartdomain.LineItem `json:"items"`
	TotalCount   int                   `json:"total_count"`
	TotalPrice   string                `json:"total_price"`
	ExpiredCount int                   `json:"expired_count"`
	SessionReset bool                  `json:"session_reset"`
}

func (h *CartHandler) state() cartStateResponse {
	items := h.manager.Items()
	total := cartdomain.TotalCount(items)
	h.unitsGauge.Set(float64(total))
	return cartStateResponse{
		Items:        items,
		TotalCount:   total,
		TotalPrice:   format.Price(linesTotal(items), "EUR"),
		ExpiredCount: h.manager.ExpiredCount(),
		SessionReset: h.manager.SessionReset(),
	}
}

func linesTotal(items []cartdomain.LineItem) float64 {
	var total float64
	for _, item := range items {
		total += item.ProductPrice * float64(item.Quantity)
	}
	return total
}

// GetCart handles GET /api/cart
func (h *CartHandler) GetCart(c *fiber.Ctx) error {
	h.opsCounter.WithLabelValues("get", "ok").Inc()
	return c.JSON(h.state())
}

// AddItem handles POST /api/cart/items
func (h *CartHandler) AddItem(c *fiber.Ctx) error {
	var req struct {
		ProductID   string `json:"product_id"`
		ColorCode   int    `json:"color_code"`
		StorageCode int    `json:"storage_code"`
	}
	if err := c.BodyParser(&req); err != nil {
		h.opsCounter.WithLabelValues("add", "bad_request").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	if req.ProductID == "" {
		h.opsCounter.WithLabelValues("add", "bad_request").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "product_id is required"})
	}

	ctx := c.UserContext()
	product, err := h.products.Product(ctx, req.ProductID)
	if err != nil || product == nil {
		h.opsCounter.WithLabelValues("add", "not_found").Inc()
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "product not found"})
	}

	h.manager.AddItem(ctx, cartdomain.LineItem{
		ProductID:    product.ID,
		ProductName:  product.Name,
		ProductImage: product.Image,
		ProductPrice: product.Price,
		ColorCode:    req.ColorCode,
		ColorName:    product.ColorName(req.ColorCode),
		StorageCode:  req.StorageCode,
		StorageName:  product.StorageName(req.StorageCode),
	})

	// The remote call is best-effort: the local add already happened and
	// stands regardless of the outcome. A successful response carries the
	// authoritative session count, which feeds reconciliation.
	if h.remote != nil {
		count, err := h.remote.AddToCart(ctx, client.AddToCartRequest{
			ID:          req.ProductID,
			ColorCode:   req.ColorCode,
			StorageCode: req.StorageCode,
		})
		if err != nil {
			logger.Warn(ctx).Err(err).Str("product_id", req.ProductID).Msg("remote add to cart failed")
		} else {
			h.manager.ReconcileServerCount(ctx, count)
		}
	}

	h.opsCounter.WithLabelValues("add", "ok").Inc()
	return c.Status(fiber.StatusCreated).JSON(h.state())
}

// UpdateQuantity handles PUT /api/cart/items/:index
func (h *CartHandler) UpdateQuantity(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		h.opsCounter.WithLabelValues("update", "bad_request").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid index"})
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.BodyParser(&req); err != nil {
		h.opsCounter.WithLabelValues("update", "bad_request").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	h.manager.UpdateQuantity(c.UserContext(), index, req.Quantity)
	h.opsCounter.WithLabelValues("update", "ok").Inc()
	return c.JSON(h.state())
}

// RemoveItem handles DELETE /api/cart/items/:index
func (h *CartHandler) RemoveItem(c *fiber.Ctx) error {
	index, err := c.ParamsInt("index")
	if err != nil {
		h.opsCounter.WithLabelValues("remove", "bad_request").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid index"})
	}

	h.manager.RemoveItem(c.UserContext(), index)
	h.opsCounter.WithLabelValues("remove", "ok").Inc()
	return c.JSON(h.state())
}

// ClearCart handles DELETE /api/cart
func (h *CartHandler) ClearCart(c *fiber.Ctx) error {
	h.manager.Clear(c.UserContext())
	h.opsCounter.WithLabelValues("clear", "ok").Inc()
	return c.JSON(h.state())
}

// Reconcile handles POST /api/cart/reconcile
func (h *CartHandler) Reconcile(c *fiber.Ctx) error {
	var req struct {
		Count int `json:"count"`
	}
	if err := c.BodyParser(&req); err != nil {
		h.opsCounter.WithLabelValues("reconcile", "bad_request").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	h.manager.ReconcileServerCount(c.UserContext(), req.Count)
	h.opsCounter.WithLabelValues("reconcile", "ok").Inc()
	return c.JSON(h.state())
}

// DismissNotification handles DELETE /api/cart/notifications
func (h *CartHandler) DismissNotification(c *fiber.Ctx) error {
	h.manager.Dismiss()
	h.opsCounter.WithLabelValues("dismiss", "ok").Inc()
	return c.JSON(h.state())
}

// Checkout handles POST /api/cart/checkout. The flow is a simulation:
// no payment is taken, the cart is simply emptied and a synthetic order
// ID returned.
func (h *CartHandler) Checkout(c *fiber.Ctx) error {
	var req struct {
		Email string `json:"email"`
	}
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			h.opsCounter.WithLabelValues("checkout", "bad_request").Inc()
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
		}
	}
	if req.Email != "" && !format.IsValidEmail(req.Email) {
		h.opsCounter.WithLabelValues("checkout", "bad_request").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid email"})
	}

	// Drain is a single manager call, so the reported units are exactly
	// the lines this checkout cleared even under concurrent requests.
	drained := h.manager.Drain(c.UserContext())
	if len(drained) == 0 {
		h.opsCounter.WithLabelValues("checkout", "empty").Inc()
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "cart is empty"})
	}

	h.opsCounter.WithLabelValues("checkout", "ok").Inc()
	return c.JSON(fiber.Map{
		"order_id": uuid.NewString(),
		"status":   "completed",
		"units":    cartdomain.TotalCount(drained),
		"total":    format.Price(linesTotal(drained), "EUR"),
	})
}
