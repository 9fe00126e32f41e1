package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rl1809/pos-checkout/internal/core/domain"
	"github.com/rl1809/pos-checkout/internal/core/service"
	"github.com/rl1809/pos-checkout/internal/port"
	"github.com/rl1809/pos-checkout/internal/validation"
)

// HandlerConfig groups the dependencies of the HTTP API.
type HandlerConfig struct {
	Catalog  port.CatalogRepository
	Ledger   *service.StockLedger
	Scanner  *service.Scanner
	Sessions *Sessions
	// Cache is optional; without it Idempotency-Key headers are ignored.
	Cache port.CacheRepository
	// History is optional; without it GET /api/sales is not mounted.
	History        port.SaleHistory
	IdempotencyTTL time.Duration
	// SaleTimeout bounds each line of a checkout.
	SaleTimeout time.Duration
	Health      *HealthChecker
	Logger      *zap.Logger
}

type HTTPHandler struct {
	cfg      HandlerConfig
	validate *validatorv10.Validate
	logger   *zap.Logger
}

func NewHTTPHandler(cfg HandlerConfig) *HTTPHandler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPHandler{cfg: cfg, validate: validation.New(), logger: logger}
}

// Register mounts the API on r.
func (h *HTTPHandler) Register(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)

	api := r.Group("/api")

	products := api.Group("/products")
	products.GET("", h.ListProducts)
	products.POST("", h.CreateProduct)
	products.GET("/low-stock", h.LowStock)
	products.GET("/barcode/:code", h.LookupBarcode)
	products.PUT("/:id", h.UpdateProduct)

	if h.cfg.History != nil {
		api.GET("/sales", h.RecentSales)
	}

	api.POST("/sessions", h.CreateSession)

	sess := api.Group("/sessions/:id", h.withSession)
	sess.DELETE("", h.DeleteSession)
	sess.GET("/cart", h.GetCart)
	sess.DELETE("/cart", h.ClearCart)
	sess.POST("/cart/lines", h.AddLine)
	sess.PATCH("/cart/lines", h.UpdateLine)
	sess.DELETE("/cart/lines", h.RemoveLine)
	sess.POST("/cart/discount", h.ApplyDiscount)
	sess.DELETE("/cart/discount", h.RemoveDiscount)
	sess.POST("/scan", h.Scan)
	sess.POST("/checkout", h.Checkout)
	sess.GET("/sales", h.Sales)
}

func (h *HTTPHandler) HealthCheck(c *gin.Context) {
	if h.cfg.Health == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks, healthy := h.cfg.Health.Check(ctx)
	status, code := "ok", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}

// Products

func (h *HTTPHandler) ListProducts(c *gin.Context) {
	if c.Query("refresh") == "true" {
		if err := h.cfg.Ledger.Refresh(c.Request.Context()); err != nil {
			h.fail(c, domain.Internal(err, "products.list", "catalog unavailable"))
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"products": h.cfg.Ledger.Products()})
}

func (h *HTTPHandler) LowStock(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"products": h.cfg.Ledger.LowStock()})
}

func (h *HTTPHandler) LookupBarcode(c *gin.Context) {
	product, err := h.cfg.Scanner.Scan(c.Request.Context(), c.Param("code"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *HTTPHandler) CreateProduct(c *gin.Context) {
	var req validation.ProductRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	product, err := h.cfg.Catalog.CreateProduct(c.Request.Context(), req.Product(""))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.cfg.Ledger.Put(product)

	c.Header("Location", "/api/products/"+product.ID)
	c.JSON(http.StatusCreated, product)
}

func (h *HTTPHandler) UpdateProduct(c *gin.Context) {
	var req validation.ProductRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	product, err := h.cfg.Catalog.UpdateProduct(c.Request.Context(), req.Product(c.Param("id")))
	if err != nil {
		h.fail(c, err)
		return
	}
	h.cfg.Ledger.Put(product)

	c.JSON(http.StatusOK, product)
}

// Sessions

const sessionKey = "session"

func (h *HTTPHandler) CreateSession(c *gin.Context) {
	id := h.cfg.Sessions.Create()
	c.Header("Location", "/api/sessions/"+id)
	c.JSON(http.StatusCreated, gin.H{"session_id": id})
}

// withSession resolves the session and holds its lock for the rest of the
// request.
func (h *HTTPHandler) withSession(c *gin.Context) {
	sess, ok := h.cfg.Sessions.get(c.Param("id"))
	if !ok {
		h.fail(c, domain.NotFound("session", "session", c.Param("id")))
		c.Abort()
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	c.Set(sessionKey, sess)
	c.Next()
}

func current(c *gin.Context) *session {
	return c.MustGet(sessionKey).(*session)
}

func (h *HTTPHandler) DeleteSession(c *gin.Context) {
	h.cfg.Sessions.Delete(c.Param("id"))
	c.Status(http.StatusNoContent)
}

// Cart

func (h *HTTPHandler) GetCart(c *gin.Context) {
	h.respondCart(c, current(c), nil)
}

func (h *HTTPHandler) ClearCart(c *gin.Context) {
	sess := current(c)
	sess.terminal.Clear()
	h.respondCart(c, sess, nil)
}

func (h *HTTPHandler) AddLine(c *gin.Context) {
	var req validation.AddLineRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	sess := current(c)
	h.respondCart(c, sess, sess.terminal.AddLine(req.ProductID, req.Quantity, req.Size))
}

func (h *HTTPHandler) UpdateLine(c *gin.Context) {
	var req validation.UpdateLineRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	sess := current(c)
	h.respondCart(c, sess, sess.terminal.UpdateQuantity(req.ProductID, req.Quantity, req.Size))
}

func (h *HTTPHandler) RemoveLine(c *gin.Context) {
	productID := c.Query("product_id")
	if productID == "" {
		h.fail(c, domain.Invalid("cart.remove", "product_id is required"))
		return
	}
	sess := current(c)
	sess.terminal.RemoveLine(productID, c.Query("size"))
	h.respondCart(c, sess, nil)
}

func (h *HTTPHandler) ApplyDiscount(c *gin.Context) {
	var req validation.DiscountRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	sess := current(c)
	err := sess.terminal.ApplyDiscount(req.ProductID, req.Size, domain.Discount{Type: req.Type, Value: req.Value})
	h.respondCart(c, sess, err)
}

func (h *HTTPHandler) RemoveDiscount(c *gin.Context) {
	productID := c.Query("product_id")
	if productID == "" {
		h.fail(c, domain.Invalid("cart.discount", "product_id is required"))
		return
	}
	sess := current(c)
	h.respondCart(c, sess, sess.terminal.RemoveDiscount(productID, c.Query("size")))
}

func (h *HTTPHandler) Scan(c *gin.Context) {
	var req validation.ScanRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	sess := current(c)
	product, err := sess.terminal.ScanToCart(c.Request.Context(), req.Barcode, req.Quantity, req.Size)
	if err != nil {
		h.logIfInternal(err)
		c.JSON(statusFor(err), gin.H{
			"error":  domain.ErrorMessage(err),
			"cart":   newCartView(sess),
			"events": sess.events.Drain(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product": product,
		"cart":    newCartView(sess),
		"events":  sess.events.Drain(),
	})
}

// Checkout

func (h *HTTPHandler) Checkout(c *gin.Context) {
	var req validation.CheckoutRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	sess := current(c)
	ctx := c.Request.Context()

	var idemKey string
	if key := c.GetHeader("Idempotency-Key"); key != "" && h.cfg.Cache != nil {
		idemKey = "checkout:" + sess.terminal.ID + ":" + key
		ok, err := h.cfg.Cache.SetIdempotency(ctx, idemKey, h.cfg.IdempotencyTTL)
		if err != nil {
			h.fail(c, domain.Internal(err, "checkout.idempotency", "idempotency check failed"))
			return
		}
		if !ok {
			h.fail(c, domain.Conflict("checkout", "duplicate checkout request"))
			return
		}
	}

	if h.cfg.SaleTimeout > 0 {
		lines := sess.terminal.Cart().Len()
		if lines < 1 {
			lines = 1
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.cfg.SaleTimeout*time.Duration(lines))
		defer cancel()
	}

	result, err := sess.terminal.Checkout(ctx, req.PaymentMethod)

	// Nothing was sold, so a retry with the same key must be allowed.
	if idemKey != "" && len(result.Sales) == 0 {
		if rerr := h.cfg.Cache.ReleaseIdempotency(c.Request.Context(), idemKey); rerr != nil {
			h.logger.Warn("release idempotency key", zap.String("session_id", sess.terminal.ID), zap.Error(rerr))
		}
	}

	body := gin.H{
		"sales":  nonNil(result.Sales),
		"total":  result.Total,
		"cart":   newCartView(sess),
		"events": sess.events.Drain(),
	}
	if len(result.Voided) > 0 {
		body["voided"] = result.Voided
	}
	if err == nil {
		c.JSON(http.StatusOK, body)
		return
	}

	var cerr *service.CheckoutError
	if errors.As(err, &cerr) {
		failures := make([]gin.H, 0, len(cerr.Failures))
		for _, f := range cerr.Failures {
			failures = append(failures, gin.H{
				"line_id":    f.Line.LineID,
				"product_id": f.Line.Product.ID,
				"size":       f.Line.Size,
				"label":      f.Line.Label(),
				"error":      f.Reason(),
			})
		}
		body["error"] = cerr.Error()
		body["failures"] = failures
		body["policy"] = cerr.Policy.String()
		h.logger.Warn("checkout incomplete", zap.String("session_id", sess.terminal.ID), zap.Error(err))
		c.JSON(http.StatusConflict, body)
		return
	}

	h.logIfInternal(err)
	body["error"] = domain.ErrorMessage(err)
	c.JSON(statusFor(err), body)
}

func (h *HTTPHandler) Sales(c *gin.Context) {
	sess := current(c)
	sales := sess.terminal.History()
	total := decimal.Zero
	for _, s := range sales {
		total = total.Add(s.TotalPrice)
	}
	c.JSON(http.StatusOK, gin.H{"sales": nonNil(sales), "total": total})
}

const (
	defaultSalesLimit = 50
	maxSalesLimit     = 500
)

// RecentSales lists committed sales of every terminal.
func (h *HTTPHandler) RecentSales(c *gin.Context) {
	limit := defaultSalesLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.fail(c, domain.Invalid("sales.list", "limit must be a positive number"))
			return
		}
		limit = min(n, maxSalesLimit)
	}

	sales, err := h.cfg.History.ListSales(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, domain.Internal(err, "sales.list", "sales unavailable"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sales": nonNil(sales)})
}

func (h *HTTPHandler) respondCart(c *gin.Context, sess *session, err error) {
	view := newCartView(sess)
	status := http.StatusOK
	if err != nil {
		h.logIfInternal(err)
		status = statusFor(err)
	}
	c.JSON(status, gin.H{"cart": view, "events": sess.events.Drain()})
}

func (h *HTTPHandler) fail(c *gin.Context, err error) {
	h.logIfInternal(err)
	c.JSON(statusFor(err), gin.H{"error": domain.ErrorMessage(err)})
}

func (h *HTTPHandler) logIfInternal(err error) {
	if domain.ErrorCode(err) == domain.EINTERNAL {
		h.logger.Error("request failed", zap.Error(err))
	}
}

func statusFor(err error) int {
	switch domain.ErrorCode(err) {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func nonNil(sales []domain.Sale) []domain.Sale {
	if sales == nil {
		return []domain.Sale{}
	}
	return sales
}
