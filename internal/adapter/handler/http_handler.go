package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/rl1809/shop-order/internal/core/domain"
	"github.com/rl1809/shop-order/internal/core/service"
)

type HTTPHandler struct {
	orderService   *service.OrderService
	historyService *service.HistoryService
	pageSize       int
	maxPage        int
}

type PlaceOrderHTTPRequest struct {
	ProductID int64  `json:"productId" validate:"required"`
	Count     int    `json:"count" validate:"min=1,max=99"`
	RequestID string `json:"requestId"`
}

type OrderIDResponse struct {
	OrderID int64 `json:"orderId"`
}

type OrderHistoryResponse struct {
	Orders     []domain.OrderHistoryView `json:"orders"`
	Page       int                       `json:"page"`
	MaxPage    int                       `json:"maxPage"`
	TotalCount int64                     `json:"totalCount"`
	TotalPages int                       `json:"totalPages"`
}

func NewHTTPHandler(orderService *service.OrderService, historyService *service.HistoryService, pageSize, maxPage int) *HTTPHandler {
	return &HTTPHandler{
		orderService:   orderService,
		historyService: historyService,
		pageSize:       pageSize,
		maxPage:        maxPage,
	}
}

// NewEcho builds the HTTP server with every route registered.
func NewEcho(h *HTTPHandler, auth *TokenAuthority, logger zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = NewValidator()
	e.HTTPErrorHandler = httpErrorHandler

	e.Use(RequestID(logger))
	e.Use(RequestLogger(logger))
	e.Use(recoverer(logger))

	e.GET("/health", h.HealthCheck)

	e.POST("/order", h.PlaceOrder, auth.Authenticate)
	e.GET("/orders", h.ListOrders, auth.Authenticate)
	e.GET("/orders/:page", h.ListOrders, auth.Authenticate)
	e.POST("/order/:orderId/cancel", h.CancelOrder, auth.Authenticate)

	return e
}

func (h *HTTPHandler) PlaceOrder(c echo.Context) error {
	var req PlaceOrderHTTPRequest
	if err := c.Bind(&req); err != nil {
		return failure(c, http.StatusBadRequest, "INVALID_BODY", "invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	orderID, err := h.orderService.Place(c.Request().Context(), service.PlaceOrderRequest{
		ProductID: req.ProductID,
		Quantity:  req.Count,
		Email:     callerEmail(c),
		RequestID: req.RequestID,
	})
	if err != nil {
		zerolog.Ctx(c.Request().Context()).Warn().Err(err).Int64("product_id", req.ProductID).Msg("place order failed")
		return serviceError(c, err)
	}

	return success(c, OrderIDResponse{OrderID: orderID}, "order placed successfully")
}

func (h *HTTPHandler) ListOrders(c echo.Context) error {
	page := 0
	if raw := c.Param("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return failure(c, http.StatusBadRequest, "INVALID_ARGUMENT", "page must be a non-negative integer")
		}
		page = n
	}

	result, err := h.historyService.ListOrders(c.Request().Context(), callerEmail(c), page, h.pageSize)
	if err != nil {
		zerolog.Ctx(c.Request().Context()).Error().Err(err).Int("page", page).Msg("list orders failed")
		return serviceError(c, err)
	}

	return success(c, OrderHistoryResponse{
		Orders:     result.Orders,
		Page:       result.Page,
		MaxPage:    h.maxPage,
		TotalCount: result.TotalCount,
		TotalPages: result.TotalPages(),
	}, "")
}

func (h *HTTPHandler) CancelOrder(c echo.Context) error {
	orderID, err := strconv.ParseInt(c.Param("orderId"), 10, 64)
	if err != nil {
		return failure(c, http.StatusBadRequest, "INVALID_ARGUMENT", "invalid order id")
	}

	ctx := c.Request().Context()
	owner, err := h.orderService.IsOwner(ctx, orderID, callerEmail(c))
	if err != nil {
		return serviceError(c, err)
	}
	if !owner {
		return failure(c, http.StatusForbidden, "FORBIDDEN", "not the owner of this order")
	}

	if err := h.orderService.Cancel(ctx, orderID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("order_id", orderID).Msg("cancel order failed")
		return serviceError(c, err)
	}

	return success(c, OrderIDResponse{OrderID: orderID}, "order canceled")
}

func (h *HTTPHandler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// httpErrorHandler renders echo errors (validation, routing) in the common
// response shape.
func httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "internal error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		if msg, ok := he.Message.(string); ok {
			message = msg
		} else {
			message = http.StatusText(status)
		}
	}

	if err := failure(c, status, http.StatusText(status), message); err != nil {
		c.Logger().Error(err)
	}
}

func recoverer(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.Error().Interface("panic", r).Str("uri", c.Request().URL.Path).Msg("recovered from panic")
					err = echo.NewHTTPError(http.StatusInternalServerError, "internal error")
				}
			}()
			return next(c)
		}
	}
}
