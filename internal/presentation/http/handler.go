package httppresentation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	apporder "github.com/Zhima-Mochi/minishop-checkout/internal/application/order"
	appreconcile "github.com/Zhima-Mochi/minishop-checkout/internal/application/reconcile"
	domainInventory "github.com/Zhima-Mochi/minishop-checkout/internal/domain/inventory"
	domainOrder "github.com/Zhima-Mochi/minishop-checkout/internal/domain/order"
	domainPayment "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability/logctx"
)

const (
	componentHTTPHandler = "http_server"
	headerRequestID      = "X-Request-ID"
)

// Webhook event types pushed by the payment gateway.
const (
	webhookPaymentSuccess     = "PAYMENT_SUCCESS"
	webhookPaymentFailed      = "PAYMENT_FAILED"
	webhookPaymentUserDropped = "PAYMENT_USER_DROPPED"
)

type Handler struct {
	orderService *apporder.Service
	reconciler   *appreconcile.Engine
	log          observability.Logger
	tel          observability.Telemetry
}

func NewHandler(orderSvc *apporder.Service, reconciler *appreconcile.Engine, logger observability.Logger,
	tel observability.Telemetry,
) *Handler {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = observability.NopLogger()
	}
	if tel == nil {
		tel = observability.NopTelemetry()
	}
	return &Handler{
		orderService: orderSvc,
		reconciler:   reconciler,
		log:          baseLogger.With(observability.F("component", componentHTTPHandler)),
		tel:          tel,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Trace → request logger → HTTP metrics → access log → handler.
	r.Use(h.withTrace)
	r.Use(h.withRequestLogger)
	r.Use(h.withHTTPMetrics)
	r.Use(h.withAccessLog)

	r.Post("/orders", h.handleCreateOrder)
	r.Get("/orders/{orderID}", h.handleGetOrder)
	r.Get("/orders/verify/{orderID}", h.handleVerifyOrder)
	r.Post("/webhooks/payment", h.handlePaymentWebhook)
	r.Get("/health", h.handleHealth)

	return r
}

type lineItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	CustomerID      string            `json:"customer_id"`
	Items           []lineItemRequest `json:"items"`
	ShippingAddress string            `json:"shipping_address"`
	BillingAddress  string            `json:"billing_address"`
	PaymentMethod   string            `json:"payment_method"`
	Phone           string            `json:"phone"`
}

type lineItemResponse struct {
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	UnitPrice int64  `json:"unit_price"`
	ImageURL  string `json:"image_url,omitempty"`
	Quantity  int    `json:"quantity"`
}

type orderResponse struct {
	OrderID          string                    `json:"order_id"`
	CustomerID       string                    `json:"customer_id"`
	Items            []lineItemResponse        `json:"items"`
	TotalAmount      int64                     `json:"total_amount"`
	PaymentStatus    domainOrder.PaymentStatus `json:"payment_status"`
	Status           domainOrder.Status        `json:"status"`
	PaymentSessionID string                    `json:"payment_session_id,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
	UpdatedAt        time.Time                 `json:"updated_at"`
}

type createOrderResponse struct {
	orderResponse
	// PaymentSession is absent when the gateway could not open a session; the
	// client retries verification later instead of failing checkout.
	PaymentSession *paymentSessionResponse `json:"payment_session,omitempty"`
}

type paymentSessionResponse struct {
	SessionID      string `json:"session_id"`
	GatewayOrderID string `json:"gateway_order_id"`
}

func toOrderResponse(ord *domainOrder.Order) orderResponse {
	items := make([]lineItemResponse, 0, len(ord.Items))
	for _, item := range ord.Items {
		items = append(items, lineItemResponse{
			ProductID: item.ProductID,
			Title:     item.Title,
			UnitPrice: item.UnitPrice,
			ImageURL:  item.ImageURL,
			Quantity:  item.Quantity,
		})
	}
	return orderResponse{
		OrderID:          ord.ID,
		CustomerID:       ord.CustomerID,
		Items:            items,
		TotalAmount:      ord.TotalAmount,
		PaymentStatus:    ord.PaymentStatus,
		Status:           ord.Status,
		PaymentSessionID: ord.PaymentSessionID,
		CreatedAt:        ord.CreatedAt,
		UpdatedAt:        ord.UpdatedAt,
	}
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r.Context(), r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	lines := make([]apporder.LineInput, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, apporder.LineInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	result, err := h.orderService.CreateOrder(r.Context(), apporder.CreateOrderInput{
		CustomerID:      req.CustomerID,
		Items:           lines,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		PaymentMethod:   req.PaymentMethod,
		Phone:           req.Phone,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := createOrderResponse{orderResponse: toOrderResponse(result.Order)}
	if result.Session != nil {
		resp.PaymentSession = &paymentSessionResponse{
			SessionID:      result.Session.SessionID,
			GatewayOrderID: result.Session.GatewayOrderID,
		}
	}
	writeJSON(w, http.StatusCreated, resp)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orderService.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type verifyOrderResponse struct {
	orderResponse
	Reconciliation appreconcile.Result `json:"reconciliation"`
}

// handleVerifyOrder is the poll half of reconciliation: the client calls it
// after returning from the gateway, and it reports the order's converged view.
func (h *Handler) handleVerifyOrder(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.reconciler.Verify(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		if errors.Is(err, appreconcile.ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	writeJSON(w, http.StatusOK, verifyOrderResponse{
		orderResponse:  toOrderResponse(outcome.Order),
		Reconciliation: outcome.Result,
	})
}

type paymentWebhookRequest struct {
	Type string `json:"type"`
	Data struct {
		Order struct {
			OrderID       string `json:"order_id"`
			OrderAmount   int64  `json:"order_amount"`
			PaymentStatus string `json:"payment_status"`
		} `json:"order"`
	} `json:"data"`
}

// handlePaymentWebhook is the push half of reconciliation. It acknowledges
// with 200 for everything except a malformed payload: a non-2xx answer would
// only make the gateway redeliver an event we already know how to handle (or
// have decided to ignore).
func (h *Handler) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req paymentWebhookRequest
	if err := decodeJSON(r.Context(), r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	logger := logctx.FromOr(r.Context(), h.log)

	status, known := webhookStatus(req.Type)
	if !known {
		logger.Warn("webhook_unknown_type", observability.F("type", req.Type))
		writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	outcome, err := h.reconciler.Apply(r.Context(), appreconcile.Event{
		GatewayOrderID: req.Data.Order.OrderID,
		Status:         status,
		AmountReported: req.Data.Order.OrderAmount,
		Source:         appreconcile.SourceWebhook,
	})
	if err != nil {
		// Still acknowledged; the failure is ours to retry via the poll path,
		// not the gateway's.
		logger.Error("webhook_reconcile_failed",
			observability.F("gateway_order_id", req.Data.Order.OrderID),
			observability.F("error", err.Error()),
		)
		writeJSON(w, http.StatusOK, map[string]string{"status": "error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(outcome.Result)})
}

func webhookStatus(eventType string) (domainPayment.GatewayStatus, bool) {
	switch eventType {
	case webhookPaymentSuccess:
		return domainPayment.GatewayStatusPaid, true
	case webhookPaymentFailed:
		return domainPayment.GatewayStatusFailed, true
	case webhookPaymentUserDropped:
		return domainPayment.GatewayStatusUserDropped, true
	default:
		return "", false
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func decodeJSON(ctx context.Context, r *http.Request, dst any) error {
	_ = ctx
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainOrder.ErrNotFound),
		errors.Is(err, domainInventory.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domainInventory.ErrInvalidQuantity),
		errors.Is(err, domainInventory.ErrInsufficientStock),
		errors.Is(err, domainInventory.ErrUnavailable),
		errors.Is(err, domainOrder.ErrInvalidAmount),
		errors.Is(err, domainOrder.ErrInvalidQuantity),
		errors.Is(err, domainOrder.ErrNoItems):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
