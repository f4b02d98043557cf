package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	dompay "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-checkout/internal/observability"
)

const defaultTimeout = 5 * time.Second

// Client talks to the external payment processor over REST. It implements
// payment.Gateway; everything it returns is treated as untrusted upstream.
type Client struct {
	baseURL  string
	clientID string
	secret   string
	http     *http.Client
	log      observability.Logger
}

func NewClient(baseURL, clientID, secret string, timeout time.Duration, logger observability.Logger) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = observability.NopLogger()
	}
	return &Client{
		baseURL:  baseURL,
		clientID: clientID,
		secret:   secret,
		http:     &http.Client{Timeout: timeout},
		log:      logger.With(observability.F("component", "payment_gateway_client")),
	}
}

type openSessionRequest struct {
	OrderID       string          `json:"order_id"`
	OrderAmount   int64           `json:"order_amount"`
	OrderCurrency string          `json:"order_currency"`
	Customer      customerDetails `json:"customer_details"`
	Meta          orderMeta       `json:"order_meta"`
}

type customerDetails struct {
	CustomerID string `json:"customer_id"`
	Phone      string `json:"customer_phone,omitempty"`
}

type orderMeta struct {
	ReturnURL string `json:"return_url,omitempty"`
}

type openSessionResponse struct {
	OrderID          string `json:"order_id"`
	PaymentSessionID string `json:"payment_session_id"`
}

func (c *Client) OpenSession(ctx context.Context, req dompay.SessionRequest) (*dompay.Session, error) {
	body := openSessionRequest{
		OrderID:       req.OrderID,
		OrderAmount:   req.Amount,
		OrderCurrency: req.Currency,
		Customer: customerDetails{
			CustomerID: req.CustomerID,
			Phone:      req.Phone,
		},
		Meta: orderMeta{ReturnURL: req.ReturnURL},
	}

	var resp openSessionResponse
	if err := c.do(ctx, http.MethodPost, "/pg/orders", body, &resp); err != nil {
		return nil, err
	}
	if resp.PaymentSessionID == "" {
		return nil, fmt.Errorf("%w: empty payment session id", dompay.ErrGatewayRejected)
	}

	gatewayOrderID := resp.OrderID
	if gatewayOrderID == "" {
		// Some processors echo nothing back and key the session by our id.
		gatewayOrderID = req.OrderID
	}
	return &dompay.Session{
		SessionID:      resp.PaymentSessionID,
		GatewayOrderID: gatewayOrderID,
	}, nil
}

type statusResponse struct {
	OrderID     string `json:"order_id"`
	OrderStatus string `json:"order_status"`
	OrderAmount int64  `json:"order_amount"`
}

func (c *Client) FetchStatus(ctx context.Context, gatewayOrderID string) (*dompay.StatusReport, error) {
	var resp statusResponse
	path := "/pg/orders/" + url.PathEscape(gatewayOrderID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &dompay.StatusReport{
		GatewayOrderID: resp.OrderID,
		Status:         dompay.GatewayStatus(resp.OrderStatus),
		AmountReported: resp.OrderAmount,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("gateway: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("gateway: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-client-id", c.clientID)
	req.Header.Set("x-client-secret", c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", dompay.ErrGatewayUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		// ok
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		c.log.Warn("gateway_unavailable",
			observability.F("path", path),
			observability.F("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: status %d", dompay.ErrGatewayUnavailable, resp.StatusCode)
	default:
		c.log.Warn("gateway_rejected",
			observability.F("path", path),
			observability.F("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: status %d", dompay.ErrGatewayRejected, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("gateway: decode response: %w", err)
	}
	return nil
}
