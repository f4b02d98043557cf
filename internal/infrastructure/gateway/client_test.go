package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	dompay "github.com/Zhima-Mochi/minishop-checkout/internal/domain/payment"
)

func TestOpenSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/pg/orders", r.URL.Path)
		require.Equal(t, "cid", r.Header.Get("x-client-id"))
		require.Equal(t, "secret", r.Header.Get("x-client-secret"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "ord-1", body["order_id"])
		require.Equal(t, float64(800), body["order_amount"])
		require.Equal(t, "INR", body["order_currency"])

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"order_id":           "gw-ord-1",
			"payment_session_id": "sess-abc",
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "cid", "secret", time.Second, nil)
	session, err := client.OpenSession(context.Background(), dompay.SessionRequest{
		OrderID:    "ord-1",
		Amount:     800,
		Currency:   "INR",
		CustomerID: "cust-1",
	})
	require.NoError(t, err)
	require.Equal(t, "sess-abc", session.SessionID)
	require.Equal(t, "gw-ord-1", session.GatewayOrderID)
}

func TestOpenSession_EchoesOrderIDWhenGatewayOmitsIt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]string{"payment_session_id": "sess-abc"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "cid", "secret", time.Second, nil)
	session, err := client.OpenSession(context.Background(), dompay.SessionRequest{OrderID: "ord-1", Amount: 100})
	require.NoError(t, err)
	require.Equal(t, "ord-1", session.GatewayOrderID)
}

func TestOpenSession_Errors(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		wantErr    error
	}{
		{
			name:       "server error maps to unavailable",
			statusCode: http.StatusBadGateway,
			wantErr:    dompay.ErrGatewayUnavailable,
		},
		{
			name:       "rate limit maps to unavailable",
			statusCode: http.StatusTooManyRequests,
			wantErr:    dompay.ErrGatewayUnavailable,
		},
		{
			name:       "client error maps to rejected",
			statusCode: http.StatusUnprocessableEntity,
			wantErr:    dompay.ErrGatewayRejected,
		},
		{
			name:       "missing session id is a rejection",
			statusCode: http.StatusOK,
			body:       `{"order_id":"gw-1"}`,
			wantErr:    dompay.ErrGatewayRejected,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.statusCode)
				if tt.body != "" {
					_, _ = w.Write([]byte(tt.body))
				}
			}))
			defer srv.Close()

			client := NewClient(srv.URL, "cid", "secret", time.Second, nil)
			_, err := client.OpenSession(context.Background(), dompay.SessionRequest{OrderID: "ord-1"})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestOpenSession_TransportFailure(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", "cid", "secret", 200*time.Millisecond, nil)
	_, err := client.OpenSession(context.Background(), dompay.SessionRequest{OrderID: "ord-1"})
	require.ErrorIs(t, err, dompay.ErrGatewayUnavailable)
}

func TestFetchStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/pg/orders/gw-ord-1", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"order_id":     "gw-ord-1",
			"order_status": "PAID",
			"order_amount": 800,
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "cid", "secret", time.Second, nil)
	report, err := client.FetchStatus(context.Background(), "gw-ord-1")
	require.NoError(t, err)
	require.Equal(t, dompay.GatewayStatusPaid, report.Status)
	require.Equal(t, int64(800), report.AmountReported)
	require.Equal(t, "gw-ord-1", report.GatewayOrderID)
}

func TestFetchStatus_ContextTimeout(t *testing.T) {
	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	client := NewClient(srv.URL, "cid", "secret", time.Second, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FetchStatus(ctx, "gw-ord-1")
	require.ErrorIs(t, err, dompay.ErrGatewayUnavailable)
}
