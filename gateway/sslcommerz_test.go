package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"booking-svc/config"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func newTestClient(t *testing.T, serverURL string) *Client {
	cfg := &config.Config{
		GatewayURL:       serverURL,
		GatewayStoreID:   "teststore",
		GatewayStorePass: "testpass",
		FrontendURL:      "https://tours.example.com",
	}
	return NewClient(cfg, zaptest.NewLogger(t, zaptest.Level(zap.InfoLevel)))
}

func TestClient_InitSession_Success(t *testing.T) {
	var got initPayload
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("Failed to decode payload: %v", err)
		}
		json.NewEncoder(w).Encode(initResponse{
			Status:         "SUCCESS",
			GatewayPageURL: "https://sandbox.sslcommerz.com/pay/session-1",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	url, err := client.InitSession(context.Background(), SessionRequest{
		Amount:        450.0,
		TransactionID: "tran_123_abcd",
		Name:          "Rahim",
		Email:         "rahim@example.com",
		Phone:         "01700000000",
		Address:       "Dhaka",
	})
	if err != nil {
		t.Fatalf("InitSession failed: %v", err)
	}
	if url != "https://sandbox.sslcommerz.com/pay/session-1" {
		t.Errorf("Unexpected redirect URL: %s", url)
	}

	if got.StoreID != "teststore" || got.StorePasswd != "testpass" {
		t.Errorf("Store credentials not forwarded: %+v", got)
	}
	if got.TotalAmount != 450.0 || got.Currency != "BDT" || got.TranID != "tran_123_abcd" {
		t.Errorf("Session fields not forwarded: %+v", got)
	}
	if got.SuccessURL != "https://tours.example.com/payments/success" {
		t.Errorf("Unexpected success URL: %s", got.SuccessURL)
	}
}

func TestClient_InitSession_Rejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(initResponse{
			Status:       "FAILED",
			FailedReason: "store credentials invalid",
		})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.InitSession(context.Background(), SessionRequest{Amount: 100, TransactionID: "tran_1"})
	if err == nil {
		t.Fatal("Expected an error for a rejected session")
	}
	if !strings.Contains(err.Error(), "store credentials invalid") {
		t.Errorf("Expected rejection reason in error, got: %v", err)
	}
}

func TestClient_InitSession_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	_, err := client.InitSession(context.Background(), SessionRequest{Amount: 100, TransactionID: "tran_1"})
	if err == nil {
		t.Fatal("Expected an error for a 500 response")
	}
}

func TestClient_InitSession_NonPositiveAmount(t *testing.T) {
	client := newTestClient(t, "http://127.0.0.1:0")

	for _, amount := range []float64{0, -10} {
		if _, err := client.InitSession(context.Background(), SessionRequest{Amount: amount, TransactionID: "tran_1"}); err == nil {
			t.Errorf("Expected an error for amount %.2f", amount)
		}
	}
}

func TestClient_InitSession_ContextTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		json.NewEncoder(w).Encode(initResponse{GatewayPageURL: "https://sandbox.sslcommerz.com/pay/late"})
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := client.InitSession(ctx, SessionRequest{Amount: 100, TransactionID: "tran_1"}); err == nil {
		t.Fatal("Expected an error when the context deadline passes")
	}
}
