// Package gateway holds the SSLCommerz-style payment gateway client. Only
// the session-initiation contract matters to the booking workflow: amount and
// transaction id in, redirect URL out.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"booking-svc/config"

	"go.uber.org/zap"
)

type Client struct {
	initURL     string
	storeID     string
	storePass   string
	frontendURL string
	httpClient  *http.Client
	logger      *zap.Logger
}

type SessionRequest struct {
	Amount        float64
	TransactionID string
	Name          string
	Email         string
	Phone         string
	Address       string
}

type initPayload struct {
	StoreID     string  `json:"store_id"`
	StorePasswd string  `json:"store_passwd"`
	TotalAmount float64 `json:"total_amount"`
	Currency    string  `json:"currency"`
	TranID      string  `json:"tran_id"`
	SuccessURL  string  `json:"success_url"`
	FailURL     string  `json:"fail_url"`
	CancelURL   string  `json:"cancel_url"`
	CusName     string  `json:"cus_name"`
	CusEmail    string  `json:"cus_email"`
	CusPhone    string  `json:"cus_phone"`
	CusAdd1     string  `json:"cus_add1"`
}

type initResponse struct {
	Status         string `json:"status"`
	GatewayPageURL string `json:"GatewayPageURL"`
	FailedReason   string `json:"failedreason"`
}

func NewClient(cfg *config.Config, logger *zap.Logger) *Client {
	return &Client{
		initURL:     cfg.GatewayURL,
		storeID:     cfg.GatewayStoreID,
		storePass:   cfg.GatewayStorePass,
		frontendURL: cfg.FrontendURL,
		httpClient:  &http.Client{},
		logger:      logger,
	}
}

// InitSession asks the gateway for a checkout session and returns the
// redirect URL. The caller bounds the call with its context; an expired
// context fails the call like any other gateway error.
func (c *Client) InitSession(ctx context.Context, req SessionRequest) (string, error) {
	if req.Amount <= 0 {
		return "", fmt.Errorf("gateway: amount must be positive, got %.2f", req.Amount)
	}

	payload := initPayload{
		StoreID:     c.storeID,
		StorePasswd: c.storePass,
		TotalAmount: req.Amount,
		Currency:    "BDT",
		TranID:      req.TransactionID,
		SuccessURL:  c.frontendURL + "/payments/success",
		FailURL:     c.frontendURL + "/payments/fail",
		CancelURL:   c.frontendURL + "/payments/cancel",
		CusName:     req.Name,
		CusEmail:    req.Email,
		CusPhone:    req.Phone,
		CusAdd1:     req.Address,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("gateway: failed to marshal payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.initURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("gateway: failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gateway: init request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("gateway: init returned status %d", resp.StatusCode)
	}

	var result initResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("gateway: failed to decode response: %w", err)
	}
	if result.GatewayPageURL == "" {
		return "", fmt.Errorf("gateway: session rejected: %s", result.FailedReason)
	}

	c.logger.Info("Payment session initiated",
		zap.String("transaction_id", req.TransactionID),
		zap.Float64("amount", req.Amount),
	)
	return result.GatewayPageURL, nil
}
