// Package payment wraps the Flutterwave REST API for plan registration and
// checkout initiation.
package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Config configures the payment processor client.
type Config struct {
	BaseURL   string
	SecretKey string
	Timeout   time.Duration
}

// Client calls the payment processor HTTP API.
type Client struct {
	http *resty.Client
}

// NewClient constructs a Client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("payment secret key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.flutterwave.com"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	http := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetAuthToken(cfg.SecretKey)

	return &Client{http: http}, nil
}

// PlanSpec describes a plan to register with the processor.
type PlanSpec struct {
	Name     string
	Amount   int64
	Interval string
	Cycles   int
}

type planResponse struct {
	Status string `json:"status"`
	Data   struct {
		ID int64 `json:"id"`
	} `json:"data"`
	Message string `json:"message"`
}

// CreatePlan registers the plan and returns the processor's plan id.
func (c *Client) CreatePlan(ctx context.Context, spec PlanSpec) (string, error) {
	var out planResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"name":     spec.Name,
			"amount":   spec.Amount,
			"interval": spec.Interval,
			"duration": spec.Cycles,
		}).
		SetResult(&out).
		Post("/v3/payment-plans")
	if err != nil {
		return "", fmt.Errorf("create plan: %w", err)
	}
	if resp.IsError() || out.Status != "success" {
		return "", fmt.Errorf("create plan: processor returned %s: %s", resp.Status(), out.Message)
	}
	return fmt.Sprintf("%d", out.Data.ID), nil
}

// CheckoutRequest describes a payment to initiate.
type CheckoutRequest struct {
	TxRef           string
	Amount          int64
	Currency        string
	CustomerEmail   string
	ProcessorPlanID string
	RedirectURL     string
}

type checkoutResponse struct {
	Status string `json:"status"`
	Data   struct {
		Link string `json:"link"`
	} `json:"data"`
	Message string `json:"message"`
}

// InitiateCheckout starts a hosted payment and returns the checkout link.
func (c *Client) InitiateCheckout(ctx context.Context, req CheckoutRequest) (string, error) {
	body := map[string]any{
		"tx_ref":       req.TxRef,
		"amount":       req.Amount,
		"currency":     req.Currency,
		"redirect_url": req.RedirectURL,
		"customer": map[string]string{
			"email": req.CustomerEmail,
		},
	}
	if req.ProcessorPlanID != "" {
		body["payment_plan"] = req.ProcessorPlanID
	}

	var out checkoutResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v3/payments")
	if err != nil {
		return "", fmt.Errorf("initiate checkout: %w", err)
	}
	if resp.IsError() || out.Status != "success" {
		return "", fmt.Errorf("initiate checkout: processor returned %s: %s", resp.Status(), out.Message)
	}
	return out.Data.Link, nil
}

// Processor adapts Client to the shape the billing service consumes, pinning
// the currency and post-payment redirect for all checkouts.
type Processor struct {
	client      *Client
	currency    string
	redirectURL string
}

// NewProcessor wraps the client for use by the billing service.
func NewProcessor(client *Client, currency, redirectURL string) *Processor {
	if client == nil {
		panic("payment client is required")
	}
	if currency == "" {
		currency = "NGN"
	}
	return &Processor{client: client, currency: currency, redirectURL: redirectURL}
}

// CreatePlan registers a plan with the processor.
func (p *Processor) CreatePlan(ctx context.Context, name string, amount int64, interval string, cycles int) (string, error) {
	return p.client.CreatePlan(ctx, PlanSpec{Name: name, Amount: amount, Interval: interval, Cycles: cycles})
}

// InitiateCheckout starts a hosted payment and returns the checkout link.
func (p *Processor) InitiateCheckout(ctx context.Context, txRef string, amount int64, email, processorPlanID string) (string, error) {
	return p.client.InitiateCheckout(ctx, CheckoutRequest{
		TxRef:           txRef,
		Amount:          amount,
		Currency:        p.currency,
		CustomerEmail:   email,
		ProcessorPlanID: processorPlanID,
		RedirectURL:     p.redirectURL,
	})
}
