package restapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"food-delivery/courier/models"
)

// envelope is the uniform REST response wrapper.
type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// ErrorKind separates connectivity failures, which the courier can fix by
// moving or retrying, from everything else.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindConnectivity
)

type RequestError struct {
	Kind ErrorKind
	Err  error
}

func (e *RequestError) Error() string {
	return e.Err.Error()
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// Friendly is the user-facing message for this failure.
func (e *RequestError) Friendly() string {
	if e.Kind == KindConnectivity {
		return "Network problem, check your connection and try again"
	}
	return "Something went wrong, try again"
}

// VerifyResult carries the gateway's answer to a verification attempt.
// A rejected code is a result, not an error.
type VerifyResult struct {
	Success bool
	Message string
}

type Client struct {
	baseURL string
	token   string
	http    *http.Client
	log     *zap.Logger
}

func NewClient(baseURL, token string, timeout time.Duration, log *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
}

// OrdersByStatus fetches the courier's orders filtered by status.
func (c *Client) OrdersByStatus(ctx context.Context, status models.OrderStatus) ([]models.Order, error) {
	u := fmt.Sprintf("%s/orders?status=%s", c.baseURL, url.QueryEscape(string(status)))
	return c.fetchOrders(ctx, u)
}

// AvailableCooked fetches orders open for acceptance.
func (c *Client) AvailableCooked(ctx context.Context) ([]models.Order, error) {
	return c.fetchOrders(ctx, c.baseURL+"/available-cooked")
}

func (c *Client) fetchOrders(ctx context.Context, u string) ([]models.Order, error) {
	env, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	if env.Status != "success" {
		return nil, &RequestError{Kind: KindGeneric, Err: fmt.Errorf("backend rejected request: %s", env.Message)}
	}

	var orders []models.Order
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &orders); err != nil {
			return nil, &RequestError{Kind: KindGeneric, Err: fmt.Errorf("decode orders: %w", err)}
		}
	}
	return orders, nil
}

// VerifyDelivery exchanges a customer-supplied code for order completion.
func (c *Client) VerifyDelivery(ctx context.Context, orderID, code string) (VerifyResult, error) {
	body := map[string]string{
		"order_id":          orderID,
		"verification_code": code,
	}
	env, err := c.do(ctx, http.MethodPost, c.baseURL+"/verify-delivery", body)
	if err != nil {
		return VerifyResult{}, err
	}

	if env.Status != "success" {
		return VerifyResult{Success: false, Message: env.Message}, nil
	}
	return VerifyResult{Success: true}, nil
}

func (c *Client) do(ctx context.Context, method, u string, body interface{}) (*envelope, error) {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &RequestError{Kind: KindGeneric, Err: err}
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, &RequestError{Kind: KindGeneric, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, &RequestError{Kind: KindGeneric, Err: fmt.Errorf("decode response: %w", err)}
	}

	if resp.StatusCode >= 500 {
		c.log.Warn("backend error", zap.String("url", u), zap.Int("code", resp.StatusCode))
	}
	return &env, nil
}

func classify(err error) *RequestError {
	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) {
		return &RequestError{Kind: KindConnectivity, Err: err}
	}
	return &RequestError{Kind: KindGeneric, Err: err}
}
