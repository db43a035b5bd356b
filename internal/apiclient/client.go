// Package apiclient calls the service's own /v1 API. The retry sweep
// command drives candidates, actions and initiates through it.
package apiclient

import (
	"context"
	"fmt"
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/retry"

	"github.com/go-resty/resty/v2"
)

type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Client struct {
	http *resty.Client
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	c := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetHeader("Accept", "application/json").
		SetError(&APIError{})
	if opts.Token != "" {
		c.SetAuthToken(opts.Token)
	}
	return &Client{http: c}
}

// InitiateResponse mirrors POST /v1/calls/initiate.
type InitiateResponse struct {
	Success          bool   `json:"success"`
	CallUUID         string `json:"call_uuid"`
	OrderID          string `json:"order_id"`
	Phone            string `json:"phone"`
	Status           string `json:"status"`
	ConversationUUID string `json:"conversation_uuid"`
}

func (c *Client) Initiate(ctx context.Context, orderID string) (InitiateResponse, error) {
	var out InitiateResponse
	err := c.do(c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"orderId": orderID}).
		SetResult(&out), "POST", "/v1/calls/initiate")
	return out, err
}

func (c *Client) Candidates(ctx context.Context, q retry.Query) (retry.Candidates, error) {
	req := c.http.R().SetContext(ctx)
	if q.Limit > 0 {
		req.SetQueryParam("limit", fmt.Sprint(q.Limit))
	}
	if q.HoursAgo > 0 {
		req.SetQueryParam("hoursAgo", fmt.Sprint(q.HoursAgo))
	}
	var out retry.Candidates
	err := c.do(req.SetResult(&out), "GET", "/v1/retry/candidates")
	return out, err
}

func (c *Client) Act(ctx context.Context, orderID string, action retry.Action) (retry.ActionResult, error) {
	var out retry.ActionResult
	err := c.do(c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"orderId": orderID, "action": string(action)}).
		SetResult(&out), "POST", "/v1/retry/actions")
	return out, err
}

func (c *Client) do(req *resty.Request, method, path string) error {
	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr, ok := resp.Error().(*APIError)
		if !ok || apiErr == nil {
			apiErr = &APIError{}
		}
		apiErr.StatusCode = resp.StatusCode()
		return apiErr
	}
	return nil
}
