// Package orderapi is the HTTP client for the remote product and order API.
package orderapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GoCodeAlone/storefront"
	"github.com/GoCodeAlone/storefront/catalog"
	"github.com/GoCodeAlone/storefront/order"
)

// Client errors
var (
	ErrBaseURLRequired  = errors.New("order API base URL is required")
	ErrInvalidBaseURL   = errors.New("order API base URL is invalid")
	ErrUnexpectedStatus = errors.New("unexpected response status")
	ErrDecodeResponse   = errors.New("failed to decode response")
)

const maxErrorBody = 4 << 10

// Client talks to the product and order API. It implements order.Submitter
// and catalogsync.Source.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     storefront.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Its transport is still
// wrapped with request logging.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, timeout time.Duration, logger storefront.Logger, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, ErrBaseURLRequired
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, baseURL)
	}
	if logger == nil {
		logger = storefront.NopLogger{}
	}

	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *c.httpClient
	wrapped.Transport = &loggingTransport{Transport: base, Logger: logger}
	c.httpClient = &wrapped
	return c, nil
}

type productList struct {
	Total int                  `json:"total"`
	Items []catalog.RawProduct `json:"items"`
}

// Products fetches the full catalog.
func (c *Client) Products(ctx context.Context) ([]catalog.RawProduct, error) {
	var list productList
	if err := c.do(ctx, http.MethodGet, "/product", nil, &list); err != nil {
		return nil, err
	}
	if list.Items == nil {
		list.Items = []catalog.RawProduct{}
	}
	return list.Items, nil
}

// Product fetches a single product.
func (c *Client) Product(ctx context.Context, id string) (catalog.RawProduct, error) {
	var p catalog.RawProduct
	err := c.do(ctx, http.MethodGet, "/product/"+url.PathEscape(id), nil, &p)
	return p, err
}

type orderRequest struct {
	Payment string      `json:"payment"`
	Email   string      `json:"email"`
	Phone   string      `json:"phone"`
	Address string      `json:"address"`
	Total   json.Number `json:"total"`
	Items   []string    `json:"items"`
}

type orderResponse struct {
	ID    string          `json:"id"`
	Total decimal.Decimal `json:"total"`
}

// CreateOrder submits a finalized order.
func (c *Client) CreateOrder(ctx context.Context, o order.Order) (order.Result, error) {
	req := orderRequest{
		Payment: string(o.Payment),
		Email:   o.Email,
		Phone:   o.Phone,
		Address: o.Address,
		Total:   json.Number(o.Total.String()),
		Items:   o.Items,
	}
	if req.Items == nil {
		req.Items = []string{}
	}

	var resp orderResponse
	if err := c.do(ctx, http.MethodPost, "/order", req, &resp); err != nil {
		return order.Result{}, err
	}
	return order.Result{ID: resp.ID, Total: resp.Total}, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var apiErr errorResponse
		msg := strings.TrimSpace(string(raw))
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		return fmt.Errorf("%w: %s %s: %d %s", ErrUnexpectedStatus, method, path, resp.StatusCode, msg)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %w", ErrDecodeResponse, err)
	}
	return nil
}
