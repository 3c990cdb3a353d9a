package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Stage is one entry of a product's supply-chain timeline.
type Stage struct {
	Stage           string  `json:"stage"`
	Location        string  `json:"location"`
	Verification    string  `json:"verification"`
	CarbonFootprint string  `json:"carbon_footprint"`
	Hash            string  `json:"hash"`
	RenewableEnergy *string `json:"renewable_energy,omitempty"`
}

// Provenance is the aggregated ledger record of one product.
type Provenance struct {
	TransactionHash string  `json:"transaction_hash"` // shortened ledger source id
	Timestamp       string  `json:"timestamp"`
	Stages          []Stage `json:"supply_chain"`
	TotalCarbon     string  `json:"total_carbon"`
	CarbonOffset    string  `json:"carbon_offset"`
}

// StageInput is the raw stage tuple sent to HashStage.
type StageInput struct {
	Stage           string `json:"stage"`
	Location        string `json:"location"`
	Verification    string `json:"verification"`
	CarbonFootprint string `json:"carbon_footprint"`
	AdditionalInfo  string `json:"additional_info,omitempty"`
}

// HashResult is the fingerprint derived for a StageInput.
type HashResult struct {
	Hash            string  `json:"hash"`
	RenewableEnergy *string `json:"renewable_energy,omitempty"`
}

// Garment is a catalog entry.
type Garment struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Image       string   `json:"image"`
	Price       string   `json:"price"`
	ESGClaims   []string `json:"esg_claims"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
	ProductID  string
	Step       string // failed ledger query: product, stage_count or stage
	Index      int64  // stage index when Step is "stage"
}

func (e *APIError) Error() string {
	switch {
	case e.Step == "stage":
		return fmt.Sprintf("viewer %d: %s (%s %d of %q)", e.StatusCode, e.Message, e.Step, e.Index, e.ProductID)
	case e.Step != "":
		return fmt.Sprintf("viewer %d: %s (%s of %q)", e.StatusCode, e.Message, e.Step, e.ProductID)
	default:
		return fmt.Sprintf("viewer %d: %s", e.StatusCode, e.Message)
	}
}

// NotFound reports whether the viewer answered 404.
func (e *APIError) NotFound() bool { return e.StatusCode == http.StatusNotFound }

// Client talks to a provenance viewer over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client) error

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return fmt.Errorf("nil http client")
		}
		c.httpClient = hc
		return nil
	}
}

// WithTimeout sets the per-request timeout of the HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
		return nil
	}
}

// New creates a Client for the viewer at baseURL, e.g. "http://localhost:5000".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid viewer URL %q", baseURL)
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Provenance fetches the aggregated provenance of productID.
func (c *Client) Provenance(ctx context.Context, productID string) (*Provenance, error) {
	var out Provenance
	path := "/api/v1/products/" + url.PathEscape(productID) + "/provenance"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HashStage derives the content hash of a raw stage.
func (c *Client) HashStage(ctx context.Context, in StageInput) (*HashResult, error) {
	var out HashResult
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/stages/hash", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Catalog lists the garments the viewer knows about.
func (c *Client) Catalog(ctx context.Context) ([]Garment, error) {
	var out struct {
		Garments []Garment `json:"garments"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/catalog", nil, &out); err != nil {
		return nil, err
	}
	return out.Garments, nil
}

// Garment fetches a single catalog entry.
func (c *Client) Garment(ctx context.Context, id string) (*Garment, error) {
	var out Garment
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/catalog/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, respBody any) error {
	var body io.Reader
	if reqBody != nil {
		data, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return decodeAPIError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, respBody); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeAPIError(status int, data []byte) *APIError {
	var body struct {
		Error     string `json:"error"`
		ProductID string `json:"product_id"`
		Step      string `json:"step"`
		Index     int64  `json:"index"`
	}
	apiErr := &APIError{StatusCode: status}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		apiErr.Message = body.Error
		apiErr.ProductID = body.ProductID
		apiErr.Step = body.Step
		apiErr.Index = body.Index
	} else {
		apiErr.Message = strings.TrimSpace(string(data))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(status)
		}
	}
	return apiErr
}
