package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound is matched by APIError values carrying a 404.
var ErrNotFound = errors.New("not found")

// Block mirrors one ledger record as served by ledgerd.
type Block struct {
	Index        int     `json:"index"`
	Timestamp    float64 `json:"timestamp"`
	FileHash     string  `json:"file_hash"`
	PreviousHash string  `json:"previous_hash"`
	Hash         string  `json:"hash"`
}

// UploadResult is the response to a successful Upload.
type UploadResult struct {
	Message string `json:"message"`
	Block   Block  `json:"block"`
}

// Overview summarises the chain.
type Overview struct {
	Entries int    `json:"entries"`
	Root    string `json:"root"`
}

// VerifyReport is the server's integrity verdict. Index is set when the
// server could locate the first failing block.
type VerifyReport struct {
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
	Index *int   `json:"index,omitempty"`
}

// APIError is returned for any non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.StatusCode, e.Message)
}

// Is reports whether a 404 is being compared with ErrNotFound.
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client talks to a single ledgerd instance.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	bearerToken string
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithHTTPClient sets a custom http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return errors.New("nil http client")
		}
		c.httpClient = hc
		return nil
	}
}

// WithBearerToken attaches an upload token to every request.
func WithBearerToken(token string) Option {
	return func(c *Client) error {
		c.bearerToken = token
		return nil
	}
}

// WithTimeout sets the per-request timeout of the underlying http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		c.httpClient.Timeout = d
		return nil
	}
}

// New creates a Client for the server at baseURL.
//
//	c, err := client.New("http://localhost:5000", client.WithTimeout(time.Minute))
func New(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("base URL is required")
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

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(baseURL string, opts ...Option) *Client {
	c, err := New(baseURL, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// Upload streams r to POST /upload as the multipart field "file".
func (c *Client) Upload(ctx context.Context, filename string, r io.Reader) (*UploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", filename)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, r); err != nil {
			pw.CloseWithError(fmt.Errorf("read %s: %w", filename, err))
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/upload", pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out UploadResult
	if err := c.do(req, &out); err != nil {
		pr.Close()
		return nil, err
	}
	return &out, nil
}

// Chain returns every block, genesis first.
func (c *Client) Chain(ctx context.Context) ([]Block, error) {
	var blocks []Block
	if err := c.get(ctx, "/blockchain", &blocks); err != nil {
		return nil, err
	}
	return blocks, nil
}

// Overview returns the chain length and root hash.
func (c *Client) Overview(ctx context.Context) (*Overview, error) {
	var out Overview
	if err := c.get(ctx, "/api/v1/ledger", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Entry returns the block at index.
func (c *Client) Entry(ctx context.Context, index int) (*Block, error) {
	var out Block
	if err := c.get(ctx, "/api/v1/ledger/entries/"+strconv.Itoa(index), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Verify asks the server to walk the full chain. A broken chain is reported
// in the result, not as an error.
func (c *Client) Verify(ctx context.Context) (*VerifyReport, error) {
	var out VerifyReport
	if err := c.get(ctx, "/api/v1/ledger/verify", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return c.do(req, out)
}

// do executes req, attaching the bearer token if present, and decodes a
// 2xx JSON body into out.
func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		var payload struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(body))
		if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
			msg = payload.Error
		}
		return &APIError{StatusCode: resp.StatusCode, Message: msg}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
