package httpclient

import (
	"context"
	"crypto/tls"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Client wraps resty for HTTP requests to external panels and APIs.
// Retry policy is deliberately not configured here; callers that need retries
// (the panel client) implement their own on top of the raw status code.
type Client struct {
	r *resty.Client
}

// Response is one HTTP exchange result. Non-2xx statuses are returned here,
// not as errors; transport failures are the only error path.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// New creates a new HTTP client with sensible defaults.
func New() *Client {
	return &Client{r: resty.New().SetTimeout(30 * time.Second)}
}

// WithTimeout sets a custom timeout.
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.r.SetTimeout(d)
	return c
}

// WithHeader sets a custom header.
func (c *Client) WithHeader(key, value string) *Client {
	c.r.SetHeader(key, value)
	return c
}

// WithInsecureSkipVerify disables TLS verification.
func (c *Client) WithInsecureSkipVerify() *Client {
	c.r.SetTLSClientConfig(&tls.Config{InsecureSkipVerify: true})
	return c
}

// Do sends a request with an optional JSON body and returns the raw response.
func (c *Client) Do(ctx context.Context, method, url string, body interface{}) (*Response, error) {
	return c.DoWithToken(ctx, method, url, "", body)
}

// DoWithToken is Do with a bearer token scoped to this single request. The
// shared resty client is never mutated, so concurrent callers can carry
// different tokens.
func (c *Client) DoWithToken(ctx context.Context, method, url, token string, body interface{}) (*Response, error) {
	req := c.r.R().SetContext(ctx)
	if token != "" {
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	var (
		resp *resty.Response
		err  error
	)
	switch method {
	case http.MethodGet:
		resp, err = req.Get(url)
	case http.MethodPost:
		resp, err = req.Post(url)
	case http.MethodPut:
		resp, err = req.Put(url)
	case http.MethodPatch:
		resp, err = req.Patch(url)
	case http.MethodDelete:
		resp, err = req.Delete(url)
	default:
		resp, err = req.Execute(method, url)
	}
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

// PostForm sends a POST request with form data.
func (c *Client) PostForm(ctx context.Context, url string, data map[string]string) (*Response, error) {
	resp, err := c.r.R().SetContext(ctx).SetFormData(data).Post(url)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: resp.StatusCode(), Body: resp.Body()}, nil
}

// Raw returns the underlying resty client for advanced usage.
func (c *Client) Raw() *resty.Client {
	return c.r
}
