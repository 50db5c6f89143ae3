package action

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

// HTTPRequest performs a generic outbound call. Payload: method, url,
// headers (map of string), body. Non-2xx responses count as failures so the
// chain log shows them, but like any action error they do not abort the
// chain.
type HTTPRequest struct {
	client *retryablehttp.Client
}

func NewHTTPRequest() *HTTPRequest {
	c := retryablehttp.NewClient()
	c.RetryMax = 2
	c.HTTPClient.Timeout = 15 * time.Second
	c.Logger = nil
	return &HTTPRequest{client: c}
}

func (a *HTTPRequest) Type() string { return TypeHTTPRequest }

func (a *HTTPRequest) Execute(ctx context.Context, _ *Context, payload map[string]any) error {
	url := str(payload, "url")
	if url == "" {
		return fmt.Errorf("http_request: url is required")
	}
	method := strings.ToUpper(str(payload, "method"))
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if b := str(payload, "body"); b != "" {
		body = strings.NewReader(b)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("http_request: %w", err)
	}
	if headers, ok := payload["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				req.Header.Set(k, s)
			}
		}
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("http_request %s %s: %w", method, url, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 300 {
		return fmt.Errorf("http_request %s %s: status %d", method, url, resp.StatusCode)
	}
	return nil
}
