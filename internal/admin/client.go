package admin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"streamrelay/internal/app"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client talks to a running admin server
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient accepts either host:port or a full http URL
func NewClient(address string) *Client {
	base := address
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Status(ctx context.Context) (*app.Status, error) {
	var status app.Status
	if err := c.do(ctx, http.MethodGet, "/status", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

func (c *Client) Connect(ctx context.Context) (string, error) {
	return c.message(ctx, http.MethodPost, "/connect")
}

func (c *Client) Disconnect(ctx context.Context) (string, error) {
	return c.message(ctx, http.MethodPost, "/disconnect")
}

func (c *Client) Reload(ctx context.Context) (string, error) {
	return c.message(ctx, http.MethodPost, "/reload")
}

func (c *Client) Recipients(ctx context.Context) ([]string, error) {
	var resp Response
	if err := c.do(ctx, http.MethodGet, "/recipients", &resp); err != nil {
		return nil, err
	}
	return resp.Recipients, nil
}

func (c *Client) AddRecipient(ctx context.Context, name string) (string, error) {
	return c.message(ctx, http.MethodPut, "/recipients/"+url.PathEscape(name))
}

func (c *Client) RemoveRecipient(ctx context.Context, name string) (string, error) {
	return c.message(ctx, http.MethodDelete, "/recipients/"+url.PathEscape(name))
}

func (c *Client) message(ctx context.Context, method, path string) (string, error) {
	var resp Response
	if err := c.do(ctx, method, path, &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// do sends the request and decodes a 2xx body into out. Error replies are
// returned as errors carrying the server's message.
func (c *Client) do(ctx context.Context, method, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("admin request failed: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read admin response: %w", err)
	}

	if res.StatusCode >= http.StatusBadRequest {
		var failure Response
		if err := json.Unmarshal(body, &failure); err == nil && failure.Error != "" {
			return fmt.Errorf("%s", failure.Error)
		}
		return fmt.Errorf("admin server returned %s", res.Status)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode admin response: %w", err)
	}
	return nil
}
