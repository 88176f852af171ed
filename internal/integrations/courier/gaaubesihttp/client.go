package gaaubesihttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
	"github.com/seetara/ReconBox/internal/integrations/courier"
)

type Client struct {
	baseURL string
	apiKey  string
	httpc   *http.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:9000"
	}
	if timeout <= 0 {
		// One slow courier call must not stall a whole pass.
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpc: &http.Client{
			Timeout: timeout,
		},
	}
}

type statusResp struct {
	Success bool `json:"success"`
	Data    struct {
		Status string `json:"status"`
	} `json:"data"`
}

func (c *Client) PullStatus(ctx context.Context, externalOrderID string) (*courier.StatusResult, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u.Path = fmt.Sprintf("/api/v1/order/%s/status", url.PathEscape(externalOrderID))

	var r statusResp
	if err := c.getJSON(ctx, u, &r); err != nil {
		return nil, err
	}
	if !r.Success || r.Data.Status == "" {
		// The courier legitimately has nothing new for some orders.
		return nil, nil
	}
	return &courier.StatusResult{Status: r.Data.Status}, nil
}

type commentsResp struct {
	Success  bool             `json:"success"`
	Comments []map[string]any `json:"comments"`
}

func (c *Client) GetOrderComments(ctx context.Context, externalOrderID string) ([]courier.Comment, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	u.Path = fmt.Sprintf("/api/v1/order/%s/comments", url.PathEscape(externalOrderID))

	var r commentsResp
	if err := c.getJSON(ctx, u, &r); err != nil {
		return nil, err
	}
	if !r.Success {
		return nil, nil
	}

	out := make([]courier.Comment, 0, len(r.Comments))
	for _, raw := range r.Comments {
		cm := extractComment(raw)
		if cm.Text == "" {
			// No resolvable text means nothing to store.
			continue
		}
		out = append(out, cm)
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, u *url.URL, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Token "+c.apiKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("courier rate limit (429)")
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("courier http %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decode")
	}
	return nil
}
