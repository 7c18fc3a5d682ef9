// Package outsourcing fetches outsourced item annotations from the
// procurement collaborator so the order view can mark lines that were
// sourced externally.
package outsourcing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dukaanpos/backend/internal/domain"
)

// Lister returns the outsourced items recorded against a sale.
type Lister interface {
	ListBySale(ctx context.Context, saleID string) ([]domain.OutsourcedItem, error)
}

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL string, apiKey string) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("outsourcing base url is empty")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 10 * time.Second},
	}, nil
}

type listResponse struct {
	Items []domain.OutsourcedItem `json:"items"`
}

func (c *Client) ListBySale(ctx context.Context, saleID string) ([]domain.OutsourcedItem, error) {
	params := url.Values{}
	params.Set("sale_id", saleID)
	endpoint := c.baseURL + "/v1/outsourced-items?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("outsourcing api error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed listResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}

	// The collaborator is known to return unrelated rows on empty filters.
	// Keep only the requested sale's items.
	items := parsed.Items[:0]
	for _, item := range parsed.Items {
		if item.SaleID == saleID {
			items = append(items, item)
		}
	}
	return items, nil
}

// Noop is used when no collaborator is configured; orders simply show no
// outsourced annotations.
type Noop struct{}

func (Noop) ListBySale(context.Context, string) ([]domain.OutsourcedItem, error) {
	return nil, nil
}
