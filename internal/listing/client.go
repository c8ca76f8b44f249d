// Package listing reads the external equity-token listing service that
// publishes the investable catalog and its prices.
package listing

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"analyticaos/internal/utils"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Listing is one token as published by the service. Price is kobo per unit.
type Listing struct {
	ExternalID  string
	Symbol      string
	Name        string
	Description string
	Price       int64
	Supply      int64
	AnnualYield decimal.Decimal
	MaturityAt  *time.Time
}

// Client fetches listings
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a client. A nil httpClient gets a 15 second timeout.
func NewClient(baseURL, apiKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey, http: httpClient}
}

// Configured reports whether a base URL was provided
func (c *Client) Configured() bool { return c.baseURL != "" }

// Fetch returns every listing. Entries without a symbol or a positive price are skipped.
func (c *Client) Fetch(ctx context.Context) ([]Listing, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tokens", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("x-api-key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch listings: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read listings: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch listings: unexpected status %s", resp.Status)
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("fetch listings: invalid JSON")
	}

	var out []Listing
	gjson.GetBytes(raw, "data").ForEach(func(_, item gjson.Result) bool {
		price, err := decimal.NewFromString(item.Get("price").String())
		symbol := strings.ToUpper(strings.TrimSpace(item.Get("symbol").String()))
		if err != nil || !price.IsPositive() || symbol == "" {
			return true
		}
		apy, err := decimal.NewFromString(item.Get("apy").String())
		if err != nil {
			apy = decimal.Zero
		}
		l := Listing{
			ExternalID:  item.Get("id").String(),
			Symbol:      symbol,
			Name:        item.Get("name").String(),
			Description: item.Get("description").String(),
			Price:       utils.NairaToKobo(price),
			Supply:      item.Get("supply").Int(),
			AnnualYield: apy,
		}
		if m := item.Get("maturityDate").String(); m != "" {
			if ts, err := time.Parse(time.RFC3339, m); err == nil {
				l.MaturityAt = &ts
			} else if ts, err := time.Parse(time.DateOnly, m); err == nil {
				l.MaturityAt = &ts
			}
		}
		if l.Name == "" {
			l.Name = symbol
		}
		out = append(out, l)
		return true
	})
	return out, nil
}
