// Package pricewatch polls crypto spot prices and raises an alert when a
// symbol moves more than a configured percentage. The bot surfaces these
// alerts in the channel so traders notice pump-style moves that scammers
// like to ride.
package pricewatch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// Client fetches spot prices from a Binance-compatible ticker endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient builds a ticker client. A nil httpClient falls back to a
// plain client with a short timeout.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

type tickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// Price returns the current spot price for a symbol such as BTCUSDT.
func (c *Client) Price(ctx context.Context, symbol string) (float64, error) {
	u := fmt.Sprintf("%s/ticker/price?symbol=%s", c.baseURL, url.QueryEscape(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("ticker %s: unexpected status %d", symbol, resp.StatusCode)
	}
	var tr tickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return 0, fmt.Errorf("ticker %s: decode: %w", symbol, err)
	}
	price, err := strconv.ParseFloat(tr.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("ticker %s: bad price %q", symbol, tr.Price)
	}
	return price, nil
}
