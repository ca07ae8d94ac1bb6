package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client talks to the cross-chain bridge aggregator. Quotes are advisory:
// the backend never submits bridge transactions, it only prices a route so
// a freelancer can move released funds off TON.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(baseURL, apiKey string, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

// Enabled reports whether a bridge endpoint was configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

type QuoteRequest struct {
	SourceChain      string `json:"source_chain"`
	DestinationChain string `json:"destination_chain"`
	Token            string `json:"token"`
	Amount           int64  `json:"amount"`
	FromAddress      string `json:"from_address"`
	ToAddress        string `json:"to_address"`
}

type Quote struct {
	RouteID          string `json:"route_id"`
	SourceChain      string `json:"source_chain"`
	DestinationChain string `json:"destination_chain"`
	AmountIn         int64  `json:"amount_in"`
	AmountOut        int64  `json:"amount_out"`
	FeeAmount        int64  `json:"fee_amount"`
	EstimatedSeconds int    `json:"estimated_seconds"`
	ExpiresAt        string `json:"expires_at"`
}

func (c *Client) GetQuote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/quote", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("bridge service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bridge service returned %d: %s", resp.StatusCode, string(b))
	}

	var quote Quote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, err
	}
	return &quote, nil
}
