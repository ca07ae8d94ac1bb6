package ipfs

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

// Client pins escrow job notes through a Pinata-compatible pinning API and
// reads them back through a public gateway. Notes are off-ledger metadata;
// only the CID lands in the escrow row.
type Client struct {
	apiURL     string
	gatewayURL string
	jwt        string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(apiURL, gatewayURL, jwt string, log *zap.Logger) *Client {
	return &Client{
		apiURL:     strings.TrimRight(apiURL, "/"),
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		jwt:        jwt,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: log,
	}
}

func (c *Client) Enabled() bool {
	return c.apiURL != "" && c.jwt != ""
}

type pinRequest struct {
	PinataContent any            `json:"pinataContent"`
	PinataOptions map[string]any `json:"pinataOptions"`
}

type pinResponse struct {
	IpfsHash string `json:"IpfsHash"`
}

// PinJSON pins content and returns its CID.
func (c *Client) PinJSON(ctx context.Context, content any) (string, error) {
	body, err := json.Marshal(pinRequest{
		PinataContent: content,
		PinataOptions: map[string]any{"cidVersion": 1},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/pinning/pinJSONToIPFS", c.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("pinning service unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("pinning service returned %d: %s", resp.StatusCode, string(b))
	}

	var result pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.IpfsHash, nil
}

// FetchJSON reads pinned content from the gateway into dst.
func (c *Client) FetchJSON(ctx context.Context, cid string, dst any) error {
	url := fmt.Sprintf("%s/ipfs/%s", c.gatewayURL, cid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("ipfs gateway unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ipfs gateway returned %d for %s", resp.StatusCode, cid)
	}

	return json.NewDecoder(resp.Body).Decode(dst)
}
