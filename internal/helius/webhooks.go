package helius

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"swapwatch/internal/httpx"
)

// ErrNoAddresses is returned when a webhook would watch no accounts.
var ErrNoAddresses = errors.New("no wallet addresses to watch")

// WebhookOptions configure webhook registration.
type WebhookOptions struct {
	APIURL     string
	APIKey     string
	WebhookURL string
	AuthSecret string
}

// Webhook mirrors the registration payload and response.
type Webhook struct {
	WebhookID        string   `json:"webhookID,omitempty"`
	Wallet           string   `json:"wallet,omitempty"`
	WebhookURL       string   `json:"webhookURL"`
	TransactionTypes []string `json:"transactionTypes"`
	AccountAddresses []string `json:"accountAddresses"`
	WebhookType      string   `json:"webhookType"`
	AuthHeader       string   `json:"authHeader,omitempty"`
	TxnStatus        string   `json:"txnStatus,omitempty"`
}

// WebhookClient manages the enhanced webhook that feeds the server.
type WebhookClient struct {
	http   *httpx.Client
	opts   WebhookOptions
	logger zerolog.Logger
}

// NewWebhookClient constructs a WebhookClient.
func NewWebhookClient(client *httpx.Client, opts WebhookOptions, logger zerolog.Logger) *WebhookClient {
	opts.APIURL = strings.TrimRight(opts.APIURL, "/")
	return &WebhookClient{
		http:   client,
		opts:   opts,
		logger: logger.With().Str("component", "helius_webhooks").Logger(),
	}
}

// Create registers a new webhook watching addresses.
func (c *WebhookClient) Create(ctx context.Context, addresses []string) (*Webhook, error) {
	return c.send(ctx, http.MethodPost, "", addresses)
}

// Update replaces the watched addresses of an existing webhook.
func (c *WebhookClient) Update(ctx context.Context, webhookID string, addresses []string) (*Webhook, error) {
	if webhookID == "" {
		return nil, errors.New("webhook id is required")
	}
	return c.send(ctx, http.MethodPut, webhookID, addresses)
}

func (c *WebhookClient) send(ctx context.Context, method, webhookID string, addresses []string) (*Webhook, error) {
	watched := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		if addr = strings.TrimSpace(addr); addr != "" {
			watched = append(watched, addr)
		}
	}
	if len(watched) == 0 {
		return nil, ErrNoAddresses
	}
	if c.opts.WebhookURL == "" {
		return nil, errors.New("webhook url is not configured")
	}

	req := Webhook{
		WebhookURL:       c.opts.WebhookURL,
		TransactionTypes: []string{"SWAP", "TRANSFER"},
		AccountAddresses: watched,
		WebhookType:      "enhanced",
		TxnStatus:        "success",
	}
	if c.opts.AuthSecret != "" {
		req.AuthHeader = "Bearer " + c.opts.AuthSecret
	}

	var resp Webhook
	if err := c.http.SendJSON(ctx, method, c.endpoint(webhookID), nil, req, &resp); err != nil {
		return nil, fmt.Errorf("%s webhook: %w", strings.ToLower(method), err)
	}

	c.logger.Info().
		Str("webhook_id", resp.WebhookID).
		Int("addresses", len(watched)).
		Msg("webhook registered")
	return &resp, nil
}

func (c *WebhookClient) endpoint(webhookID string) string {
	path := c.opts.APIURL + "/v0/webhooks"
	if webhookID != "" {
		path += "/" + url.PathEscape(webhookID)
	}
	return path + "?api-key=" + url.QueryEscape(c.opts.APIKey)
}
