// Package whatsapp sends replies through the WhatsApp Cloud (Graph) API.
package whatsapp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"

	"sportsreport-bot/internal/config"
)

const defaultBaseURL = "https://graph.facebook.com"

// GenericMessage is the request body of POST /{phone-number-id}/messages.
type GenericMessage struct {
	MessagingProduct string   `json:"messaging_product"`
	RecipientType    string   `json:"recipient_type,omitempty"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             *TextObj `json:"text,omitempty"`
}

type TextObj struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url,omitempty"`
}

// SendResponse is the subset of the Graph API reply we use.
type SendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type Client struct {
	token         string
	phoneNumberID string
	apiVersion    string
	baseURL       string
	http          *http.Client
	logger        *slog.Logger
}

func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	return &Client{
		token:         cfg.WhatsAppToken,
		phoneNumberID: cfg.PhoneNumberID,
		apiVersion:    cfg.GraphAPIVersion,
		baseURL:       defaultBaseURL,
		http:          &http.Client{Timeout: cfg.SendTimeout},
		logger:        logger,
	}
}

// WithBaseURL points the client at another Graph API host.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimSuffix(u, "/")
	return c
}

// DryRun reports whether sends are only logged because credentials are unset.
func (c *Client) DryRun() bool {
	return c.token == "" || c.phoneNumberID == ""
}

// SendText sends a plain text message to the given WhatsApp id and returns
// the provider message id.
func (c *Client) SendText(ctx context.Context, to, body string) (string, error) {
	msg := GenericMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
		Text:             &TextObj{Body: body, PreviewURL: strings.Contains(body, "http")},
	}
	if c.DryRun() {
		c.logger.Info("whatsapp dry run", "to", to, "body", body)
		return "", nil
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, c.phoneNumberID)
	respBody, err := c.sendRequest(ctx, http.MethodPost, url, msg)
	if err != nil {
		return "", err
	}
	var resp SendResponse
	if err := sonic.Unmarshal(respBody, &resp); err != nil {
		return "", fmt.Errorf("decode send response: %w", err)
	}
	if len(resp.Messages) == 0 {
		return "", nil
	}
	c.logger.Debug("whatsapp message sent", "to", to, "wamid", resp.Messages[0].ID)
	return resp.Messages[0].ID, nil
}

func (c *Client) sendRequest(ctx context.Context, method, url string, body any) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := sonic.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph api request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return respBody, fmt.Errorf("graph api error: %s - %s", resp.Status, string(respBody))
	}
	c.logger.Debug("graph api call", "method", method, "status", resp.StatusCode, "elapsed", time.Since(start))
	return respBody, nil
}
