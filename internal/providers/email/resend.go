package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const resendEndpoint = "https://api.resend.com/emails"

// ResendProvider delivers mail through the Resend REST API. Resend enforces
// roughly 2 requests per second; callers pace dependent sends accordingly.
type ResendProvider struct {
	apiKey     string
	httpClient *http.Client
}

func NewResend(apiKey string) *ResendProvider {
	return &ResendProvider{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

type resendResponse struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}

func (p *ResendProvider) Send(ctx context.Context, from, to, subject, htmlBody string) (string, error) {
	payload, err := json.Marshal(resendRequest{
		From:    from,
		To:      []string{to},
		Subject: subject,
		HTML:    htmlBody,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, resendEndpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return "", err
	}

	var decoded resendResponse
	_ = json.Unmarshal(body, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := decoded.Message
		if msg == "" {
			msg = string(body)
		}
		return "", fmt.Errorf("resend: status %d: %s", resp.StatusCode, msg)
	}
	return decoded.ID, nil
}
