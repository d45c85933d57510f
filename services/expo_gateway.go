package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kbcarlson3/meal-match/models"
)

// DefaultExpoURL is Expo's push send endpoint
const DefaultExpoURL = "https://exp.host/--/api/v2/push/send"

// ExpoGateway posts envelopes to the Expo push API
type ExpoGateway struct {
	URL         string
	AccessToken string
	Client      *http.Client
}

// NewExpoGateway returns a gateway for url, defaulting to DefaultExpoURL
func NewExpoGateway(url, accessToken string) *ExpoGateway {
	if url == "" {
		url = DefaultExpoURL
	}
	return &ExpoGateway{URL: url, AccessToken: accessToken, Client: &http.Client{}}
}

type expoTicket struct {
	Status  string `json:"status"`
	ID      string `json:"id,omitempty"`
	Message string `json:"message,omitempty"`
	Details struct {
		Error string `json:"error,omitempty"`
	} `json:"details"`
}

type expoResponse struct {
	Data   []expoTicket `json:"data"`
	Errors []struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"errors"`
}

// Send submits env to token once. Transport errors, non-2xx statuses and
// error tickets all fail the call.
func (g *ExpoGateway) Send(ctx context.Context, token string, env models.NotificationEnvelope) error {
	env.To = token
	body, err := json.Marshal([]models.NotificationEnvelope{env})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.AccessToken)
	}

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post push: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read push response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("push gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out expoResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("decode push response: %w", err)
	}
	if len(out.Errors) > 0 {
		return fmt.Errorf("push gateway error %s: %s", out.Errors[0].Code, out.Errors[0].Message)
	}
	for _, t := range out.Data {
		if t.Status == "error" {
			if t.Details.Error != "" {
				return fmt.Errorf("push ticket %s: %s", t.Details.Error, t.Message)
			}
			return fmt.Errorf("push ticket: %s", t.Message)
		}
	}
	return nil
}
