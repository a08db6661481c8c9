package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"omnihub.io/internal/gateway"
)

// PhoneLookup queries an upstream subscriber database for a Pakistani
// mobile number. The upstream expects numbers in 92XXXXXXXXXX form.
type PhoneLookup struct {
	baseURL string
	client  *http.Client
}

func NewPhoneLookup(baseURL string, client *http.Client) *PhoneLookup {
	if client == nil {
		client = http.DefaultClient
	}
	return &PhoneLookup{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (p *PhoneLookup) Name() string { return "phone_lookup" }

// SanitizeNumber strips everything but digits and rewrites a leading
// trunk zero to the 92 country code.
func SanitizeNumber(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	n := b.String()
	if strings.HasPrefix(n, "0") {
		n = "92" + n[1:]
	}
	return n
}

func (p *PhoneLookup) Invoke(ctx context.Context, payload any) (*gateway.Response, error) {
	query, ok := payload.(string)
	if !ok || query == "" {
		return nil, fmt.Errorf("phone lookup: empty query")
	}
	number := SanitizeNumber(query)

	u := p.baseURL + "/api/lookup?query=" + url.QueryEscape(number)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("phone lookup: build request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("phone lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("phone lookup: upstream status %d", resp.StatusCode)
	}

	var records []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("phone lookup: decode response: %w", err)
	}
	return &gateway.Response{
		Status:  gateway.StatusSuccess,
		Success: true,
		Detail:  number,
		Body: map[string]any{
			"query":         number,
			"results":       records,
			"results_count": len(records),
		},
	}, nil
}
