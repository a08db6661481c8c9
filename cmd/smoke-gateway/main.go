// Command smoke-gateway exercises a running API end to end: it
// registers a throwaway user, checks that a metered call is refused at
// zero balance, grants credits as the seeded admin, and confirms the
// balance and free endpoints behave.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"time"
)

func main() {
	base := os.Getenv("OMNIHUB_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	adminEmail := envOr("OMNIHUB_ADMIN_EMAIL", "admin@omnihub.com")
	adminPassword := envOr("OMNIHUB_ADMIN_PASSWORD", "Admin@123")

	client := &http.Client{Timeout: 10 * time.Second}
	email := fmt.Sprintf("smoke-%d@example.com", rand.Int63())

	// 1. Register a fresh user; signups start at zero credits.
	var reg struct {
		Token string `json:"token"`
		User  struct {
			ID      string `json:"id"`
			Credits int64  `json:"credits"`
		} `json:"user"`
	}
	mustPost(client, base+"/api/auth/register", "", map[string]any{
		"email": email, "name": "Smoke Test", "password": "smoke-test-pass",
	}, http.StatusOK, &reg)
	if reg.User.Credits != 0 {
		log.Fatalf("new user started with %d credits", reg.User.Credits)
	}

	// 2. A metered call at zero balance must be refused with 402.
	var denied struct {
		Required  int64 `json:"required"`
		Available int64 `json:"available"`
	}
	mustPost(client, base+"/api/tools/phone-lookup", reg.Token, map[string]any{
		"query": "03001234567",
	}, http.StatusPaymentRequired, &denied)
	if denied.Required != 1 || denied.Available != 0 {
		log.Fatalf("unexpected 402 payload: %+v", denied)
	}

	// 3. Admin grants credits.
	var adminLogin struct {
		Token string `json:"token"`
	}
	mustPost(client, base+"/api/auth/login", "", map[string]any{
		"email": adminEmail, "password": adminPassword,
	}, http.StatusOK, &adminLogin)

	var adj struct {
		BalanceAfter int64 `json:"balance_after"`
	}
	mustPost(client, base+"/api/admin/credits", adminLogin.Token, map[string]any{
		"user_id": reg.User.ID, "amount": 5, "reason": "smoke test grant",
	}, http.StatusOK, &adj)
	if adj.BalanceAfter != 5 {
		log.Fatalf("balance after grant = %d, want 5", adj.BalanceAfter)
	}

	// 4. Free endpoints cost nothing.
	var listing struct {
		Channels []any `json:"channels"`
	}
	mustGet(client, base+"/api/tools/live-tv/channels", reg.Token, &listing)
	if len(listing.Channels) == 0 {
		log.Fatal("empty channel listing")
	}

	var me struct {
		Credits int64 `json:"credits"`
	}
	mustGet(client, base+"/api/auth/me", reg.Token, &me)
	if me.Credits != 5 {
		log.Fatalf("balance after free browsing = %d, want 5", me.Credits)
	}

	fmt.Printf("✅ gateway smoke test passed: user=%s\n", email)
}

func mustPost(client *http.Client, url, token string, body any, wantStatus int, out any) {
	payload, err := json.Marshal(body)
	if err != nil {
		log.Fatalf("marshal %s: %v", url, err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("request %s: %v", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	do(client, req, wantStatus, out)
}

func mustGet(client *http.Client, url, token string, out any) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		log.Fatalf("request %s: %v", url, err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	do(client, req, http.StatusOK, out)
}

func do(client *http.Client, req *http.Request, wantStatus int, out any) {
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		log.Fatalf("%s %s: status %d, want %d", req.Method, req.URL, resp.StatusCode, wantStatus)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			log.Fatalf("decode %s: %v", req.URL, err)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
