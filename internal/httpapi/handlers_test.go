package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"omnihub.io/internal/auth"
	"omnihub.io/internal/gateway"
	"omnihub.io/internal/ledger"
	"omnihub.io/internal/stream"
	"omnihub.io/internal/tools"
)

// scripted is a backend with a fixed outcome.
type scripted struct {
	name string
	resp *gateway.Response
	err  error
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) Invoke(ctx context.Context, payload any) (*gateway.Response, error) {
	return s.resp, s.err
}

func okBackend(name string) *scripted {
	return &scripted{name: name, resp: &gateway.Response{
		Status: gateway.StatusSuccess, Success: true,
		Body: map[string]any{"backend": name},
	}}
}

type apiClient struct {
	baseURL string
	client  *http.Client
	store   *ledger.InMemory
	gw      *gateway.Gateway
	t       *testing.T
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()

	t.Setenv("OMNIHUB_AUTH_SECRET", "test-secret")
	auth.ResetSecretForTests()

	store := ledger.NewInMemory()
	events := stream.New()
	gw := gateway.New(store, gateway.DefaultPolicy(), gateway.WithStream(events))
	dir := tools.DefaultDirectory()
	for _, name := range []string{"phone_lookup", "eyecon_lookup", "temp_email", "youtube_download", "image_enhance"} {
		gw.Register(okBackend(name))
	}
	gw.Register(tools.NewLiveTV(dir, "https://edge.test"))
	gw.Register(tools.NewTamashaOTP())

	api := New(store, gw, gateway.NewAdmin(store), dir, "test", WithEventStream(events))
	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		store:   store,
		gw:      gw,
		t:       t,
	}
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

// seedUser plants a user directly in the store and mints a token.
func (c *apiClient) seedUser(role ledger.Role, credits int64, email string) (ledger.User, map[string]string) {
	c.t.Helper()
	u := &ledger.User{Email: email, Name: "Test", PasswordHash: "x", Role: role, Credits: credits, Active: true}
	if err := c.store.CreateUser(context.Background(), u); err != nil {
		c.t.Fatalf("seed user: %v", err)
	}
	token, err := auth.GenerateToken(u.ID, string(role), time.Hour)
	if err != nil {
		c.t.Fatalf("generate token: %v", err)
	}
	return *u, map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestRegisterLoginMe(t *testing.T) {
	c := newTestAPI(t)

	resp := c.post("/api/auth/register", map[string]any{
		"email": "ali@example.com", "name": "Ali", "password": "hunter2hunter2",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("register status %d", resp.StatusCode)
	}
	reg := decode[tokenResponse](t, resp)
	if reg.Token == "" || reg.User.Email != "ali@example.com" || reg.User.Credits != 0 {
		t.Fatalf("unexpected register response: %+v", reg)
	}

	// Duplicate registration conflicts.
	resp = c.post("/api/auth/register", map[string]any{
		"email": "ALI@example.com", "name": "Ali", "password": "hunter2hunter2",
	}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate register status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Wrong password is a generic 401.
	resp = c.post("/api/auth/login", map[string]any{
		"email": "ali@example.com", "password": "nope-nope",
	}, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("bad login status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.post("/api/auth/login", map[string]any{
		"email": "ali@example.com", "password": "hunter2hunter2",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status %d", resp.StatusCode)
	}
	login := decode[tokenResponse](t, resp)

	resp = c.get("/api/auth/me", nil, map[string]string{"Authorization": "Bearer " + login.Token})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("me status %d", resp.StatusCode)
	}
	me := decode[map[string]any](t, resp)
	if me["email"] != "ali@example.com" {
		t.Fatalf("unexpected me payload: %+v", me)
	}
	if _, leaked := me["password_hash"]; leaked {
		t.Fatal("password hash leaked")
	}
}

func TestMeteredInvokeLifecycle(t *testing.T) {
	c := newTestAPI(t)
	user, userHeaders := c.seedUser(ledger.RoleUser, 0, "u@example.com")
	admin, adminHeaders := c.seedUser(ledger.RoleAdmin, 999999, "admin@example.com")

	// Zero balance: 402 with the shortfall spelled out, nothing logged.
	resp := c.post("/api/tools/phone-lookup", map[string]any{"query": "03001234567"}, userHeaders)
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status %d, want 402", resp.StatusCode)
	}
	denied := decode[map[string]any](t, resp)
	if denied["required"] != float64(1) || denied["available"] != float64(0) {
		t.Fatalf("unexpected 402 payload: %+v", denied)
	}
	if evs, _ := c.store.ListUsageByUser(context.Background(), user.ID, 10); len(evs) != 0 {
		t.Fatalf("usage logged for rejected invoke: %+v", evs)
	}

	// Admin grants 10 credits.
	resp = c.post("/api/admin/credits", map[string]any{
		"user_id": user.ID, "amount": 10, "reason": "signup promo",
	}, adminHeaders)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("adjust status %d", resp.StatusCode)
	}
	adj := decode[ledger.CreditAdjustment](t, resp)
	if adj.BalanceAfter != 10 || adj.AdminID != admin.ID {
		t.Fatalf("unexpected adjustment: %+v", adj)
	}

	// Now the lookup goes through and costs 1.
	resp = c.post("/api/tools/phone-lookup", map[string]any{"query": "03001234567"}, userHeaders)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("invoke status %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["success"] != true || body["credits_used"] != float64(1) {
		t.Fatalf("unexpected invoke body: %+v", body)
	}

	// History shows the event, and only for its owner.
	resp = c.get("/api/user/usage-history", nil, userHeaders)
	hist := decode[map[string]any](t, resp)
	if hist["count"] != float64(1) {
		t.Fatalf("unexpected history: %+v", hist)
	}
	resp = c.get("/api/user/usage-history", nil, adminHeaders)
	hist = decode[map[string]any](t, resp)
	if hist["count"] != float64(0) {
		t.Fatalf("history leaked across users: %+v", hist)
	}
}

func TestHardFailureStillCharged(t *testing.T) {
	c := newTestAPI(t)
	user, headers := c.seedUser(ledger.RoleUser, 10, "u@example.com")

	// image_enhance costs 2 and its backend is down.
	c.gw.Register(&scripted{name: "image_enhance", err: errors.New("upstream down")})

	resp := c.post("/api/tools/image/enhance", map[string]any{"image_url": "https://x.test/a.png"}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["success"] != false || body["credits_used"] != float64(2) || body["error"] == "" {
		t.Fatalf("unexpected body: %+v", body)
	}
	got, _ := c.store.GetUser(context.Background(), user.ID)
	if got.Credits != 8 {
		t.Fatalf("balance = %d, want 8", got.Credits)
	}
	evs, _ := c.store.ListUsageByUser(context.Background(), user.ID, 10)
	if len(evs) != 1 || evs[0].Status != gateway.StatusError {
		t.Fatalf("unexpected usage events: %+v", evs)
	}
}

func TestValidationRejectedBeforeCharge(t *testing.T) {
	c := newTestAPI(t)
	user, headers := c.seedUser(ledger.RoleUser, 10, "u@example.com")

	resp := c.post("/api/tools/youtube/download", map[string]any{"url": "https://vimeo.com/123"}, headers)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status %d, want 400", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.post("/api/tools/live-tv/stream/not-a-channel", nil, headers)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status %d, want 404", resp.StatusCode)
	}
	resp.Body.Close()

	got, _ := c.store.GetUser(context.Background(), user.ID)
	if got.Credits != 10 {
		t.Fatalf("rejected requests were charged: %d", got.Credits)
	}
}

func TestFreeEndpointsDoNotCharge(t *testing.T) {
	c := newTestAPI(t)
	user, headers := c.seedUser(ledger.RoleUser, 5, "u@example.com")

	resp := c.get("/api/tools/live-tv/channels", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("channels status %d", resp.StatusCode)
	}
	listing := decode[map[string]any](t, resp)
	if listing["channels"] == nil || listing["categories"] == nil {
		t.Fatalf("unexpected listing: %+v", listing)
	}

	resp = c.get("/api/tools/live-tv/channels/news", nil, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("category status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/api/tools/live-tv/channels/gardening", nil, headers)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown category status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.post("/api/tools/temp-email/check", map[string]any{
		"login": "abc", "domain": "1secmail.com",
	}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("check status %d", resp.StatusCode)
	}
	resp.Body.Close()

	got, _ := c.store.GetUser(context.Background(), user.ID)
	if got.Credits != 5 {
		t.Fatalf("free endpoints charged: %d", got.Credits)
	}
	if evs, _ := c.store.ListUsageByUser(context.Background(), user.ID, 10); len(evs) != 0 {
		t.Fatalf("free endpoints logged usage: %+v", evs)
	}
}

func TestOTPFlowOverHTTP(t *testing.T) {
	c := newTestAPI(t)
	user, headers := c.seedUser(ledger.RoleUser, 5, "u@example.com")

	resp := c.post("/api/tools/otp/send", map[string]any{"phone": "03001234567"}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("send status %d", resp.StatusCode)
	}
	sent := decode[map[string]any](t, resp)
	if sent["credits_used"] != float64(2) || sent["session_id"] == "" {
		t.Fatalf("unexpected send body: %+v", sent)
	}

	// Verification is free, even when the code is wrong.
	resp = c.post("/api/tools/otp/verify", map[string]any{
		"session_id": sent["session_id"], "code": "0000",
	}, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify status %d", resp.StatusCode)
	}
	resp.Body.Close()

	got, _ := c.store.GetUser(context.Background(), user.ID)
	if got.Credits != 3 {
		t.Fatalf("balance = %d, want 3", got.Credits)
	}
}

func TestAdminEndpointsRequireAdmin(t *testing.T) {
	c := newTestAPI(t)
	_, userHeaders := c.seedUser(ledger.RoleUser, 0, "u@example.com")

	for _, path := range []string{"/api/admin/users", "/api/admin/usage-logs", "/api/admin/credit-logs"} {
		resp := c.get(path, nil, userHeaders)
		if resp.StatusCode != http.StatusForbidden {
			t.Errorf("%s: status %d, want 403", path, resp.StatusCode)
		}
		resp.Body.Close()
	}

	resp := c.post("/api/admin/credits", map[string]any{
		"user_id": "x", "amount": 5, "reason": "nope",
	}, userHeaders)
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("adjust as user: status %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdminGuardrails(t *testing.T) {
	c := newTestAPI(t)
	user, _ := c.seedUser(ledger.RoleUser, 10, "u@example.com")
	admin, adminHeaders := c.seedUser(ledger.RoleAdmin, 0, "admin@example.com")

	// Clawing back more than the balance is rejected.
	resp := c.post("/api/admin/credits", map[string]any{
		"user_id": user.ID, "amount": -999, "reason": "fraud",
	}, adminHeaders)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("overdraw adjust status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// A zero-amount adjustment is a no-op but still legal: the balance
	// stays put and the adjustment row is written.
	resp = c.post("/api/admin/credits", map[string]any{
		"user_id": user.ID, "amount": 0, "reason": "audit note",
	}, adminHeaders)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("zero adjust status %d", resp.StatusCode)
	}
	zero := decode[map[string]any](t, resp)
	if zero["amount"] != float64(0) || zero["balance_after"] != float64(10) {
		t.Fatalf("unexpected zero adjustment: %+v", zero)
	}

	// Admins cannot be suspended.
	resp = c.post("/api/admin/users/"+admin.ID+"/suspend", nil, adminHeaders)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("suspend admin status %d", resp.StatusCode)
	}
	resp.Body.Close()

	// Suspending a user locks them out immediately.
	resp = c.post("/api/admin/users/"+user.ID+"/suspend", nil, adminHeaders)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("suspend status %d", resp.StatusCode)
	}
	out := decode[map[string]any](t, resp)
	if out["is_active"] != false {
		t.Fatalf("unexpected suspend response: %+v", out)
	}

	token, _ := auth.GenerateToken(user.ID, "user", time.Hour)
	resp = c.get("/api/user/usage-history", nil, map[string]string{"Authorization": "Bearer " + token})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("suspended user status %d, want 403", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestAdminListsAndLimits(t *testing.T) {
	c := newTestAPI(t)
	user, userHeaders := c.seedUser(ledger.RoleUser, 10, "u@example.com")
	_, adminHeaders := c.seedUser(ledger.RoleAdmin, 0, "admin@example.com")

	for i := 0; i < 3; i++ {
		resp := c.post("/api/tools/phone-lookup", map[string]any{"query": "03001234567"}, userHeaders)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("invoke %d status %d", i, resp.StatusCode)
		}
		resp.Body.Close()
	}
	_ = user

	resp := c.get("/api/admin/usage-logs", url.Values{"limit": {"2"}}, adminHeaders)
	logs := decode[map[string]any](t, resp)
	if logs["count"] != float64(2) {
		t.Fatalf("unexpected usage logs: %+v", logs)
	}

	resp = c.get("/api/admin/usage-logs", url.Values{"limit": {"9999"}}, adminHeaders)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("oversized limit status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = c.get("/api/admin/users", nil, adminHeaders)
	users := decode[map[string]any](t, resp)
	if users["count"] != float64(2) {
		t.Fatalf("unexpected users payload: %+v", users)
	}
}
