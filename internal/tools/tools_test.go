package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"omnihub.io/internal/gateway"
)

func TestSanitizeNumber(t *testing.T) {
	cases := []struct{ in, want string }{
		{"0300-1234567", "923001234567"},
		{"+92 300 1234567", "923001234567"},
		{"923001234567", "923001234567"},
		{"(0300) 123 4567", "923001234567"},
	}
	for _, c := range cases {
		if got := SanitizeNumber(c.in); got != c.want {
			t.Errorf("SanitizeNumber(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestPhoneLookup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/lookup" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("query"); got != "923001234567" {
			t.Errorf("query = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"name":"ALI KHAN","cnic":"3520112345671"}]`))
	}))
	defer srv.Close()

	p := NewPhoneLookup(srv.URL, srv.Client())
	resp, err := p.Invoke(context.Background(), "0300-1234567")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != gateway.StatusSuccess || resp.Body["results_count"] != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestPhoneLookupUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	p := NewPhoneLookup(srv.URL, srv.Client())
	if _, err := p.Invoke(context.Background(), "0300-1234567"); err == nil {
		t.Fatal("expected hard failure on upstream 502")
	}
}

func TestEyeconAuthFailureIsSoft(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	e := NewEyeconLookup(srv.URL, map[string]string{"e-auth-v": "stale"}, srv.Client())
	resp, err := e.Invoke(context.Background(), "03001234567")
	if err != nil {
		t.Fatalf("auth failure must degrade, not error: %v", err)
	}
	if resp.Status != "auth_failed" || resp.Body["mode"] != "safe" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestEyeconUnexpectedStatusLabelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewEyeconLookup(srv.URL, nil, srv.Client())
	resp, err := e.Invoke(context.Background(), "03001234567")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != "status_429" {
		t.Fatalf("status = %q, want status_429", resp.Status)
	}
}

func TestEyeconLive(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("e-auth-v") != "v1" {
			t.Errorf("missing auth header")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"name":"Ali"}`))
	}))
	defer srv.Close()

	e := NewEyeconLookup(srv.URL, map[string]string{"e-auth-v": "v1"}, srv.Client())
	resp, err := e.Invoke(context.Background(), "03001234567")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Status != gateway.StatusSuccess || resp.Body["mode"] != "live" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestTempMailGenerateUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`["abc123@1secmail.com"]`))
	}))
	defer srv.Close()

	tm := NewTempMail(srv.URL, srv.Client())
	resp, err := tm.Invoke(context.Background(), TempMailRequest{Action: TempMailGenerate})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Body["email"] != "abc123@1secmail.com" || resp.Body["login"] != "abc123" {
		t.Fatalf("unexpected response: %+v", resp.Body)
	}
}

func TestTempMailGenerateFallsBackLocally(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	tm := NewTempMail(srv.URL, srv.Client())
	resp, err := tm.Invoke(context.Background(), TempMailRequest{Action: TempMailGenerate})
	if err != nil {
		t.Fatalf("generation must fall back locally: %v", err)
	}
	email, _ := resp.Body["email"].(string)
	if email == "" || resp.Body["login"] == "" || resp.Body["domain"] == "" {
		t.Fatalf("unexpected local address: %+v", resp.Body)
	}
}

func TestTempMailCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("action") != "getMessages" || q.Get("login") != "abc" || q.Get("domain") != "1secmail.com" {
			t.Errorf("unexpected query: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`[{"id":1,"from":"noreply@example.com","subject":"Hi"}]`))
	}))
	defer srv.Close()

	tm := NewTempMail(srv.URL, srv.Client())
	resp, err := tm.Invoke(context.Background(), TempMailRequest{Action: TempMailCheck, Login: "abc", Domain: "1secmail.com"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Body["count"] != 1 {
		t.Fatalf("unexpected response: %+v", resp.Body)
	}
}

func TestExtractVideoID(t *testing.T) {
	cases := []struct {
		in   string
		id   string
		want bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ&t=10s", "dQw4w9WgXcQ", true},
		{"https://vimeo.com/12345", "", false},
		{"not a url", "", false},
		{"https://youtu.be/short", "", false},
	}
	for _, c := range cases {
		id, ok := ExtractVideoID(c.in)
		if ok != c.want || (ok && id != c.id) {
			t.Errorf("ExtractVideoID(%q) = %q,%v want %q,%v", c.in, id, ok, c.id, c.want)
		}
	}
}

func TestVideoDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"title":"Song","author_name":"Artist","thumbnail_url":"https://i.ytimg.com/x.jpg"}`))
	}))
	defer srv.Close()

	v := NewVideoDownload(srv.URL, srv.Client())
	resp, err := v.Invoke(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Body["title"] != "Song" || resp.Body["video_id"] != "dQw4w9WgXcQ" {
		t.Fatalf("unexpected response: %+v", resp.Body)
	}
	links, ok := resp.Body["links"].([]map[string]string)
	if !ok || len(links) != 3 {
		t.Fatalf("unexpected links: %+v", resp.Body["links"])
	}
}

func TestImageEnhance(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/enhance" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"output_url":"https://cdn.example.com/enhanced.png"}`))
	}))
	defer srv.Close()

	i := NewImageEnhance(srv.URL, srv.Client())
	resp, err := i.Invoke(context.Background(), "https://example.com/photo.png")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Body["enhanced_url"] != "https://cdn.example.com/enhanced.png" {
		t.Fatalf("unexpected response: %+v", resp.Body)
	}
}

func TestDirectoryLookups(t *testing.T) {
	d := DefaultDirectory()
	if len(d.Channels()) == 0 {
		t.Fatal("empty default directory")
	}
	news := d.ByCategory("news")
	if len(news) == 0 {
		t.Fatal("no news channels")
	}
	for _, c := range news {
		if c.Category != "news" {
			t.Errorf("wrong category: %+v", c)
		}
	}
	if _, ok := d.Find("geo-news"); !ok {
		t.Fatal("geo-news missing")
	}
	if _, ok := d.Find("nope"); ok {
		t.Fatal("found nonexistent channel")
	}
}

func TestLiveTVStream(t *testing.T) {
	l := NewLiveTV(DefaultDirectory(), "https://edge.omnihub.io")
	resp, err := l.Invoke(context.Background(), "ptv-sports")
	if err != nil {
		t.Fatal(err)
	}
	if resp.Body["stream_url"] != "https://edge.omnihub.io/hls/ptv-sports/index.m3u8" {
		t.Fatalf("unexpected stream url: %v", resp.Body["stream_url"])
	}
	if _, err := l.Invoke(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for unknown channel")
	}
}

func TestOTPSendAndVerify(t *testing.T) {
	o := NewTamashaOTP()
	resp, err := o.Invoke(context.Background(), OTPRequest{Action: OTPSend, Phone: "03001234567"})
	if err != nil {
		t.Fatal(err)
	}
	sessionID, _ := resp.Body["session_id"].(string)
	if sessionID == "" || resp.Body["phone"] != "923001234567" {
		t.Fatalf("unexpected response: %+v", resp.Body)
	}
	code, ok := o.peekCode(sessionID)
	if !ok {
		t.Fatal("session not stored")
	}

	resp, err = o.Invoke(context.Background(), OTPRequest{Action: OTPVerify, SessionID: sessionID, Code: "wrong"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Body["verified"] != false {
		t.Fatalf("wrong code verified: %+v", resp.Body)
	}

	resp, err = o.Invoke(context.Background(), OTPRequest{Action: OTPVerify, SessionID: sessionID, Code: code})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Body["verified"] != true {
		t.Fatalf("correct code rejected: %+v", resp.Body)
	}

	// One-shot: a verified session is consumed.
	resp, _ = o.Invoke(context.Background(), OTPRequest{Action: OTPVerify, SessionID: sessionID, Code: code})
	if resp.Body["verified"] != false {
		t.Fatal("consumed session verified again")
	}
}

func TestOTPSessionExpiry(t *testing.T) {
	o := NewTamashaOTP()
	now := time.Now()
	o.now = func() time.Time { return now }

	resp, err := o.Invoke(context.Background(), OTPRequest{Action: OTPSend, Phone: "03001234567"})
	if err != nil {
		t.Fatal(err)
	}
	sessionID := resp.Body["session_id"].(string)
	code, _ := o.peekCode(sessionID)

	o.now = func() time.Time { return now.Add(otpSessionTTL + time.Second) }
	resp, err = o.Invoke(context.Background(), OTPRequest{Action: OTPVerify, SessionID: sessionID, Code: code})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Body["verified"] != false {
		t.Fatal("expired session verified")
	}
}
