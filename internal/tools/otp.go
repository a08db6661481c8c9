package tools

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"sync"
	"time"

	"omnihub.io/internal/gateway"
	"omnihub.io/internal/ids"
)

// OTPRequest selects between sending a code (metered) and verifying
// one (free).
type OTPRequest struct {
	Action    string `json:"action"`
	Phone     string `json:"phone,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	Code      string `json:"code,omitempty"`
}

const (
	OTPSend   = "send"
	OTPVerify = "verify"
)

const otpSessionTTL = 5 * time.Minute

type otpSession struct {
	phone   string
	code    string
	expires time.Time
}

// TamashaOTP drives the Tamasha login OTP flow. Sessions live in
// memory and expire after otpSessionTTL.
type TamashaOTP struct {
	mu       sync.Mutex
	sessions map[string]otpSession
	now      func() time.Time
}

func NewTamashaOTP() *TamashaOTP {
	return &TamashaOTP{sessions: make(map[string]otpSession), now: time.Now}
}

func (t *TamashaOTP) Name() string { return "tamasha_otp" }

func (t *TamashaOTP) Invoke(ctx context.Context, payload any) (*gateway.Response, error) {
	req, ok := payload.(OTPRequest)
	if !ok {
		return nil, fmt.Errorf("tamasha otp: invalid payload")
	}
	switch req.Action {
	case OTPSend:
		return t.send(req.Phone)
	case OTPVerify:
		return t.verify(req.SessionID, req.Code)
	default:
		return nil, fmt.Errorf("tamasha otp: unknown action %q", req.Action)
	}
}

func (t *TamashaOTP) send(phone string) (*gateway.Response, error) {
	if phone == "" {
		return nil, fmt.Errorf("tamasha otp: empty phone")
	}
	number := SanitizeNumber(phone)
	code := randomCode()
	sessionID := ids.New()

	t.mu.Lock()
	t.sessions[sessionID] = otpSession{phone: number, code: code, expires: t.now().Add(otpSessionTTL)}
	t.mu.Unlock()

	return &gateway.Response{
		Status:  gateway.StatusSuccess,
		Success: true,
		Detail:  number,
		Body: map[string]any{
			"session_id": sessionID,
			"phone":      number,
			"expires_in": int(otpSessionTTL.Seconds()),
		},
	}, nil
}

func (t *TamashaOTP) verify(sessionID, code string) (*gateway.Response, error) {
	if sessionID == "" || code == "" {
		return nil, fmt.Errorf("tamasha otp: session_id and code required")
	}
	t.mu.Lock()
	s, ok := t.sessions[sessionID]
	if ok && t.now().After(s.expires) {
		delete(t.sessions, sessionID)
		ok = false
	}
	verified := ok && s.code == code
	if verified {
		delete(t.sessions, sessionID)
	}
	t.mu.Unlock()

	if !ok {
		return &gateway.Response{
			Status:  gateway.StatusSuccess,
			Success: true,
			Body:    map[string]any{"verified": false, "reason": "session expired or unknown"},
		}, nil
	}
	body := map[string]any{"verified": verified, "phone": s.phone}
	if !verified {
		body["reason"] = "wrong code"
	}
	return &gateway.Response{Status: gateway.StatusSuccess, Success: true, Body: body}, nil
}

func randomCode() string {
	n, _ := rand.Int(rand.Reader, big.NewInt(10000))
	return fmt.Sprintf("%04d", n.Int64())
}

// peekCode exposes the stored code to tests.
func (t *TamashaOTP) peekCode(sessionID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sessions[sessionID]
	return s.code, ok
}
