package gateway

import (
	"context"
	"errors"
	"time"

	"omnihub.io/internal/ledger"
	"omnihub.io/internal/obs"
	"omnihub.io/internal/stream"
)

// ErrUnknownTool means no backend is registered for the requested tool
// identifier. This is a configuration error: it never reaches the ledger.
var ErrUnknownTool = errors.New("no backend registered for tool")

const defaultBackendTimeout = 30 * time.Second

// Result is the envelope returned for every metered invocation attempt.
// CreditsUsed is always populated so the caller can reconcile their balance
// even when the backend failed hard.
type Result struct {
	Success     bool
	CreditsUsed int64
	Error       string // set on hard failure, empty otherwise
	Body        map[string]any
}

// Gateway orchestrates check, delegate and settle for every tool call.
type Gateway struct {
	store    ledger.Store
	policy   *Policy
	backends map[string]Backend
	events   *stream.Stream
	timeout  time.Duration
}

// Option configures Gateway behavior.
type Option func(*Gateway)

// WithTimeout overrides the per-backend call timeout.
func WithTimeout(d time.Duration) Option {
	return func(g *Gateway) {
		if d > 0 {
			g.timeout = d
		}
	}
}

// WithStream publishes settled usage events for live subscribers.
func WithStream(s *stream.Stream) Option {
	return func(g *Gateway) { g.events = s }
}

// New constructs a gateway over the given ledger store and cost policy.
func New(store ledger.Store, policy *Policy, opts ...Option) *Gateway {
	g := &Gateway{
		store:    store,
		policy:   policy,
		backends: make(map[string]Backend),
		timeout:  defaultBackendTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Register adds a backend under its tool name.
func (g *Gateway) Register(b Backend) {
	g.backends[b.Name()] = b
}

// Has reports whether a backend is registered for the tool.
func (g *Gateway) Has(tool string) bool {
	_, ok := g.backends[tool]
	return ok
}

// Invoke runs one metered tool invocation for the given principal.
//
// The balance check and the debit are a single atomic ledger operation, so
// two concurrent calls can never both spend the same credits. Once the debit
// succeeded the attempt is settled unconditionally: exactly one usage event
// is recorded whether the backend succeeded, soft-failed, failed hard or
// timed out.
//
// Pre-flight failures (unknown tool, insufficient credits) return an error
// and leave the ledger untouched.
func (g *Gateway) Invoke(ctx context.Context, user ledger.User, tool string, payload any) (*Result, error) {
	b, ok := g.backends[tool]
	if !ok {
		return nil, ErrUnknownTool
	}
	cost := g.policy.Cost(tool)

	if _, err := g.store.Debit(ctx, user.ID, cost); err != nil {
		return nil, err
	}

	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	resp, err := b.Invoke(cctx, payload)
	cancel()

	var (
		status = StatusSuccess
		detail string
		res    = &Result{CreditsUsed: cost}
	)
	switch {
	case err != nil:
		status = StatusError
		if errors.Is(err, context.DeadlineExceeded) {
			status = StatusTimeout
		}
		detail = err.Error()
		res.Error = err.Error()
	default:
		status = resp.Status
		detail = resp.Detail
		res.Success = resp.Success
		res.Body = resp.Body
	}

	g.settle(ctx, user, tool, cost, status, detail)
	return res, nil
}

// InvokeUnmetered runs a free action of a registered tool (inbox checks,
// OTP verification, channel listings). No ledger mutation, no usage event.
func (g *Gateway) InvokeUnmetered(ctx context.Context, tool string, payload any) (*Result, error) {
	b, ok := g.backends[tool]
	if !ok {
		return nil, ErrUnknownTool
	}
	cctx, cancel := context.WithTimeout(ctx, g.timeout)
	resp, err := b.Invoke(cctx, payload)
	cancel()
	if err != nil {
		return &Result{Error: err.Error()}, nil
	}
	return &Result{Success: resp.Success, Body: resp.Body}, nil
}

// settle records the usage event for an already-debited attempt. It runs on
// a detached context so a caller disconnect after the backend call cannot
// lose the usage record.
func (g *Gateway) settle(ctx context.Context, user ledger.User, tool string, cost int64, status, detail string) {
	ev := &ledger.UsageEvent{
		UserID:      user.ID,
		UserEmail:   user.Email,
		Tool:        tool,
		CreditsUsed: cost,
		Status:      status,
		Details:     detail,
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := g.store.AppendUsage(wctx, ev); err != nil {
		// The debit is already durable; a missing usage event is a ledger
		// divergence that must be visible in logs and metrics.
		obs.ObserveSettlementFailure()
		obs.LogRequest(map[string]any{
			"level": "error",
			"msg":   "usage settlement write failed",
			"tool":  tool,
			"user":  user.ID,
			"cost":  cost,
			"err":   err.Error(),
		})
		return
	}
	obs.ObserveInvocation(tool, status, cost)
	if g.events != nil {
		g.events.Publish(*ev)
	}
}
