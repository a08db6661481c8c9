package gateway

import "context"

// Outcome labels recorded in usage events. Backends may add their own
// soft-failure labels (e.g. "auth_failed", "status_502").
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"
)

// Response is what a backend produced for one request: a structured success
// or a structured soft failure. Transport-level faults are returned as
// errors instead and classified by the gateway.
type Response struct {
	// Status is the usage-log label for this attempt.
	Status string
	// Success is reported to the caller. Soft failures may still report
	// success=true with an explanatory body (safe mode), matching the
	// upstream contract of each tool.
	Success bool
	// Detail is free text stored alongside the usage event.
	Detail string
	// Body holds the tool-specific response fields.
	Body map[string]any
}

// Backend fulfils one metered capability against an external collaborator.
// Invoke must honor ctx cancellation; the gateway bounds every call with a
// timeout and charges the attempt regardless of the result.
type Backend interface {
	Name() string
	Invoke(ctx context.Context, payload any) (*Response, error)
}
