package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"omnihub.io/internal/gateway"
	"omnihub.io/internal/ledger"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func parsePositiveInt(raw string, def, min, max int) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return def, nil
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.New("limit must be an integer")
	}
	if val < min || val > max {
		return 0, errors.New("limit must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max))
	}
	return val, nil
}

// handleDomainError maps ledger and gateway failures onto status codes.
// Insufficient funds is 402 with the shortfall spelled out so clients
// can prompt for a top-up.
func handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var ice *ledger.InsufficientCreditsError
	switch {
	case errors.As(err, &ice):
		payload := map[string]any{
			"error":     "insufficient credits",
			"required":  ice.Required,
			"available": ice.Available,
		}
		if rid := RequestIDFromContext(r.Context()); rid != "" {
			payload["request_id"] = rid
		}
		writeJSON(w, http.StatusPaymentRequired, payload)
	case errors.Is(err, gateway.ErrUnknownTool):
		writeError(w, r, http.StatusNotFound, "unknown tool")
	case errors.Is(err, ledger.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "not found")
	case errors.Is(err, ledger.ErrInvalidAdjustment), errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidEmail):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, gateway.ErrProtectedAccount):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrEmailTaken):
		writeError(w, r, http.StatusConflict, "email already registered")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

// renderResult flattens a gateway result into the public tool envelope.
func renderResult(w http.ResponseWriter, res *gateway.Result) {
	payload := make(map[string]any, len(res.Body)+3)
	for k, v := range res.Body {
		payload[k] = v
	}
	payload["success"] = res.Success
	payload["credits_used"] = res.CreditsUsed
	if res.Error != "" {
		payload["error"] = res.Error
	}
	writeJSON(w, http.StatusOK, payload)
}
