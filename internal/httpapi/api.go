package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"omnihub.io/internal/gateway"
	"omnihub.io/internal/ledger"
	"omnihub.io/internal/obs"
	"omnihub.io/internal/stream"
	"omnihub.io/internal/tools"
)

// ReadyProbe reports whether the backing store is reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

const defaultTokenTTL = 24 * time.Hour

// API is the HTTP layer over the gateway, ledger and admin services.
type API struct {
	mux        *http.ServeMux
	store      ledger.Store
	gw         *gateway.Gateway
	admin      *gateway.Admin
	dir        *tools.Directory
	events     *stream.Stream
	readyProbe ReadyProbe
	version    string
	tokenTTL   time.Duration
}

type APIOption func(*API)

func WithReadyProbe(rp ReadyProbe) APIOption {
	return func(a *API) { a.readyProbe = rp }
}

func WithEventStream(s *stream.Stream) APIOption {
	return func(a *API) { a.events = s }
}

func WithTokenTTL(ttl time.Duration) APIOption {
	return func(a *API) {
		if ttl > 0 {
			a.tokenTTL = ttl
		}
	}
}

func New(store ledger.Store, gw *gateway.Gateway, admin *gateway.Admin, dir *tools.Directory, version string, opts ...APIOption) *API {
	a := &API{
		mux:      http.NewServeMux(),
		store:    store,
		gw:       gw,
		admin:    admin,
		dir:      dir,
		version:  version,
		tokenTTL: defaultTokenTTL,
	}
	for _, opt := range opts {
		opt(a)
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/api/auth/register", a.handleRegister)
	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/me", a.handleMe)

	// metered tools
	a.mux.HandleFunc("/api/tools/phone-lookup", a.handlePhoneLookup)
	a.mux.HandleFunc("/api/tools/eyecon-lookup", a.handleEyeconLookup)
	a.mux.HandleFunc("/api/tools/temp-email/generate", a.handleTempEmailGenerate)
	a.mux.HandleFunc("/api/tools/temp-email/check", a.handleTempEmailCheck)
	a.mux.HandleFunc("/api/tools/youtube/download", a.handleYoutubeDownload)
	a.mux.HandleFunc("/api/tools/image/enhance", a.handleImageEnhance)
	a.mux.HandleFunc("/api/tools/live-tv/channels", a.handleChannels)
	a.mux.HandleFunc("/api/tools/live-tv/channels/", a.handleChannelsByCategory)
	a.mux.HandleFunc("/api/tools/live-tv/stream/", a.handleLiveTVStream)
	a.mux.HandleFunc("/api/tools/otp/send", a.handleOTPSend)
	a.mux.HandleFunc("/api/tools/otp/verify", a.handleOTPVerify)

	// user surface
	a.mux.HandleFunc("/api/user/usage-history", a.handleUsageHistory)

	// admin surface
	a.mux.HandleFunc("/api/admin/users", a.handleAdminUsers)
	a.mux.HandleFunc("/api/admin/users/", a.handleAdminUserAction)
	a.mux.HandleFunc("/api/admin/credits", a.handleAdminCredits)
	a.mux.HandleFunc("/api/admin/usage-logs", a.handleAdminUsageLogs)
	a.mux.HandleFunc("/api/admin/credit-logs", a.handleAdminCreditLogs)
	a.mux.HandleFunc("/api/admin/usage-stream", a.UsageStream)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler wraps the mux with authentication and request metrics.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.withAuth(a.mux))
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "omnihub-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "omnihub-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
