package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"omnihub.io/internal/gateway"
	"omnihub.io/internal/httpapi"
	"omnihub.io/internal/ledger"
	"omnihub.io/internal/obs"
	"omnihub.io/internal/store/pg"
	"omnihub.io/internal/stream"
	"omnihub.io/internal/tools"
)

var (
	version = "1.2.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	// Storage: PostgreSQL when a DSN is configured, in-memory otherwise
	// (dev and CI runs).
	var (
		store ledger.Store
		db    *sql.DB
	)
	if dsn := os.Getenv("OMNIHUB_PG_DSN"); dsn != "" {
		pgStore, err := pg.Open(dsn)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		store = pgStore
		db = pgStore.DB()
	} else {
		log.Println("OMNIHUB_PG_DSN not set; using in-memory store")
		store = ledger.NewInMemory()
	}

	// Seed the admin roster. Failure here should not keep the API down:
	// existing deployments already have their admins.
	seedCtx, seedCancel := context.WithTimeout(context.Background(), 10*time.Second)
	admins := ledger.DefaultSeedAdmins(
		os.Getenv("OMNIHUB_ADMIN_EMAIL"),
		os.Getenv("OMNIHUB_ADMIN_PASSWORD"),
	)
	if err := ledger.EnsureAdmins(seedCtx, store, admins); err != nil {
		log.Printf("seed admins: %v", err)
	}
	seedCancel()

	events := stream.New()
	gw := gateway.New(store, gateway.DefaultPolicy(),
		gateway.WithStream(events),
		gateway.WithTimeout(envDuration("OMNIHUB_BACKEND_TIMEOUT", 30*time.Second)),
	)
	dir := tools.DefaultDirectory()
	registerBackends(gw, dir)

	api := httpapi.New(store, gw, gateway.NewAdmin(store), dir, version,
		httpapi.WithReadyProbe(httpapi.ReadyProbe{DB: db}),
		httpapi.WithEventStream(events),
		httpapi.WithTokenTTL(envDuration("OMNIHUB_TOKEN_TTL", 24*time.Hour)),
	)

	handler := httpapi.RequestID(
		httpapi.LoggingJSON(
			httpapi.SecurityHeaders(
				httpapi.CORS(
					httpapi.RateLimit(
						httpapi.MaxBodyBytes(api.Handler(), 1<<20),
						envInt("OMNIHUB_RATE_BURST", 50),
						envInt("OMNIHUB_RATE_PER_SEC", 25),
					)))))

	addr := os.Getenv("OMNIHUB_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		// Long WriteTimeout keeps the admin SSE stream alive.
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("Starting omnihub-api %s on %s", version, srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}

func registerBackends(gw *gateway.Gateway, dir *tools.Directory) {
	client := &http.Client{Timeout: 30 * time.Second}

	gw.Register(tools.NewPhoneLookup(envOr("OMNIHUB_PHONE_LOOKUP_URL", "http://phone-db.internal"), client))
	gw.Register(tools.NewEyeconLookup(
		envOr("OMNIHUB_EYECON_URL", "https://api.eyecon-app.com/app/getnames.jsp"),
		eyeconHeaders(), client))
	gw.Register(tools.NewTempMail(envOr("OMNIHUB_TEMPMAIL_URL", "https://www.1secmail.com"), client))
	gw.Register(tools.NewVideoDownload(envOr("OMNIHUB_VIDEO_META_URL", "https://noembed.com"), client))
	gw.Register(tools.NewImageEnhance(envOr("OMNIHUB_IMAGE_ENHANCE_URL", "http://image-enhance.internal"), client))
	gw.Register(tools.NewLiveTV(dir, envOr("OMNIHUB_LIVETV_EDGE_URL", "https://edge.omnihub.io")))
	gw.Register(tools.NewTamashaOTP())
}

// eyeconHeaders collects the rotating device headers from the
// environment: OMNIHUB_EYECON_HEADER_<NAME>=value becomes header
// <name> with underscores mapped to dashes.
func eyeconHeaders() map[string]string {
	const prefix = "OMNIHUB_EYECON_HEADER_"
	headers := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(k, prefix) {
			continue
		}
		name := strings.ReplaceAll(strings.TrimPrefix(k, prefix), "_", "-")
		headers[strings.ToLower(name)] = v
	}
	return headers
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		log.Printf("invalid %s=%q, using %d", key, v, fallback)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
		log.Printf("invalid %s=%q, using %s", key, v, fallback)
	}
	return fallback
}
