package routes

import (
	"net/http"

	"github.com/nzoschke/beatmarket/internal/app"
	"github.com/nzoschke/beatmarket/internal/handler"
	"github.com/nzoschke/beatmarket/internal/metrics"
	"github.com/nzoschke/beatmarket/internal/middleware"
	"github.com/nzoschke/beatmarket/internal/storage"
)

func SetupRoutes(app *app.App) http.Handler {
	// Handlers
	auth := handler.NewAuthHandler(app.AuthService, app.UserService, app.Cfg.SecureCookies, app.Cfg.TrustProxy)
	beats := handler.NewBeatHandler(app.BeatService, app.Cfg.MaxUploadSize)
	health := handler.NewHealthHandler(app.DB)

	mux := http.NewServeMux()

	// ============================================================================
	// PUBLIC ROUTES
	// ============================================================================

	mux.HandleFunc("GET /healthz", health.Health)
	mux.Handle("GET /metrics", metrics.Handler())

	// Disk-stored uploads; S3 serves its own presigned URLs
	disk, ok := app.Storage.(*storage.DiskStorage)
	if ok {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads", disk.Handler()))
	}

	// Auth (rate limited)
	rateLimiter := middleware.RateLimitAuth(app.Cfg.TrustProxy)

	mux.HandleFunc("POST /api/register", rateLimiter(auth.Register))
	mux.HandleFunc("POST /api/login", rateLimiter(auth.Login))
	mux.HandleFunc("POST /api/resend-verification", rateLimiter(auth.ResendVerification))
	mux.HandleFunc("GET /api/verify-email", auth.VerifyEmail)
	mux.HandleFunc("POST /api/logout", auth.Logout)

	// Beats catalog
	mux.HandleFunc("GET /api/beats", beats.List)
	mux.HandleFunc("GET /api/beats/{id}", beats.Show)

	// ============================================================================
	// PROTECTED ROUTES
	// ============================================================================

	mux.HandleFunc("GET /api/secret", middleware.RequireAuth(auth.Secret))
	mux.HandleFunc("GET /api/me", middleware.RequireAuth(auth.Me))
	mux.HandleFunc("GET /api/me/beats", middleware.RequireAuth(beats.Mine))
	mux.HandleFunc("POST /api/beats", middleware.RequireAuth(beats.Upload))

	// Catch-all
	mux.HandleFunc("/", handler.NotFound)

	// Metrics wraps the mux directly so it can read the matched pattern
	return middleware.Chain(mux,
		middleware.RequestLogging,
		middleware.AuthMiddleware(app.AuthService, app.Cfg.SecureCookies),
		middleware.Metrics,
	)
}
