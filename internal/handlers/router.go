package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/threatengine/onboarding/internal/config"
	"github.com/threatengine/onboarding/internal/engine"
	"github.com/threatengine/onboarding/internal/executor"
	"github.com/threatengine/onboarding/internal/middleware"
	"github.com/threatengine/onboarding/internal/repo"
	"github.com/threatengine/onboarding/internal/secrets"
)

// Deps is everything the API router needs.
type Deps struct {
	DB       *sql.DB
	Cfg      config.Config
	Vault    secrets.Gateway
	Engine   *engine.Client
	Executor *executor.Executor
	Log      *slog.Logger
}

// NewRouter wires every handler into the API surface.
func NewRouter(d Deps) http.Handler {
	tenants := repo.NewTenantRepo(d.DB)
	providers := repo.NewProviderRepo(d.DB)
	accounts := repo.NewAccountRepo(d.DB)
	schedules := repo.NewScheduleRepo(d.DB)
	executions := repo.NewExecutionRepo(d.DB)
	scanResults := repo.NewScanResultRepo(d.DB)
	users := repo.NewUserRepo(d.DB)

	auth := &AuthHandler{UserRepo: users, Secret: []byte(d.Cfg.JWTSecret), ExpireHours: d.Cfg.JWTExpireHours, Log: d.Log}
	health := &HealthHandler{DB: d.DB}
	tenantH := &TenantHandler{Repo: tenants, Log: d.Log}
	onboarding := &OnboardingHandler{Tenants: tenants, Providers: providers, Accounts: accounts, Vault: d.Vault, Log: d.Log}
	credentials := &CredentialHandler{Accounts: accounts, Providers: providers, Vault: d.Vault, Log: d.Log}
	accountH := &AccountHandler{Accounts: accounts, Providers: providers, Schedules: schedules, Vault: d.Vault, Log: d.Log}
	scheduleH := &ScheduleHandler{Schedules: schedules, Accounts: accounts, Providers: providers, Executions: executions, Runner: d.Executor, Log: d.Log}
	scanH := &ScanHandler{Results: scanResults, Engine: d.Engine, Log: d.Log}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.Recoverer(d.Log))
	r.Use(middleware.RequestLog(d.Log))
	r.Use(middleware.Prometheus)
	r.Use(middleware.SecurityHeaders(d.Cfg.TLSCertFile != ""))
	r.Use(middleware.MaxBytes(1 << 20))
	if len(d.Cfg.CORSAllowedOrigins) > 0 {
		r.Use(middleware.CORS(d.Cfg.CORSAllowedOrigins))
	}

	r.Get("/health", health.Health)
	r.Get("/ready", health.Ready)
	r.Handle("/metrics", promhttp.Handler())

	authLimiter := middleware.AuthRateLimiter()
	r.Route("/auth", func(r chi.Router) {
		r.Use(authLimiter.Middleware)
		r.Post("/register", auth.Register)
		r.Post("/login", auth.Login)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.JWTMiddleware([]byte(d.Cfg.JWTSecret)))

		r.Route("/tenants", func(r chi.Router) {
			r.Post("/", tenantH.CreateTenant)
			r.Get("/", tenantH.ListTenants)
			r.Get("/{id}", tenantH.GetTenant)
		})

		r.Route("/onboarding", func(r chi.Router) {
			r.Get("/{provider}/methods", onboarding.Methods)
			r.Post("/{provider}/init", onboarding.Init)
			r.Post("/{provider}/validate", onboarding.Validate)
			r.Get("/accounts", accountH.ListAccounts)
			r.Get("/accounts/{account_id}", accountH.GetAccount)
			r.Delete("/accounts/{account_id}", accountH.DeleteAccount)
		})

		r.Route("/accounts/{account_id}", func(r chi.Router) {
			r.Post("/credentials", credentials.Store)
			r.Post("/credentials/validate", credentials.Revalidate)
			r.Delete("/credentials", credentials.Delete)
			r.Get("/scans", scanH.ListAccountScans)
		})

		r.Route("/schedules", func(r chi.Router) {
			r.Post("/", scheduleH.CreateSchedule)
			r.Get("/", scheduleH.ListSchedules)
			r.Get("/{schedule_id}", scheduleH.GetSchedule)
			r.Put("/{schedule_id}", scheduleH.UpdateSchedule)
			r.Delete("/{schedule_id}", scheduleH.DeleteSchedule)
			r.Post("/{schedule_id}/enable", scheduleH.EnableSchedule)
			r.Post("/{schedule_id}/disable", scheduleH.DisableSchedule)
			r.Post("/{schedule_id}/trigger", scheduleH.TriggerSchedule)
			r.Get("/{schedule_id}/executions", scheduleH.ListExecutions)
		})

		r.Route("/scans/{provider}", func(r chi.Router) {
			r.Get("/", scanH.ListEngineScans)
			r.Get("/{scan_id}/status", scanH.ScanStatus)
			r.Get("/{scan_id}/progress", scanH.ScanProgress)
			r.Get("/{scan_id}/results", scanH.ScanResults)
			r.Get("/{scan_id}/summary", scanH.ScanSummary)
			r.Post("/{scan_id}/cancel", scanH.CancelScan)
		})

		r.Get("/engines/{provider}/metrics", scanH.EngineMetrics)
	})

	return r
}
