package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"homestaging/internal/http/handlers"
	"homestaging/internal/infra"
	"homestaging/internal/middleware"
)

func NewRouter(app *handlers.App, cfg *infra.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(
		chimw.RealIP,
		chimw.Recoverer,
		middleware.RequestID,
		middleware.Logger(app.Logger),
		middleware.CORS(cfg.AllowedOrigins),
		middleware.RateLimit(cfg.RateLimitPerMin, time.Minute),
		middleware.Locale(cfg.DefaultLocale),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/signup", app.AuthSignUp)
		r.Post("/signin", app.AuthSignIn)
		r.Post("/token", app.AuthTokenVerify)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(cfg.JWTSecret))

		r.Get("/v1/me", app.Me)

		r.Route("/v1/jobs", func(r chi.Router) {
			r.Post("/", app.JobsCreate)
			r.Get("/", app.JobsList)
			r.Delete("/", app.JobsClear)
			r.Get("/archive", app.JobsArchive)
			r.Get("/{job_id}", app.JobGet)
			r.Get("/{job_id}/image", app.JobImage)
			r.Post("/{job_id}/regenerate", app.JobRegenerate)
			r.Post("/{job_id}/unlock", app.JobUnlock)
		})

		r.Route("/v1/credits", func(r chi.Router) {
			r.Get("/", app.CreditsGet)
			r.Get("/tiers", app.CreditsTiers)
			r.Post("/purchase", app.CreditsPurchase)
		})

		r.Route("/v1/account", func(r chi.Router) {
			r.Post("/password", app.AccountPasswordChange)
			r.Post("/invoices", app.AccountInvoicesSend)
			r.Delete("/", app.AccountDelete)
		})
	})

	return r
}
