package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikhilbhutani/coursegrader/internal/api/handlers"
	"github.com/nikhilbhutani/coursegrader/internal/api/middleware"
	"github.com/nikhilbhutani/coursegrader/internal/config"
)

// Deps are the services the HTTP surface is built on. Nil pingers are
// skipped by the readiness check.
type Deps struct {
	DB        handlers.Pinger
	Cache     handlers.Pinger
	Documents handlers.DocumentService
	Responder handlers.Answerer
	Retriever handlers.Searcher
	Grading   handlers.GradingService
}

type Router struct {
	mux      *chi.Mux
	cfg      *config.Config
	deps     Deps
	limiter  *middleware.RateLimiter
	validate *validator.Validate
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	return &Router{
		mux:      chi.NewRouter(),
		cfg:      cfg,
		deps:     deps,
		limiter:  middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// SweepVisitors evicts idle rate limiter entries until done is closed.
func (rt *Router) SweepVisitors(done <-chan struct{}) {
	rt.limiter.Sweep(done)
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins))

	health := handlers.NewHealthHandler(rt.deps.DB, rt.deps.Cache)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.limiter.Limit)

		docH := handlers.NewDocumentHandler(rt.deps.Documents, rt.validate)
		r.Route("/documents", func(r chi.Router) {
			r.Post("/", docH.Create)
			r.Post("/upload", docH.Upload)
			r.Get("/", docH.List)
			r.Get("/{id}", docH.Get)
			r.Delete("/{id}", docH.Delete)
			r.Get("/{id}/status", docH.Status)
			r.Post("/{id}/generating", docH.MarkGenerating)
			r.Put("/{id}/content", docH.ReplaceContent)
			r.Post("/{id}/resubmit", docH.Resubmit)
		})

		ragH := handlers.NewRAGHandler(rt.deps.Responder, rt.deps.Retriever, rt.validate)
		r.Route("/rag", func(r chi.Router) {
			r.Post("/query", ragH.Query)
			r.Post("/search", ragH.Search)
		})

		gradeH := handlers.NewGradingHandler(rt.deps.Grading, rt.validate)
		r.Route("/tests", func(r chi.Router) {
			r.Post("/", gradeH.CreateTest)
			r.Get("/{id}", gradeH.GetTest)
			r.Post("/{id}/submissions", gradeH.Submit)
		})
		r.Route("/submissions", func(r chi.Router) {
			r.Get("/{id}", gradeH.GetSubmission)
			r.Post("/{id}/retry-grading", gradeH.RetryGrading)
		})
	})

	return r
}
