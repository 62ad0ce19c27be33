// Package httpserver assembles the router, middleware stack and embedded assets.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"finitefield.org/kmart-web/internal/auth"
	"finitefield.org/kmart-web/internal/catalog"
	custommw "finitefield.org/kmart-web/internal/httpserver/middleware"
	"finitefield.org/kmart-web/internal/httpserver/templates"
	"finitefield.org/kmart-web/internal/httpserver/ui"
	"finitefield.org/kmart-web/internal/message"
	"finitefield.org/kmart-web/internal/observability"
	"finitefield.org/kmart-web/public"
)

// Config holds runtime options for the storefront HTTP server.
type Config struct {
	Address          string
	Logger           *zap.Logger
	Backend          ui.Backend
	Guard            *auth.Guard
	Sessions         custommw.SessionStore
	Messages         *message.Board
	Categories       catalog.Categories
	CSRFCookieSecure bool
	// BaseContext parents every background view fetch.
	BaseContext context.Context
	IdleTimeout time.Duration
	UploadLimit int64
}

// New constructs the HTTP server with middleware stack and embedded assets.
// The view registries are released on Shutdown.
func New(cfg Config) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	tpl, err := templates.Load()
	if err != nil {
		logger.Fatal("load templates", zap.Error(err))
	}
	staticContent, err := public.StaticFS()
	if err != nil {
		logger.Fatal("embed static", zap.Error(err))
	}

	categories := cfg.Categories
	if len(categories) == 0 {
		if categories, err = catalog.DefaultCategories(); err != nil {
			logger.Fatal("load categories", zap.Error(err))
		}
	}

	handlers := ui.NewHandlers(ui.Dependencies{
		Backend:     cfg.Backend,
		Guard:       cfg.Guard,
		Templates:   tpl,
		Messages:    cfg.Messages,
		Categories:  categories,
		Logger:      logger,
		BaseContext: cfg.BaseContext,
		IdleTimeout: cfg.IdleTimeout,
		UploadLimit: cfg.UploadLimit,
	})

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(observability.InjectLoggerMiddleware(logger))
	router.Use(observability.TraceMiddleware())
	router.Use(observability.RequestLoggerMiddleware())
	router.Use(observability.RecoveryMiddleware(logger))
	router.Use(chimw.Timeout(30 * time.Second))

	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/public/static/*", http.StripPrefix("/public/static/", http.FileServer(http.FS(staticContent))))

	mountRoutes(router, handlers, routeOptions{
		Guard:    cfg.Guard,
		Sessions: cfg.Sessions,
		CSRF: custommw.CSRFConfig{
			Secure: cfg.CSRFCookieSecure,
		},
	})

	srv := &http.Server{
		Addr:         cfg.Address,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	srv.RegisterOnShutdown(handlers.Close)
	return srv
}

type routeOptions struct {
	Guard    *auth.Guard
	Sessions custommw.SessionStore
	CSRF     custommw.CSRFConfig
}

func mountRoutes(router chi.Router, h *ui.Handlers, opts routeOptions) {
	router.Group(func(r chi.Router) {
		r.Use(custommw.Session(opts.Sessions))
		r.Use(custommw.HTMX())
		r.Use(custommw.CSRF(opts.CSRF))

		r.Get("/", h.Home)
		r.Get("/product/{slug}", h.Product)
		r.Get("/category/{catslug}", h.Category)
		r.Get(ui.NotFoundPath, h.NotFound)

		RegisterFragment(r, "/fragments/products", h.ProductsFragment)
		RegisterFragment(r, "/fragments/category/{catslug}", h.CategoryFragment)
		RegisterFragment(r, "/fragments/product/{slug}", h.ProductFragment)
		RegisterFragment(r, "/fragments/related/{category}", h.RelatedFragment)

		r.Group(func(r chi.Router) {
			r.Use(custommw.NoStore())
			r.Get(ui.LoginPath, h.LoginForm)
			r.Post(ui.LoginPath, h.LoginSubmit)
			r.Post(ui.LoginPath+"/logout", h.Logout)
		})

		r.Route(ui.DashboardPath, func(r chi.Router) {
			r.Use(custommw.NoStore())
			r.Get("/", h.Dashboard)

			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin(opts.Guard, ui.LoginPath))
				r.Post("/products", h.Upload)
				r.Post("/products/{id}/delete", h.DeleteConfirm)
				RegisterFragment(r, "/fragments/products", h.AdminProductsFragment)
				RegisterFragment(r, "/products/{id}/delete", h.DeleteModal)
			})
		})

		r.NotFound(h.NotFound)
	})
}

// RegisterFragment registers a GET handler intended for htmx fragment rendering.
func RegisterFragment(r chi.Router, pattern string, handler http.HandlerFunc) {
	r.With(custommw.RequireHTMX()).Get(pattern, handler)
}
