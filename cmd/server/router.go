package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/ereuna/internal/api"
	apiMiddleware "github.com/phrazzld/ereuna/internal/api/middleware"
)

// setupRouter creates the application router with every route and middleware.
func (app *application) setupRouter() http.Handler {
	return newRouter(routerDeps{
		authHandler:    api.NewAuthHandler(app.authenticator, app.jwtService, app.logger),
		reportHandler:  api.NewReportHandler(app.reportService, app.logger),
		authMiddleware: apiMiddleware.NewAuthMiddleware(app.jwtService),
	})
}

type routerDeps struct {
	authHandler    *api.AuthHandler
	reportHandler  *api.ReportHandler
	authMiddleware *apiMiddleware.AuthMiddleware
}

func newRouter(deps routerDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", deps.authHandler.Login)
		r.Post("/auth/refresh", deps.authHandler.RefreshToken)

		r.Group(func(r chi.Router) {
			r.Use(deps.authMiddleware.Authenticate)

			r.Post("/reports", deps.reportHandler.CreateReport)
			r.Get("/reports", deps.reportHandler.ListReports)
			r.Get("/reports/{id}", deps.reportHandler.GetReport)
			r.Post("/reports/{id}/sections/{position}/regenerate", deps.reportHandler.RegenerateSection)
			r.Get("/reports/{id}/export", deps.reportHandler.ExportReport)
			r.Post("/reports/{id}/ask", deps.reportHandler.AskReport)
			r.Get("/reports/{id}/keywords", deps.reportHandler.AnalyzeKeywords)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	return r
}
