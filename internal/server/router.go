// Package server assembles the HTTP routes of the raffle service.
package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/uptrace/bun"

	analytics_api "github.com/kerm1977/rifas/internal/analytics/api"
	"github.com/kerm1977/rifas/internal/auth"
	"github.com/kerm1977/rifas/internal/logger"
	"github.com/kerm1977/rifas/internal/raffles/raffle_api"
	"github.com/kerm1977/rifas/internal/selections/selection_api"
	"github.com/kerm1977/rifas/internal/utils"
)

type Dependencies struct {
	DB             *bun.DB
	Raffles        *raffle_api.Handler
	Selections     *selection_api.Handler
	BoardEvents    *selection_api.SSEHandler
	Analytics      *analytics_api.Handler
	Auth           *auth.Handler
	Issuer         *auth.TokenIssuer
	Revocations    auth.RevocationStore
	AllowedOrigins []string
	Logger         *logger.Logger
}

func NewRouter(d Dependencies) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: d.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(requestLogger(d.Logger))

	r.Get("/health", health(d.DB))

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware(d.Issuer, d.Revocations, d.Logger))
		admin := r.With(auth.RequireAdmin)

		r.Post("/auth/login", d.Auth.Login)
		admin.Post("/auth/logout", d.Auth.Logout)

		r.Get("/raffles", d.Raffles.ListRaffles)
		admin.Post("/raffles", d.Raffles.CreateRaffle)

		r.Route("/raffles/{raffleId}", func(r chi.Router) {
			// --- Public Routes ---
			r.Get("/", d.Raffles.GetRaffle)
			r.Get("/share.png", d.Raffles.SharePNG)
			r.Get("/selections", d.Selections.ListSelections)
			r.Post("/selections", d.Selections.Claim)
			r.Post("/selections/release", d.Selections.Release)
			r.Get("/winners", d.Selections.GetWinners)
			r.Get("/events", d.BoardEvents.HandleBoardEvents)

			// --- Admin Routes ---
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Put("/", d.Raffles.UpdateRaffle)
				r.Delete("/", d.Raffles.DeleteRaffle)
				r.Get("/report.txt", d.Raffles.ReportText)
				r.Get("/report.csv", d.Raffles.ReportCSV)
				r.Post("/selections/cancel", d.Selections.Cancel)
				r.Post("/selections/purge", d.Selections.Purge)
				r.Put("/winners", d.Selections.AnnounceWinners)
				r.Delete("/winners", d.Selections.ResetWinners)
			})
		})

		if d.Analytics != nil {
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				d.Analytics.RegisterRoutes(r)
			})
		}
	})

	return r
}

func health(db *bun.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			_ = utils.WriteJSON(w, http.StatusServiceUnavailable, utils.ErrorResponse("Database unreachable", err.Error()))
			return
		}
		_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("ok", map[string]string{"database": db.Dialect().Name().String()}))
	}
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", ww.Status()), time.Since(start).String())
		})
	}
}
