package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SessionCookieName は、ブラウザセッションを識別するCookie名です
const SessionCookieName = "pix2pix_session"

// Routes は、ルーティング済みのhttp.Handlerを返します
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, requestLogger(h.logger))

	r.Get("/healthz", h.health)
	r.Handle("/static/*", h.static)

	r.Group(func(r chi.Router) {
		r.Use(h.withSession)

		r.Get("/", h.index)
		r.Get("/state", h.state)
		r.Get("/events", h.events)
		r.Post("/image", h.uploadImage)
		r.Post("/image/remove", h.removeImage)
		r.Post("/prompt", h.setPrompt)
		r.Post("/generate", h.generate)
		r.Post("/reset", h.reset)
	})

	return r
}

// withSession は、Cookieからセッションを特定し、ControllerをContextに格納します
// Cookieが無いか不正な場合は新しいセッションを発行します
func (h *Handler) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sessionID := ""
		if cookie, err := r.Cookie(SessionCookieName); err == nil {
			if _, err := uuid.Parse(cookie.Value); err == nil {
				sessionID = cookie.Value
			}
		}
		if sessionID == "" {
			sessionID = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    sessionID,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		controller, err := h.sessions.Open(r.Context(), sessionID)
		if err != nil {
			h.logger.Error().Err(err).Str("session", sessionID).Msg("セッションのオープンに失敗")
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}

		next.ServeHTTP(w, r.WithContext(withController(r.Context(), controller)))
	})
}

// requestLogger は、リクエストごとにメソッド・パス・ステータス・所要時間を記録します
func requestLogger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			l.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("elapsed", time.Since(start)).
				Msg("request")
		})
	}
}
