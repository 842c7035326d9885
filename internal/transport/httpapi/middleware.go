package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/service/order"
)

type contextKey string

const callerContextKey contextKey = "caller"

const (
	headerMemberID = "X-Member-Id"
	headerRole     = "X-Member-Role"
	roleAdmin      = "admin"
)

// withCaller извлекает идентичность из заголовков. Аутентификация живёт во
// внешнем слое перед сервисом; сюда приходят уже проверенные заголовки.
func withCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := order.Caller{
			MemberID: r.Header.Get(headerMemberID),
			Admin:    r.Header.Get(headerRole) == roleAdmin,
		}
		ctx := context.WithValue(r.Context(), callerContextKey, caller)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func callerFrom(r *http.Request) order.Caller {
	caller, _ := r.Context().Value(callerContextKey).(order.Caller)
	return caller
}

// requireMember отклоняет запросы без идентичности покупателя.
func requireMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if callerFrom(r).MemberID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "member identity is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireAdmin отклоняет запросы без административной роли.
func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := callerFrom(r)
		if caller.MemberID == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "member identity is required")
			return
		}
		if !caller.Admin {
			writeError(w, http.StatusForbidden, "forbidden", "admin role is required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requestLogger пишет завершённые запросы через logrus.
func requestLogger(logger *log.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.WithFields(log.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("request completed")
		})
	}
}
