package httpservice

import (
	"context"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const requestIdHeader = "X-Request-Id"

type requestIdKey struct{}

// requestId tags every request with an id, reusing the caller's if any.
func requestId(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIdHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.New().String()
		}
		w.Header().Set(requestIdHeader, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIdKey{}, id)))
	})
}

func getRequestId(ctx context.Context) string {
	id, _ := ctx.Value(requestIdKey{}).(string)
	return id
}

// logger logs every request at debug level and failed ones at warn level,
// and records its outcome in m.
func logger(m *metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			m.observeRequest(r.Method, route, ww.Status(), elapsed)

			entry := log.WithFields(log.Fields{
				"request_id": getRequestId(r.Context()),
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   elapsed,
			})
			if ww.Status() >= http.StatusBadRequest {
				entry.Warn("request failed")
				return
			}
			entry.Debug("request served")
		})
	}
}

// panicRecovery turns panics into INTERNAL_ERROR responses.
func panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}
				log.Errorf("panic-recovery middleware recovered from panic: %v", rvr)
				log.Errorf("stack trace: %v", string(debug.Stack()))
				writeError(w, r, somethingWentWrong)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
