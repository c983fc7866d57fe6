package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/ksyq12/tsm/internal/errors"
	"github.com/ksyq12/tsm/internal/logger"
)

// requestLogger logs one line per request through the shared zerolog logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			zl := logger.Zerolog()
			ev := zl.Info()
			if ww.Status() >= http.StatusInternalServerError {
				ev = zl.Error()
			}
			ev.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("remote", r.RemoteAddr).
				Msg("request")
		}()

		next.ServeHTTP(ww, r)
	})
}

// recoverer turns a handler panic into a 500 error envelope.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				writeError(w, r, &errors.AppError{
					Code:    errors.ErrCodeUnexpected,
					Message: "unexpected error",
					Err:     fmt.Errorf("panic: %v", rec),
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}
