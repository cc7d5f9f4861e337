package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"
)

// Recoverer turns a handler panic into a logged stack trace and a 500
// envelope. If the handler had already started its response the
// envelope is skipped and only the log line is written.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := newStatusRecorder(w)
			defer func() {
				v := recover()
				if v == nil {
					return
				}
				if err, ok := v.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(v)
				}

				ctx := r.Context()
				logger.ErrorContext(ctx, "panic recovered",
					slog.String("request_id", GetRequestID(ctx)),
					slog.String("trace_id", GetTraceID(ctx)),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.Bool("response_started", rec.wroteHeader),
					slog.Any("panic", v),
					slog.String("stack", string(debug.Stack())),
				)
				if !rec.wroteHeader {
					writeError(rec, http.StatusInternalServerError, codeInternal, "Internal server error")
				}
			}()

			next.ServeHTTP(rec, r)
		})
	}
}
