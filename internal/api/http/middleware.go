package http

import (
	"context"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/campusnet/academic-platform/internal/observability"
	apperrors "github.com/campusnet/academic-platform/pkg/util"
)

func requestTimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// errorHandlingMiddleware recovers panics into a 500 envelope.
func errorHandlingMiddleware(logger *zap.Logger, metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic recovered", zap.Any("panic", rec), zap.ByteString("stack", debug.Stack()))
					de := apperrors.WriteJSON(w, apperrors.NewInternalError(fmt.Errorf("panic: %v", rec)))
					metrics.RecordError(r.URL.Path, r.Method, de.Code)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
