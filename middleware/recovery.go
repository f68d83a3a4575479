package middleware

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/vitalvas/sigauth/logger"
	"github.com/vitalvas/sigauth/problem"
)

// RecoveryConfig configures the Recovery middleware.
type RecoveryConfig struct {
	// OnPanic is called with the recovered value. When nil the panic is
	// logged at error level with the request-scoped logger.
	OnPanic func(r *http.Request, recovered any)
}

// Recovery turns a panic in a downstream handler into a 500 problem
// response. http.ErrAbortHandler is re-panicked so the server can abort the
// connection.
func Recovery(cfg RecoveryConfig) func(http.Handler) http.Handler {
	onPanic := cfg.OnPanic
	if onPanic == nil {
		onPanic = logPanic
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				recovered := recover()
				if recovered == nil {
					return
				}

				if err, ok := recovered.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(recovered)
				}

				onPanic(r, recovered)
				problem.New(http.StatusInternalServerError).Write(w)
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func logPanic(r *http.Request, recovered any) {
	logger.From(r.Context()).Error("panic recovered",
		zap.Any("panic", recovered),
		logger.Method(r.Method),
		logger.Path(r.URL.Path),
		zap.Stack("stack"),
	)
}
