// Package logger provides a process-wide zap logger with request scoping.
//
// Initialise once at startup:
//
//	logger.Init(logger.Config{
//	    Env:   "prod",
//	    Level: "info",
//	})
//	defer logger.Sync()
//
// Handlers and middleware use the request-scoped logger:
//
//	log := logger.From(r.Context())
//	log.Warn("request rejected", logger.Reason(reason))
//
// Code without a context falls back to the process logger:
//
//	logger.L().Info("listening", logger.Addr(addr))
package logger
