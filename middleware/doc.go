// Package middleware provides the HTTP middleware the gateway wraps around
// the signature gate.
//
// Each constructor takes a config struct and returns a
// func(http.Handler) http.Handler, so it can be passed to chi's Use:
//
//	r := chi.NewRouter()
//	r.Use(middleware.RequestID(middleware.RequestIDConfig{}))
//	r.Use(middleware.Recovery(middleware.RecoveryConfig{}))
//	r.Use(middleware.AccessLog(middleware.AccessLogConfig{}))
package middleware
