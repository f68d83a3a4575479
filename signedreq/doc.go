// Package signedreq verifies detached Ed25519 signatures on incoming HTTP
// requests before they reach application handlers.
//
// # Wire Format
//
// A client signs the canonical message
//
//	<timestamp> "\n" <METHOD> "\n" <path?query> "\n" <body>
//
// and sends three headers:
//
//   - X-Key-Id: selects the registered public key
//   - X-Signature: base64 of the 64-byte Ed25519 signature
//   - X-Signed-Timestamp: RFC 3339 date-time or decimal epoch seconds
//
// The timestamp is covered exactly as sent, and path?query is the raw
// request-target, so signer and verifier never need to agree on a
// normalisation.
//
// # Keys
//
// Keys are configured once as "<keyId>:<base64-public-key>" entries:
//
//	keys, err := signedreq.ParseKeySet([]string{
//	    "k1:11qYAYKxCrfVS/7TyWQHOg7hcvPapiMlrwIaaPcHURo=",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// A malformed entry fails the whole set. The set is immutable afterwards.
//
// # Verifying Requests
//
//	verifier, err := signedreq.NewVerifier(signedreq.Config{
//	    Keys:      keys,
//	    Tolerance: 5 * time.Second,
//	})
//
//	verified, err := verifier.Verify(req)
//
// Verify buffers the body, so the returned request must be used in place of
// the original. Every failure wraps ErrVerification; Reason maps it to a short
// label for logs and metrics.
//
// # Middleware
//
// Load resolves static settings into a Verifier, or into nil when
// verification is disabled. Middleware turns a nil Verifier into a
// pass-through:
//
//	verifier, err := signedreq.Load(signedreq.Settings{
//	    Enabled:    true,
//	    PublicKeys: entries,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	router.Use(signedreq.Middleware(signedreq.MiddlewareConfig{
//	    Verifier: verifier,
//	}))
//
// Rejected requests get a 401 application/problem+json response that never
// names the failed check.
package signedreq
