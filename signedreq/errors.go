package signedreq

import "errors"

// Configuration errors. They are returned while building a KeySet or a
// Verifier and must stop the process before it serves traffic.
var (
	// ErrInvalidConfig is wrapped by every configuration error.
	ErrInvalidConfig = errors.New("signedreq: invalid configuration")

	// ErrInvalidKeyEntry is returned when a key entry is not in the
	// "<keyId>:<base64-public-key>" format or carries invalid key material.
	ErrInvalidKeyEntry = errors.New("signedreq: invalid key entry")

	// ErrDuplicateKeyID is returned when two key entries share a key id.
	ErrDuplicateKeyID = errors.New("signedreq: duplicate key id")

	// ErrRequiredKeyUnknown is returned when the pinned key id is not part
	// of the configured key set.
	ErrRequiredKeyUnknown = errors.New("signedreq: required key id is not registered")

	// ErrInvalidTolerance is returned when the clock skew tolerance is negative.
	ErrInvalidTolerance = errors.New("signedreq: clock skew tolerance must not be negative")

	// ErrNoKeys is returned by NewVerifier when the key set is nil or empty.
	ErrNoKeys = errors.New("signedreq: key set must not be empty")
)

// Verification errors. Every one of them wraps ErrVerification and results
// in the same 401 response; the concrete error is only used for diagnostics.
var (
	// ErrVerification is wrapped by every verification error.
	ErrVerification = errors.New("signedreq: request verification failed")

	// ErrMissingHeader is returned when a required signature header is absent.
	ErrMissingHeader = wrap("missing signature header")

	// ErrKeyIDMismatch is returned when a required key id is pinned and the
	// request presents a different one.
	ErrKeyIDMismatch = wrap("unexpected key id")

	// ErrUnknownKeyID is returned when the presented key id is not registered.
	ErrUnknownKeyID = wrap("unknown key id")

	// ErrSignatureEncoding is returned when the signature is not valid base64.
	ErrSignatureEncoding = wrap("invalid signature encoding")

	// ErrSignatureLength is returned when the decoded signature is not
	// exactly 64 bytes.
	ErrSignatureLength = wrap("invalid signature length")

	// ErrTimestampFormat is returned when the signed timestamp is neither
	// RFC 3339 nor integer epoch seconds.
	ErrTimestampFormat = wrap("invalid timestamp")

	// ErrTimestampSkew is returned when the signed timestamp is outside the
	// clock skew tolerance.
	ErrTimestampSkew = wrap("timestamp outside allowed skew")

	// ErrBodyRead is returned when the request body cannot be read.
	ErrBodyRead = wrap("unable to read body for verification")

	// ErrBodyTooLarge is returned when the request body exceeds the
	// configured maximum size.
	ErrBodyTooLarge = wrap("request body too large for verification")

	// ErrSignatureMismatch is returned when the signature does not verify.
	ErrSignatureMismatch = wrap("signature mismatch")

	// ErrReplayed is returned when the replay cache has already seen the
	// signature.
	ErrReplayed = wrap("signature already used")

	// ErrReplayCache is returned when the replay cache cannot be consulted.
	ErrReplayCache = wrap("replay cache unavailable")
)

// verificationError keeps every verification sentinel matchable both by its
// own identity and by ErrVerification.
type verificationError struct {
	msg string
}

func wrap(msg string) error {
	return &verificationError{msg: msg}
}

func (e *verificationError) Error() string { return "signedreq: " + e.msg }

func (e *verificationError) Unwrap() error { return ErrVerification }

var reasons = []struct {
	err   error
	label string
}{
	{ErrMissingHeader, "missing_header"},
	{ErrKeyIDMismatch, "key_id_mismatch"},
	{ErrUnknownKeyID, "unknown_key_id"},
	{ErrSignatureEncoding, "signature_encoding"},
	{ErrSignatureLength, "signature_length"},
	{ErrTimestampFormat, "timestamp_format"},
	{ErrTimestampSkew, "timestamp_skew"},
	{ErrBodyTooLarge, "body_too_large"},
	{ErrBodyRead, "body_read"},
	{ErrSignatureMismatch, "signature_mismatch"},
	{ErrReplayed, "replayed"},
	{ErrReplayCache, "replay_cache"},
}

// Reason returns a short stable label for a verification error, suitable for
// log fields and metric labels. It returns "ok" for a nil error and
// "unknown" for errors that are not verification errors.
func Reason(err error) string {
	if err == nil {
		return "ok"
	}

	for _, r := range reasons {
		if errors.Is(err, r.err) {
			return r.label
		}
	}

	return "unknown"
}
