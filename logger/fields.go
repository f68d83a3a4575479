package logger

import (
	"time"

	"go.uber.org/zap"
)

// HTTP fields.

func RequestID(v string) zap.Field { return zap.String("request_id", v) }
func Method(v string) zap.Field    { return zap.String("method", v) }
func Path(v string) zap.Field      { return zap.String("path", v) }
func Status(v int) zap.Field       { return zap.Int("status", v) }
func Bytes(v int) zap.Field        { return zap.Int("bytes", v) }
func ClientIP(v string) zap.Field  { return zap.String("client_ip", v) }
func UserAgent(v string) zap.Field { return zap.String("user_agent", v) }
func Addr(v string) zap.Field      { return zap.String("addr", v) }

// DurationMs records d in milliseconds.
func DurationMs(d time.Duration) zap.Field { return zap.Int64("duration_ms", d.Milliseconds()) }

// Verification fields. Never log signature values.

func KeyID(v string) zap.Field  { return zap.String("key_id", v) }
func Reason(v string) zap.Field { return zap.String("reason", v) }

// System fields.

func Component(v string) zap.Field { return zap.String("component", v) }
func Err(err error) zap.Field      { return zap.Error(err) }
