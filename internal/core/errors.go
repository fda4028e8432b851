// Package core defines sentinel errors.
package core

import "errors"

// Sentinel errors shared by the channel, protocol and daemon packages.
var (
	// Channel errors
	ErrConnection   = errors.New("acpipe: channel connection failed")
	ErrShortRead    = errors.New("acpipe: short read")
	ErrTooManyPeers = errors.New("acpipe: peer limit reached")

	// Decoding errors
	ErrTruncatedPayload   = errors.New("acpipe: truncated payload")
	ErrUnknownReportCode  = errors.New("acpipe: unknown report code")
	ErrUnknownMessageType = errors.New("acpipe: unknown message type")

	// Configuration errors
	ErrConfigInvalid = errors.New("acpipe: invalid configuration")
)

// Reason maps an error to a short label for logs and metrics.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnknownReportCode):
		return "unknown_report_code"
	case errors.Is(err, ErrTruncatedPayload):
		return "truncated_payload"
	case errors.Is(err, ErrShortRead):
		return "short_read"
	case errors.Is(err, ErrUnknownMessageType):
		return "unknown_message_type"
	case errors.Is(err, ErrConnection):
		return "connection"
	default:
		return "io"
	}
}
