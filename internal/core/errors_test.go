package core

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReason(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{ErrUnknownReportCode, "unknown_report_code"},
		{fmt.Errorf("decode: %w", ErrTruncatedPayload), "truncated_payload"},
		{fmt.Errorf("header: %w", ErrShortRead), "short_read"},
		{ErrUnknownMessageType, "unknown_message_type"},
		{fmt.Errorf("listen: %w", ErrConnection), "connection"},
		{io.ErrClosedPipe, "io"},
		{errors.New("boom"), "io"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Reason(tt.err), "err=%v", tt.err)
	}
}
