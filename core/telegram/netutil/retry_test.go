package netutil

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"syscall"
	"testing"
)

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"dial", &net.OpError{Op: "dial", Err: errors.New("refused")}, true},
		{"reset", &net.OpError{Op: "read", Err: syscall.ECONNRESET}, true},
		{"eof", &url.Error{Op: "Post", URL: "https://api.telegram.org", Err: io.ErrUnexpectedEOF}, true},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", context.Canceled, false},
	}
	for _, tt := range tests {
		if got := ShouldRetry(tt.err); got != tt.want {
			t.Errorf("%s: ShouldRetry(%v) = %v, want %v", tt.name, tt.err, got, tt.want)
		}
	}
}
