package errors

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"auth", NewAuthError(401, "bad key", nil), false},
		{"rate limit", NewRateLimitError(time.Second, "slow down"), true},
		{"transport", NewTransportError("search", 503, fmt.Errorf("bad gateway")), true},
		{"wrapped transport", fmt.Errorf("fetch: %w", NewTransportError("search", 0, context.DeadlineExceeded)), true},
		{"malformed", NewMalformedRecordError(3, "missing id"), false},
		{"plain", fmt.Errorf("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestTypedErrorsMatchSentinels(t *testing.T) {
	if !Is(NewAuthError(403, "forbidden", nil), ErrAuth) {
		t.Error("AuthError should match ErrAuth")
	}
	if !Is(NewRateLimitError(0, "x"), ErrRateLimited) {
		t.Error("RateLimitError should match ErrRateLimited")
	}
	if !Is(NewTransportError("search", 0, context.DeadlineExceeded), context.DeadlineExceeded) {
		t.Error("TransportError should unwrap to its cause")
	}
	if !Is(&DateParseWarning{EventID: "e1", Field: "announcement_date", Value: "soon"}, ErrDateParse) {
		t.Error("DateParseWarning should match ErrDateParse")
	}
}

func TestRetryAfter(t *testing.T) {
	err := fmt.Errorf("search: %w", NewRateLimitError(7*time.Second, "quota"))
	d, ok := RetryAfter(err)
	if !ok || d != 7*time.Second {
		t.Fatalf("RetryAfter = %v, %v; want 7s, true", d, ok)
	}

	if _, ok := RetryAfter(NewRateLimitError(0, "quota")); ok {
		t.Error("zero RetryAfter should report false")
	}
}
