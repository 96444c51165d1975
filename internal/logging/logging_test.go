package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestMaskCredential(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"abc", "***"},
		{"abcdefg", "ab*****"},
		{"abcd1234efgh", "abcd****efgh"},
	}
	for _, tt := range tests {
		if got := MaskCredential(tt.in); got != tt.want {
			t.Errorf("MaskCredential(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMaskSecrets(t *testing.T) {
	in := `request failed: x-api-token: sk1234567890abcd rejected`
	got := MaskSecrets(in)
	if strings.Contains(got, "sk1234567890abcd") {
		t.Fatalf("secret leaked: %s", got)
	}
	if !strings.Contains(got, "sk12") || !strings.Contains(got, "rejected") {
		t.Errorf("unexpected masking: %s", got)
	}

	plain := "nothing to hide here"
	if MaskSecrets(plain) != plain {
		t.Errorf("plain text changed: %s", MaskSecrets(plain))
	}
}

func TestWithRequestID(t *testing.T) {
	var buf bytes.Buffer
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	ctx := WithLogger(context.Background(), zerolog.New(&buf))

	ctx, id := WithRequestID(ctx, "")
	if id == "" {
		t.Fatal("expected generated request id")
	}
	if RequestID(ctx) != id {
		t.Errorf("RequestID = %q, want %q", RequestID(ctx), id)
	}

	logger := FromContext(ctx)
	logger.Info().Msg("hello")
	if !strings.Contains(buf.String(), id) {
		t.Errorf("log line missing request id: %s", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG") != zerolog.DebugLevel {
		t.Error("expected debug level")
	}
	if ParseLevel("bogus") != zerolog.InfoLevel {
		t.Error("unknown level should default to info")
	}
}
