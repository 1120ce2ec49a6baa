package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestWrap_NilPassesThrough(t *testing.T) {
	if err := Wrap(IOFailure, "write", "/tmp/x", nil); err != nil {
		t.Errorf("Wrap(nil) = %v, want nil", err)
	}
}

func TestKindOf_ThroughFmtWrap(t *testing.T) {
	base := Wrap(QuotaExceeded, "print", "", stderrors.New("limit 5"))
	wrapped := fmt.Errorf("handle print: %w", base)

	if got := KindOf(wrapped); got != QuotaExceeded {
		t.Errorf("KindOf = %q, want %q", got, QuotaExceeded)
	}
	if !Is(wrapped, QuotaExceeded) {
		t.Error("Is(wrapped, QuotaExceeded) = false")
	}
}

func TestKindOf_PlainErrorIsInternal(t *testing.T) {
	if got := KindOf(stderrors.New("boom")); got != Internal {
		t.Errorf("KindOf = %q, want %q", got, Internal)
	}
	if Is(nil, Internal) {
		t.Error("Is(nil, ...) should be false")
	}
}

func TestReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"quota", New(QuotaExceeded, "print", "limit"), "print_limit_exceeded"},
		{"collage", New(CollageCompositionFailure, "collage", "bad layout"), ""},
		{"plain", stderrors.New("x"), ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Reason(tc.err); got != tc.want {
				t.Errorf("Reason = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestAppError_ErrorIncludesPath(t *testing.T) {
	err := Wrap(IOFailure, "write", "/content/print-log.txt", stderrors.New("disk full"))
	want := "write: /content/print-log.txt: disk full"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(QuotaExceeded, "print", "x")); got != "Print limit exceeded" {
		t.Errorf("UserMessage = %q", got)
	}
	if got := UserMessage(stderrors.New("raw")); got != "raw" {
		t.Errorf("UserMessage(plain) = %q, want raw", got)
	}
}
