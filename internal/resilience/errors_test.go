package resilience

import (
	"context"
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("bad request"), false},
		{"explicit", NewTransientError(errors.New("x"), 429), true},
		{"wrapped explicit", fmt.Errorf("search: %w", NewTransientError(errors.New("x"), 503)), true},
		{"deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), true},
		{"conn reset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"conn refused", syscall.ECONNREFUSED, true},
		{"message", errors.New("Anthropic API: Overloaded"), true},
		{"cancelled", context.Canceled, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.want {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		if !IsTransientStatus(code) {
			t.Errorf("%d should be transient", code)
		}
	}
	for _, code := range []int{200, 400, 401, 403, 404} {
		if IsTransientStatus(code) {
			t.Errorf("%d should not be transient", code)
		}
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	te := NewTransientError(inner, 500)
	if !errors.Is(te, inner) {
		t.Fatal("expected unwrap to inner")
	}
	if te.Error() != "inner" {
		t.Fatalf("unexpected message %q", te.Error())
	}
}
