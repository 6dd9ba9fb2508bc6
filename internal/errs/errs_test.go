package errs

import (
	"errors"
	"testing"
)

func TestKindOfDefaultsInternal(t *testing.T) {
	if KindOf(errors.New("plain")) != Internal {
		t.Fatalf("expected Internal for untagged error")
	}
}

func TestWrapNilIsNil(t *testing.T) {
	if Wrap(NotFound, "op", nil) != nil {
		t.Fatalf("expected nil")
	}
}

func TestIsMatchesKind(t *testing.T) {
	err := New(ResourceExhausted, "writer.Enqueue", "queue full")
	if !Is(err, ResourceExhausted) {
		t.Fatalf("expected ResourceExhausted")
	}
	if Is(err, NotFound) {
		t.Fatalf("did not expect NotFound")
	}
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := Wrap(Internal, "op", cause)
	if !errors.Is(wrapped, cause) {
		t.Fatalf("expected errors.Is to see through wrapping")
	}
}
