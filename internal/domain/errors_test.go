package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorKinds(t *testing.T) {
	cause := errors.New("disk full")
	storage := StorageFailure("upsert", cause)

	wrapped := fmt.Errorf("record answer: %w", storage)
	if !errors.Is(wrapped, ErrStorage) {
		t.Errorf("expected wrapped error to match ErrStorage")
	}
	if !errors.Is(wrapped, cause) {
		t.Errorf("expected wrapped error to keep its cause")
	}
	if errors.Is(wrapped, ErrInvalidArgument) {
		t.Errorf("storage error must not match ErrInvalidArgument")
	}

	invalid := InvalidArgument("next state", "quality %d outside [0,5]", 7)
	if got, want := invalid.Error(), "next state: invalid argument: quality 7 outside [0,5]"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if !errors.Is(NotFound("get session", "abc"), ErrNotFound) {
		t.Errorf("expected NotFound to match ErrNotFound")
	}
}
