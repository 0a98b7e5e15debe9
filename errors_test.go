package bmrng

import (
	"errors"
	"testing"
)

func TestSendErrorUnwrap(t *testing.T) {
	err := newSendError(42, ErrClosed)

	if !errors.Is(err, ErrClosed) {
		t.Errorf("want errors.Is to match ErrClosed, got %v", err)
	}

	var sendErr SendError[int]
	if !errors.As(err, &sendErr) {
		t.Errorf("want errors.As to match SendError, got %T", err)
	}

	if sendErr.Value != 42 {
		t.Errorf("want %d, got %d", 42, sendErr.Value)
	}
}

func TestRespondErrorUnwrap(t *testing.T) {
	err := newRespondError(21, ErrAlreadyReplied)

	if !errors.Is(err, ErrAlreadyReplied) {
		t.Errorf("want errors.Is to match ErrAlreadyReplied, got %v", err)
	}

	var respondErr RespondError[int]
	if !errors.As(err, &respondErr) {
		t.Errorf("want errors.As to match RespondError, got %T", err)
	}

	if respondErr.Value != 21 {
		t.Errorf("want %d, got %d", 21, respondErr.Value)
	}
}

func TestErrorMessages(t *testing.T) {
	want := "bmrng: send failed: bmrng: request channel closed"
	if got := newSendError("payload", ErrClosed).Error(); got != want {
		t.Errorf("want %q, got %q", want, got)
	}

	want = "bmrng: respond failed: bmrng: reply already sent"
	if got := newRespondError("payload", ErrAlreadyReplied).Error(); got != want {
		t.Errorf("want %q, got %q", want, got)
	}
}
