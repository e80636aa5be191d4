package apperr

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestKindOf(t *testing.T) {
	err := New(KindNotFound, "account %s not found", "abc")
	if KindOf(err) != KindNotFound {
		t.Fatalf("KindOf: got %q", KindOf(err))
	}
	if !IsKind(err, KindNotFound) {
		t.Fatal("IsKind should match")
	}
	if IsKind(err, KindVaultLocked) {
		t.Fatal("IsKind should not match a different kind")
	}
}

func TestKindSurvivesWrapping(t *testing.T) {
	inner := Wrap(KindCryptoFailed, errors.New("tag mismatch"), "decrypt account blob")
	outer := fmt.Errorf("switch account: %w", inner)
	if KindOf(outer) != KindCryptoFailed {
		t.Fatalf("kind lost through wrapping: %q", KindOf(outer))
	}
}

func TestThrottledCarriesRetryAfter(t *testing.T) {
	err := Throttled(42 * time.Second)
	var e *Error
	if !errors.As(err, &e) {
		t.Fatal("expected *Error")
	}
	if e.RetryAfter != 42*time.Second {
		t.Fatalf("RetryAfter: got %s", e.RetryAfter)
	}
}

func TestKindOfPlainError(t *testing.T) {
	if KindOf(errors.New("plain")) != "" {
		t.Fatal("plain errors carry no kind")
	}
}
