package testutil

import (
	"errors"
	"testing"

	apperrors "tallybook/internal/errors"
	"tallybook/internal/money"
)

// AssertAppError fails unless err is an *AppError carrying code. The wrapped
// cause is printed on mismatch since INTERNAL_ERROR hides it otherwise.
func AssertAppError(t *testing.T, err error, code string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}

	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected %s, got %T: %v", code, err, err)
	}
	if appErr.Code == code {
		return
	}
	if appErr.Internal != nil {
		t.Errorf("expected %s, got %s (%s): %v", code, appErr.Code, appErr.Message, appErr.Internal)
		return
	}
	t.Errorf("expected %s, got %s (%s)", code, appErr.Code, appErr.Message)
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertAmount compares at cent precision, so "5" and "5.00" are equal.
func AssertAmount(t *testing.T, got money.Amount, want string) {
	t.Helper()

	if !got.Equal(money.MustParse(want)) {
		t.Errorf("expected amount %s, got %s", want, got)
	}
}
