package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/dalemusser/coordhub/internal/domain/errs"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errs.Kind
	}{
		{"nil", nil, errs.KindUnknown},
		{"plain error", errors.New("boom"), errs.KindUnknown},
		{"state guard", errs.ErrNoSlots, errs.KindStateGuard},
		{"wrapped state guard", fmt.Errorf("approve: %w", errs.ErrCapacityExceeded), errs.KindStateGuard},
		{"authorization", errs.ErrNotTargetSponsor, errs.KindAuthorization},
		{"validation", errs.Invalid("reason is required"), errs.KindValidation},
		{"invalid window", errs.ErrInvalidWindow, errs.KindValidation},
		{"not found", errs.NotFound("offering"), errs.KindNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errs.KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	err := errs.Invalid("title is required")
	if !errors.Is(err, errs.ErrInvalidInput) {
		t.Error("Invalid() should match ErrInvalidInput")
	}
	if errors.Is(err, errs.ErrInvalidWindow) {
		t.Error("Invalid() should not match ErrInvalidWindow")
	}

	nf := fmt.Errorf("load: %w", errs.NotFound("request"))
	if !errors.Is(nf, errs.ErrNotFound) {
		t.Error("wrapped NotFound should match ErrNotFound")
	}
	if nf.Error() != "load: request not found" {
		t.Errorf("unexpected message %q", nf.Error())
	}

	if errors.Is(errs.ErrAlreadyCommitted, errs.ErrCapacityExceeded) {
		t.Error("distinct sentinels must not match")
	}
}

func TestCodeOf(t *testing.T) {
	if got := errs.CodeOf(fmt.Errorf("x: %w", errs.ErrOverlap)); got != "overlap" {
		t.Errorf("CodeOf = %q, want overlap", got)
	}
	if got := errs.CodeOf(errors.New("boom")); got != "" {
		t.Errorf("CodeOf(plain) = %q, want empty", got)
	}
}

func TestIsExpected(t *testing.T) {
	if !errs.IsExpected(errs.ErrDuplicateRequest) {
		t.Error("typed errors are expected")
	}
	if errs.IsExpected(errors.New("connection reset")) {
		t.Error("infrastructure errors are not expected")
	}
}

func TestKindString(t *testing.T) {
	if errs.KindStateGuard.String() != "state_guard" {
		t.Errorf("got %q", errs.KindStateGuard.String())
	}
	if errs.Kind(42).String() != "unknown" {
		t.Errorf("got %q", errs.Kind(42).String())
	}
}
