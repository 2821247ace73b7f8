package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain error", errors.New("boom"), KindUnknown},
		{"forbidden", Forbidden("nope"), KindForbidden},
		{"not ready", NotReady("wait"), KindNotReady},
		{"wrapped with fmt", fmt.Errorf("outer: %w", RateLimited("slow down")), KindRateLimited},
		{"wrapped with Wrap", Wrap(KindNotFound, "missing", errors.New("sql")), KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsKind(t *testing.T) {
	err := fmt.Errorf("ctx: %w", InvalidState("already ended"))
	if !IsKind(err, KindInvalidState) {
		t.Error("IsKind() = false for wrapped InvalidState")
	}
	if IsKind(err, KindForbidden) {
		t.Error("IsKind() matched wrong kind")
	}
}

func TestErrorMessage(t *testing.T) {
	base := errors.New("pq: deadlock")
	err := Wrap(KindInvalidState, "end session", base)
	if err.Error() != "end session: pq: deadlock" {
		t.Errorf("Error() = %q", err.Error())
	}
	if !errors.Is(err, base) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	if New(KindForbidden, "denied").Error() != "denied" {
		t.Error("bare message mangled")
	}
}
