package control

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := &Error{Op: "suspend", PID: 42, Kind: KindPermissionDenied, Err: fmt.Errorf("operation not permitted")}

	msg := err.Error()
	for _, want := range []string{"suspend", "42", "permission_denied", "operation not permitted"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q missing %q", msg, want)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := &Error{Op: "terminate", PID: 1, Kind: KindFailed, Err: cause}

	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable through errors.Is")
	}
}

func TestKindOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"control error", &Error{Op: "resume", PID: 7, Kind: KindNotFound}, KindNotFound},
		{"wrapped control error", fmt.Errorf("tick: %w", &Error{Op: "resume", PID: 7, Kind: KindUnsupported}), KindUnsupported},
		{"foreign error", errors.New("plain"), KindFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := KindOf(tc.err); got != tc.want {
				t.Errorf("KindOf = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestLaunchEmptyCommandUnsupported(t *testing.T) {
	_, err := launchDetached("   ", nil)
	if err == nil {
		t.Fatal("expected error for empty command")
	}
	if got := KindOf(err); got != KindUnsupported {
		t.Errorf("kind = %q, want %q", got, KindUnsupported)
	}
}
