package control

import (
	"errors"
	"fmt"
)

// Controller is the platform-neutral process control surface. One
// implementation exists per OS family, selected at build time. Implementations
// translate every native failure into an *Error; OS-specific error values never
// leak to callers.
type Controller interface {
	// Terminate requests immediate termination of the process.
	Terminate(pid int32) error

	// Suspend freezes the process without terminating it.
	Suspend(pid int32) error

	// Resume reverses a previous Suspend.
	Resume(pid int32) error

	// SetPriority moves the process to the nearest native value for level.
	SetPriority(pid int32, level PriorityLevel) error

	// Launch starts a new process detached from the caller's lifetime and
	// returns its pid. Unlike the other operations it is not idempotent.
	Launch(command string, args []string) (int32, error)
}

// Kind classifies control failures into a uniform, platform-independent taxonomy.
type Kind string

const (
	KindNotFound         Kind = "not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindUnsupported      Kind = "unsupported"
	KindFailed           Kind = "failed"
)

// Error is the uniform control-plane error. Err retains the platform
// diagnostic for display.
type Error struct {
	Op   string
	PID  int32
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s pid %d: %s: %v", e.Op, e.PID, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s pid %d: %s", e.Op, e.PID, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf extracts the failure kind from err. Non-control errors report
// KindFailed; nil reports the empty kind.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var cerr *Error
	if errors.As(err, &cerr) {
		return cerr.Kind
	}
	return KindFailed
}

// New returns the controller for the build target.
func New() Controller {
	return newController()
}
