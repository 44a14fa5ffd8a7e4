//go:build !windows

package control

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/vigil-mon/agent/internal/logging"
)

var log = logging.L("control")

type unixController struct{}

func newController() Controller {
	return &unixController{}
}

func (c *unixController) Terminate(pid int32) error {
	if err := checkPid(pid, "terminate"); err != nil {
		return err
	}
	if err := unix.Kill(int(pid), unix.SIGKILL); err != nil {
		return translateErrno("terminate", pid, err)
	}
	log.Info("process terminated", "pid", pid)
	return nil
}

func (c *unixController) Suspend(pid int32) error {
	if err := checkPid(pid, "suspend"); err != nil {
		return err
	}
	if err := unix.Kill(int(pid), unix.SIGSTOP); err != nil {
		return translateErrno("suspend", pid, err)
	}
	return nil
}

func (c *unixController) Resume(pid int32) error {
	if err := checkPid(pid, "resume"); err != nil {
		return err
	}
	if err := unix.Kill(int(pid), unix.SIGCONT); err != nil {
		return translateErrno("resume", pid, err)
	}
	return nil
}

func (c *unixController) SetPriority(pid int32, level PriorityLevel) error {
	if err := checkPid(pid, "set_priority"); err != nil {
		return err
	}
	nice, ok := unixNiceness[level]
	if !ok {
		return &Error{Op: "set_priority", PID: pid, Kind: KindUnsupported, Err: fmt.Errorf("no niceness mapping for %s", level)}
	}

	// Probe existence first so a vanished pid reports NotFound rather than
	// whatever setpriority happens to say.
	if err := unix.Kill(int(pid), 0); err != nil {
		return translateErrno("set_priority", pid, err)
	}
	if err := unix.Setpriority(unix.PRIO_PROCESS, int(pid), nice); err != nil {
		return translateErrno("set_priority", pid, err)
	}
	log.Info("priority changed", "pid", pid, "level", level.String(), "niceness", nice)
	return nil
}

func (c *unixController) Launch(command string, args []string) (int32, error) {
	return launchDetached(command, args)
}

// checkPid rejects pids that kill(2) would misinterpret: 0 and negative values
// address process groups, not single processes.
func checkPid(pid int32, op string) error {
	if pid <= 0 {
		return &Error{Op: op, PID: pid, Kind: KindNotFound, Err: fmt.Errorf("invalid pid")}
	}
	return nil
}

func translateErrno(op string, pid int32, err error) error {
	var errno unix.Errno
	if errors.As(err, &errno) {
		switch errno {
		case unix.ESRCH:
			return &Error{Op: op, PID: pid, Kind: KindNotFound, Err: err}
		case unix.EPERM, unix.EACCES:
			return &Error{Op: op, PID: pid, Kind: KindPermissionDenied, Err: err}
		case unix.EINVAL:
			return &Error{Op: op, PID: pid, Kind: KindUnsupported, Err: err}
		}
	}
	return &Error{Op: op, PID: pid, Kind: KindFailed, Err: err}
}
