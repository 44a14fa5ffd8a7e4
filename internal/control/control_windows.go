//go:build windows

package control

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"

	"github.com/vigil-mon/agent/internal/logging"
)

var log = logging.L("control")

const processSuspendResume = 0x0800 // PROCESS_SUSPEND_RESUME

var (
	ntdll            = windows.NewLazySystemDLL("ntdll.dll")
	ntSuspendProcess = ntdll.NewProc("NtSuspendProcess")
	ntResumeProcess  = ntdll.NewProc("NtResumeProcess")
)

type windowsController struct{}

func newController() Controller {
	return &windowsController{}
}

func (c *windowsController) Terminate(pid int32) error {
	handle, err := openProcess("terminate", pid, windows.PROCESS_TERMINATE)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(handle)

	if err := windows.TerminateProcess(handle, 1); err != nil {
		return translateWinErr("terminate", pid, err)
	}
	log.Info("process terminated", "pid", pid)
	return nil
}

func (c *windowsController) Suspend(pid int32) error {
	return c.suspendResume("suspend", pid, ntSuspendProcess)
}

func (c *windowsController) Resume(pid int32) error {
	return c.suspendResume("resume", pid, ntResumeProcess)
}

func (c *windowsController) suspendResume(op string, pid int32, proc *windows.LazyProc) error {
	if err := proc.Find(); err != nil {
		// Kernel without the Nt* process calls: the capability is absent,
		// not broken.
		return &Error{Op: op, PID: pid, Kind: KindUnsupported, Err: err}
	}

	handle, err := openProcess(op, pid, processSuspendResume)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(handle)

	status, _, _ := proc.Call(uintptr(handle))
	if status != 0 {
		return &Error{Op: op, PID: pid, Kind: KindFailed, Err: fmt.Errorf("NTSTATUS 0x%08x", status)}
	}
	return nil
}

func (c *windowsController) SetPriority(pid int32, level PriorityLevel) error {
	class, ok := windowsPriorityClass[level]
	if !ok {
		return &Error{Op: "set_priority", PID: pid, Kind: KindUnsupported, Err: fmt.Errorf("no priority class mapping for %s", level)}
	}

	handle, err := openProcess("set_priority", pid, windows.PROCESS_SET_INFORMATION)
	if err != nil {
		return err
	}
	defer windows.CloseHandle(handle)

	if err := windows.SetPriorityClass(handle, class); err != nil {
		return translateWinErr("set_priority", pid, err)
	}
	log.Info("priority changed", "pid", pid, "level", level.String(), "class", fmt.Sprintf("0x%x", class))
	return nil
}

func (c *windowsController) Launch(command string, args []string) (int32, error) {
	return launchDetached(command, args)
}

func openProcess(op string, pid int32, access uint32) (windows.Handle, error) {
	if pid <= 0 {
		return 0, &Error{Op: op, PID: pid, Kind: KindNotFound, Err: fmt.Errorf("invalid pid")}
	}
	handle, err := windows.OpenProcess(access, false, uint32(pid))
	if err != nil {
		return 0, translateWinErr(op, pid, err)
	}
	return handle, nil
}

func translateWinErr(op string, pid int32, err error) error {
	var errno windows.Errno
	if errors.As(err, &errno) {
		switch errno {
		case windows.ERROR_INVALID_PARAMETER, windows.ERROR_NOT_FOUND:
			// OpenProcess reports a dead pid as an invalid parameter.
			return &Error{Op: op, PID: pid, Kind: KindNotFound, Err: err}
		case windows.ERROR_ACCESS_DENIED:
			return &Error{Op: op, PID: pid, Kind: KindPermissionDenied, Err: err}
		case windows.ERROR_NOT_SUPPORTED:
			return &Error{Op: op, PID: pid, Kind: KindUnsupported, Err: err}
		}
	}
	return &Error{Op: op, PID: pid, Kind: KindFailed, Err: err}
}
