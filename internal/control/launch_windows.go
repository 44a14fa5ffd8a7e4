//go:build windows

package control

import (
	"syscall"

	"golang.org/x/sys/windows"
)

// spawnAttrs detaches the child into a fresh process group so console events
// aimed at the agent never reach it.
func spawnAttrs() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NEW_PROCESS_GROUP | windows.DETACHED_PROCESS,
	}
}
