//go:build !windows

package control

import "syscall"

// spawnAttrs places the child in its own process group so signals aimed at the
// agent's group never reach it.
func spawnAttrs() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}
