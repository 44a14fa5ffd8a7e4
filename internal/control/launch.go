package control

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// launchDetached starts command in its own process group so it outlives the
// agent, and returns the new pid. Stdio is discarded; the caller observes the
// process through the next metrics poll.
func launchDetached(command string, args []string) (int32, error) {
	if strings.TrimSpace(command) == "" {
		return 0, &Error{Op: "launch", Kind: KindUnsupported, Err: fmt.Errorf("empty command")}
	}

	cmd := exec.Command(command, args...)
	cmd.SysProcAttr = spawnAttrs()

	if err := cmd.Start(); err != nil {
		if errors.Is(err, os.ErrPermission) {
			return 0, &Error{Op: "launch", Kind: KindPermissionDenied, Err: err}
		}
		return 0, &Error{Op: "launch", Kind: KindFailed, Err: err}
	}

	pid := int32(cmd.Process.Pid)

	// Reap in the background so a short-lived child does not linger as a
	// zombie. The child is in its own group and survives agent shutdown.
	go func() { _ = cmd.Wait() }()

	log.Info("process launched", "pid", pid, "command", command)
	return pid, nil
}
