package mert

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

const defaultFilterTimeout = 30 * time.Second

// preProcessFilter pipes a sentence through an external command. The
// command reads the sentence on stdin and must write the processed
// sentence to stdout and exit promptly; a nonzero exit status is an
// error. Each run is a scoped subprocess: pipes and the child are torn
// down on every exit path, and a timeout bounds misbehaving filters.
type preProcessFilter struct {
	command string
	timeout time.Duration
}

func newPreProcessFilter(command string, timeout time.Duration) *preProcessFilter {
	if timeout <= 0 {
		timeout = defaultFilterTimeout
	}

	return &preProcessFilter{command: command, timeout: timeout}
}

func (f *preProcessFilter) Run(sentence string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", f.command)
	cmd.Stdin = strings.NewReader(sentence + "\n")

	// The shell may fork children that inherit the stdout pipe; Run
	// blocks until every writer is gone. Kill the whole process group
	// on timeout, and stop waiting for the pipes a second after the
	// shell itself is done.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	var out, errout bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errout

	if err := cmd.Run(); err != nil {
		stats.Inc("error", 1, 1.0)

		if msg := strings.TrimSpace(errout.String()); msg != "" {
			return "", fmt.Errorf("%w: %s: %v: %s", ErrFilterFailed, f.command, err, msg)
		}

		return "", fmt.Errorf("%w: %s: %v", ErrFilterFailed, f.command, err)
	}

	return strings.TrimRight(out.String(), "\r\n"), nil
}
