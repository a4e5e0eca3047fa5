package cmakext

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/magefile/mage/sh"
)

// Invocation describes one external toolchain call.
type Invocation struct {
	Program string
	Args    []string
	Dir     string   // working directory
	Env     []string // full environment; nil inherits the process environment
}

func (i Invocation) String() string {
	return strings.TrimSpace(i.Program + " " + strings.Join(i.Args, " "))
}

// InvocationResult is the typed outcome of an invocation that started.
type InvocationResult struct {
	ExitCode int
	Output   []string // combined stdout and stderr, line by line
}

// OK reports a zero exit status.
func (r *InvocationResult) OK() bool {
	return r != nil && r.ExitCode == 0
}

// Runner executes toolchain invocations.
//
// Run blocks until the process exits. No timeout is applied: a hung
// toolchain hangs the build until ctx is canceled (in practice, until the
// user interrupts the process).
//
// A non-zero exit is not an error: it is reported through
// InvocationResult.ExitCode. An error means the process could not be run at
// all (missing binary, bad working directory, killed by a signal).
type Runner interface {
	Run(ctx context.Context, inv Invocation) (*InvocationResult, error)
}

// ExecRunner runs invocations as child processes.
type ExecRunner struct {
	// Stream, when set, receives process output as it is produced in
	// addition to it being captured on the result.
	Stream io.Writer
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, inv Invocation) (*InvocationResult, error) {
	cmd := exec.CommandContext(ctx, inv.Program, inv.Args...)
	cmd.Dir = inv.Dir
	cmd.Env = inv.Env

	var buf bytes.Buffer
	var w io.Writer = &buf
	if r.Stream != nil {
		w = io.MultiWriter(&buf, r.Stream)
	}
	cmd.Stdout = w
	cmd.Stderr = w

	err := cmd.Run()
	result := &InvocationResult{
		ExitCode: sh.ExitStatus(err),
		Output:   splitLines(buf.Bytes()),
	}

	if err != nil && !sh.CmdRan(err) {
		result.ExitCode = -1
		if ctxErr := ctx.Err(); ctxErr != nil {
			return result, ctxErr
		}
		return result, fmt.Errorf("failed to run %s: %w", inv.Program, err)
	}

	return result, nil
}
