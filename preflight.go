package cmakext

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// DefaultProgram is the native build tool the orchestrator drives.
const DefaultProgram = "cmake"

// Preflight verifies the toolchain can be invoked by asking for its version.
//
// extensions names the builds that depend on the toolchain; they are listed
// in the *ToolchainMissingError returned when the query fails. On success
// the first line of the version output is returned.
func (o *Orchestrator) Preflight(ctx context.Context, extensions []string) (string, error) {
	return o.preflight(ctx, o.logger(), extensions)
}

func (o *Orchestrator) preflight(ctx context.Context, logger *slog.Logger, extensions []string) (string, error) {
	program := o.program()
	inv := Invocation{Program: program, Args: []string{"--version"}}

	res, err := o.runner().Run(ctx, inv)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		logger.Error("toolchain preflight failed", "program", program, "error", err)
		return "", &ToolchainMissingError{Program: program, Extensions: extensions, Err: err}
	}
	if !res.OK() {
		logger.Error("toolchain preflight failed", "program", program, "exit_code", res.ExitCode)
		return "", &ToolchainMissingError{
			Program:    program,
			Extensions: extensions,
			Err:        fmt.Errorf("%s exited with status %d", inv, res.ExitCode),
		}
	}

	version := ParseToolVersion(res.Output)
	logger.Debug("toolchain available", "program", program, "version", version)
	return version, nil
}

// ParseToolVersion extracts the version from `<tool> --version` output.
//
// "cmake version 3.28.3" yields "3.28.3". Output without a recognizable
// version line yields its first non-empty line, or "" when there is none.
func ParseToolVersion(output []string) string {
	for _, line := range output {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if _, after, ok := strings.Cut(line, " version "); ok {
			if fields := strings.Fields(after); len(fields) > 0 {
				return fields[0]
			}
		}
		return line
	}
	return ""
}

// LookupTool returns the path of the first of name or its alternatives found
// in PATH.
//
// # Example
//
//	python, err := LookupTool("python3", "python")
func LookupTool(name string, alternatives ...string) (string, error) {
	for _, candidate := range append([]string{name}, alternatives...) {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}

	if len(alternatives) == 0 {
		return "", fmt.Errorf("%s not found in PATH", name)
	}
	return "", fmt.Errorf("none of %s found in PATH", strings.Join(append([]string{name}, alternatives...), ", "))
}
