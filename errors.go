package cmakext

import (
	"fmt"
	"strings"
)

// InvalidRootError is returned by Collect when the root is missing or is not
// a directory.
type InvalidRootError struct {
	Path string
	Err  error // underlying stat error, nil when the path is a regular file
}

func (e *InvalidRootError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid collection root %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("invalid collection root %s: not a directory", e.Path)
}

func (e *InvalidRootError) Unwrap() error { return e.Err }

// ToolchainMissingError reports that the native build tool could not be
// invoked at all. It aborts every remaining extension build.
type ToolchainMissingError struct {
	Program    string
	Extensions []string
	Err        error
}

func (e *ToolchainMissingError) Error() string {
	msg := fmt.Sprintf("%s must be installed to build the following extensions: %s",
		e.Program, strings.Join(e.Extensions, ", "))
	if e.Err != nil {
		msg += fmt.Sprintf(" (%v)", e.Err)
	}
	return msg
}

func (e *ToolchainMissingError) Unwrap() error { return e.Err }

// ToolchainError reports a configure or compile step that did not finish
// cleanly. ExitCode is -1 when the process could not be started.
type ToolchainError struct {
	Step     string
	Program  string
	ExitCode int
	Output   []string
	Err      error
}

func (e *ToolchainError) Error() string {
	cause := e.Err
	if cause == nil {
		cause = fmt.Errorf("exit status %d", e.ExitCode)
	}
	return BuildError(e.Program+" "+e.Step, e.Output, cause).Error()
}

func (e *ToolchainError) Unwrap() error { return e.Err }

// ArtifactMissingError is reported by the packaging pipeline when the
// toolchain exited cleanly but no native library for the extension was
// found in its output directory.
type ArtifactMissingError struct {
	Extension string
	OutputDir string
}

func (e *ArtifactMissingError) Error() string {
	return fmt.Sprintf("extension %s: no compiled artifact found in %s", e.Extension, e.OutputDir)
}

// ManifestError reports an invalid project manifest.
type ManifestError struct {
	Path  string
	Field string
	Msg   string
}

func (e *ManifestError) Error() string {
	prefix := "manifest"
	if e.Path != "" {
		prefix += " " + e.Path
	}
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", prefix, e.Msg)
	}
	return fmt.Sprintf("%s: %s: %s", prefix, e.Field, e.Msg)
}
