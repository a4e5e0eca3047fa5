package cmakext

import (
	"context"
	"path/filepath"
)

// BuildFlavor selects the CMake build configuration.
//
// Only two flavors exist. Use FlavorFor to derive one from the debug flag
// of the invoking packaging command.
type BuildFlavor string

const (
	FlavorDebug   BuildFlavor = "Debug"
	FlavorRelease BuildFlavor = "Release"
)

// FlavorFor maps the packaging command's debug flag to a build flavor.
func FlavorFor(debug bool) BuildFlavor {
	if debug {
		return FlavorDebug
	}
	return FlavorRelease
}

// DefaultParallel is the parallelism hint handed to the native build tool
// during the compile step.
const DefaultParallel = 4

// BuildState tracks where a single extension build stopped.
type BuildState int

const (
	StatePreflight BuildState = iota
	StateConfiguring
	StateCompiling
	StateDone
	StateFailed
	StateAborted
)

func (s BuildState) String() string {
	switch s {
	case StatePreflight:
		return "preflight"
	case StateConfiguring:
		return "configuring"
	case StateCompiling:
		return "compiling"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen from s.
func (s BuildState) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateAborted
}

// ExtensionDescriptor identifies one native module to produce.
//
// Descriptors are created once from the declared extension list and are not
// modified afterwards. Inputs is informational: it records what the build
// depends on (and what ships in a source distribution) but is never passed
// to the toolchain.
type ExtensionDescriptor struct {
	Name       string   // Logical module name, unique within a build (e.g. "pkg.sub._native")
	SourceRoot string   // Absolute path of the directory holding CMakeLists.txt
	Inputs     []string // Collected build inputs, in collection order
	CMakeArgs  []string // Extra configure parameters specific to this extension
}

// NewExtensionDescriptor resolves sourceDir to an absolute path and copies
// the provided slices so the descriptor does not alias caller state.
func NewExtensionDescriptor(name, sourceDir string, inputs, cmakeArgs []string) (*ExtensionDescriptor, error) {
	root, err := filepath.Abs(sourceDir)
	if err != nil {
		return nil, err
	}

	return &ExtensionDescriptor{
		Name:       name,
		SourceRoot: root,
		Inputs:     append([]string(nil), inputs...),
		CMakeArgs:  append([]string(nil), cmakeArgs...),
	}, nil
}

// BuildContext holds per-invocation state for one descriptor build.
//
// A fresh context is built for every descriptor and dropped once the
// toolchain invocations for it have completed.
type BuildContext struct {
	Flavor          BuildFlavor        // Debug or Release
	OutputDir       string             // Where the compiled artifact must land
	ScratchDir      string             // Working directory for the toolchain
	InterpreterPath string             // Interpreter the bindings are built against (optional)
	ExtraArgs       []string           // Caller-supplied configure parameters
	Parallel        int                // Compile parallelism hint (0 = DefaultParallel)
	Environment     EnvironmentOverlay // Environment handed to both invocations
}

// ContextFactory builds the BuildContext for one descriptor.
type ContextFactory func(desc *ExtensionDescriptor) (*BuildContext, error)

// BuildResult contains the outcome of a single descriptor build.
//
// State is always terminal once Build returns. Configure and Compile are nil
// for steps that never ran.
type BuildResult struct {
	Extension  string
	State      BuildState
	Flavor     BuildFlavor
	ScratchDir string
	OutputDir  string
	Configure  *InvocationResult
	Compile    *InvocationResult
	Error      error
}

// Success reports whether the toolchain finished both steps cleanly.
func (r *BuildResult) Success() bool {
	return r != nil && r.State == StateDone
}

// BuildSteps is the two-step pattern every toolchain build follows.
//
// The orchestrator runs ConfigureFunc, then BuildFunc, stopping at the first
// error. Each step records its invocation result on the BuildResult.
type BuildSteps struct {
	ConfigureFunc func(ctx context.Context, desc *ExtensionDescriptor, bctx *BuildContext, result *BuildResult) error
	BuildFunc     func(ctx context.Context, desc *ExtensionDescriptor, bctx *BuildContext, result *BuildResult) error
}
