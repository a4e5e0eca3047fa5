package cmakext

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contriboss/cmakext/internal/logging"
)

// fakeRunner records invocations and answers them without running anything.
type fakeRunner struct {
	calls []Invocation

	versionErr  error            // returned for --version
	versionExit int              // exit code for --version
	exitFor     func(Invocation) int
	onRun       func(Invocation) // side effects, e.g. writing an artifact
}

func (r *fakeRunner) Run(_ context.Context, inv Invocation) (*InvocationResult, error) {
	r.calls = append(r.calls, inv)

	if stepOf(inv) == "version" {
		if r.versionErr != nil {
			return nil, r.versionErr
		}
		return &InvocationResult{ExitCode: r.versionExit, Output: []string{"cmake version 3.28.3", "", "CMake suite maintained by Kitware"}}, nil
	}

	if r.onRun != nil {
		r.onRun(inv)
	}
	code := 0
	if r.exitFor != nil {
		code = r.exitFor(inv)
	}
	return &InvocationResult{ExitCode: code, Output: []string{"-- " + stepOf(inv)}}, nil
}

func (r *fakeRunner) steps() []string {
	out := make([]string, 0, len(r.calls))
	for _, c := range r.calls {
		out = append(out, stepOf(c))
	}
	return out
}

func stepOf(inv Invocation) string {
	if len(inv.Args) == 0 {
		return "unknown"
	}
	switch inv.Args[0] {
	case "--version":
		return "version"
	case "--build":
		return "build"
	default:
		return "configure"
	}
}

func newDescriptor(t *testing.T, name string) *ExtensionDescriptor {
	t.Helper()
	src := filepath.Join(t.TempDir(), name)
	writeTree(t, src, "CMakeLists.txt", "src/module.cpp")

	inputs, err := Collect(src)
	require.NoError(t, err)
	desc, err := NewExtensionDescriptor(name, src, inputs, nil)
	require.NoError(t, err)
	return desc
}

func contextFactory(base string, debug bool) ContextFactory {
	env := versionedEnvironment([]string{"PATH=/usr/bin"}, "1.2.3")
	return func(desc *ExtensionDescriptor) (*BuildContext, error) {
		return &BuildContext{
			Flavor:          FlavorFor(debug),
			OutputDir:       ExtensionOutputDir(filepath.Join(base, "lib"), desc.Name),
			ScratchDir:      filepath.Join(base, "temp", desc.Name),
			InterpreterPath: "/usr/bin/python3",
			Environment:     env,
		}, nil
	}
}

func newTestOrchestrator(runner Runner) *Orchestrator {
	return NewOrchestrator(runner, logging.Discard())
}

func TestFlavorFor(t *testing.T) {
	assert.Equal(t, FlavorDebug, FlavorFor(true))
	assert.Equal(t, FlavorRelease, FlavorFor(false))
	assert.Equal(t, "Debug", string(FlavorFor(true)))
	assert.Equal(t, "Release", string(FlavorFor(false)))
}

func TestBuildConfiguresThenCompilesInScratchDir(t *testing.T) {
	base := t.TempDir()
	desc := newDescriptor(t, "tysoc_bindings")
	bctx, err := contextFactory(base, false)(desc)
	require.NoError(t, err)

	runner := &fakeRunner{}
	result, err := newTestOrchestrator(runner).Build(context.Background(), desc, bctx)
	require.NoError(t, err)

	assert.Equal(t, StateDone, result.State)
	assert.True(t, result.Success())
	assert.Equal(t, []string{"version", "configure", "build"}, runner.steps())

	configure, compile := runner.calls[1], runner.calls[2]
	assert.Equal(t, bctx.ScratchDir, configure.Dir)
	assert.Equal(t, bctx.ScratchDir, compile.Dir)
	assert.Equal(t, "cmake", configure.Program)

	wantConfigure := []string{
		desc.SourceRoot,
		"-DCMAKE_LIBRARY_OUTPUT_DIRECTORY=" + filepath.Join(base, "lib"),
		"-DPYTHON_EXECUTABLE=/usr/bin/python3",
		"-DCMAKE_BUILD_TYPE=Release",
	}
	if diff := cmp.Diff(wantConfigure, configure.Args); diff != "" {
		t.Errorf("configure args mismatch (-want +got):\n%s", diff)
	}

	wantCompile := []string{"--build", ".", "--config", "Release", "--", "-j4"}
	if diff := cmp.Diff(wantCompile, compile.Args); diff != "" {
		t.Errorf("compile args mismatch (-want +got):\n%s", diff)
	}

	require.NotNil(t, result.Configure)
	require.NotNil(t, result.Compile)
	assert.Equal(t, []string{"-- build"}, result.Compile.Output)
}

func TestBuildDebugFlavorReachesBothSteps(t *testing.T) {
	base := t.TempDir()
	desc := newDescriptor(t, "pkg._native")
	bctx, err := contextFactory(base, true)(desc)
	require.NoError(t, err)

	runner := &fakeRunner{}
	_, err = newTestOrchestrator(runner).Build(context.Background(), desc, bctx)
	require.NoError(t, err)

	assert.Contains(t, runner.calls[1].Args, "-DCMAKE_BUILD_TYPE=Debug")
	assert.Equal(t, []string{"--build", ".", "--config", "Debug", "--", "-j4"}, runner.calls[2].Args)
}

func TestBuildCreatesDirectoriesBeforeCompile(t *testing.T) {
	base := t.TempDir()
	desc := newDescriptor(t, "pkg.sub._native")
	bctx, err := contextFactory(base, false)(desc)
	require.NoError(t, err)

	var outputSeen, scratchSeen bool
	runner := &fakeRunner{onRun: func(inv Invocation) {
		if stepOf(inv) != "build" {
			return
		}
		if info, err := os.Stat(bctx.OutputDir); err == nil && info.IsDir() {
			outputSeen = true
		}
		if info, err := os.Stat(inv.Dir); err == nil && info.IsDir() {
			scratchSeen = true
		}
	}}

	_, err = newTestOrchestrator(runner).Build(context.Background(), desc, bctx)
	require.NoError(t, err)
	assert.True(t, outputSeen, "output directory must exist before compile")
	assert.True(t, scratchSeen, "scratch directory must exist before compile")
	assert.Equal(t, filepath.Join(base, "lib", "pkg", "sub"), bctx.OutputDir)

	entries, err := os.ReadDir(bctx.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "writability probe must be removed")
}

func TestBuildScratchDirMayAlreadyExist(t *testing.T) {
	base := t.TempDir()
	desc := newDescriptor(t, "mod")
	bctx, err := contextFactory(base, false)(desc)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(bctx.ScratchDir, 0o755))
	writeTree(t, bctx.ScratchDir, "CMakeCache.txt")

	result, err := newTestOrchestrator(&fakeRunner{}).Build(context.Background(), desc, bctx)
	require.NoError(t, err)
	assert.Equal(t, StateDone, result.State)

	_, err = os.Stat(filepath.Join(bctx.ScratchDir, "CMakeCache.txt"))
	assert.NoError(t, err, "scratch contents are never cleaned")
}

func TestBuildForwardsVersionedEnvironment(t *testing.T) {
	base := t.TempDir()
	desc := newDescriptor(t, "mod")
	bctx, err := contextFactory(base, false)(desc)
	require.NoError(t, err)

	runner := &fakeRunner{}
	_, err = newTestOrchestrator(runner).Build(context.Background(), desc, bctx)
	require.NoError(t, err)

	for _, call := range runner.calls[1:] {
		assert.Contains(t, call.Env, `CXXFLAGS=-DVERSION_INFO=\"1.2.3\"`)
		assert.Contains(t, call.Env, "PATH=/usr/bin")
	}
}

func TestBuildPassesExtraParameters(t *testing.T) {
	base := t.TempDir()
	desc := newDescriptor(t, "mod")
	desc.CMakeArgs = []string{"-DWITH_TESTS=OFF"}
	bctx, err := contextFactory(base, false)(desc)
	require.NoError(t, err)
	bctx.ExtraArgs = []string{"-G", "Ninja"}
	bctx.InterpreterPath = ""
	bctx.Parallel = 8

	runner := &fakeRunner{}
	_, err = newTestOrchestrator(runner).Build(context.Background(), desc, bctx)
	require.NoError(t, err)

	want := []string{
		desc.SourceRoot,
		"-DCMAKE_LIBRARY_OUTPUT_DIRECTORY=" + bctx.OutputDir,
		"-DCMAKE_BUILD_TYPE=Release",
		"-DWITH_TESTS=OFF",
		"-G", "Ninja",
	}
	if diff := cmp.Diff(want, runner.calls[1].Args); diff != "" {
		t.Errorf("configure args mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "-j8", runner.calls[2].Args[len(runner.calls[2].Args)-1])
}

func TestBuildConfigureFailureStopsBeforeCompile(t *testing.T) {
	base := t.TempDir()
	desc := newDescriptor(t, "mod")
	bctx, err := contextFactory(base, false)(desc)
	require.NoError(t, err)

	runner := &fakeRunner{exitFor: func(inv Invocation) int {
		if stepOf(inv) == "configure" {
			return 1
		}
		return 0
	}}
	result, err := newTestOrchestrator(runner).Build(context.Background(), desc, bctx)
	require.Error(t, err)

	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, []string{"version", "configure"}, runner.steps())
	assert.Nil(t, result.Compile)

	var tcErr *ToolchainError
	require.True(t, errors.As(err, &tcErr))
	assert.Equal(t, "configure", tcErr.Step)
	assert.Equal(t, 1, tcErr.ExitCode)
	assert.Contains(t, err.Error(), "-- configure")
}

func TestBuildCompileFailureIsReported(t *testing.T) {
	base := t.TempDir()
	desc := newDescriptor(t, "mod")
	bctx, err := contextFactory(base, false)(desc)
	require.NoError(t, err)

	runner := &fakeRunner{exitFor: func(inv Invocation) int {
		if stepOf(inv) == "build" {
			return 2
		}
		return 0
	}}
	result, err := newTestOrchestrator(runner).Build(context.Background(), desc, bctx)

	var tcErr *ToolchainError
	require.True(t, errors.As(err, &tcErr))
	assert.Equal(t, "build", tcErr.Step)
	assert.Equal(t, 2, tcErr.ExitCode)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, 2, result.Compile.ExitCode)
}

func TestBuildRejectsIncompleteContext(t *testing.T) {
	desc := newDescriptor(t, "mod")
	runner := &fakeRunner{}

	result, err := newTestOrchestrator(runner).Build(context.Background(), desc, &BuildContext{Flavor: FlavorRelease})
	require.Error(t, err)
	assert.Equal(t, StateFailed, result.State)
	assert.Equal(t, []string{"version"}, runner.steps())

	_, err = newTestOrchestrator(runner).Build(context.Background(), desc, &BuildContext{
		Flavor:     "RelWithDebInfo",
		ScratchDir: t.TempDir(),
		OutputDir:  t.TempDir(),
	})
	assert.ErrorContains(t, err, "unsupported build flavor")
}

func TestBuildAllToolchainMissingAbortsEverything(t *testing.T) {
	base := t.TempDir()
	descs := []*ExtensionDescriptor{
		newDescriptor(t, "alpha"),
		newDescriptor(t, "beta"),
		newDescriptor(t, "gamma"),
	}

	runner := &fakeRunner{versionErr: errors.New(`exec: "cmake": executable file not found in $PATH`)}
	results, err := newTestOrchestrator(runner).BuildAll(context.Background(), descs, contextFactory(base, false))

	var missing *ToolchainMissingError
	require.True(t, errors.As(err, &missing), "expected ToolchainMissingError, got %v", err)
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, missing.Extensions)
	assert.Equal(t, 1, strings.Count(err.Error(), "must be installed"))
	assert.Contains(t, err.Error(), "alpha, beta, gamma")

	assert.Equal(t, []string{"version"}, runner.steps(), "no configure or compile may run")
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, StateAborted, r.State)
	}

	_, statErr := os.Stat(filepath.Join(base, "temp"))
	assert.True(t, os.IsNotExist(statErr), "no scratch directory may be created")
}

func TestBuildAllToolchainNonZeroVersionIsMissing(t *testing.T) {
	runner := &fakeRunner{versionExit: 127}
	_, err := newTestOrchestrator(runner).BuildAll(context.Background(),
		[]*ExtensionDescriptor{newDescriptor(t, "alpha")}, contextFactory(t.TempDir(), false))

	var missing *ToolchainMissingError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"version"}, runner.steps())
}

func TestBuildAllRunsInDeclaredOrder(t *testing.T) {
	base := t.TempDir()
	descs := []*ExtensionDescriptor{
		newDescriptor(t, "zeta"),
		newDescriptor(t, "alpha"),
	}

	runner := &fakeRunner{}
	results, err := newTestOrchestrator(runner).BuildAll(context.Background(), descs, contextFactory(base, false))
	require.NoError(t, err)

	assert.Equal(t, []string{"version", "configure", "build", "configure", "build"}, runner.steps())
	assert.Equal(t, descs[0].SourceRoot, runner.calls[1].Args[0])
	assert.Equal(t, descs[1].SourceRoot, runner.calls[3].Args[0])
	assert.Equal(t, filepath.Join(base, "temp", "zeta"), runner.calls[2].Dir)
	assert.Equal(t, filepath.Join(base, "temp", "alpha"), runner.calls[4].Dir)

	require.Len(t, results, 2)
	assert.Equal(t, "zeta", results[0].Extension)
	assert.Equal(t, "alpha", results[1].Extension)
}

func TestBuildAllContinuesAfterFailure(t *testing.T) {
	base := t.TempDir()
	broken := newDescriptor(t, "broken")
	fine := newDescriptor(t, "fine")

	runner := &fakeRunner{exitFor: func(inv Invocation) int {
		if stepOf(inv) == "configure" && inv.Args[0] == broken.SourceRoot {
			return 1
		}
		return 0
	}}
	results, err := newTestOrchestrator(runner).BuildAll(context.Background(),
		[]*ExtensionDescriptor{broken, fine}, contextFactory(base, false))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "extension broken")
	assert.NotContains(t, err.Error(), "extension fine")

	require.Len(t, results, 2)
	assert.Equal(t, StateFailed, results[0].State)
	assert.Equal(t, StateDone, results[1].State)
	assert.Equal(t, []string{"version", "configure", "configure", "build"}, runner.steps())
}

func TestBuildAllStopOnFailure(t *testing.T) {
	base := t.TempDir()
	runner := &fakeRunner{exitFor: func(inv Invocation) int {
		if stepOf(inv) == "build" {
			return 1
		}
		return 0
	}}
	orch := newTestOrchestrator(runner)
	orch.StopOnFailure = true

	results, err := orch.BuildAll(context.Background(),
		[]*ExtensionDescriptor{newDescriptor(t, "one"), newDescriptor(t, "two")}, contextFactory(base, false))
	require.Error(t, err)
	assert.Len(t, results, 1)
	assert.Equal(t, []string{"version", "configure", "build"}, runner.steps())
}

func TestBuildAllContextFactoryError(t *testing.T) {
	runner := &fakeRunner{}
	results, err := newTestOrchestrator(runner).BuildAll(context.Background(),
		[]*ExtensionDescriptor{newDescriptor(t, "one")},
		func(*ExtensionDescriptor) (*BuildContext, error) { return nil, errors.New("no output directory") })

	assert.ErrorContains(t, err, "extension one: no output directory")
	require.Len(t, results, 1)
	assert.Equal(t, StateFailed, results[0].State)
}

func TestBuildAllCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{}
	results, err := newTestOrchestrator(runner).BuildAll(ctx,
		[]*ExtensionDescriptor{newDescriptor(t, "one"), newDescriptor(t, "two")}, contextFactory(t.TempDir(), false))

	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, results, 1)
	assert.Equal(t, StateAborted, results[0].State)
	assert.Equal(t, []string{"version"}, runner.steps())
}

func TestBuildAllNoDescriptors(t *testing.T) {
	runner := &fakeRunner{}
	results, err := newTestOrchestrator(runner).BuildAll(context.Background(), nil, contextFactory(t.TempDir(), false))
	assert.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, runner.calls)
}

func TestPreflightReturnsVersion(t *testing.T) {
	version, err := newTestOrchestrator(&fakeRunner{}).Preflight(context.Background(), []string{"mod"})
	require.NoError(t, err)
	assert.Equal(t, "3.28.3", version)
}

func TestParseToolVersion(t *testing.T) {
	assert.Equal(t, "3.28.3", ParseToolVersion([]string{"cmake version 3.28.3"}))
	assert.Equal(t, "4.0.0-rc1", ParseToolVersion([]string{"", "cmake version 4.0.0-rc1", "more"}))
	assert.Equal(t, "custom build", ParseToolVersion([]string{"  custom build  "}))
	assert.Equal(t, "", ParseToolVersion(nil))
}

func TestBuildStateTerminal(t *testing.T) {
	for _, s := range []BuildState{StateDone, StateFailed, StateAborted} {
		assert.True(t, s.Terminal(), s.String())
	}
	for _, s := range []BuildState{StatePreflight, StateConfiguring, StateCompiling} {
		assert.False(t, s.Terminal(), s.String())
	}
}

func TestNewExtensionDescriptorCopiesInputs(t *testing.T) {
	inputs := []string{"a.cpp"}
	desc, err := NewExtensionDescriptor("mod", ".", inputs, nil)
	require.NoError(t, err)

	inputs[0] = "changed.cpp"
	assert.Equal(t, []string{"a.cpp"}, desc.Inputs)
	assert.True(t, filepath.IsAbs(desc.SourceRoot))
}
