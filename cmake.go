package cmakext

import (
	"context"
	"fmt"
	"log/slog"
	"os"
)

// Configure parameters understood by the extension's CMakeLists.txt.
const (
	outputDirParam   = "CMAKE_LIBRARY_OUTPUT_DIRECTORY"
	interpreterParam = "PYTHON_EXECUTABLE"
	buildTypeParam   = "CMAKE_BUILD_TYPE"
)

// ConfigureArgs returns the arguments of the configure invocation: the
// source root followed by the parameters derived from bctx, the
// descriptor's own parameters and the caller's extra parameters.
func ConfigureArgs(desc *ExtensionDescriptor, bctx *BuildContext) []string {
	args := []string{desc.SourceRoot}

	args = append(args, fmt.Sprintf("-D%s=%s", outputDirParam, bctx.OutputDir))
	if bctx.InterpreterPath != "" {
		args = append(args, fmt.Sprintf("-D%s=%s", interpreterParam, bctx.InterpreterPath))
	}
	args = append(args, fmt.Sprintf("-D%s=%s", buildTypeParam, bctx.Flavor))

	args = append(args, desc.CMakeArgs...)
	args = append(args, bctx.ExtraArgs...)

	return args
}

// CompileArgs returns the arguments of the compile invocation. Everything
// after "--" goes to the native build tool CMake generated for.
func CompileArgs(bctx *BuildContext) []string {
	parallel := bctx.Parallel
	if parallel <= 0 {
		parallel = DefaultParallel
	}

	return []string{"--build", ".", "--config", string(bctx.Flavor), "--", fmt.Sprintf("-j%d", parallel)}
}

func (o *Orchestrator) cmakeSteps(logger *slog.Logger) BuildSteps {
	return BuildSteps{
		ConfigureFunc: func(ctx context.Context, desc *ExtensionDescriptor, bctx *BuildContext, result *BuildResult) error {
			return o.configure(ctx, logger, desc, bctx, result)
		},
		BuildFunc: func(ctx context.Context, desc *ExtensionDescriptor, bctx *BuildContext, result *BuildResult) error {
			return o.compile(ctx, logger, bctx, result)
		},
	}
}

// configure prepares the scratch and output directories and runs the
// configure step from the scratch directory.
func (o *Orchestrator) configure(ctx context.Context, logger *slog.Logger, desc *ExtensionDescriptor, bctx *BuildContext, result *BuildResult) error {
	if err := os.MkdirAll(bctx.ScratchDir, 0o755); err != nil {
		return fmt.Errorf("failed to create scratch directory %s: %w", bctx.ScratchDir, err)
	}
	if err := ensureWritableDir(bctx.OutputDir); err != nil {
		return err
	}

	inv := Invocation{
		Program: o.program(),
		Args:    ConfigureArgs(desc, bctx),
		Dir:     bctx.ScratchDir,
		Env:     invocationEnv(bctx.Environment),
	}

	res, err := o.invoke(ctx, logger, "configure", inv)
	result.Configure = res
	return err
}

// compile runs the build step from the scratch directory.
func (o *Orchestrator) compile(ctx context.Context, logger *slog.Logger, bctx *BuildContext, result *BuildResult) error {
	inv := Invocation{
		Program: o.program(),
		Args:    CompileArgs(bctx),
		Dir:     bctx.ScratchDir,
		Env:     invocationEnv(bctx.Environment),
	}

	res, err := o.invoke(ctx, logger, "build", inv)
	result.Compile = res
	return err
}

func invocationEnv(overlay EnvironmentOverlay) []string {
	if overlay.IsZero() {
		return nil
	}
	return overlay.Environ()
}

// invoke runs inv once and turns anything but a clean exit into a
// *ToolchainError.
func (o *Orchestrator) invoke(ctx context.Context, logger *slog.Logger, step string, inv Invocation) (*InvocationResult, error) {
	logger.Info("running toolchain", "step", step, "command", inv.String(), "dir", inv.Dir)

	res, err := o.runner().Run(ctx, inv)
	if res == nil {
		res = &InvocationResult{ExitCode: -1}
	}
	for _, line := range res.Output {
		logger.Debug(line, "step", step)
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		return res, &ToolchainError{Step: step, Program: inv.Program, ExitCode: -1, Output: res.Output, Err: err}
	}
	if !res.OK() {
		logger.Error("toolchain step failed", "step", step, "exit_code", res.ExitCode)
		return res, &ToolchainError{Step: step, Program: inv.Program, ExitCode: res.ExitCode, Output: res.Output}
	}

	return res, nil
}
