package cmakext

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// runBuildSteps executes the configure-then-build pattern for one
// descriptor.
//
// # Process Flow
//
//  1. Validate the BuildContext
//  2. Call ConfigureFunc (state Configuring)
//  3. Call BuildFunc (state Compiling)
//  4. Mark the result Done
//
// If any step fails, processing stops, the result is marked Failed and the
// error is returned alongside it. The compiled artifact is not checked here.
func runBuildSteps(ctx context.Context, desc *ExtensionDescriptor, bctx *BuildContext, steps BuildSteps) (*BuildResult, error) {
	result := &BuildResult{
		Extension:  desc.Name,
		State:      StateConfiguring,
		Flavor:     bctx.Flavor,
		ScratchDir: bctx.ScratchDir,
		OutputDir:  bctx.OutputDir,
	}

	fail := func(err error) (*BuildResult, error) {
		result.State = StateFailed
		result.Error = err
		return result, err
	}

	if err := validateBuildContext(bctx); err != nil {
		return fail(err)
	}

	if err := steps.ConfigureFunc(ctx, desc, bctx, result); err != nil {
		return fail(err)
	}

	result.State = StateCompiling
	if err := steps.BuildFunc(ctx, desc, bctx, result); err != nil {
		return fail(err)
	}

	result.State = StateDone
	return result, nil
}

func validateBuildContext(bctx *BuildContext) error {
	switch {
	case bctx.ScratchDir == "":
		return errors.New("build context has no scratch directory")
	case bctx.OutputDir == "":
		return errors.New("build context has no output directory")
	case bctx.Flavor != FlavorDebug && bctx.Flavor != FlavorRelease:
		return fmt.Errorf("unsupported build flavor %q", bctx.Flavor)
	}
	return nil
}

// ensureWritableDir creates dir if needed and checks that files can be
// created in it.
func ensureWritableDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	probe, err := os.CreateTemp(dir, ".cmakext-probe-*")
	if err != nil {
		return fmt.Errorf("output directory %s is not writable: %w", dir, err)
	}
	name := probe.Name()
	probe.Close()
	return os.Remove(name)
}
