package cmakext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/contriboss/cmakext/internal/logging"
)

// Orchestrator drives extension builds through the external toolchain.
//
// Every build walks the same state machine:
//
//	Preflight -> Configuring -> Compiling -> Done
//	    |             |             |
//	 Aborted        Failed        Failed
//
// Builds are synchronous. BuildAll processes descriptors one after another in
// the order given; concurrency across descriptors is up to the caller.
//
// # Usage
//
//	orch := cmakext.NewOrchestrator(nil, logger)
//	results, err := orch.BuildAll(ctx, descriptors, func(d *cmakext.ExtensionDescriptor) (*cmakext.BuildContext, error) {
//	    return &cmakext.BuildContext{
//	        Flavor:      cmakext.FlavorFor(debug),
//	        OutputDir:   cmakext.ExtensionOutputDir("build/lib", d.Name),
//	        ScratchDir:  filepath.Join("build/temp", d.Name),
//	        Environment: cmakext.VersionedEnvironment("1.2.0"),
//	    }, nil
//	})
type Orchestrator struct {
	Program string       // Toolchain executable, DefaultProgram when empty
	Runner  Runner       // Process runner, an ExecRunner when nil
	Logger  *slog.Logger // slog.Default() when nil

	// StopOnFailure stops BuildAll after the first failed descriptor.
	// By default every descriptor is attempted.
	StopOnFailure bool
}

// NewOrchestrator creates an orchestrator for the default toolchain.
func NewOrchestrator(runner Runner, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		Program: DefaultProgram,
		Runner:  runner,
		Logger:  logger,
	}
}

func (o *Orchestrator) program() string {
	if o.Program == "" {
		return DefaultProgram
	}
	return o.Program
}

func (o *Orchestrator) runner() Runner {
	if o.Runner == nil {
		return &ExecRunner{}
	}
	return o.Runner
}

func (o *Orchestrator) logger() *slog.Logger {
	return logging.Ensure(o.Logger).With("component", "orchestrator")
}

// Build runs preflight and then configures and compiles a single
// descriptor. The returned result is always non-nil and terminal.
func (o *Orchestrator) Build(ctx context.Context, desc *ExtensionDescriptor, bctx *BuildContext) (*BuildResult, error) {
	logger := o.logger().With("run_id", uuid.NewString())

	if _, err := o.preflight(ctx, logger, []string{desc.Name}); err != nil {
		return abortedResult(desc, bctx, err), err
	}

	return o.build(ctx, logger, desc, bctx)
}

// BuildAll builds every descriptor in order.
//
// The toolchain is checked once up front. If that check fails no descriptor
// is configured or compiled, every result is Aborted and the
// *ToolchainMissingError is returned once.
//
// Otherwise each descriptor is built regardless of earlier failures (unless
// StopOnFailure is set). The returned error joins the per-descriptor errors,
// each prefixed with the extension name. Results are returned for every
// descriptor that was attempted, even when an error is returned.
func (o *Orchestrator) BuildAll(ctx context.Context, descs []*ExtensionDescriptor, newContext ContextFactory) ([]*BuildResult, error) {
	if len(descs) == 0 {
		return nil, nil
	}

	logger := o.logger().With("run_id", uuid.NewString())

	names := make([]string, 0, len(descs))
	for _, desc := range descs {
		names = append(names, desc.Name)
	}

	if _, err := o.preflight(ctx, logger, names); err != nil {
		results := make([]*BuildResult, 0, len(descs))
		for _, desc := range descs {
			results = append(results, abortedResult(desc, nil, err))
		}
		return results, err
	}

	var results []*BuildResult
	var errs []error

	for _, desc := range descs {
		if ctxErr := ctx.Err(); ctxErr != nil {
			results = append(results, abortedResult(desc, nil, ctxErr))
			errs = append(errs, ctxErr)
			break
		}

		bctx, err := newContext(desc)
		if err != nil {
			err = fmt.Errorf("extension %s: %w", desc.Name, err)
			results = append(results, &BuildResult{Extension: desc.Name, State: StateFailed, Error: err})
			errs = append(errs, err)
			if o.StopOnFailure {
				break
			}
			continue
		}

		result, err := o.build(ctx, logger, desc, bctx)
		results = append(results, result)
		if err != nil {
			errs = append(errs, fmt.Errorf("extension %s: %w", desc.Name, err))
			if o.StopOnFailure || errors.Is(err, context.Canceled) {
				break
			}
		}
	}

	return results, errors.Join(errs...)
}

func (o *Orchestrator) build(ctx context.Context, logger *slog.Logger, desc *ExtensionDescriptor, bctx *BuildContext) (*BuildResult, error) {
	logger = logger.With("extension", desc.Name, "flavor", string(bctx.Flavor))
	logger.Info("building extension", "source", desc.SourceRoot, "scratch", bctx.ScratchDir, "output", bctx.OutputDir)

	result, err := runBuildSteps(ctx, desc, bctx, o.cmakeSteps(logger))
	if err != nil {
		logger.Error("extension build failed", "state", result.State.String(), "error", err)
		return result, err
	}

	logger.Info("extension built")
	return result, nil
}

func abortedResult(desc *ExtensionDescriptor, bctx *BuildContext, err error) *BuildResult {
	result := &BuildResult{Extension: desc.Name, State: StateAborted, Error: err}
	if bctx != nil {
		result.Flavor = bctx.Flavor
		result.ScratchDir = bctx.ScratchDir
		result.OutputDir = bctx.OutputDir
	}
	return result
}
