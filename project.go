package cmakext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/contriboss/cmakext/internal/logging"
)

// Project ties a manifest to an orchestrator. BuildExt is the packaging
// pipeline's "build extensions" step.
type Project struct {
	Manifest     *Manifest
	Orchestrator *Orchestrator
	Logger       *slog.Logger
}

// OpenProject loads the manifest at manifestPath.
func OpenProject(manifestPath string, orch *Orchestrator, logger *slog.Logger) (*Project, error) {
	m, err := LoadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	return &Project{Manifest: m, Orchestrator: orch, Logger: logger}, nil
}

// BuildExtOptions configures one BuildExt run.
type BuildExtOptions struct {
	Debug           bool     // Build the Debug flavor instead of Release
	BuildTemp       string   // Scratch root, default <root>/build/temp
	BuildLib        string   // Installable layout root, default <root>/build/lib
	InterpreterPath string   // Forwarded to configure when set
	ExtraArgs       []string // Extra configure parameters for every extension
	Parallel        int      // Compile parallelism, DefaultParallel when 0
	SkipPackageData bool     // Do not stage package data
}

// BuildExtReport summarizes a BuildExt run.
type BuildExtReport struct {
	Results   []*BuildResult
	Artifacts map[string]string // extension name -> compiled module path
	Staged    []string          // package data paths relative to BuildLib
}

// Descriptors builds one ExtensionDescriptor per declared extension, in
// declaration order, with its collected inputs attached.
func (p *Project) Descriptors() ([]*ExtensionDescriptor, error) {
	root := p.Manifest.Root()

	descs := make([]*ExtensionDescriptor, 0, len(p.Manifest.Extensions))
	for _, ext := range p.Manifest.Extensions {
		sourceDir := ext.SourceDir
		if !filepath.IsAbs(sourceDir) {
			sourceDir = filepath.Join(root, sourceDir)
		}

		inputs, err := Collect(sourceDir)
		if err != nil {
			return nil, fmt.Errorf("extension %s: %w", ext.Name, err)
		}

		desc, err := NewExtensionDescriptor(ext.Name, sourceDir, inputs, ext.CMakeArgs)
		if err != nil {
			return nil, fmt.Errorf("extension %s: %w", ext.Name, err)
		}
		descs = append(descs, desc)
	}
	return descs, nil
}

// BuildExt builds every declared extension, checks that each compiled
// module landed where the package layout expects it, then stages package
// data.
//
// Package data is only staged when every extension built. A missing
// toolchain aborts the run before anything is configured.
func (p *Project) BuildExt(ctx context.Context, opts BuildExtOptions) (*BuildExtReport, error) {
	logger := logging.Ensure(p.Logger).With("component", "project", "project", p.Manifest.Name)
	root := p.Manifest.Root()

	buildTemp, err := p.resolve(opts.BuildTemp, filepath.Join("build", "temp"))
	if err != nil {
		return nil, err
	}
	buildLib, err := p.resolve(opts.BuildLib, filepath.Join("build", "lib"))
	if err != nil {
		return nil, err
	}

	descs, err := p.Descriptors()
	if err != nil {
		return nil, err
	}

	env := VersionedEnvironment(p.Manifest.Version)
	flavor := FlavorFor(opts.Debug)

	newContext := func(desc *ExtensionDescriptor) (*BuildContext, error) {
		return &BuildContext{
			Flavor:          flavor,
			OutputDir:       ExtensionOutputDir(buildLib, desc.Name),
			ScratchDir:      filepath.Join(buildTemp, desc.Name),
			InterpreterPath: opts.InterpreterPath,
			ExtraArgs:       append([]string(nil), opts.ExtraArgs...),
			Parallel:        opts.Parallel,
			Environment:     env,
		}, nil
	}

	orch := p.Orchestrator
	if orch == nil {
		orch = NewOrchestrator(nil, p.Logger)
	}

	report := &BuildExtReport{Artifacts: make(map[string]string)}
	results, buildErr := orch.BuildAll(ctx, descs, newContext)
	report.Results = results

	var missing *ToolchainMissingError
	if errors.As(buildErr, &missing) {
		return report, buildErr
	}

	errs := []error{buildErr}
	for _, result := range results {
		if !result.Success() {
			continue
		}
		artifact, err := FindArtifact(result.OutputDir, result.Extension)
		if err != nil {
			logger.Error("compiled artifact missing", "extension", result.Extension, "output", result.OutputDir)
			errs = append(errs, err)
			continue
		}
		report.Artifacts[result.Extension] = artifact
		logger.Info("extension ready", "extension", result.Extension, "artifact", artifact)
	}

	if err := errors.Join(errs...); err != nil {
		return report, err
	}

	if !opts.SkipPackageData {
		staged, err := StagePackageData(root, buildLib, p.Manifest.PackageDataEntries())
		report.Staged = staged
		if err != nil {
			return report, fmt.Errorf("staging package data: %w", err)
		}
		logger.Info("package data staged", "files", len(staged), "dest", buildLib)
	}

	return report, nil
}

// resolve makes path absolute against the project root. The toolchain runs
// from the scratch directory, so relative paths would resolve against it.
func (p *Project) resolve(path, fallback string) (string, error) {
	if path == "" {
		path = fallback
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.Manifest.Root(), path)
	}
	return filepath.Abs(path)
}
