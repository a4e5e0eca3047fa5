// Package cmakext builds CMake-based native extension modules for a
// package and stages them, together with their resource files, into an
// installable layout.
//
// The package never compiles anything itself. It configures CMake, runs
// the build, and reports how CMake exited.
//
// # Components
//
//   - Collect / Scan - discover build inputs (sources, headers, images,
//     shaders, CMake files) below a source tree, pruning build output,
//     packaging metadata and documentation image folders
//   - Orchestrator - preflight, configure and compile each
//     ExtensionDescriptor from its own scratch directory
//   - EnvironmentOverlay - the immutable environment handed to CMake, with
//     the package version embedded in CXXFLAGS
//   - Project - the "build extensions" step of a packaging pipeline: reads
//     cmakext.toml, drives the orchestrator, verifies artifacts and stages
//     package data
//
// # Basic Usage
//
//	logger := slog.Default()
//	project, err := cmakext.OpenProject("cmakext.toml", cmakext.NewOrchestrator(nil, logger), logger)
//	if err != nil {
//	    return err
//	}
//
//	report, err := project.BuildExt(ctx, cmakext.BuildExtOptions{
//	    Debug:           false,
//	    InterpreterPath: "/usr/bin/python3",
//	})
//
// # Build State Machine
//
//	Preflight -> Configuring -> Compiling -> Done
//	    |             |             |
//	 Aborted        Failed        Failed
//
// Preflight runs once per BuildAll. When it fails, every descriptor is
// Aborted and a *ToolchainMissingError is returned. Configure and compile
// exit statuses are inspected; a non-zero exit fails that descriptor with a
// *ToolchainError carrying the exit code and captured output.
//
// # Concurrency
//
// Builds are synchronous and sequential. Toolchain invocations are not
// bounded by a timeout.
package cmakext
