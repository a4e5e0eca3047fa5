package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"mvdan.cc/sh/v3/shell"

	"github.com/contriboss/cmakext"
	"github.com/contriboss/cmakext/internal/logging"
)

const (
	defaultLogLevel = "info"
	envPrefix       = "CMAKEXT"
)

type app struct {
	stderr io.Writer
	level  slog.LevelVar
	logger *slog.Logger
}

func newRootCommand(a *app) *cobra.Command {
	var (
		logLevel  string
		logFormat string
	)

	root := &cobra.Command{
		Use:           "cmakext",
		Short:         "Build CMake-based native extension modules and stage them for packaging",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	root.PersistentFlags().StringVar(&logLevel, "log-level", defaultLogLevel, "Set log verbosity (debug, info, warning, error)")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "Log output format (text, json)")
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		level, err := logging.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		format, err := logging.ParseFormat(logFormat)
		if err != nil {
			return err
		}
		a.level.Set(level)
		a.logger = logging.New(format, a.stderr, &a.level)
		slog.SetDefault(a.logger)
		return nil
	}

	root.AddCommand(
		newBuildExtCommand(a),
		newCollectCommand(a),
	)
	return root
}

func newBuildExtCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build-ext",
		Args:  cobra.NoArgs,
		Short: "Configure and compile every extension declared in the manifest",
		Long: `Configure and compile every extension declared in the manifest, verify that
each compiled module landed in the package layout, then stage package data.

Every flag can also be set through the environment, e.g. CMAKEXT_DEBUG=1 or
CMAKEXT_BUILD_LIB=dist/lib. Extra CMake parameters are read from --cmake-args
and from CMAKE_ARGS, split with shell quoting rules.

The toolchain runs without a timeout: a hung cmake hangs the build until it
is interrupted.`,
	}

	flags := cmd.Flags()
	flags.String("manifest", cmakext.ManifestFile, "Project manifest")
	flags.Bool("debug", false, "Build the Debug flavor instead of Release")
	flags.String("build-temp", "", "Scratch directory root (default <project>/build/temp)")
	flags.String("build-lib", "", "Installable layout root (default <project>/build/lib)")
	flags.String("interpreter", "", "Interpreter forwarded to CMake (default: python3 or python from PATH)")
	flags.String("cmake", cmakext.DefaultProgram, "CMake executable")
	flags.String("cmake-args", "", "Extra configure parameters, shell-quoted")
	flags.Int("parallel", cmakext.DefaultParallel, "Parallel compile jobs")
	flags.Bool("stop-on-failure", false, "Stop after the first failed extension")
	flags.Bool("skip-package-data", false, "Do not stage package data")
	flags.Bool("verbose", false, "Stream toolchain output to stderr")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		v := viper.New()
		v.SetEnvPrefix(envPrefix)
		v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
		v.AutomaticEnv()
		if err := v.BindPFlags(cmd.Flags()); err != nil {
			return err
		}

		extraArgs, err := splitArgs(v.GetString("cmake-args"))
		if err != nil {
			return fmt.Errorf("--cmake-args: %w", err)
		}
		envArgs, err := splitArgs(os.Getenv("CMAKE_ARGS"))
		if err != nil {
			return fmt.Errorf("CMAKE_ARGS: %w", err)
		}
		extraArgs = append(extraArgs, envArgs...)

		interpreter := v.GetString("interpreter")
		if interpreter == "" {
			if path, err := cmakext.LookupTool("python3", "python"); err == nil {
				interpreter = path
			} else {
				a.logger.Warn("no interpreter found, CMake will pick its own", "error", err)
			}
		}

		runner := &cmakext.ExecRunner{}
		if v.GetBool("verbose") {
			runner.Stream = a.stderr
		}
		orch := cmakext.NewOrchestrator(runner, a.logger)
		orch.Program = v.GetString("cmake")
		orch.StopOnFailure = v.GetBool("stop-on-failure")

		project, err := cmakext.OpenProject(v.GetString("manifest"), orch, a.logger)
		if err != nil {
			return err
		}

		report, err := project.BuildExt(cmd.Context(), cmakext.BuildExtOptions{
			Debug:           v.GetBool("debug"),
			BuildTemp:       v.GetString("build-temp"),
			BuildLib:        v.GetString("build-lib"),
			InterpreterPath: interpreter,
			ExtraArgs:       extraArgs,
			Parallel:        v.GetInt("parallel"),
			SkipPackageData: v.GetBool("skip-package-data"),
		})
		if report != nil {
			printReport(cmd.OutOrStdout(), report)
		}
		return err
	}

	return cmd
}

func newCollectCommand(a *app) *cobra.Command {
	var categories bool

	cmd := &cobra.Command{
		Use:   "collect [root]",
		Args:  cobra.MaximumNArgs(1),
		Short: "List the build inputs below a source tree",
		RunE: func(cmd *cobra.Command, args []string) error {
			root := "."
			if len(args) == 1 {
				root = args[0]
			}

			files, err := cmakext.Scan(root)
			if err != nil {
				return err
			}
			a.logger.Debug("collected build inputs", "root", root, "count", len(files))

			out := cmd.OutOrStdout()
			for _, f := range files {
				if categories {
					fmt.Fprintf(out, "%-16s %s\n", f.Category, f.Path)
					continue
				}
				fmt.Fprintln(out, f.Path)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&categories, "categories", false, "Prefix each path with its input category")
	return cmd
}

// splitArgs splits s into words using shell quoting rules. Variable
// references are left unexpanded.
func splitArgs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	return shell.Fields(s, func(name string) string { return "$" + name })
}

func printReport(w io.Writer, report *cmakext.BuildExtReport) {
	for _, result := range report.Results {
		line := fmt.Sprintf("%-24s %-8s", result.Extension, result.State)
		if artifact, ok := report.Artifacts[result.Extension]; ok {
			line += " " + filepath.ToSlash(artifact)
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
	if len(report.Staged) > 0 {
		fmt.Fprintf(w, "staged %d package data files\n", len(report.Staged))
	}
}
