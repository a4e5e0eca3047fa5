//go:build mage

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/magefile/mage/mg"

	"github.com/contriboss/cmakext"
	"github.com/contriboss/cmakext/internal/logging"
)

var Default = BuildExt

// BuildExt builds the extensions declared in cmakext.toml. Set DEBUG=1 for
// the Debug flavor.
func BuildExt(ctx context.Context) error {
	logger := logging.New(logging.FormatText, os.Stderr, nil)

	runner := &cmakext.ExecRunner{}
	if mg.Verbose() {
		runner.Stream = os.Stderr
	}

	project, err := cmakext.OpenProject(cmakext.ManifestFile, cmakext.NewOrchestrator(runner, logger), logger)
	if err != nil {
		return mg.Fatal(1, err)
	}

	interpreter, _ := cmakext.LookupTool("python3", "python")
	if _, err := project.BuildExt(ctx, cmakext.BuildExtOptions{
		Debug:           os.Getenv("DEBUG") == "1",
		InterpreterPath: interpreter,
	}); err != nil {
		return mg.Fatal(1, err)
	}
	return nil
}

// Collect prints the build inputs of the current directory.
func Collect() error {
	paths, err := cmakext.Collect(".")
	if err != nil {
		return mg.Fatal(1, err)
	}
	for _, p := range paths {
		fmt.Println(p)
	}
	return nil
}
