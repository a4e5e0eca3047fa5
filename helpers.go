package cmakext

import (
	"fmt"
	"strings"
)

// MatchesExtension checks if a filename ends with any of the given extensions.
//
// The comparison is case-insensitive. It is used to recognize compiled
// native libraries (.so, .pyd, .dylib, .dll) in an output directory.
//
// # Example
//
//	if MatchesExtension(filename, ".so", ".pyd") {
//	    // This is a compiled extension
//	}
func MatchesExtension(filename string, extensions ...string) bool {
	for _, ext := range extensions {
		if strings.HasSuffix(strings.ToLower(filename), strings.ToLower(ext)) {
			return true
		}
	}
	return false
}

// BuildError creates a standardized build error with output context.
//
// # Format
//
// With error and output:
//
//	cmake configure build failed: exit status 1
//
//	Build output:
//	CMake Error at CMakeLists.txt:3 (find_package):
//	  Could not find a package configuration file provided by "pybind11"
//
// With error but no output:
//
//	cmake configure build failed: exit status 1
func BuildError(step string, output []string, err error) error {
	outputStr := strings.TrimRight(strings.Join(output, "\n"), "\n")

	var prefix string
	if err != nil {
		prefix = fmt.Sprintf("%s build failed: %v", step, err)
	} else {
		prefix = fmt.Sprintf("%s build failed", step)
	}

	if outputStr != "" {
		return fmt.Errorf("%s\n\nBuild output:\n%s", prefix, outputStr)
	}

	return fmt.Errorf("%s", prefix)
}

// splitLines splits captured process output into lines, dropping the
// trailing empty line left by a final newline.
func splitLines(output []byte) []string {
	text := strings.TrimRight(string(output), "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func uniqueStrings(values []string) []string {
	seen := make(map[string]struct{})
	var result []string

	for _, value := range values {
		if value == "" {
			continue
		}
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		result = append(result, value)
	}

	return result
}
