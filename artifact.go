package cmakext

import (
	"os"
	"path/filepath"
	"strings"
)

// nativeLibraryExtensions are the suffixes a compiled extension module can
// carry, across platforms.
var nativeLibraryExtensions = []string{".so", ".pyd", ".dylib", ".dll"}

func isNativeLibrary(path string) bool {
	return MatchesExtension(path, nativeLibraryExtensions...)
}

// ExtensionOutputDir returns the directory a module named name must be
// compiled into so it installs from buildLib. Dotted names map to package
// subdirectories: "pkg.sub._native" lands in buildLib/pkg/sub.
func ExtensionOutputDir(buildLib, name string) string {
	parts := strings.Split(name, ".")
	return filepath.Join(append([]string{buildLib}, parts[:len(parts)-1]...)...)
}

// FindArtifact locates the compiled module for extension name inside
// outputDir.
//
// The module's file name starts with the last component of name and ends
// with a native library suffix; anything in between (an ABI tag such as
// ".cpython-311-x86_64-linux-gnu") is accepted. Returns an
// *ArtifactMissingError when nothing matches.
func FindArtifact(outputDir, name string) (string, error) {
	leaf := name[strings.LastIndex(name, ".")+1:]

	entries, err := os.ReadDir(outputDir)
	if err != nil {
		return "", &ArtifactMissingError{Extension: name, OutputDir: outputDir}
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := entry.Name()
		if !isNativeLibrary(base) {
			continue
		}
		if strings.HasPrefix(base, leaf+".") {
			return filepath.Join(outputDir, base), nil
		}
	}

	return "", &ArtifactMissingError{Extension: name, OutputDir: outputDir}
}
