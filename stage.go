package cmakext

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// PackageData lists resource files that ship inside a package.
type PackageData struct {
	Package  string   // Dotted package name, e.g. "pytysoc"
	Dir      string   // Package source directory relative to the project root
	Patterns []string // Globs relative to Dir, e.g. "../res/meshes/*.stl"
}

// StagePackageData copies every file matched by data into the installable
// layout rooted at buildLib and returns the staged paths relative to
// buildLib.
//
// A file matched through pattern P of package "a.b" lands at
// buildLib/a/b/P. Destinations that would escape buildLib are rejected.
// Directories matched by a pattern are skipped; patterns matching nothing
// are not an error.
func StagePackageData(projectRoot, buildLib string, data []PackageData) ([]string, error) {
	var staged []string

	for _, pkg := range data {
		pkgPath := filepath.FromSlash(strings.ReplaceAll(pkg.Package, ".", "/"))
		pkgDir := pkg.Dir
		if pkgDir == "" {
			pkgDir = pkgPath
		}
		pkgDir = filepath.Join(projectRoot, filepath.FromSlash(pkgDir))

		var matches []string
		for _, pattern := range pkg.Patterns {
			found, err := filepath.Glob(filepath.Join(pkgDir, filepath.FromSlash(pattern)))
			if err != nil {
				return staged, fmt.Errorf("package %s: bad pattern %q: %w", pkg.Package, pattern, err)
			}
			matches = append(matches, found...)
		}

		for _, src := range uniqueStrings(matches) {
			info, err := os.Stat(src)
			if err != nil {
				return staged, err
			}
			if info.IsDir() {
				continue
			}

			rel, err := filepath.Rel(pkgDir, src)
			if err != nil {
				return staged, err
			}

			dest := filepath.Join(buildLib, pkgPath, rel)
			relDest, ok := withinDir(buildLib, dest)
			if !ok {
				return staged, fmt.Errorf("package %s: %s would be staged outside %s", pkg.Package, src, buildLib)
			}

			if err := copyFile(src, dest); err != nil {
				return staged, fmt.Errorf("package %s: %w", pkg.Package, err)
			}
			staged = append(staged, filepath.ToSlash(relDest))
		}
	}

	return staged, nil
}

// withinDir returns path relative to dir, and false when path is not below
// dir.
func withinDir(dir, path string) (string, bool) {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return "", false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return rel, true
}

func copyFile(srcPath, destPath string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return err
	}

	in, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}

	if _, err = io.Copy(out, in); err != nil {
		out.Close()
		return err
	}

	return out.Close()
}
