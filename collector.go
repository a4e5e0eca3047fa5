package cmakext

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// FileCategory classifies a collected build input.
type FileCategory int

const (
	CategorySource FileCategory = iota + 1
	CategoryHeader
	CategoryImage
	CategoryShader
	CategoryBuildDescriptor
)

func (c FileCategory) String() string {
	switch c {
	case CategorySource:
		return "source"
	case CategoryHeader:
		return "header"
	case CategoryImage:
		return "image"
	case CategoryShader:
		return "shader"
	case CategoryBuildDescriptor:
		return "build-descriptor"
	default:
		return "unknown"
	}
}

// CMakeListsFile is the canonical CMake build descriptor name.
const CMakeListsFile = "CMakeLists.txt"

type matchKind int

const (
	matchContains matchKind = iota
	matchExact
)

type namePattern struct {
	pattern  string
	kind     matchKind
	category FileCategory
}

func (p namePattern) matches(name string) bool {
	if p.kind == matchExact {
		return name == p.pattern
	}
	return strings.Contains(name, p.pattern)
}

// inputPatterns is evaluated in order against file names; the first match
// wins. Matching is substring based, so "x.hpp" and "notes.html" are inputs
// too. Resource bundling depends on that, keep it.
var inputPatterns = []namePattern{
	{".cpp", matchContains, CategorySource},
	{".cc", matchContains, CategorySource},
	{".h", matchContains, CategoryHeader},
	{".hh", matchContains, CategoryHeader},
	{".png", matchContains, CategoryImage},
	{".jpg", matchContains, CategoryImage},
	{".glsl", matchContains, CategoryShader},
	{".cmake", matchContains, CategoryBuildDescriptor},
	{CMakeListsFile, matchExact, CategoryBuildDescriptor},
}

// ignoredDirs prunes documentation image folders, build output and
// packaging metadata caches.
var ignoredDirs = []namePattern{
	{"_imgs", matchContains, 0},
	{"build", matchExact, 0},
	{"egg-info", matchContains, 0},
}

// Classify returns the input category for a file name, or false when the
// name matches no input pattern.
func Classify(name string) (FileCategory, bool) {
	for _, p := range inputPatterns {
		if p.matches(name) {
			return p.category, true
		}
	}
	return 0, false
}

// IgnoredDir reports whether a directory with this name is pruned from
// collection.
func IgnoredDir(name string) bool {
	for _, p := range ignoredDirs {
		if p.matches(name) {
			return true
		}
	}
	return false
}

// InputFile is one collected build input.
type InputFile struct {
	Path     string
	Category FileCategory
}

// Collect walks root and returns the paths of every build input below it.
//
// Paths are joined onto root, so they are absolute when root is. A
// directory's own matches come before the contents of its subdirectories,
// both in listing order.
func Collect(root string) ([]string, error) {
	files, err := Scan(root)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, f.Path)
	}
	return paths, nil
}

// Scan is Collect with the category of every input attached.
func Scan(root string) ([]InputFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &InvalidRootError{Path: root, Err: err}
	}
	if !info.IsDir() {
		return nil, &InvalidRootError{Path: root}
	}

	files := []InputFile{}
	if err := scanDir(root, &files); err != nil {
		return nil, err
	}
	return files, nil
}

func scanDir(dir string, files *[]InputFile) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}

	var subdirs []string
	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())

		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			target, err := os.Stat(path)
			if err != nil {
				// Dangling link: nothing to build from.
				continue
			}
			if target.IsDir() {
				continue
			}
		}

		if isDir {
			if !IgnoredDir(entry.Name()) {
				subdirs = append(subdirs, path)
			}
			continue
		}

		if category, ok := Classify(entry.Name()); ok {
			*files = append(*files, InputFile{Path: path, Category: category})
		}
	}

	for _, sub := range subdirs {
		if err := scanDir(sub, files); err != nil {
			return err
		}
	}
	return nil
}
