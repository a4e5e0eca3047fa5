package cmakext

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ManifestFile is the default project manifest name.
const ManifestFile = "cmakext.toml"

// Manifest is the packaging metadata of a project.
//
//	name    = "tysoc-raisim"
//	version = "0.0.1"
//
//	[[extension]]
//	name       = "tysoc_bindings"
//	source_dir = "."
//	cmake_args = ["-DTYSOC_BUILD_TESTS=OFF"]
//
//	[package_dir]
//	pytysoc = "core/pytysoc"
//
//	[package_data]
//	pytysoc = ["../res/meshes/*.stl", "../res/templates/mjcf/*.xml"]
type Manifest struct {
	Name        string              `toml:"name"`
	Version     string              `toml:"version"`
	Extensions  []ExtensionSpec     `toml:"extension"`
	PackageDir  map[string]string   `toml:"package_dir"`
	PackageData map[string][]string `toml:"package_data"`

	// Path is the file the manifest was read from.
	Path string `toml:"-"`
}

// ExtensionSpec declares one extension in the manifest.
type ExtensionSpec struct {
	Name      string   `toml:"name"`
	SourceDir string   `toml:"source_dir"`
	CMakeArgs []string `toml:"cmake_args"`
}

// LoadManifest reads and validates the manifest at path. Unknown keys are
// rejected.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	m, err := ParseManifest(data)
	if err != nil {
		var merr *ManifestError
		if errors.As(err, &merr) {
			merr.Path = path
			return nil, merr
		}
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}

	m.Path = path
	return m, nil
}

// ParseManifest decodes and validates manifest data.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, &ManifestError{Msg: strings.TrimSpace(strict.String())}
		}
		return nil, err
	}

	for i := range m.Extensions {
		if m.Extensions[i].SourceDir == "" {
			m.Extensions[i].SourceDir = "."
		}
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks required fields and extension name uniqueness.
func (m *Manifest) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return &ManifestError{Path: m.Path, Field: "name", Msg: "is required"}
	}
	if strings.TrimSpace(m.Version) == "" {
		return &ManifestError{Path: m.Path, Field: "version", Msg: "is required"}
	}

	seen := make(map[string]struct{}, len(m.Extensions))
	for i, ext := range m.Extensions {
		field := fmt.Sprintf("extension[%d].name", i)
		if ext.Name == "" {
			return &ManifestError{Path: m.Path, Field: field, Msg: "is required"}
		}
		if strings.ContainsAny(ext.Name, `/\ `) || strings.HasPrefix(ext.Name, ".") || strings.HasSuffix(ext.Name, ".") {
			return &ManifestError{Path: m.Path, Field: field, Msg: fmt.Sprintf("%q is not a module name", ext.Name)}
		}
		if _, dup := seen[ext.Name]; dup {
			return &ManifestError{Path: m.Path, Field: field, Msg: fmt.Sprintf("duplicate extension %q", ext.Name)}
		}
		seen[ext.Name] = struct{}{}
	}

	for pkg := range m.PackageData {
		if pkg == "" {
			return &ManifestError{Path: m.Path, Field: "package_data", Msg: "empty package name"}
		}
	}

	return nil
}

// Root is the directory relative paths in the manifest resolve against.
func (m *Manifest) Root() string {
	if m.Path == "" {
		return "."
	}
	return filepath.Dir(m.Path)
}

// PackageDataEntries returns the package data declarations sorted by
// package name.
func (m *Manifest) PackageDataEntries() []PackageData {
	pkgs := make([]string, 0, len(m.PackageData))
	for pkg := range m.PackageData {
		pkgs = append(pkgs, pkg)
	}
	sort.Strings(pkgs)

	entries := make([]PackageData, 0, len(pkgs))
	for _, pkg := range pkgs {
		entries = append(entries, PackageData{
			Package:  pkg,
			Dir:      m.PackageDir[pkg],
			Patterns: append([]string(nil), m.PackageData[pkg]...),
		})
	}
	return entries
}
