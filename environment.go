package cmakext

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// CompilerFlagsVar is the variable amended with the version definition.
const CompilerFlagsVar = "CXXFLAGS"

// EnvironmentOverlay is an immutable environment for toolchain invocations.
//
// It holds a snapshot of a base environment plus overrides. Environ returns a
// fresh slice on every call, so the overlay can be passed by value and shared
// between descriptors without anyone mutating the process environment.
type EnvironmentOverlay struct {
	base      []string
	overrides map[string]string
}

// NewEnvironmentOverlay snapshots base and applies overrides on top of it.
func NewEnvironmentOverlay(base []string, overrides map[string]string) EnvironmentOverlay {
	o := EnvironmentOverlay{
		base:      append([]string(nil), base...),
		overrides: make(map[string]string, len(overrides)),
	}
	for k, v := range overrides {
		o.overrides[k] = v
	}
	return o
}

// VersionedEnvironment snapshots the current process environment and
// appends a VERSION_INFO definition carrying version to CXXFLAGS, so the
// compiled module reports the packaging version.
func VersionedEnvironment(version string) EnvironmentOverlay {
	return versionedEnvironment(os.Environ(), version)
}

func versionedEnvironment(base []string, version string) EnvironmentOverlay {
	snapshot := NewEnvironmentOverlay(base, nil)
	flags := strings.TrimSpace(snapshot.Get(CompilerFlagsVar) + " " + VersionDefine(version))
	return snapshot.With(CompilerFlagsVar, flags)
}

// VersionDefine renders the compiler flag embedding version as a C string
// literal, escaped so it survives the build tool's flag splitting.
func VersionDefine(version string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(version)
	return fmt.Sprintf(`-DVERSION_INFO=\"%s\"`, escaped)
}

// With returns a copy of o with key set to value.
func (o EnvironmentOverlay) With(key, value string) EnvironmentOverlay {
	overrides := make(map[string]string, len(o.overrides)+1)
	for k, v := range o.overrides {
		overrides[k] = v
	}
	overrides[key] = value
	return EnvironmentOverlay{base: o.base, overrides: overrides}
}

// Get returns the effective value of key.
func (o EnvironmentOverlay) Get(key string) string {
	if v, ok := o.overrides[key]; ok {
		return v
	}
	for i := len(o.base) - 1; i >= 0; i-- {
		if k, v, ok := strings.Cut(o.base[i], "="); ok && k == key {
			return v
		}
	}
	return ""
}

// Overrides returns a copy of the overridden variables.
func (o EnvironmentOverlay) Overrides() map[string]string {
	out := make(map[string]string, len(o.overrides))
	for k, v := range o.overrides {
		out[k] = v
	}
	return out
}

// IsZero reports whether o is the zero overlay. Invocations built from a
// zero overlay inherit the process environment.
func (o EnvironmentOverlay) IsZero() bool {
	return o.base == nil && o.overrides == nil
}

// Environ returns the merged environment as KEY=VALUE pairs. Base entries
// that are overridden are dropped; overrides follow in key order.
func (o EnvironmentOverlay) Environ() []string {
	env := make([]string, 0, len(o.base)+len(o.overrides))
	for _, kv := range o.base {
		k, _, _ := strings.Cut(kv, "=")
		if _, ok := o.overrides[k]; ok {
			continue
		}
		env = append(env, kv)
	}

	keys := make([]string, 0, len(o.overrides))
	for k := range o.overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+o.overrides[k])
	}
	return env
}
