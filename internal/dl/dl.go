//go:build darwin || linux

// Package dl locates and opens the shared libraries the purego bindings use.
package dl

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"unsafe"

	"github.com/ebitengine/purego"
)

// Library describes a shared library and where to look for it.
type Library struct {
	// Base is the library name without prefix or suffix, e.g. "avcodec".
	Base string
	// Versions are the ABI versions accepted, newest first. An empty
	// version means the unversioned name.
	Versions []string
	// EnvVars name variables holding either the library file or a directory.
	EnvVars []string
	// Dirs are searched after the environment overrides.
	Dirs []string
}

// FileNames returns the candidate file names for the current OS.
func (l Library) FileNames() []string {
	versions := l.Versions
	if len(versions) == 0 {
		versions = []string{""}
	}
	var names []string
	for _, v := range versions {
		switch runtime.GOOS {
		case "darwin":
			if v == "" {
				names = append(names, "lib"+l.Base+".dylib")
			} else {
				names = append(names, "lib"+l.Base+"."+v+".dylib")
			}
		default:
			if v == "" {
				names = append(names, "lib"+l.Base+".so")
			} else {
				names = append(names, "lib"+l.Base+".so."+v)
			}
		}
	}
	return names
}

// SearchPaths returns every path Open tries, in order.
func (l Library) SearchPaths() []string {
	names := l.FileNames()
	var paths []string

	for _, env := range l.EnvVars {
		v := os.Getenv(env)
		if v == "" {
			continue
		}
		if fi, err := os.Stat(v); err == nil && fi.IsDir() {
			for _, n := range names {
				paths = append(paths, filepath.Join(v, n))
			}
		} else {
			paths = append(paths, v)
		}
	}

	dirs := append([]string(nil), l.Dirs...)
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		dirs = append(dirs, exeDir, filepath.Join(exeDir, "..", "lib"))
	}
	if root := findModuleRoot(); root != "" {
		dirs = append(dirs, filepath.Join(root, "lib"))
	}
	switch runtime.GOOS {
	case "darwin":
		dirs = append(dirs, "/opt/homebrew/lib", "/usr/local/lib")
	case "linux":
		dirs = append(dirs,
			"/usr/lib/x86_64-linux-gnu",
			"/usr/lib/aarch64-linux-gnu",
			"/usr/local/lib",
			"/usr/lib64",
			"/usr/lib",
		)
	}
	for _, d := range dirs {
		for _, n := range names {
			paths = append(paths, filepath.Join(d, n))
		}
	}

	// Bare names let the dynamic loader use its own search path.
	paths = append(paths, names...)
	return paths
}

// Open loads the first library found on the search path.
func Open(l Library) (handle uintptr, path string, err error) {
	var lastErr error
	for _, p := range l.SearchPaths() {
		h, err := purego.Dlopen(p, purego.RTLD_NOW|purego.RTLD_GLOBAL)
		if err == nil {
			return h, p, nil
		}
		lastErr = err
	}
	if lastErr != nil {
		return 0, "", fmt.Errorf("failed to load lib%s: %w", l.Base, lastErr)
	}
	return 0, "", errors.New("lib" + l.Base + " not found in any standard location")
}

// RegisterOptional binds a symbol that may be missing from older library
// versions. It reports whether the symbol was found.
func RegisterOptional(fptr any, handle uintptr, name string) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	purego.RegisterLibFunc(fptr, handle, name)
	return true
}

// GoString copies a NUL-terminated C string.
func GoString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	p := unsafe.Pointer(ptr)
	var length int
	for *(*byte)(unsafe.Add(p, length)) != 0 {
		length++
		if length > 4096 {
			break
		}
	}
	if length == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(p), length))
}

// CString returns s as a NUL-terminated byte slice. The caller keeps the
// slice alive for as long as C code may read it.
func CString(s string) []byte {
	b := make([]byte, len(s)+1)
	copy(b, s)
	return b
}

// findModuleRoot walks up from the working directory to the directory holding go.mod.
func findModuleRoot() string {
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := wd
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}
