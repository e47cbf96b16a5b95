package vst2

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
)

// PathEnv extends default scan paths.
const PathEnv = "VST_PATH"

// Catalog lists plugin files found in scan paths, grouped by directory.
// Plugins are not loaded during the scan.
type Catalog struct {
	Paths []string
	Libs  map[string][]string
}

// Scan walks default and provided paths. Paths that can't be read are
// skipped.
func Scan(paths ...string) *Catalog {
	c := Catalog{
		Paths: uniquePaths(append(DefaultPaths(), paths...)),
		Libs:  make(map[string][]string),
	}
	ext := FileExtension()
	for _, path := range c.Paths {
		filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !strings.HasSuffix(d.Name(), ext) {
				return nil
			}
			dir := filepath.Dir(p)
			c.Libs[dir] = append(c.Libs[dir], p)
			// macOS plugins are bundles
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		})
	}
	return &c
}

// DefaultPaths returns platform plugin directories.
func DefaultPaths() []string {
	var paths []string
	switch runtime.GOOS {
	case "darwin":
		paths = []string{
			"/Library/Audio/Plug-Ins/VST",
		}
		if home, err := os.UserHomeDir(); err == nil {
			paths = append(paths, filepath.Join(home, "Library/Audio/Plug-Ins/VST"))
		}
	case "windows":
		paths = []string{
			"C:\\Program Files (x86)\\Steinberg\\VSTPlugins",
			"C:\\Program Files\\Steinberg\\VSTPlugins",
		}
	default:
		paths = []string{
			"/usr/lib/vst",
			"/usr/local/lib/vst",
		}
	}
	if env := os.Getenv(PathEnv); env != "" {
		paths = append(paths, filepath.SplitList(env)...)
	}
	return paths
}

func uniquePaths(paths []string) []string {
	u := make([]string, 0, len(paths))
	m := make(map[string]bool)
	for _, p := range paths {
		if !m[p] {
			m[p] = true
			u = append(u, p)
		}
	}
	return u
}

func (c *Catalog) String() string {
	var b strings.Builder
	b.WriteString("Scan paths:\n")
	for _, p := range c.Paths {
		fmt.Fprintf(&b, "\t%s\n", p)
	}
	b.WriteString("Available plugins:\n")
	dirs := make([]string, 0, len(c.Libs))
	for dir := range c.Libs {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)
	for _, dir := range dirs {
		fmt.Fprintf(&b, "\t%s\n", dir)
		for _, lib := range c.Libs[dir] {
			fmt.Fprintf(&b, "\t\t%s\n", filepath.Base(lib))
		}
	}
	return b.String()
}
