package parser

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

type Diagnostics struct {
	Warnings []string
}

func (d *Diagnostics) Warn(format string, args ...any) {
	d.Warnings = append(d.Warnings, fmt.Sprintf(format, args...))
}

var (
	DefaultInclude = []string{".py", ".pyi"}
	DefaultExclude = []string{".git", "__pycache__", ".venv", "venv", "node_modules", ".tox", "build", "dist"}
)

// Discover expands roots into the sorted, de-duplicated list of source
// files to scan. A root that does not exist is an error; problems below a
// root become warnings.
func Discover(roots, include, exclude []string) ([]string, Diagnostics, error) {
	if len(include) == 0 {
		include = DefaultInclude
	}
	if exclude == nil {
		exclude = DefaultExclude
	}
	var diags Diagnostics
	seen := map[string]struct{}{}
	var files []string
	add := func(p string) {
		p = filepath.Clean(p)
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}

	for _, root := range roots {
		info, err := os.Stat(root)
		if err != nil {
			return nil, diags, fmt.Errorf("source %q: %w", root, err)
		}
		if !info.IsDir() {
			// explicitly named files are scanned whatever their extension
			add(root)
			continue
		}
		_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				diags.Warn("walk %s: %v", p, err)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			rel, _ := filepath.Rel(root, p)
			if p != root && excluded(d.Name(), rel, exclude) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() || !hasExt(d.Name(), include) {
				return nil
			}
			add(p)
			return nil
		})
	}
	sort.Strings(files)
	if len(files) == 0 {
		diags.Warn("no Python source files found")
	}
	return files, diags, nil
}

func hasExt(name string, include []string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range include {
		if strings.EqualFold(ext, e) {
			return true
		}
	}
	return false
}

// excluded matches patterns against the base name, or against the
// slash-separated relative path when the pattern contains a slash.
func excluded(name, rel string, patterns []string) bool {
	rel = filepath.ToSlash(rel)
	for _, pat := range patterns {
		target := name
		if strings.Contains(pat, "/") {
			target = rel
		}
		if ok, _ := filepath.Match(pat, target); ok {
			return true
		}
	}
	return false
}
