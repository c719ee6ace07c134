package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// DefaultPoliciesDir is the policies directory name below the data dir.
const DefaultPoliciesDir = "policies"

// File is a loaded Rego source file.
type File struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// IsTest reports whether the file holds Rego unit tests.
func (f *File) IsTest() bool {
	return strings.HasSuffix(f.Path, "_test.rego")
}

// Loader reads .rego files from a directory tree.
type Loader struct {
	fs      afero.Fs
	baseDir string
}

// NewLoader creates a loader over baseDir.
func NewLoader(fs afero.Fs, baseDir string) *Loader {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &Loader{fs: fs, baseDir: baseDir}
}

// Dir returns the directory the loader reads.
func (l *Loader) Dir() string {
	return l.baseDir
}

// LoadAll loads every .rego file below the directory, sorted by path. A
// missing directory means no policies.
func (l *Loader) LoadAll() ([]*File, error) {
	paths, err := l.ListFiles()
	if err != nil {
		return nil, err
	}
	files := make([]*File, 0, len(paths))
	for _, p := range paths {
		content, err := afero.ReadFile(l.fs, p)
		if err != nil {
			return nil, fmt.Errorf("load policy %s: %w", p, err)
		}
		files = append(files, &File{
			Path:    p,
			Name:    strings.TrimSuffix(filepath.Base(p), ".rego"),
			Content: string(content),
		})
	}
	return files, nil
}

// ListFiles returns the paths of all .rego files below the directory.
func (l *Loader) ListFiles() ([]string, error) {
	exists, err := afero.DirExists(l.fs, l.baseDir)
	if err != nil {
		return nil, fmt.Errorf("check policies directory: %w", err)
	}
	if !exists {
		return []string{}, nil
	}

	paths := []string{}
	err = afero.Walk(l.fs, l.baseDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && strings.HasSuffix(info.Name(), ".rego") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk policies directory: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

// WriteDefault writes the built-in policy to the directory unless a file
// with that name already exists. It reports whether a file was written.
func (l *Loader) WriteDefault() (bool, error) {
	path := filepath.Join(l.baseDir, DefaultPolicyFile)
	exists, err := afero.Exists(l.fs, path)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := l.fs.MkdirAll(l.baseDir, 0o755); err != nil {
		return false, fmt.Errorf("create policies directory: %w", err)
	}
	if err := afero.WriteFile(l.fs, path, []byte(DefaultPolicy), 0o644); err != nil {
		return false, fmt.Errorf("write default policy: %w", err)
	}
	return true, nil
}
