package scanner

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/altantutar/pyguard/internal/source"
	"github.com/altantutar/pyguard/internal/types"
)

// Language classifies a target.
type Language string

const (
	LangPython   Language = "python"
	LangMarkdown Language = "markdown"
)

// Target represents a file to be scanned.
type Target struct {
	Path    string
	RelPath string
	Lang    Language
	// Content holds in-memory source; when set, Path is not read.
	Content []byte
	Unit    *source.Unit
}

// Load reads and decodes the file. Units already set are kept.
func (t *Target) Load() error {
	if t.Unit != nil {
		return nil
	}
	var u *source.Unit
	var err error
	if t.Content != nil {
		u, err = source.FromBytes(t.RelPath, t.Content)
	} else {
		u, err = source.Load(t.Path, t.RelPath)
	}
	if err != nil {
		return err
	}
	t.Unit = u
	return nil
}

// Classify returns the language of path, or "" when it is not scannable.
// Markdown is only considered when markdown is set.
func Classify(path string, markdown bool) Language {
	if source.IsPythonPath(path) {
		return LangPython
	}
	ext := strings.ToLower(filepath.Ext(path))
	if markdown && (ext == ".md" || ext == ".markdown") {
		return LangMarkdown
	}
	if ext == "" && source.HasPythonShebang(path) {
		return LangPython
	}
	return ""
}

// IgnoreFile is the per-project ignore list read from the scan root.
const IgnoreFile = ".pyguardignore"

var skipDirs = map[string]bool{
	".git": true, ".hg": true, ".svn": true,
	"node_modules": true, "__pycache__": true,
	".venv": true, "venv": true, ".tox": true, ".nox": true,
	".mypy_cache": true, ".pytest_cache": true, ".ruff_cache": true,
	"site-packages": true, ".pyguard": true,
}

// TargetDiscovery walks a directory and returns scannable targets.
type TargetDiscovery struct {
	IgnorePatterns []string
	Markdown       bool
	// Diagnostics collects paths that could not be visited.
	Diagnostics []Diagnostic
}

// Discover walks root and returns all targets in lexical order, respecting
// .pyguardignore. RelPath is slash separated.
func (td *TargetDiscovery) Discover(root string) ([]*Target, error) {
	td.loadIgnoreFile(root)

	var targets []*Target
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		relPath := relSlash(root, path)
		if err != nil {
			if path == root {
				return err
			}
			td.Diagnostics = append(td.Diagnostics, types.Diagnostic{
				FilePath: relPath,
				Kind:     types.DiagRead,
				Message:  err.Error(),
			})
			return nil
		}
		if info.IsDir() {
			if path != root && (skipDirs[info.Name()] || td.isIgnored(relPath)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !info.Mode().IsRegular() || td.isIgnored(relPath) {
			return nil
		}
		lang := Classify(path, td.Markdown)
		if lang == "" {
			return nil
		}
		targets = append(targets, &Target{
			Path:    path,
			RelPath: relPath,
			Lang:    lang,
		})
		return nil
	})
	return targets, err
}

func relSlash(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	return filepath.ToSlash(rel)
}

func (td *TargetDiscovery) loadIgnoreFile(root string) {
	f, err := os.Open(filepath.Join(root, IgnoreFile))
	if err != nil {
		return
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && !strings.HasPrefix(line, "#") {
			td.IgnorePatterns = append(td.IgnorePatterns, line)
		}
	}
}

func (td *TargetDiscovery) isIgnored(relPath string) bool {
	for _, pattern := range td.IgnorePatterns {
		if matchGlob(pattern, relPath) {
			return true
		}
	}
	return false
}

// matchGlob supports ** globs that path.Match does not.
// "dir/**" matches any file under dir/ at any depth.
// "**/test_*.py" matches test files at any depth.
func matchGlob(pattern, relPath string) bool {
	pattern = strings.TrimSuffix(filepath.ToSlash(pattern), "/")
	if !strings.Contains(pattern, "**") {
		if matched, _ := filepath.Match(pattern, relPath); matched {
			return true
		}
		base := relPath[strings.LastIndexByte(relPath, '/')+1:]
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
		return false
	}

	if strings.HasSuffix(pattern, "/**") {
		prefix := strings.TrimSuffix(pattern, "/**")
		if strings.HasPrefix(relPath, prefix+"/") || relPath == prefix {
			return true
		}
	}

	if strings.HasPrefix(pattern, "**/") {
		if matchSuffixes(strings.TrimPrefix(pattern, "**/"), relPath) {
			return true
		}
	}

	if idx := strings.Index(pattern, "/**/"); idx >= 0 {
		prefix, suffix := pattern[:idx], pattern[idx+4:]
		if strings.HasPrefix(relPath, prefix+"/") && matchSuffixes(suffix, strings.TrimPrefix(relPath, prefix+"/")) {
			return true
		}
	}

	return false
}

// matchSuffixes matches glob against every trailing run of path segments.
func matchSuffixes(glob, relPath string) bool {
	parts := strings.Split(relPath, "/")
	for i := range parts {
		if matched, _ := filepath.Match(glob, strings.Join(parts[i:], "/")); matched {
			return true
		}
	}
	return false
}
