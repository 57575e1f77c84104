package scanner

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// GitChangedFiles returns the scannable files that are modified, staged or
// untracked in the git repository at root, relative to root. If root is not
// a git repository (or git is missing) it returns nil and no error.
func GitChangedFiles(root string, markdown bool) ([]string, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, nil
	}
	if _, err := runGit(root, "rev-parse", "--git-dir"); err != nil {
		return nil, nil
	}

	seen := make(map[string]bool)
	var files []string
	add := func(out string) {
		for _, f := range splitLines(out) {
			if f != "" && !seen[f] {
				seen[f] = true
				files = append(files, f)
			}
		}
	}

	// Repositories without commits have no HEAD; fall back to the index.
	out, err := runGit(root, "diff", "--name-only", "--relative", "HEAD")
	if err != nil {
		out, err = runGit(root, "diff", "--name-only", "--relative", "--cached")
		if err != nil {
			return nil, nil
		}
	}
	add(out)

	if out, err := runGit(root, "ls-files", "--others", "--exclude-standard"); err == nil {
		add(out)
	}

	var result []string
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		// Deleted files show up in the diff too.
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if Classify(path, markdown) != "" {
			result = append(result, f)
		}
	}
	return result, nil
}

// ChangedTargets turns GitChangedFiles output into targets.
func ChangedTargets(root string, markdown bool) ([]*Target, error) {
	files, err := GitChangedFiles(root, markdown)
	if err != nil {
		return nil, err
	}
	targets := make([]*Target, 0, len(files))
	for _, f := range files {
		path := filepath.Join(root, filepath.FromSlash(f))
		targets = append(targets, &Target{Path: path, RelPath: f, Lang: Classify(path, markdown)})
	}
	return targets, nil
}

func runGit(dir string, args ...string) (string, error) {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func splitLines(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}
