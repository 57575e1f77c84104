package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// maxRuleFileSize caps a single rule file.
const maxRuleFileSize = 1 << 20

// ReadFS decodes every .yaml or .yml file under fsys. Files are read in
// lexical path order so rule order is stable across platforms.
func ReadFS(fsys fs.FS) ([]RawRule, error) {
	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isYAML(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	var all []RawRule
	for _, name := range files {
		raws, err := readRuleFile(fsys, name)
		if err != nil {
			return nil, err
		}
		all = append(all, raws...)
	}
	return all, nil
}

// ReadDir is ReadFS over a directory on disk.
func ReadDir(dir string) ([]RawRule, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}
	return ReadFS(os.DirFS(dir))
}

func readRuleFile(fsys fs.FS, name string) ([]RawRule, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxRuleFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	if len(data) > maxRuleFileSize {
		return nil, fmt.Errorf("%s: rule file larger than %d bytes", name, maxRuleFileSize)
	}
	raws, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return raws, nil
}

// Decode reads a stream of "---" separated rule documents. Unknown keys are
// an error. Documents without an id are skipped.
func Decode(r io.Reader) ([]RawRule, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var out []RawRule
	for doc := 1; ; doc++ {
		var raw RawRule
		err := dec.Decode(&raw)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", doc, err)
		}
		if raw.ID != "" {
			out = append(out, raw)
		}
	}
}

func isYAML(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}
