package source

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var pythonShebang = regexp.MustCompile(`^#!.*\bpython[0-9.]*\b`)

// IsPythonPath reports whether the file extension marks Python source.
func IsPythonPath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py", ".pyw":
		return true
	}
	return false
}

// HasPythonShebang reports whether an extensionless file starts with a
// Python interpreter line.
func HasPythonShebang(path string) bool {
	if filepath.Ext(path) != "" {
		return false
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	line, err := bufio.NewReader(io.LimitReader(f, 256)).ReadString('\n')
	if err != nil && line == "" {
		return false
	}
	return pythonShebang.MatchString(line)
}
