// Package config loads daemon settings from .env files, a TOML file and
// PMCONTROL_* environment variables.
package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// LoadDotEnv sets variables from a .env file into the process environment
// and returns how many it set. Blank lines and '#' comments are skipped, an
// optional "export " prefix is accepted and matching single or double quotes
// around the value are removed. Existing variables win unless override is set.
func LoadDotEnv(path string, override bool) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		line = strings.TrimSpace(strings.TrimPrefix(line, "export "))
		key, val, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			continue
		}
		val = unquote(strings.TrimSpace(val))
		if _, exists := os.LookupEnv(key); exists && !override {
			continue
		}
		if err := os.Setenv(key, val); err == nil {
			n++
		}
	}
	return n, sc.Err()
}

func unquote(v string) string {
	if len(v) >= 2 && (v[0] == '"' || v[0] == '\'') && v[len(v)-1] == v[0] {
		return v[1 : len(v)-1]
	}
	return v
}

// LoadDotEnvFrom loads ".env" from each directory that has one, in order,
// without overriding variables already set. It returns the files loaded.
func LoadDotEnvFrom(dirs ...string) []string {
	var loaded []string
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		p := filepath.Join(dir, ".env")
		if st, err := os.Stat(p); err != nil || st.IsDir() {
			continue
		}
		if _, err := LoadDotEnv(p, false); err == nil {
			loaded = append(loaded, p)
		}
	}
	return loaded
}

// DefaultDotEnvDirs returns the working directory and the executable's directory.
func DefaultDotEnvDirs() []string {
	var dirs []string
	if cwd, err := os.Getwd(); err == nil {
		dirs = append(dirs, cwd)
	}
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	return dirs
}
