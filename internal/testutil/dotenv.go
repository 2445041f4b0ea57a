// Package testutil holds helpers for tests that talk to live Atlassian
// backends.
package testutil

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var dotenvOnce sync.Once

// LoadDotEnv applies the nearest .env file, searching upward from the working
// directory, to the process environment. Variables that are already set win,
// and a missing file is fine; live tests then rely on plain environment
// variables.
func LoadDotEnv() {
	dotenvOnce.Do(func() {
		dir, err := os.Getwd()
		if err != nil {
			return
		}
		for {
			path := filepath.Join(dir, ".env")
			if st, err := os.Stat(path); err == nil && st.Mode().IsRegular() {
				applyEnvFile(path)
				return
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				return
			}
			dir = parent
		}
	})
}

func applyEnvFile(path string) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, val, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		if key == "" {
			continue
		}
		if len(val) >= 2 && val[0] == val[len(val)-1] && (val[0] == '"' || val[0] == '\'') {
			val = val[1 : len(val)-1]
		}
		if _, exists := os.LookupEnv(key); !exists {
			_ = os.Setenv(key, val)
		}
	}
}
