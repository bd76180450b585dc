// Package config builds the typed configuration of each process from the
// environment. Every value is read and validated once at start up.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Getenv looks up a single configuration key. os.Getenv satisfies it.
type Getenv func(key string) string

// ValidationError lists every configuration problem found in one pass.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// LoadDotEnv pre-populates the environment from .env style files. Files that
// do not exist are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Env returns os.Getenv as a Getenv.
func Env() Getenv { return os.Getenv }

type loader struct {
	get      Getenv
	problems []string
}

func newLoader(get Getenv) *loader {
	if get == nil {
		get = os.Getenv
	}
	return &loader{get: get}
}

func (l *loader) fail(format string, args ...any) {
	l.problems = append(l.problems, fmt.Sprintf(format, args...))
}

func (l *loader) required(key string) string {
	v := strings.TrimSpace(l.get(key))
	if v == "" {
		l.fail("missing env %s", key)
	}
	return v
}

func (l *loader) optional(key, def string) string {
	if v := strings.TrimSpace(l.get(key)); v != "" {
		return v
	}
	return def
}

func (l *loader) duration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(l.get(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		l.fail("env %s: invalid duration %q", key, v)
		return def
	}
	return d
}

func (l *loader) integer(key string, def int) int {
	v := strings.TrimSpace(l.get(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		l.fail("env %s: invalid positive integer %q", key, v)
		return def
	}
	return n
}

func (l *loader) list(key, def string) []string {
	var out []string
	for _, part := range strings.Split(l.optional(key, def), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (l *loader) err() error {
	if len(l.problems) == 0 {
		return nil
	}
	return &ValidationError{Problems: l.problems}
}
