package id

import (
	"strings"

	"github.com/google/uuid"
)

// New returns a time-ordered identifier, optionally prefixed ("run_0190...").
func New(prefix string) string {
	u, err := uuid.NewV7()
	if err != nil {
		u = uuid.New()
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return u.String()
	}
	return prefix + "_" + u.String()
}

// Valid reports whether s looks like an identifier produced by New.
func Valid(s string) bool {
	if i := strings.LastIndexByte(s, '_'); i >= 0 {
		s = s[i+1:]
	}
	_, err := uuid.Parse(s)
	return err == nil
}
