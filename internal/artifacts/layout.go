package artifacts

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Kind identifies an artifact type.
type Kind string

const (
	KindScreenshot Kind = "screenshot"
	KindTrace      Kind = "trace"
	KindVideo      Kind = "video"
)

// Layout is the set of artifact directories.
type Layout struct {
	Screenshots string
	Traces      string
	Videos      string
}

// EnsureLayout creates every directory of the layout if absent.
func EnsureLayout(l Layout) error {
	for _, dir := range []string{l.Screenshots, l.Traces, l.Videos} {
		if dir == "" {
			return fmt.Errorf("artifact directory not configured")
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create artifact directory %s: %w", dir, err)
		}
	}
	return nil
}

// Dir returns the directory for an artifact kind.
func (l Layout) Dir(kind Kind) string {
	switch kind {
	case KindScreenshot:
		return l.Screenshots
	case KindTrace:
		return l.Traces
	case KindVideo:
		return l.Videos
	}
	return ""
}

// Contains reports whether path lies inside the directory for kind.
func (l Layout) Contains(kind Kind, path string) bool {
	dir := l.Dir(kind)
	if dir == "" || path == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..")
}
