// Package artifacts derives file paths for screenshots, traces and videos,
// owns the on-disk directory layout and keeps a sqlite ledger of every
// artifact produced.
package artifacts

import (
	"path/filepath"
	"strings"
	"time"
)

// File extensions for each artifact kind.
const (
	ExtScreenshot = ".png"
	ExtTrace      = ".zip"
	ExtVideo      = ".mjpeg"
)

// Allocator derives collision-resistant artifact paths. Uniqueness comes
// from timestamp granularity only: two unnamed allocations within the same
// millisecond and prefix collide.
type Allocator struct {
	now func() time.Time
}

// NewAllocator returns an allocator using the wall clock.
func NewAllocator() *Allocator {
	return &Allocator{now: time.Now}
}

// NewAllocatorWithClock returns an allocator with an injected clock.
func NewAllocatorWithClock(now func() time.Time) *Allocator {
	return &Allocator{now: now}
}

// Path joins dir with a sanitized base name and ext. An empty base name is
// replaced by prefix + "-" + Stamp().
func (a *Allocator) Path(dir, base, ext, prefix string) string {
	name := Sanitize(strings.TrimSpace(base))
	if name == "" {
		name = Sanitize(prefix + "-" + a.Stamp())
	}
	return filepath.Join(dir, name+normalizeExt(ext))
}

// Stamp returns an ISO-8601 UTC timestamp with millisecond precision and
// the characters that are unsafe in file names (':' and '.') replaced by
// '-', e.g. 2026-10-14T09-30-00-123Z.
func (a *Allocator) Stamp() string {
	ts := a.now().UTC().Format("2006-01-02T15:04:05.000Z")
	return strings.NewReplacer(":", "-", ".", "-").Replace(ts)
}

// Sanitize maps every rune outside [A-Za-z0-9_.-] to '_'.
func Sanitize(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if isSafe(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// SanitizeDetail makes a free-form failure detail (usually a selector) safe
// for a file name: every non-alphanumeric rune becomes '_' and the result is
// capped at max runes.
func SanitizeDetail(detail string, max int) string {
	var b strings.Builder
	n := 0
	for _, r := range detail {
		if n >= max {
			break
		}
		if isAlnum(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
		n++
	}
	return b.String()
}

func normalizeExt(ext string) string {
	ext = strings.TrimLeft(strings.TrimSpace(ext), ".")
	if ext == "" {
		return ""
	}
	return "." + Sanitize(ext)
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
}

func isSafe(r rune) bool {
	return isAlnum(r) || r == '_' || r == '-' || r == '.'
}
