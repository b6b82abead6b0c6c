// Package slug derives filesystem-safe, human-readable directory names from
// post metadata, and creates collision-free directories from them.
package slug

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
	"unicode"
)

const maxSlugLen = 48

var invalidRe = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]+`)

// Derive builds a slug from the first non-empty candidate string, falling back
// to a time-based identifier when none yields usable characters.
func Derive(candidates ...string) string {
	for _, c := range candidates {
		if s := clean(c); s != "" {
			return s
		}
	}
	return fmt.Sprintf("download-%d", time.Now().UnixNano())
}

func clean(s string) string {
	s = invalidRe.ReplaceAllString(s, " ")
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return ' '
		}
		if unicode.IsGraphic(r) {
			return r
		}
		return -1
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	s = strings.Trim(s, ". ")
	if s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) > maxSlugLen {
		s = strings.TrimRight(string(runes[:maxSlugLen]), ". ")
	}
	return s
}

// CreateDir makes a new directory named slug under base, appending a numeric
// suffix until a free name is found. An existing directory is never reused or
// overwritten; creation is exclusive.
func CreateDir(base, slug string) (string, error) {
	if err := os.MkdirAll(base, 0o755); err != nil {
		return "", err
	}
	for i := 0; ; i++ {
		name := slug
		if i > 0 {
			name = fmt.Sprintf("%s-%d", slug, i)
		}
		dir := filepath.Join(base, name)
		err := os.Mkdir(dir, 0o755)
		if err == nil {
			return dir, nil
		}
		if !os.IsExist(err) {
			return "", err
		}
	}
}
