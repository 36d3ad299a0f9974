package fs

import (
	"bufio"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// IgnoreFileName is the per-directory list of files a bulk upload skips.
const IgnoreFileName = ".cmsignore"

// defaultSkip is applied to every bulk upload.
var defaultSkip = []string{IgnoreFileName, ".DS_Store", "Thumbs.db", "desktop.ini", ".*"}

type skipRule struct {
	glob     string
	anchored bool // matched against the slash path instead of the basename
}

// SkipList decides which files in an upload directory are left out.
// Rules without '/' match the basename; rules with '/' match the path
// relative to the upload root. A leading '/' anchors a bare name to the root.
type SkipList struct {
	rules []skipRule
}

// NewSkipList builds a SkipList from the default rules plus extra.
// Blank lines and '#' comments in extra are ignored.
func NewSkipList(extra ...string) *SkipList {
	l := &SkipList{}
	for _, raw := range append(append([]string{}, defaultSkip...), extra...) {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		l.rules = append(l.rules, skipRule{
			glob:     strings.TrimPrefix(raw, "/"),
			anchored: strings.Contains(raw, "/"),
		})
	}
	return l
}

// Skip reports whether rel, relative to the upload root, is left out.
func (l *SkipList) Skip(rel string) bool {
	slashed := filepath.ToSlash(rel)
	base := path.Base(slashed)
	for _, r := range l.rules {
		target := base
		if r.anchored {
			target = slashed
		}
		if ok, err := path.Match(r.glob, target); err == nil && ok {
			return true
		}
	}
	return false
}

// ReadSkipFile returns the rules in an ignore file, or nil when it does not exist.
func ReadSkipFile(name string) ([]string, error) {
	f, err := os.Open(name)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	defer f.Close()

	var rules []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		rules = append(rules, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return rules, nil
}
