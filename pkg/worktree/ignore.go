package worktree

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"strings"

	"github.com/go-git/go-billy/v5"
)

// IgnoreFile is the per-repository ignore file at the working tree root.
const IgnoreFile = ".gitletignore"

// MetaDir is the metadata directory name; it is always ignored.
const MetaDir = ".gitlet"

// Ignore decides whether repository-relative paths are ignored.
type Ignore struct {
	patterns []ignorePattern
}

type ignorePattern struct {
	pattern  string
	negated  bool
	dirOnly  bool
	anchored bool // pattern contains a slash, so match against full path
	regex    *regexp.Regexp
}

// LoadIgnore reads IgnoreFile from the root of fs. A missing file yields a
// matcher that only ignores the metadata directory.
func LoadIgnore(fs billy.Filesystem) (*Ignore, error) {
	ig := NewIgnore()
	f, err := fs.Open(IgnoreFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ig, nil
		}
		return nil, fmt.Errorf("load ignore: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		ig.AddPattern(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("load ignore: %w", err)
	}
	return ig, nil
}

// NewIgnore returns a matcher with only the built-in metadata rule.
func NewIgnore() *Ignore {
	return &Ignore{patterns: []ignorePattern{{pattern: MetaDir}}}
}

// AddPattern appends one ignore-file line. Blank lines and comments are
// skipped.
func (ig *Ignore) AddPattern(line string) {
	if p := parseLine(line); p != nil {
		ig.patterns = append(ig.patterns, *p)
	}
}

func parseLine(line string) *ignorePattern {
	line = strings.TrimRight(line, " \t\r")
	if line == "" || strings.HasPrefix(line, "#") {
		return nil
	}

	p := &ignorePattern{}
	if strings.HasPrefix(line, "!") {
		p.negated = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimRight(line, "/")
	}
	// A leading slash only anchors.
	if strings.HasPrefix(line, "/") {
		line = strings.TrimLeft(line, "/")
		p.anchored = true
	}
	if line == "" {
		return nil
	}
	if strings.Contains(line, "/") {
		p.anchored = true
	}
	p.pattern = line
	if strings.Contains(line, "**") {
		if re, err := regexp.Compile(globToRegex(line)); err == nil {
			p.regex = re
		}
	}
	return p
}

// Match reports whether the forward-slash relative path p is ignored.
// isDir says whether p names a directory. A path is also ignored when one
// of its parent directories is. Last matching pattern wins.
func (ig *Ignore) Match(p string, isDir bool) bool {
	p = strings.Trim(path.Clean(p), "/")
	if p == "." || p == "" {
		return false
	}

	// Walk the ancestors first: an ignored directory hides its contents.
	segs := strings.Split(p, "/")
	for i := 1; i < len(segs); i++ {
		if ig.matchOne(strings.Join(segs[:i], "/"), true) {
			return true
		}
	}
	return ig.matchOne(p, isDir)
}

func (ig *Ignore) matchOne(p string, isDir bool) bool {
	base := path.Base(p)
	ignored := false
	for i := range ig.patterns {
		pat := &ig.patterns[i]
		if pat.dirOnly && !isDir {
			continue
		}
		target := base
		if pat.anchored {
			target = p
		}
		if pat.match(target) {
			ignored = !pat.negated
		}
	}
	return ignored
}

func (p *ignorePattern) match(target string) bool {
	if p.regex != nil {
		return p.regex.MatchString(target)
	}
	matched, _ := path.Match(p.pattern, target)
	return matched
}

func globToRegex(pattern string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(pattern); i++ {
		ch := pattern[i]
		switch {
		case ch == '*' && strings.HasPrefix(pattern[i:], "**/"):
			// Zero or more whole directories.
			b.WriteString("(?:.*/)?")
			i += 2
		case ch == '*' && strings.HasPrefix(pattern[i:], "**"):
			b.WriteString(".*")
			i++
		case ch == '*':
			b.WriteString("[^/]*")
		case ch == '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(ch)))
		}
	}
	b.WriteString("$")
	return b.String()
}
