package worktree

import (
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
)

func loadIgnore(t *testing.T, content string) *Ignore {
	t.Helper()
	fs := memfs.New()
	writeIgnoreFile(t, fs, content)
	ig, err := LoadIgnore(fs)
	if err != nil {
		t.Fatalf("LoadIgnore: %v", err)
	}
	return ig
}

func writeIgnoreFile(t *testing.T, fs billy.Filesystem, content string) {
	t.Helper()
	if err := util.WriteFile(fs, IgnoreFile, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", IgnoreFile, err)
	}
}

func TestIgnore_MetaDirAlwaysIgnored(t *testing.T) {
	ig, err := LoadIgnore(memfs.New())
	if err != nil {
		t.Fatalf("LoadIgnore: %v", err)
	}
	for _, p := range []string{".gitlet", ".gitlet/HEAD", ".gitlet/objects/abc"} {
		if !ig.Match(p, false) {
			t.Errorf("expected %s to be ignored", p)
		}
	}
	if ig.Match("main.go", false) || ig.Match("src/util.go", false) {
		t.Error("regular files should not be ignored without an ignore file")
	}
}

func TestIgnore_SimpleGlobPattern(t *testing.T) {
	ig := loadIgnore(t, "*.log\n")
	if !ig.Match("debug.log", false) {
		t.Error("expected debug.log to be ignored")
	}
	if !ig.Match("logs/deep/trace.log", false) {
		t.Error("unanchored pattern should match in subdirectories")
	}
	if ig.Match("debug.txt", false) {
		t.Error("expected debug.txt to NOT be ignored")
	}
}

func TestIgnore_DirectoryPattern(t *testing.T) {
	ig := loadIgnore(t, "build/\n")
	if !ig.Match("build", true) {
		t.Error("expected build/ to be ignored")
	}
	if !ig.Match("build/output.o", false) {
		t.Error("expected build/output.o to be ignored")
	}
	if !ig.Match("build/sub/file.txt", false) {
		t.Error("expected build/sub/file.txt to be ignored")
	}
	if ig.Match("build", false) {
		t.Error("directory-only pattern should not match a file")
	}
}

func TestIgnore_NegationPattern(t *testing.T) {
	ig := loadIgnore(t, "*.log\n!important.log\n")
	if !ig.Match("debug.log", false) {
		t.Error("expected debug.log to be ignored")
	}
	if ig.Match("important.log", false) {
		t.Error("expected important.log to NOT be ignored (negation)")
	}
}

func TestIgnore_CommentLines(t *testing.T) {
	ig := loadIgnore(t, "# this is a comment\n*.log\n\n# another comment\n")
	if !ig.Match("debug.log", false) {
		t.Error("expected debug.log to be ignored")
	}
	if ig.Match("# this is a comment", false) {
		t.Error("expected comment text to NOT match as a pattern")
	}
}

func TestIgnore_AnchoredAndGlobstar(t *testing.T) {
	ig := loadIgnore(t, "docs/*.tmp\n/top.txt\n**/cache/**\nfile?.bin\n")

	tests := []struct {
		path string
		want bool
	}{
		{"docs/a.tmp", true},
		{"other/docs/a.tmp", false},
		{"docs/sub/a.tmp", false},
		{"top.txt", true},
		{"sub/top.txt", false},
		{"cache/x", true},
		{"a/b/cache/x/y", true},
		{"file1.bin", true},
		{"file12.bin", false},
	}
	for _, tt := range tests {
		if got := ig.Match(tt.path, false); got != tt.want {
			t.Errorf("Match(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
