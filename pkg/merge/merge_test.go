package merge

import (
	"reflect"
	"strings"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/odvcencio/gitlet/pkg/index"
	"github.com/odvcencio/gitlet/pkg/object"
)

func newStore(t *testing.T) *object.Store {
	t.Helper()
	return object.NewStore(memfs.New(), nil)
}

func buildTree(t *testing.T, s *object.Store, files map[string]string) object.Hash {
	t.Helper()
	idx := index.New()
	for p, content := range files {
		h, err := s.WriteBlob(&object.Blob{Data: []byte(content)})
		if err != nil {
			t.Fatalf("WriteBlob: %v", err)
		}
		idx.Add(p, h, "")
	}
	h, err := idx.WriteTree(s)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	return h
}

func readFiles(t *testing.T, s *object.Store, tree object.Hash) map[string]string {
	t.Helper()
	entries, err := index.Flatten(s, tree)
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	out := make(map[string]string)
	for _, e := range entries {
		b, err := s.ReadBlob(e.BlobHash)
		if err != nil {
			t.Fatalf("ReadBlob: %v", err)
		}
		out[e.Path] = string(b.Data)
	}
	return out
}

func TestTreesOnlyOursChanged(t *testing.T) {
	s := newStore(t)
	base := buildTree(t, s, map[string]string{"a.txt": "a\n", "b.txt": "b\n"})
	ours := buildTree(t, s, map[string]string{"a.txt": "A\n", "c.txt": "c\n"})

	res, err := Trees(s, base, ours, base, Options{})
	if err != nil {
		t.Fatalf("Trees: %v", err)
	}
	if len(res.Conflicts) != 0 {
		t.Fatalf("conflicts = %v", res.ConflictedPaths())
	}
	if res.TreeHash != ours {
		t.Fatalf("merged tree = %s, want ours %s", res.TreeHash, ours)
	}
}

func TestTreesCleanBothSides(t *testing.T) {
	s := newStore(t)
	base := buildTree(t, s, map[string]string{"shared.txt": "s\n", "gone.txt": "g\n", "both.txt": "x\n"})
	ours := buildTree(t, s, map[string]string{"shared.txt": "s\n", "gone.txt": "g\n", "both.txt": "y\n", "ours.txt": "o\n"})
	theirs := buildTree(t, s, map[string]string{"shared.txt": "s\n", "both.txt": "y\n", "dir/theirs.txt": "t\n"})

	res, err := Trees(s, base, ours, theirs, Options{})
	if err != nil {
		t.Fatalf("Trees: %v", err)
	}
	if len(res.Conflicts) != 0 {
		t.Fatalf("conflicts = %v", res.ConflictedPaths())
	}
	want := map[string]string{
		"shared.txt":     "s\n",
		"both.txt":       "y\n",
		"ours.txt":       "o\n",
		"dir/theirs.txt": "t\n",
	}
	if got := readFiles(t, s, res.TreeHash); !reflect.DeepEqual(got, want) {
		t.Fatalf("merged files = %v, want %v", got, want)
	}
}

func TestTreesContentConflict(t *testing.T) {
	s := newStore(t)
	base := buildTree(t, s, map[string]string{"f.txt": "one\ntwo\nthree\n"})
	ours := buildTree(t, s, map[string]string{"f.txt": "one\nOURS\nthree\n"})
	theirs := buildTree(t, s, map[string]string{"f.txt": "one\nTHEIRS\nthree\n"})

	res, err := Trees(s, base, ours, theirs, Options{})
	if err != nil {
		t.Fatalf("Trees: %v", err)
	}
	if got := res.ConflictedPaths(); !reflect.DeepEqual(got, []string{"f.txt"}) {
		t.Fatalf("ConflictedPaths = %v", got)
	}
	if res.TreeHash != "" {
		t.Fatal("TreeHash should be empty when conflicts remain")
	}

	c := res.Conflicts[0]
	if c.Base == nil || c.Ours == nil || c.Theirs == nil {
		t.Fatalf("conflict sides = %+v", c)
	}
	want := "one\n<<<<<<< ours\nOURS\n=======\nTHEIRS\n>>>>>>> theirs\nthree\n"
	if string(c.Content) != want {
		t.Fatalf("content =\n%s\nwant =\n%s", c.Content, want)
	}

	idx := res.Index()
	for _, st := range []index.Stage{index.StageBase, index.StageOurs, index.StageTheirs} {
		if _, ok := idx.Get("f.txt", st); !ok {
			t.Errorf("missing stage %d", st)
		}
	}
	if _, ok := idx.Get("f.txt", index.StageNormal); ok {
		t.Error("conflicted path has a stage-0 entry")
	}
}

func TestTreesNonOverlappingEditsStillConflict(t *testing.T) {
	s := newStore(t)
	base := buildTree(t, s, map[string]string{"f.txt": "a\nb\nc\nd\ne\n"})
	ours := buildTree(t, s, map[string]string{"f.txt": "A\nb\nc\nd\ne\n"})
	theirs := buildTree(t, s, map[string]string{"f.txt": "a\nb\nc\nd\nE\n"})

	res, err := Trees(s, base, ours, theirs, Options{})
	if err != nil {
		t.Fatalf("Trees: %v", err)
	}
	if len(res.Conflicts) != 1 {
		t.Fatalf("expected a path-level conflict, got %v", res.ConflictedPaths())
	}
	content := string(res.Conflicts[0].Content)
	if !strings.HasPrefix(content, "<<<<<<< ours\nA\nb\n") || !strings.HasSuffix(content, "d\nE\n>>>>>>> theirs\n") {
		t.Fatalf("expected whole-file markers, got:\n%s", content)
	}
}

func TestTreesAddAddConflict(t *testing.T) {
	s := newStore(t)
	ours := buildTree(t, s, map[string]string{"new.txt": "mine\n"})
	theirs := buildTree(t, s, map[string]string{"new.txt": "yours\n"})

	res, err := Trees(s, "", ours, theirs, Options{})
	if err != nil {
		t.Fatalf("Trees: %v", err)
	}
	if len(res.Conflicts) != 1 {
		t.Fatalf("conflicts = %v", res.ConflictedPaths())
	}
	c := res.Conflicts[0]
	if c.Base != nil {
		t.Fatal("add/add conflict should have no base side")
	}
	idx := res.Index()
	if _, ok := idx.Get("new.txt", index.StageBase); ok {
		t.Fatal("stage 1 should be omitted when absent from base")
	}
}

func TestTreesAddAddIdentical(t *testing.T) {
	s := newStore(t)
	ours := buildTree(t, s, map[string]string{"new.txt": "same\n"})
	theirs := buildTree(t, s, map[string]string{"new.txt": "same\n"})

	res, err := Trees(s, "", ours, theirs, Options{})
	if err != nil {
		t.Fatalf("Trees: %v", err)
	}
	if len(res.Conflicts) != 0 || res.TreeHash != ours {
		t.Fatalf("identical additions should merge cleanly: %+v", res)
	}
}

func TestTreesDeleteVsModify(t *testing.T) {
	s := newStore(t)
	base := buildTree(t, s, map[string]string{"f.txt": "v1\n", "keep": "k\n"})
	ours := buildTree(t, s, map[string]string{"keep": "k\n"})
	theirs := buildTree(t, s, map[string]string{"f.txt": "v2\n", "keep": "k\n"})

	res, err := Trees(s, base, ours, theirs, Options{})
	if err != nil {
		t.Fatalf("Trees: %v", err)
	}
	if got := res.ConflictedPaths(); !reflect.DeepEqual(got, []string{"f.txt"}) {
		t.Fatalf("ConflictedPaths = %v", got)
	}
	c := res.Conflicts[0]
	if c.Ours != nil || c.Theirs == nil || c.Base == nil {
		t.Fatalf("conflict sides = %+v", c)
	}
	want := "<<<<<<< ours\n=======\nv2\n>>>>>>> theirs\n"
	if string(c.Content) != want {
		t.Fatalf("content = %q, want %q", c.Content, want)
	}
	idx := res.Index()
	if _, ok := idx.Get("f.txt", index.StageOurs); ok {
		t.Fatal("stage 2 should be omitted when ours deleted the path")
	}
}

func TestTreesStyleOurs(t *testing.T) {
	s := newStore(t)
	base := buildTree(t, s, map[string]string{"f.txt": "base\n"})
	ours := buildTree(t, s, map[string]string{"f.txt": "ours\n"})
	theirs := buildTree(t, s, map[string]string{"f.txt": "theirs\n"})

	res, err := Trees(s, base, ours, theirs, Options{Style: StyleOurs})
	if err != nil {
		t.Fatalf("Trees: %v", err)
	}
	if len(res.Conflicts) != 1 || string(res.Conflicts[0].Content) != "ours\n" {
		t.Fatalf("ours style content = %+v", res.Conflicts)
	}
}

func TestTreesBinaryConflictKeepsOurs(t *testing.T) {
	s := newStore(t)
	base := buildTree(t, s, map[string]string{"img": "\x00base"})
	ours := buildTree(t, s, map[string]string{"img": "\x00ours"})
	theirs := buildTree(t, s, map[string]string{"img": "\x00theirs"})

	res, err := Trees(s, base, ours, theirs, Options{})
	if err != nil {
		t.Fatalf("Trees: %v", err)
	}
	if len(res.Conflicts) != 1 || string(res.Conflicts[0].Content) != "\x00ours" {
		t.Fatalf("binary conflict content = %+v", res.Conflicts)
	}
}

func TestParseStyle(t *testing.T) {
	tests := []struct {
		in      string
		want    Style
		wantErr bool
	}{
		{"", StyleMarkers, false},
		{"markers", StyleMarkers, false},
		{"ours", StyleOurs, false},
		{"theirs", "", true},
	}
	for _, tt := range tests {
		got, err := ParseStyle(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseStyle(%q) = %q, %v", tt.in, got, err)
		}
	}
}
