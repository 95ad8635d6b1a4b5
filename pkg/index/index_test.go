package index

import (
	"reflect"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/odvcencio/gitlet/pkg/object"
)

func newStore(t *testing.T) *object.Store {
	t.Helper()
	return object.NewStore(memfs.New(), nil)
}

func writeBlob(t *testing.T, s *object.Store, content string) object.Hash {
	t.Helper()
	h, err := s.WriteBlob(&object.Blob{Data: []byte(content)})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	return h
}

func TestReadMissingIsEmpty(t *testing.T) {
	idx, err := Read(memfs.New())
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if idx.Len() != 0 {
		t.Fatalf("Len = %d, want 0", idx.Len())
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	fs := memfs.New()
	s := newStore(t)
	idx := New()
	idx.Add("b.txt", writeBlob(t, s, "b"), object.TreeModeFile)
	idx.Add("bin/run", writeBlob(t, s, "#!/bin/sh"), object.TreeModeExecutable)
	idx.SetConflict("c.txt",
		&Entry{BlobHash: writeBlob(t, s, "base")},
		&Entry{BlobHash: writeBlob(t, s, "ours")},
		nil,
	)

	if err := idx.Write(fs); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(fs)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(got.Entries(), idx.Entries()) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got.Entries(), idx.Entries())
	}

	// No temp files are left behind.
	infos, err := fs.ReadDir(".")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(infos) != 1 || infos[0].Name() != FileName {
		var names []string
		for _, fi := range infos {
			names = append(names, fi.Name())
		}
		t.Fatalf("metadata dir = %v, want [%s]", names, FileName)
	}
}

func TestAddResolvesConflict(t *testing.T) {
	idx := New()
	idx.SetConflict("f", &Entry{BlobHash: "b"}, &Entry{BlobHash: "o"}, &Entry{BlobHash: "t"})
	if got := idx.ConflictedPaths(); !reflect.DeepEqual(got, []string{"f"}) {
		t.Fatalf("ConflictedPaths = %v", got)
	}
	if _, ok := idx.Get("f", StageNormal); ok {
		t.Fatal("conflicted path should have no stage-0 entry")
	}
	for _, st := range []Stage{StageBase, StageOurs, StageTheirs} {
		if _, ok := idx.Get("f", st); !ok {
			t.Fatalf("missing stage %d", st)
		}
	}

	idx.Add("f", "resolved", "")
	if got := idx.ConflictedPaths(); len(got) != 0 {
		t.Fatalf("ConflictedPaths after Add = %v", got)
	}
	e, ok := idx.Get("f", StageNormal)
	if !ok || e.BlobHash != "resolved" || e.Mode != object.TreeModeFile {
		t.Fatalf("stage-0 entry = %+v, %v", e, ok)
	}
	if idx.Len() != 1 {
		t.Fatalf("Len = %d, want 1", idx.Len())
	}
}

func TestSetConflictOmitsAbsentSides(t *testing.T) {
	idx := New()
	idx.Add("f", "x", "")
	idx.SetConflict("f", nil, &Entry{BlobHash: "o"}, &Entry{BlobHash: "t"})

	var stages []Stage
	for _, e := range idx.Entries() {
		stages = append(stages, e.Stage)
	}
	if !reflect.DeepEqual(stages, []Stage{StageOurs, StageTheirs}) {
		t.Fatalf("stages = %v, want [2 3]", stages)
	}
}

func TestMatchingFiles(t *testing.T) {
	idx := New()
	for _, p := range []string{"a.txt", "src/main.go", "src/lib/util.go", "srcx/other.go"} {
		idx.Add(p, "h", "")
	}

	tests := []struct {
		prefix string
		want   []string
	}{
		{"", []string{"a.txt", "src/lib/util.go", "src/main.go", "srcx/other.go"}},
		{".", []string{"a.txt", "src/lib/util.go", "src/main.go", "srcx/other.go"}},
		{"src", []string{"src/lib/util.go", "src/main.go"}},
		{"src/", []string{"src/lib/util.go", "src/main.go"}},
		{"src/main.go", []string{"src/main.go"}},
		{"missing", []string{}},
	}
	for _, tt := range tests {
		got := idx.MatchingFiles(tt.prefix)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("MatchingFiles(%q) = %v, want %v", tt.prefix, got, tt.want)
		}
	}
}

func TestWriteTreeEmptyIndex(t *testing.T) {
	s := newStore(t)
	h, err := New().WriteTree(s)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	if h != object.EmptyTreeHash {
		t.Fatalf("WriteTree(empty) = %s, want %s", h, object.EmptyTreeHash)
	}
}

func TestWriteTreeOrderIndependent(t *testing.T) {
	s := newStore(t)
	paths := []string{"z.txt", "a/b/c.txt", "a/d.txt", "a.txt", "a-b/e.txt", "m/n/o/p.txt"}
	blobs := make(map[string]object.Hash)
	for _, p := range paths {
		blobs[p] = writeBlob(t, s, "content of "+p)
	}

	forward := New()
	for _, p := range paths {
		forward.Add(p, blobs[p], "")
	}
	backward := New()
	for i := len(paths) - 1; i >= 0; i-- {
		backward.Add(paths[i], blobs[paths[i]], "")
	}

	h1, err := forward.WriteTree(s)
	if err != nil {
		t.Fatalf("WriteTree forward: %v", err)
	}
	h2, err := backward.WriteTree(s)
	if err != nil {
		t.Fatalf("WriteTree backward: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("tree hash depends on insertion order: %s vs %s", h1, h2)
	}
}

func TestWriteTreeIgnoresConflictStages(t *testing.T) {
	s := newStore(t)
	idx := New()
	idx.Add("ok.txt", writeBlob(t, s, "ok"), "")
	withConflict := New()
	withConflict.Add("ok.txt", writeBlob(t, s, "ok"), "")
	withConflict.SetConflict("bad.txt", nil, &Entry{BlobHash: writeBlob(t, s, "o")}, &Entry{BlobHash: writeBlob(t, s, "t")})

	h1, err := idx.WriteTree(s)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	h2, err := withConflict.WriteTree(s)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	if h1 != h2 {
		t.Fatal("conflict stages leaked into the tree")
	}
}

func TestFlattenRoundTrip(t *testing.T) {
	s := newStore(t)
	idx := New()
	idx.Add("README", writeBlob(t, s, "readme"), "")
	idx.Add("cmd/tool/main.go", writeBlob(t, s, "package main"), "")
	idx.Add("scripts/build.sh", writeBlob(t, s, "#!/bin/sh"), object.TreeModeExecutable)

	h, err := idx.WriteTree(s)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}

	root, err := s.ReadTree(h)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	var names []string
	for _, e := range root.Entries {
		names = append(names, e.Name)
	}
	if !reflect.DeepEqual(names, []string{"README", "cmd", "scripts"}) {
		t.Fatalf("root entries = %v", names)
	}

	back, err := FromTree(s, h)
	if err != nil {
		t.Fatalf("FromTree: %v", err)
	}
	if !reflect.DeepEqual(back.Entries(), idx.Entries()) {
		t.Fatalf("FromTree mismatch:\n got %+v\nwant %+v", back.Entries(), idx.Entries())
	}
}

func TestWriteTreeSharedSubtrees(t *testing.T) {
	s := newStore(t)
	blob := writeBlob(t, s, "same")
	idx := New()
	idx.Add("left/x.txt", blob, "")
	idx.Add("right/x.txt", blob, "")

	h, err := idx.WriteTree(s)
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	root, err := s.ReadTree(h)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(root.Entries) != 2 || root.Entries[0].Hash != root.Entries[1].Hash {
		t.Fatalf("identical directories should share one tree hash: %+v", root.Entries)
	}
}

func TestFlattenEmptyHash(t *testing.T) {
	entries, err := Flatten(newStore(t), "")
	if err != nil {
		t.Fatalf("Flatten: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("Flatten(\"\") = %v, want empty", entries)
	}
}

func TestAddDropsParentFile(t *testing.T) {
	idx := New()
	idx.Add("a", "h1", object.TreeModeFile)
	idx.Add("a.txt", "h2", object.TreeModeFile)
	idx.Add("a/b/c", "h3", object.TreeModeFile)
	if got := idx.Paths(); !reflect.DeepEqual(got, []string{"a.txt", "a/b/c"}) {
		t.Fatalf("Paths = %v", got)
	}
}

func TestRemoveShadowed(t *testing.T) {
	idx := New()
	idx.Add("a/b", "h1", object.TreeModeFile)
	idx.Add("a/c/d", "h2", object.TreeModeFile)
	idx.Add("ab", "h3", object.TreeModeFile)
	idx.Add("a", "h4", object.TreeModeFile)
	idx.RemoveShadowed([]string{"a"})
	if got := idx.Paths(); !reflect.DeepEqual(got, []string{"a", "ab"}) {
		t.Fatalf("Paths = %v", got)
	}
}

func TestWriteTreeRejectsFileAndDirectory(t *testing.T) {
	fs := memfs.New()
	s := newStore(t)
	h := writeBlob(t, s, "x")
	// An index written by hand can still hold both forms of a path.
	data := `{"entries":[` +
		`{"path":"a","stage":0,"blob_hash":"` + string(h) + `","mode":"100644"},` +
		`{"path":"a/b","stage":0,"blob_hash":"` + string(h) + `","mode":"100644"}]}`
	f, err := fs.Create(FileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte(data)); err != nil {
		t.Fatal(err)
	}
	f.Close()

	idx, err := Read(fs)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if _, err := idx.WriteTree(s); err == nil {
		t.Fatal("WriteTree accepted a path staged as both a file and a directory")
	}
}
