package repo

import (
	"reflect"
	"testing"

	"github.com/odvcencio/gitlet/pkg/index"
	"github.com/odvcencio/gitlet/pkg/object"
)

func stagedPaths(t *testing.T, r *Repo) []string {
	t.Helper()
	idx, err := r.readIndex()
	if err != nil {
		t.Fatalf("readIndex: %v", err)
	}
	return idx.Paths()
}

func TestAddStagesDirectory(t *testing.T) {
	r := newTestRepo(t)
	writeWorkFile(t, r, "src/main.go", "package main\n")
	writeWorkFile(t, r, "src/util/util.go", "package util\n")
	writeWorkFile(t, r, "README", "hi\n")

	mustAdd(t, r, "src")
	want := []string{"src/main.go", "src/util/util.go"}
	if got := stagedPaths(t, r); !reflect.DeepEqual(got, want) {
		t.Fatalf("staged = %v, want %v", got, want)
	}

	idx, _ := r.readIndex()
	e, ok := idx.Get("src/main.go", index.StageNormal)
	if !ok {
		t.Fatal("src/main.go not staged")
	}
	blob, err := r.Store.ReadBlob(e.BlobHash)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(blob.Data) != "package main\n" {
		t.Fatalf("staged blob = %q", blob.Data)
	}
}

func TestAddNoMatch(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.Add("missing.txt")
	e := requireKind(t, err, ErrNoMatchingPath)
	if e.Path != "missing.txt" {
		t.Fatalf("error path = %q", e.Path)
	}
}

func TestAddSkipsIgnored(t *testing.T) {
	r := newTestRepo(t)
	writeWorkFile(t, r, ".gitletignore", "*.log\nbuild/\n")
	writeWorkFile(t, r, "app.log", "noise")
	writeWorkFile(t, r, "build/out", "bin")
	writeWorkFile(t, r, "keep.txt", "keep")

	mustAdd(t, r, ".")
	want := []string{".gitletignore", "keep.txt"}
	if got := stagedPaths(t, r); !reflect.DeepEqual(got, want) {
		t.Fatalf("staged = %v, want %v", got, want)
	}
}

func TestAddUnstagesDeletedFiles(t *testing.T) {
	r := newTestRepo(t)
	writeWorkFile(t, r, "a.txt", "a")
	writeWorkFile(t, r, "b.txt", "b")
	mustAdd(t, r, ".")
	if err := r.Worktree.Remove("b.txt"); err != nil {
		t.Fatal(err)
	}
	mustAdd(t, r, ".")
	if got := stagedPaths(t, r); !reflect.DeepEqual(got, []string{"a.txt"}) {
		t.Fatalf("staged = %v", got)
	}

	if err := r.Worktree.Remove("a.txt"); err != nil {
		t.Fatal(err)
	}
	mustAdd(t, r, "a.txt")
	if got := stagedPaths(t, r); len(got) != 0 {
		t.Fatalf("staged = %v, want none", got)
	}
}

func TestAddFileReplacedByDirectory(t *testing.T) {
	r := newTestRepo(t)
	first := commitFile(t, r, "a", "v1", "file")
	if err := r.Worktree.Remove("a"); err != nil {
		t.Fatal(err)
	}
	writeWorkFile(t, r, "a/b", "v2")
	mustAdd(t, r, "a/b")
	if got := stagedPaths(t, r); !reflect.DeepEqual(got, []string{"a/b"}) {
		t.Fatalf("staged = %v, want [a/b]", got)
	}
	mustCommit(t, r, "dir")

	treeHash, err := r.headTree()
	if err != nil {
		t.Fatalf("headTree: %v", err)
	}
	tr, err := r.Store.ReadTree(treeHash)
	if err != nil {
		t.Fatalf("ReadTree: %v", err)
	}
	if len(tr.Entries) != 1 || tr.Entries[0].Name != "a" || !tr.Entries[0].IsDir() {
		t.Fatalf("root tree = %+v, want a single directory a", tr.Entries)
	}

	// Both histories check out cleanly.
	if _, err := r.Checkout(string(first)); err != nil {
		t.Fatalf("Checkout file commit: %v", err)
	}
	if got := readWorkFile(t, r, "a"); got != "v1" {
		t.Fatalf("a = %q, want v1", got)
	}
	if _, err := r.Checkout("master"); err != nil {
		t.Fatalf("Checkout master: %v", err)
	}
	if got := readWorkFile(t, r, "a/b"); got != "v2" {
		t.Fatalf("a/b = %q, want v2", got)
	}
}

func TestAddDirectoryReplacedByFile(t *testing.T) {
	r := newTestRepo(t)
	writeWorkFile(t, r, "a/b", "x")
	writeWorkFile(t, r, "a/c", "y")
	mustAdd(t, r, ".")
	mustCommit(t, r, "dir")

	for _, p := range []string{"a/b", "a/c"} {
		if err := r.Worktree.Remove(p); err != nil {
			t.Fatal(err)
		}
	}
	writeWorkFile(t, r, "a", "file")
	mustAdd(t, r, "a")
	if got := stagedPaths(t, r); !reflect.DeepEqual(got, []string{"a"}) {
		t.Fatalf("staged = %v, want [a]", got)
	}
	if _, err := r.WriteTree(); err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
}

func TestAddRecordsExecutableMode(t *testing.T) {
	r := newTestRepo(t)
	if err := r.Worktree.WriteFile("run.sh", []byte("#!/bin/sh\n"), object.TreeModeExecutable); err != nil {
		t.Fatal(err)
	}
	mustAdd(t, r, "run.sh")
	idx, _ := r.readIndex()
	e, _ := idx.Get("run.sh", index.StageNormal)
	if e.Mode != object.TreeModeExecutable {
		t.Fatalf("mode = %q, want %q", e.Mode, object.TreeModeExecutable)
	}
}

func TestRemove(t *testing.T) {
	r := newTestRepo(t)
	writeWorkFile(t, r, "a.txt", "a")
	writeWorkFile(t, r, "dir/b.txt", "b")
	writeWorkFile(t, r, "dir/c.txt", "c")
	mustAdd(t, r, ".")
	mustCommit(t, r, "init")

	if _, err := r.Remove("a.txt", RemoveOptions{}); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if r.Worktree.Exists("a.txt") {
		t.Fatal("a.txt still on disk")
	}
	if got := stagedPaths(t, r); !reflect.DeepEqual(got, []string{"dir/b.txt", "dir/c.txt"}) {
		t.Fatalf("staged = %v", got)
	}

	_, err := r.Remove("dir", RemoveOptions{})
	requireKind(t, err, ErrUnsafeRemoval)

	if _, err := r.Remove("dir", RemoveOptions{Recursive: true}); err != nil {
		t.Fatalf("Remove -r: %v", err)
	}
	if r.Worktree.Exists("dir") {
		t.Fatal("dir not pruned")
	}
	if got := stagedPaths(t, r); len(got) != 0 {
		t.Fatalf("staged = %v, want none", got)
	}
}

func TestRemoveRefusesChangedFiles(t *testing.T) {
	r := newTestRepo(t)
	commitFile(t, r, "a.txt", "a", "init")
	writeWorkFile(t, r, "a.txt", "edited")

	_, err := r.Remove("a.txt", RemoveOptions{})
	e := requireKind(t, err, ErrUnsafeRemoval)
	if !reflect.DeepEqual(e.Paths, []string{"a.txt"}) {
		t.Fatalf("paths = %v", e.Paths)
	}
	if readWorkFile(t, r, "a.txt") != "edited" {
		t.Fatal("refused removal touched the file")
	}

	// Staged but uncommitted content counts as a change too.
	writeWorkFile(t, r, "new.txt", "new")
	mustAdd(t, r, "new.txt")
	_, err = r.Remove("new.txt", RemoveOptions{})
	requireKind(t, err, ErrUnsafeRemoval)

	if _, err := r.Remove("a.txt", RemoveOptions{Force: true}); err != nil {
		t.Fatalf("Remove -f: %v", err)
	}
	if r.Worktree.Exists("a.txt") {
		t.Fatal("forced removal left the file")
	}
}

func TestRemoveAlreadyDeletedFile(t *testing.T) {
	r := newTestRepo(t)
	writeWorkFile(t, r, "keep.txt", "keep")
	commitFile(t, r, "a.txt", "a", "init")
	if err := r.Worktree.Remove("a.txt"); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Remove("a.txt", RemoveOptions{}); err != nil {
		t.Fatalf("Remove of deleted file: %v", err)
	}
	if got := stagedPaths(t, r); len(got) != 0 {
		t.Fatalf("staged = %v, want none", got)
	}
	if !r.Worktree.Exists("keep.txt") {
		t.Fatal("untracked keep.txt disappeared")
	}
}

func TestRemoveNoMatch(t *testing.T) {
	r := newTestRepo(t)
	writeWorkFile(t, r, "untracked.txt", "x")
	_, err := r.Remove("untracked.txt", RemoveOptions{})
	requireKind(t, err, ErrNoMatchingPath)
}

func TestReset(t *testing.T) {
	r := newTestRepo(t)
	commitFile(t, r, "a.txt", "v1", "init")
	writeWorkFile(t, r, "a.txt", "v2")
	writeWorkFile(t, r, "b.txt", "new")
	mustAdd(t, r, ".")

	if _, err := r.Reset("."); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	idx, _ := r.readIndex()
	if idx.Has("b.txt") {
		t.Fatal("b.txt still staged")
	}
	e, _ := idx.Get("a.txt", index.StageNormal)
	blob, err := r.Store.ReadBlob(e.BlobHash)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(blob.Data) != "v1" {
		t.Fatalf("a.txt staged = %q, want v1", blob.Data)
	}
	if readWorkFile(t, r, "a.txt") != "v2" {
		t.Fatal("reset touched the working copy")
	}

	_, err = r.Reset("nothing-here")
	requireKind(t, err, ErrNoMatchingPath)
}

func TestResetRestoresRemovedPath(t *testing.T) {
	r := newTestRepo(t)
	commitFile(t, r, "a.txt", "v1", "init")
	if _, err := r.Remove("a.txt", RemoveOptions{}); err != nil {
		t.Fatal(err)
	}
	if _, err := r.Reset("a.txt"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got := stagedPaths(t, r); !reflect.DeepEqual(got, []string{"a.txt"}) {
		t.Fatalf("staged = %v", got)
	}
}

func TestWriteTreeMatchesCommit(t *testing.T) {
	r := newTestRepo(t)
	h := commitFile(t, r, "dir/a.txt", "a", "init")
	c, err := r.Store.ReadCommit(h)
	if err != nil {
		t.Fatal(err)
	}
	tree, err := r.WriteTree()
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}
	if object.Hash(tree) != c.TreeHash {
		t.Fatalf("WriteTree = %s, want %s", tree, c.TreeHash)
	}

	empty := newTestRepo(t)
	tree, err = empty.WriteTree()
	if err != nil || object.Hash(tree) != object.EmptyTreeHash {
		t.Fatalf("empty WriteTree = %s, %v", tree, err)
	}
}
