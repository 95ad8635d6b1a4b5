package repo

import (
	"errors"
	"strings"
	"testing"

	"github.com/odvcencio/gitlet/pkg/object"
)

func TestCommitResult(t *testing.T) {
	r := newTestRepo(t)
	writeWorkFile(t, r, "a.txt", "hi")
	mustAdd(t, r, "a.txt")

	out, err := r.Commit(CommitOptions{Message: "init\n\nlonger body"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	h, _ := r.headHash()
	if want := "[master " + h.Short() + "] init"; out != want {
		t.Fatalf("Commit = %q, want %q", out, want)
	}

	c, err := r.Store.ReadCommit(h)
	if err != nil {
		t.Fatal(err)
	}
	if len(c.Parents) != 0 {
		t.Fatalf("root commit parents = %v", c.Parents)
	}
	if c.Author != "Test User <test@example.com>" {
		t.Fatalf("author = %q", c.Author)
	}
	if c.Timestamp != testEpoch.Unix() {
		t.Fatalf("timestamp = %d", c.Timestamp)
	}
	if c.Message != "init\n\nlonger body" {
		t.Fatalf("message = %q", c.Message)
	}

	second := commitFile(t, r, "a.txt", "bye", "second")
	c2, _ := r.Store.ReadCommit(second)
	if len(c2.Parents) != 1 || c2.Parents[0] != h {
		t.Fatalf("second parents = %v, want [%s]", c2.Parents, h)
	}
}

func TestCommitNothingToCommit(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.Commit(CommitOptions{Message: "empty"})
	requireKind(t, err, ErrNothingToCommit)

	commitFile(t, r, "a.txt", "hi", "init")
	_, err = r.Commit(CommitOptions{Message: "again"})
	requireKind(t, err, ErrNothingToCommit)

	// Rewriting identical content stages the same blob.
	writeWorkFile(t, r, "a.txt", "hi")
	mustAdd(t, r, "a.txt")
	_, err = r.Commit(CommitOptions{Message: "same"})
	requireKind(t, err, ErrNothingToCommit)
}

func TestCommitRequiresMessage(t *testing.T) {
	r := newTestRepo(t)
	writeWorkFile(t, r, "a.txt", "hi")
	mustAdd(t, r, "a.txt")
	_, err := r.Commit(CommitOptions{Message: "  \n"})
	requireKind(t, err, ErrInvalidArgument)
	_, err = r.Commit(CommitOptions{Message: "ok", Author: "bad\nauthor"})
	requireKind(t, err, ErrInvalidArgument)
}

func TestCommitDetachedHead(t *testing.T) {
	r := newTestRepo(t)
	first := commitFile(t, r, "a.txt", "one", "first")
	commitFile(t, r, "a.txt", "two", "second")
	if _, err := r.Checkout(string(first)); err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	writeWorkFile(t, r, "b.txt", "detached work")
	mustAdd(t, r, "b.txt")
	out, err := r.Commit(CommitOptions{Message: "on detached"})
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if !strings.HasPrefix(out, "[detached HEAD ") {
		t.Fatalf("Commit = %q", out)
	}
	h, _ := r.headHash()
	c, _ := r.Store.ReadCommit(h)
	if len(c.Parents) != 1 || c.Parents[0] != first {
		t.Fatalf("parents = %v, want [%s]", c.Parents, first)
	}
	if branch, _ := r.CurrentBranch(); branch != "" {
		t.Fatalf("commit attached HEAD to %q", branch)
	}
}

func TestCommitSigner(t *testing.T) {
	r := newTestRepo(t)
	writeWorkFile(t, r, "a.txt", "hi")
	mustAdd(t, r, "a.txt")

	var signed []byte
	signer := func(payload []byte) (string, error) {
		signed = payload
		return "sig-value", nil
	}
	if _, err := r.Commit(CommitOptions{Message: "signed", Signer: signer}); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	h, _ := r.headHash()
	c, _ := r.Store.ReadCommit(h)
	if c.Signature != "sig-value" {
		t.Fatalf("signature = %q", c.Signature)
	}
	unsigned := *c
	unsigned.Signature = ""
	if string(signed) != string(object.CommitSigningPayload(&unsigned)) {
		t.Fatal("signer did not receive the canonical payload")
	}

	failing := func([]byte) (string, error) { return "", errors.New("agent gone") }
	writeWorkFile(t, r, "a.txt", "changed")
	mustAdd(t, r, "a.txt")
	if _, err := r.Commit(CommitOptions{Message: "x", Signer: failing}); err == nil {
		t.Fatal("expected signer failure")
	}
	if after, _ := r.headHash(); after != h {
		t.Fatal("HEAD moved despite signing failure")
	}
}

func TestLog(t *testing.T) {
	r := newTestRepo(t)
	first := commitFile(t, r, "a.txt", "one", "first")
	second := commitFile(t, r, "a.txt", "two", "second\nbody")

	out, err := r.Log(LogOptions{})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}
	want := "commit " + string(second) + "\n" +
		"Author: Test User <test@example.com>\n" +
		"Date:   Tue Nov 14 22:13:20 2023 +0000\n\n" +
		"    second\n    body\n" +
		"\n" +
		"commit " + string(first) + "\n" +
		"Author: Test User <test@example.com>\n" +
		"Date:   Tue Nov 14 22:13:20 2023 +0000\n\n" +
		"    first\n"
	if out != want {
		t.Fatalf("Log =\n%s\nwant\n%s", out, want)
	}

	out, err = r.Log(LogOptions{Limit: 1})
	if err != nil || strings.Count(out, "commit ") != 1 {
		t.Fatalf("Log limit 1 = %q, %v", out, err)
	}
	_, err = r.Log(LogOptions{Limit: -1})
	requireKind(t, err, ErrInvalidArgument)
}

func TestLogUnborn(t *testing.T) {
	r := newTestRepo(t)
	_, err := r.Log(LogOptions{})
	requireKind(t, err, ErrRefNotFound)
}

func TestReflogRecordsMoves(t *testing.T) {
	r := newTestRepo(t)
	first := commitFile(t, r, "a.txt", "one", "first")
	second := commitFile(t, r, "a.txt", "two", "second")

	entries, err := r.ReadReflog("master", 0)
	if err != nil {
		t.Fatalf("ReadReflog: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].OldHash != first || entries[0].NewHash != second || entries[0].Reason != "commit: second" {
		t.Fatalf("newest entry = %+v", entries[0])
	}
	if entries[1].OldHash != "" || entries[1].NewHash != first {
		t.Fatalf("oldest entry = %+v", entries[1])
	}
	if entries[0].Timestamp != testEpoch.Unix() {
		t.Fatalf("timestamp = %d", entries[0].Timestamp)
	}

	out, err := r.Reflog("", 1)
	if err != nil {
		t.Fatalf("Reflog: %v", err)
	}
	if want := second.Short() + " HEAD@{0}: commit: second\n"; out != want {
		t.Fatalf("Reflog = %q, want %q", out, want)
	}
	if out, _ := r.Reflog("nope", 0); out != "" {
		t.Fatalf("Reflog(nope) = %q", out)
	}
}

func TestReflogLineCodec(t *testing.T) {
	e := ReflogEntry{Ref: "refs/heads/x", NewHash: "abc", Timestamp: 42, Reason: "branch:\ncreated"}
	line := e.encode()
	if want := zeroHash + " abc 42 branch: created\n"; line != want {
		t.Fatalf("encode = %q, want %q", line, want)
	}
	got, ok := decodeReflogLine("refs/heads/x", line)
	if !ok {
		t.Fatal("decodeReflogLine rejected an encoded line")
	}
	if got.OldHash != "" || got.NewHash != "abc" || got.Reason != "branch: created" || got.Target() != "abc" {
		t.Fatalf("decoded = %+v", got)
	}
	for _, bad := range []string{"", "a b c", "a b notanumber reason"} {
		if _, ok := decodeReflogLine("HEAD", bad); ok {
			t.Fatalf("decodeReflogLine(%q) accepted", bad)
		}
	}
	deleted := ReflogEntry{OldHash: "old"}
	if deleted.Target() != "old" {
		t.Fatalf("Target of deletion = %q", deleted.Target())
	}
}
