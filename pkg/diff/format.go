package diff

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/odvcencio/gitlet/pkg/index"
	"github.com/odvcencio/gitlet/pkg/object"
	"github.com/pmezard/go-difflib/difflib"
)

// FormatNameStatus renders one "<status> <path>" line per change.
func FormatNameStatus(changes []Change) string {
	var b strings.Builder
	for _, c := range changes {
		fmt.Fprintf(&b, "%s %s\n", c.Status, c.Path)
	}
	return b.String()
}

// ContentFunc loads the bytes behind a FileState recorded for path.
type ContentFunc func(path string, st index.FileState) ([]byte, error)

// FormatPatch renders changes as a unified diff with three lines of
// context. Either side holding a NUL byte is reported as binary.
func FormatPatch(changes []Change, load ContentFunc) (string, error) {
	var b strings.Builder
	for _, c := range changes {
		before, err := sideContent(c.Path, c.Before, load)
		if err != nil {
			return "", fmt.Errorf("format patch %s: %w", c.Path, err)
		}
		after, err := sideContent(c.Path, c.After, load)
		if err != nil {
			return "", fmt.Errorf("format patch %s: %w", c.Path, err)
		}

		fmt.Fprintf(&b, "diff --git a/%s b/%s\n", c.Path, c.Path)
		switch {
		case c.Before == nil && c.After != nil:
			fmt.Fprintf(&b, "new file mode %s\n", c.After.Mode)
		case c.After == nil && c.Before != nil:
			fmt.Fprintf(&b, "deleted file mode %s\n", c.Before.Mode)
		case c.Before.Mode != c.After.Mode:
			fmt.Fprintf(&b, "old mode %s\nnew mode %s\n", c.Before.Mode, c.After.Mode)
		}

		if isBinary(before) || isBinary(after) {
			b.WriteString("Binary files differ\n")
			continue
		}

		fromFile, toFile := "a/"+c.Path, "b/"+c.Path
		if c.Before == nil {
			fromFile = "/dev/null"
		}
		if c.After == nil {
			toFile = "/dev/null"
		}
		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        splitLines(before),
			B:        splitLines(after),
			FromFile: fromFile,
			ToFile:   toFile,
			Context:  3,
		})
		if err != nil {
			return "", fmt.Errorf("format patch %s: %w", c.Path, err)
		}
		b.WriteString(text)
		if text != "" && !strings.HasSuffix(text, "\n") {
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// BlobContent returns a ContentFunc reading blobs from store.
func BlobContent(store *object.Store) ContentFunc {
	return func(_ string, st index.FileState) ([]byte, error) {
		blob, err := store.ReadBlob(st.Hash)
		if err != nil {
			return nil, err
		}
		return blob.Data, nil
	}
}

func sideContent(p string, st *index.FileState, load ContentFunc) ([]byte, error) {
	if st == nil {
		return nil, nil
	}
	return load(p, *st)
}

func isBinary(data []byte) bool {
	return bytes.IndexByte(data, 0) >= 0
}

func splitLines(data []byte) []string {
	if len(data) == 0 {
		return []string{}
	}
	s := string(data)
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	lines := strings.SplitAfter(s, "\n")
	return lines[:len(lines)-1]
}
