package repo

import (
	"fmt"
	"os"
	"path"
	"slices"
	"strconv"
	"strings"

	"github.com/odvcencio/gitlet/pkg/object"
)

const (
	logsDir  = "logs"
	zeroHash = "0000000000000000000000000000000000000000000000000000000000000000"
)

// ReflogEntry is one recorded movement of a ref. An empty OldHash means
// the ref was created; an empty NewHash means it was deleted.
type ReflogEntry struct {
	Ref       string
	OldHash   object.Hash
	NewHash   object.Hash
	Timestamp int64
	Reason    string
}

// Target is the commit the entry left the ref at, or the one it left
// behind when the ref was deleted.
func (e ReflogEntry) Target() object.Hash {
	if e.NewHash == "" {
		return e.OldHash
	}
	return e.NewHash
}

// encode renders e as one "<old> <new> <unix-ts> <reason>" log line.
func (e ReflogEntry) encode() string {
	reason := strings.ReplaceAll(strings.TrimSpace(e.Reason), "\n", " ")
	if reason == "" {
		reason = "update"
	}
	return fmt.Sprintf("%s %s %d %s\n", encodeLogHash(e.OldHash), encodeLogHash(e.NewHash), e.Timestamp, reason)
}

func encodeLogHash(h object.Hash) string {
	if h == "" {
		return zeroHash
	}
	return string(h)
}

func decodeLogHash(s string) object.Hash {
	if s == zeroHash {
		return ""
	}
	return object.Hash(s)
}

// decodeReflogLine parses one log line; malformed lines report false.
func decodeReflogLine(ref, line string) (ReflogEntry, bool) {
	fields := strings.SplitN(strings.TrimSpace(line), " ", 4)
	if len(fields) != 4 {
		return ReflogEntry{}, false
	}
	ts, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return ReflogEntry{}, false
	}
	return ReflogEntry{
		Ref:       ref,
		OldHash:   decodeLogHash(fields[0]),
		NewHash:   decodeLogHash(fields[1]),
		Timestamp: ts,
		Reason:    fields[3],
	}, true
}

// newReflogEntry stamps a ref movement with the repository clock.
func (r *Repo) newReflogEntry(ref string, oldHash, newHash object.Hash, reason string) ReflogEntry {
	return ReflogEntry{
		Ref:       ref,
		OldHash:   oldHash,
		NewHash:   newHash,
		Timestamp: r.now().Unix(),
		Reason:    reason,
	}
}

// appendReflog adds e to the log of e.Ref.
func (r *Repo) appendReflog(e ReflogEntry) error {
	logPath := path.Join(logsDir, e.Ref)
	if err := r.Meta.MkdirAll(path.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("reflog %s: mkdir: %w", e.Ref, err)
	}
	f, err := r.Meta.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("reflog %s: %w", e.Ref, err)
	}
	if _, err := f.Write([]byte(e.encode())); err != nil {
		f.Close()
		return fmt.Errorf("reflog %s: write: %w", e.Ref, err)
	}
	return f.Close()
}

// ReadReflog returns the entries for ref, newest first. An empty ref or
// HEAD reads HEAD's own log; a bare name reads refs/heads/<name>.
func (r *Repo) ReadReflog(ref string, limit int) ([]ReflogEntry, error) {
	name := reflogRefName(ref)
	data, err := readFile(r.Meta, path.Join(logsDir, name))
	if err != nil {
		if isNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reflog %s: %w", name, err)
	}

	var entries []ReflogEntry
	for _, line := range strings.Split(string(data), "\n") {
		if e, ok := decodeReflogLine(name, line); ok {
			entries = append(entries, e)
		}
	}
	slices.Reverse(entries)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Reflog renders ReadReflog as "<short> <ref>@{<n>}: <reason>" lines.
func (r *Repo) Reflog(ref string, limit int) (string, error) {
	if limit < 0 {
		return "", newError(ErrInvalidArgument, "reflog").wrap(fmt.Errorf("negative limit %d", limit))
	}
	entries, err := r.ReadReflog(ref, limit)
	if err != nil {
		return "", err
	}
	label := strings.TrimSpace(ref)
	if label == "" {
		label = headFile
	}
	var b strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&b, "%s %s@{%d}: %s\n", e.Target().Short(), label, i, e.Reason)
	}
	return b.String(), nil
}

func reflogRefName(ref string) string {
	ref = strings.TrimSpace(ref)
	switch {
	case ref == "" || ref == headFile:
		return headFile
	case strings.HasPrefix(ref, refsPrefix):
		return ref
	default:
		return branchRef(ref)
	}
}
