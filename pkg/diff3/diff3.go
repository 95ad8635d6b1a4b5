// Package diff3 implements a line-level three-way text merge.
package diff3

import (
	"bytes"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Conflict marker lines written around each conflicting hunk.
const (
	MarkerOurs   = "<<<<<<< ours"
	MarkerSep    = "======="
	MarkerTheirs = ">>>>>>> theirs"
)

// HunkType classifies a hunk in a three-way merge result.
type HunkType int

const (
	HunkClean    HunkType = iota // Hunk was merged cleanly.
	HunkConflict                 // Hunk has a conflict that requires manual resolution.
)

// Hunk represents a contiguous section of the merge output.
type Hunk struct {
	Type                       HunkType
	Base, Ours, Theirs, Merged []byte
}

// Result holds the outcome of a three-way merge.
type Result struct {
	Merged       []byte // Full merged content (with conflict markers if conflicts exist).
	HasConflicts bool   // True if any hunk is a conflict.
	Hunks        []Hunk // Individual hunks in document order.
}

// Merge performs a three-way merge of base, ours, and theirs.
//
// Each side is diffed against base. Base lines kept by both sides are
// stable anchors; the regions between consecutive anchors are resolved
// independently: a region changed on one side takes that side, a region
// changed identically on both sides takes either, and a region changed
// differently on both sides is a conflict written between markers.
func Merge(base, ours, theirs []byte) Result {
	baseLines := splitLines(string(base))
	oursLines := splitLines(string(ours))
	theirsLines := splitLines(string(theirs))

	toOurs := matchBase(baseLines, oursLines)
	toTheirs := matchBase(baseLines, theirsLines)

	m := &merger{}
	i, o, t := 0, 0, 0
	var stable []string
	flushStable := func() {
		if len(stable) > 0 {
			m.clean(stable, stable, nil, nil)
			stable = nil
		}
	}

	for i < len(baseLines) || o < len(oursLines) || t < len(theirsLines) {
		if i < len(baseLines) && toOurs[i] == o && toTheirs[i] == t {
			stable = append(stable, baseLines[i])
			i, o, t = i+1, o+1, t+1
			continue
		}
		flushStable()

		// Advance to the next base line both sides kept.
		ni, no, nt := len(baseLines), len(oursLines), len(theirsLines)
		for k := i; k < len(baseLines); k++ {
			if toOurs[k] >= 0 && toTheirs[k] >= 0 {
				ni, no, nt = k, toOurs[k], toTheirs[k]
				break
			}
		}
		m.region(baseLines[i:ni], oursLines[o:no], theirsLines[t:nt])
		i, o, t = ni, no, nt
	}
	flushStable()

	return Result{
		Merged:       m.out.Bytes(),
		HasConflicts: m.conflicts,
		Hunks:        m.hunks,
	}
}

// matchBase maps each base line index to the index of the side line it is
// aligned with, or -1 when the side deleted or replaced it.
func matchBase(base, side []string) []int {
	idx := make([]int, len(base))
	for i := range idx {
		idx[i] = -1
	}
	matcher := difflib.NewMatcherWithJunk(base, side, false, nil)
	for _, op := range matcher.GetOpCodes() {
		if op.Tag != 'e' {
			continue
		}
		for k := 0; k < op.I2-op.I1; k++ {
			idx[op.I1+k] = op.J1 + k
		}
	}
	return idx
}

type merger struct {
	out       bytes.Buffer
	hunks     []Hunk
	conflicts bool
}

func (m *merger) region(base, ours, theirs []string) {
	oursChanged := !linesEqual(base, ours)
	theirsChanged := !linesEqual(base, theirs)

	switch {
	case !oursChanged && !theirsChanged:
		m.clean(base, base, nil, nil)
	case oursChanged && !theirsChanged:
		m.clean(base, ours, ours, nil)
	case !oursChanged && theirsChanged:
		m.clean(base, theirs, nil, theirs)
	case linesEqual(ours, theirs):
		m.clean(base, ours, ours, theirs)
	default:
		m.conflicts = true
		writeConflict(&m.out, ours, theirs)
		m.hunks = append(m.hunks, Hunk{
			Type:   HunkConflict,
			Base:   joinLines(base),
			Ours:   joinLines(ours),
			Theirs: joinLines(theirs),
		})
	}
}

func (m *merger) clean(base, merged, ours, theirs []string) {
	if len(base) == 0 && len(merged) == 0 {
		return
	}
	for _, l := range merged {
		m.out.WriteString(l)
		m.out.WriteByte('\n')
	}
	m.hunks = append(m.hunks, Hunk{
		Type:   HunkClean,
		Base:   joinLines(base),
		Ours:   joinLines(ours),
		Theirs: joinLines(theirs),
		Merged: joinLines(merged),
	})
}

// WrapConflict renders the whole of ours and theirs as a single conflict.
func WrapConflict(ours, theirs []byte) []byte {
	var buf bytes.Buffer
	writeConflict(&buf, splitLines(string(ours)), splitLines(string(theirs)))
	return buf.Bytes()
}

// HasMarkers reports whether data contains a conflict marker line.
func HasMarkers(data []byte) bool {
	for _, l := range splitLines(string(data)) {
		if l == MarkerOurs || l == MarkerSep || l == MarkerTheirs {
			return true
		}
	}
	return false
}

// splitLines splits s into lines. A trailing newline does not produce
// an extra empty element.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	lines := strings.Split(s, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func writeConflict(buf *bytes.Buffer, oursLines, theirsLines []string) {
	buf.WriteString(MarkerOurs + "\n")
	for _, l := range oursLines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	buf.WriteString(MarkerSep + "\n")
	for _, l := range theirsLines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	buf.WriteString(MarkerTheirs + "\n")
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	var buf bytes.Buffer
	for _, l := range lines {
		buf.WriteString(l)
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func linesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
