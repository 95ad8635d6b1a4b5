package repo

import (
	"fmt"

	"github.com/odvcencio/gitlet/pkg/object"
)

const maxMergeBaseSteps = 1_000_000

// mergeBaseStepsLimit lets tests tighten the traversal bound.
var mergeBaseStepsLimit = maxMergeBaseSteps

func mergeBaseLimit() int {
	if mergeBaseStepsLimit <= 0 || mergeBaseStepsLimit > maxMergeBaseSteps {
		return maxMergeBaseSteps
	}
	return mergeBaseStepsLimit
}

func mergeBaseStepsLimitError(limit int) error {
	return fmt.Errorf("find merge base: traversal exceeded maximum steps (%d)", limit)
}

const (
	sideA uint8 = 1 << iota
	sideB
	bothSides = sideA | sideB
)

type mergeBaseQueueItem struct {
	hash object.Hash
	side uint8
}

// MergeBase returns the common ancestor of a and b: the first commit a
// breadth-first walk from both tips, interleaved in discovery order,
// reaches from both sides. It returns "" when the histories share nothing.
func (r *Repo) MergeBase(a, b object.Hash) (object.Hash, error) {
	if a == "" || b == "" {
		return "", nil
	}
	if a == b {
		return a, nil
	}

	limit := mergeBaseLimit()
	seen := make(map[object.Hash]uint8)
	queue := []mergeBaseQueueItem{{a, sideA}, {b, sideB}}
	for steps := 0; len(queue) > 0; steps++ {
		if steps >= limit {
			return "", mergeBaseStepsLimitError(limit)
		}
		item := queue[0]
		queue = queue[1:]

		bits := seen[item.hash]
		if bits&item.side != 0 {
			continue
		}
		bits |= item.side
		seen[item.hash] = bits
		if bits == bothSides {
			return item.hash, nil
		}

		c, err := r.Store.ReadCommit(item.hash)
		if err != nil {
			return "", fmt.Errorf("find merge base: %w", err)
		}
		for _, p := range c.Parents {
			queue = append(queue, mergeBaseQueueItem{p, item.side})
		}
	}
	return "", nil
}

// isAncestor reports whether ancestor is reachable from descendant,
// counting descendant itself.
func (r *Repo) isAncestor(ancestor, descendant object.Hash) (bool, error) {
	if ancestor == "" || descendant == "" {
		return false, nil
	}
	limit := mergeBaseLimit()
	seen := make(map[object.Hash]bool)
	queue := []object.Hash{descendant}
	for steps := 0; len(queue) > 0; steps++ {
		if steps >= limit {
			return false, mergeBaseStepsLimitError(limit)
		}
		h := queue[0]
		queue = queue[1:]
		if h == ancestor {
			return true, nil
		}
		if seen[h] {
			continue
		}
		seen[h] = true

		c, err := r.Store.ReadCommit(h)
		if err != nil {
			return false, fmt.Errorf("ancestor check: %w", err)
		}
		queue = append(queue, c.Parents...)
	}
	return false, nil
}
