// ABOUTME: Deduplicating merge of message batches from independent sync sources
// ABOUTME: Union by message id, ordered only by created_at, never by arrival order

package msgsync

import (
	"sort"

	"github.com/2389/chatd/internal/store"
)

// Merge returns the id-keyed union of current and incoming. Messages whose id
// is already present are skipped; the rest are appended preserving the
// incoming batch's relative order, and the result is re-sorted by created_at.
// Applying the same batch twice yields no change the second time, which is
// what makes the overlapping poll and push feeds safe.
func Merge(current, incoming []*store.Message) []*store.Message {
	seen := make(map[string]struct{}, len(current))
	for _, m := range current {
		seen[m.ID] = struct{}{}
	}

	merged := current
	added := false
	for _, m := range incoming {
		if _, ok := seen[m.ID]; ok {
			continue
		}
		seen[m.ID] = struct{}{}
		merged = append(merged, m)
		added = true
	}

	if !added {
		return current
	}

	// Never trust arrival order: created_at is the sole sort key.
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.Before(merged[j].CreatedAt)
	})
	return merged
}
