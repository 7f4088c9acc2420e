// ABOUTME: Tests for the deduplicating message merge
// ABOUTME: Covers idempotence, ordering by created_at, and source interleaving

package msgsync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/chatd/internal/store"
)

func msg(id string, at time.Time, sender string) *store.Message {
	return &store.Message{
		ID:             id,
		ConversationID: "conv-1",
		Content:        "content-" + id,
		SenderType:     sender,
		CreatedAt:      at,
	}
}

func ids(messages []*store.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.ID
	}
	return out
}

func TestMerge_AppendsOnlyUnseenIDs(t *testing.T) {
	base := time.Now()
	current := []*store.Message{
		msg("a", base, store.SenderUser),
		msg("b", base.Add(time.Second), store.SenderAdmin),
	}
	incoming := []*store.Message{
		msg("b", base.Add(time.Second), store.SenderAdmin), // duplicate
		msg("c", base.Add(2*time.Second), store.SenderUser),
	}

	merged := Merge(current, incoming)
	assert.Equal(t, []string{"a", "b", "c"}, ids(merged))
}

func TestMerge_Idempotent(t *testing.T) {
	base := time.Now()
	current := []*store.Message{msg("a", base, store.SenderUser)}
	batch := []*store.Message{
		msg("b", base.Add(time.Second), store.SenderAdmin),
		msg("c", base.Add(2*time.Second), store.SenderUser),
	}

	once := Merge(current, batch)
	twice := Merge(once, batch)

	assert.Equal(t, ids(once), ids(twice))
	assert.Len(t, twice, 3)
}

func TestMerge_SortsByCreatedAtNotArrivalOrder(t *testing.T) {
	base := time.Now()

	// Poll delivers the newer message before push delivers the older one.
	merged := Merge(nil, []*store.Message{msg("late", base.Add(time.Minute), store.SenderAdmin)})
	merged = Merge(merged, []*store.Message{msg("early", base, store.SenderUser)})

	require.Equal(t, []string{"early", "late"}, ids(merged))
}

func TestMerge_MonotonicInsertsStayOrdered(t *testing.T) {
	base := time.Now()

	// Interleave two sources delivering disjoint halves of the same history.
	var pushBatch, pollBatch []*store.Message
	for i := 0; i < 10; i++ {
		m := msg(string(rune('a'+i)), base.Add(time.Duration(i)*time.Millisecond), store.SenderUser)
		if i%2 == 0 {
			pushBatch = append(pushBatch, m)
		} else {
			pollBatch = append(pollBatch, m)
		}
	}

	merged := Merge(nil, pushBatch)
	merged = Merge(merged, pollBatch)

	require.Len(t, merged, 10)
	for i := 1; i < len(merged); i++ {
		assert.True(t, merged[i].CreatedAt.After(merged[i-1].CreatedAt))
	}
}

func TestMerge_EmptyBatchReturnsCurrent(t *testing.T) {
	current := []*store.Message{msg("a", time.Now(), store.SenderUser)}

	merged := Merge(current, nil)
	assert.Equal(t, ids(current), ids(merged))

	merged = Merge(nil, nil)
	assert.Empty(t, merged)
}
