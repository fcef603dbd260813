package feedback

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/bowline/pkg/vocab"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(Options{}) // in-memory
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func record(method string, action Action) Record {
	return Record{
		FromID:     "A1",
		ToID:       "P1",
		FromType:   vocab.Activity,
		ToType:     vocab.Pressure,
		Similarity: 0.6,
		Confidence: 0.7,
		Method:     method,
		Action:     action,
	}
}

func TestAppendAndAll(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Append(record("jaccard", Accepted)))
	require.NoError(t, store.Append(record("cosine", Rejected)))

	records, err := store.All()
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, Accepted, records[0].Action)
	assert.Equal(t, "jaccard", records[0].Method)
	assert.False(t, records[0].Timestamp.IsZero(), "append must stamp the record")

	n, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAppend_ChronologicalOrder(t *testing.T) {
	store := openTestStore(t)

	base := time.Now().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		rec := record("jaccard", Accepted)
		rec.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Append(rec))
	}

	records, err := store.All()
	require.NoError(t, err)
	require.Len(t, records, 5)
	for i := 1; i < len(records); i++ {
		assert.True(t, !records[i].Timestamp.Before(records[i-1].Timestamp),
			"records out of chronological order at %d", i)
	}
}

func TestAppend_InvalidAction(t *testing.T) {
	store := openTestStore(t)

	rec := record("jaccard", Action("liked"))
	assert.Error(t, store.Append(rec))
}

func TestStats(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.Append(record("jaccard", Accepted)))
	require.NoError(t, store.Append(record("jaccard", Accepted)))
	require.NoError(t, store.Append(record("jaccard", Rejected)))
	require.NoError(t, store.Append(record("cosine", Rejected)))
	require.NoError(t, store.Append(record("cosine", Ignored)))

	stats, err := store.Stats()
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Total)
	assert.Equal(t, 2, stats.Accepted)
	assert.Equal(t, 2, stats.Rejected)
	assert.Equal(t, 1, stats.Ignored)
	assert.InDelta(t, 0.5, stats.AcceptanceRate, 1e-9)

	jac := stats.PerMethod["jaccard"]
	assert.Equal(t, 3, jac.Total)
	assert.InDelta(t, 2.0/3.0, jac.AcceptanceRate, 1e-9)

	cos := stats.PerMethod["cosine"]
	assert.Equal(t, 2, cos.Total)
	assert.Zero(t, cos.AcceptanceRate, "ignored records express no preference")
}

func TestSummarize_Empty(t *testing.T) {
	stats := Summarize(nil)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.AcceptanceRate)
	assert.Empty(t, stats.PerMethod)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	require.NoError(t, store.Append(record("jaccard", Accepted)))
	require.NoError(t, store.Close())

	reopened, err := Open(Options{Dir: dir})
	require.NoError(t, err)
	defer reopened.Close()

	records, err := reopened.All()
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "A1", records[0].FromID)
}

func TestConcurrentAppends(t *testing.T) {
	store := openTestStore(t)

	const goroutines = 10
	const perGoroutine = 20

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < perGoroutine; j++ {
				_ = store.Append(record("jaccard", Accepted))
			}
		}()
	}
	wg.Wait()

	n, err := store.Len()
	require.NoError(t, err)
	assert.Equal(t, goroutines*perGoroutine, n)
}
