package registry

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ollagate/ollagate/internal/logger"
	"github.com/ollagate/ollagate/theme"
)

func testLogger() *logger.StyledLogger {
	return logger.NewStyledLogger(slog.New(slog.DiscardHandler), theme.Default())
}

// memStore is an in-memory StateStore that never persists anything.
type memStore struct{}

func (memStore) Load(name string, into any) (bool, error) { return false, nil }
func (memStore) Schedule(name string, produce func() any) {}
func (memStore) Flush()                                   {}

func newTestKeyRegistry(t *testing.T) *KeyRegistry {
	t.Helper()
	r, err := NewKeyRegistry(memStore{}, testLogger())
	require.NoError(t, err)
	return r
}

func addTestKeys(t *testing.T, r *KeyRegistry, n int) []string {
	t.Helper()
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		res, err := r.AddKey(fmt.Sprintf("sk-key%02d-aaaaaaaaaa", i), "")
		require.NoError(t, err)
		require.False(t, res.Duplicate)
		ids = append(ids, res.Credential.ID)
	}
	return ids
}

func TestGetNextKeyRoundRobin(t *testing.T) {
	r := newTestKeyRegistry(t)
	ids := addTestKeys(t, r, 3)

	seen := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		c := r.GetNextKey()
		require.NotNil(t, c)
		seen = append(seen, c.ID)
	}

	assert.Equal(t, ids, seen[:3])
	assert.Equal(t, ids, seen[3:])
}

func TestGetNextKeySkipsUnavailable(t *testing.T) {
	r := newTestKeyRegistry(t)
	ids := addTestKeys(t, r, 3)

	r.ToggleKey(ids[0])
	r.GetKey(ids[1]).Healthy = false

	for i := 0; i < 4; i++ {
		c := r.GetNextKey()
		require.NotNil(t, c)
		assert.Equal(t, ids[2], c.ID)
	}
}

func TestGetNextKeyFallsBackWhenAllQuarantined(t *testing.T) {
	r := newTestKeyRegistry(t)
	ids := addTestKeys(t, r, 2)

	for _, id := range ids {
		r.GetKey(id).Healthy = false
	}

	c := r.GetNextKey()
	require.NotNil(t, c)
	assert.True(t, c.Enabled)
	assert.False(t, c.Healthy)
}

func TestGetNextKeyEmptyPool(t *testing.T) {
	r := newTestKeyRegistry(t)
	assert.Nil(t, r.GetNextKey())

	ids := addTestKeys(t, r, 1)
	r.ToggleKey(ids[0])
	assert.Nil(t, r.GetNextKey())
}

func TestRecordFailureQuarantines(t *testing.T) {
	r := newTestKeyRegistry(t)
	ids := addTestKeys(t, r, 1)
	id := ids[0]

	for i := 0; i < 6; i++ {
		r.RecordFailure(id, "HTTP 500")
	}

	c := r.GetKey(id)
	assert.False(t, c.Healthy)
	assert.Equal(t, int64(6), c.FailedRequests)
	assert.Equal(t, "HTTP 500", c.LastError)
}

func TestRecordFailureToleratesMixedHistory(t *testing.T) {
	r := newTestKeyRegistry(t)
	ids := addTestKeys(t, r, 1)
	id := ids[0]

	for i := 0; i < 10; i++ {
		r.RecordSuccess(id)
	}
	for i := 0; i < 6; i++ {
		r.RecordFailure(id, "HTTP 500")
	}

	// 6 of 16 requests failed, below the quarantine ratio
	assert.True(t, r.GetKey(id).Healthy)
}

func TestRecordSuccessRestoresHealth(t *testing.T) {
	r := newTestKeyRegistry(t)
	ids := addTestKeys(t, r, 1)
	id := ids[0]

	r.GetKey(id).Healthy = false
	r.GetKey(id).LastError = "HTTP 503"

	r.RecordSuccess(id)

	c := r.GetKey(id)
	assert.True(t, c.Healthy)
	assert.Empty(t, c.LastError)
	assert.Equal(t, int64(1), c.TotalRequests)
	assert.NotEmpty(t, c.LastUsed)
}

func TestAddKeyDuplicate(t *testing.T) {
	r := newTestKeyRegistry(t)

	first, err := r.AddKey("sk-abcdefghij", "")
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := r.AddKey("sk-abcdefghij", "")
	require.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Credential.ID, second.Credential.ID)
	assert.Equal(t, 1, r.Count())
}

func TestAddKeySameKeyDifferentBase(t *testing.T) {
	r := newTestKeyRegistry(t)

	_, err := r.AddKey("https://a.example.com|sk-abcdefghij", "")
	require.NoError(t, err)
	res, err := r.AddKey("https://b.example.com|sk-abcdefghij", "")
	require.NoError(t, err)

	assert.False(t, res.Duplicate)
	assert.Equal(t, 2, r.Count())
}

func TestBatchImport(t *testing.T) {
	r := newTestKeyRegistry(t)
	_, err := r.AddKey("sk-already-imported", "")
	require.NoError(t, err)

	text := "sk-key01-aaaaaaaaaa\nsk-key02-aaaaaaaaaa,sk-key03-aaaaaaaaaa;sk-already-imported\n# a comment\n\n   \n"
	result := r.BatchImport(text, "")

	assert.Len(t, result.Added, 3)
	assert.Len(t, result.Duplicates, 1)
	assert.Empty(t, result.Errors)
	assert.Equal(t, 4, r.Count())
}

func TestBatchImportDedupesWithinBatch(t *testing.T) {
	r := newTestKeyRegistry(t)

	result := r.BatchImport("sk-key01-aaaaaaaaaa\nsk-key01-aaaaaaaaaa", "")

	assert.Len(t, result.Added, 1)
	assert.Len(t, result.Duplicates, 1)
}

func TestEnsureDefault(t *testing.T) {
	r := newTestKeyRegistry(t)

	r.EnsureDefault("http://localhost:11434")
	require.Equal(t, 1, r.Count())

	c := r.GetNextKey()
	require.NotNil(t, c)
	assert.Empty(t, c.Key)
	assert.Equal(t, "(none)", c.Name)
	assert.Equal(t, "http://localhost:11434", c.BaseURL)

	// idempotent once the pool is non-empty
	r.EnsureDefault("http://localhost:11434")
	assert.Equal(t, 1, r.Count())
}

func TestEnsureDefaultSkipsEmptyURL(t *testing.T) {
	r := newTestKeyRegistry(t)
	r.EnsureDefault("")
	assert.Equal(t, 0, r.Count())
}

func TestEnsureDefaultSkipsPopulatedPool(t *testing.T) {
	r := newTestKeyRegistry(t)
	addTestKeys(t, r, 1)
	r.EnsureDefault("http://localhost:11434")
	assert.Equal(t, 1, r.Count())
}

func TestGetSummary(t *testing.T) {
	r := newTestKeyRegistry(t)
	ids := addTestKeys(t, r, 4)

	r.ToggleKey(ids[0])
	r.RecordFailure(ids[1], "HTTP 500")
	r.GetKey(ids[1]).Healthy = false

	summary := r.GetSummary()
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1, summary.Disabled)
	assert.Equal(t, 3, summary.Enabled)
	assert.Equal(t, 2, summary.Healthy)
	assert.Equal(t, 1, summary.Unhealthy)
}

func TestResetHealth(t *testing.T) {
	r := newTestKeyRegistry(t)
	ids := addTestKeys(t, r, 2)

	for i := 0; i < 6; i++ {
		r.RecordFailure(ids[0], "HTTP 500")
	}
	require.False(t, r.GetKey(ids[0]).Healthy)

	r.ResetHealth()

	assert.True(t, r.GetKey(ids[0]).Healthy)
	assert.Empty(t, r.GetKey(ids[0]).LastError)
}

func TestRemoveKey(t *testing.T) {
	r := newTestKeyRegistry(t)
	ids := addTestKeys(t, r, 2)

	assert.True(t, r.RemoveKey(ids[0]))
	assert.False(t, r.RemoveKey(ids[0]))
	assert.Equal(t, 1, r.Count())
	assert.Nil(t, r.GetKey(ids[0]))
	assert.NotNil(t, r.GetKey(ids[1]))
}

func TestClearAll(t *testing.T) {
	r := newTestKeyRegistry(t)
	addTestKeys(t, r, 3)

	r.ClearAll()

	assert.Equal(t, 0, r.Count())
	assert.Nil(t, r.GetNextKey())
}

func TestGetAllKeysMasks(t *testing.T) {
	r := newTestKeyRegistry(t)
	_, err := r.AddKey("sk-key01-aaaaaaaaaa", "")
	require.NoError(t, err)

	masked := r.GetAllKeys()
	require.Len(t, masked, 1)
	assert.NotContains(t, masked[0].Key, "key01-aaaa")
	assert.Equal(t, "sk-key***aaaa", masked[0].Key)
}
