package stats

import (
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

type memStore struct{}

func (memStore) Load(name string, into any) (bool, error) { return false, nil }
func (memStore) Schedule(name string, produce func() any) {}
func (memStore) Flush()                                   {}

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := NewCollector(memStore{}, 30, testLogger())
	require.NoError(t, err)
	return c
}

func TestTotals(t *testing.T) {
	c := newTestCollector(t)

	c.RecordSuccess("cred-1")
	c.RecordSuccess("cred-1")
	c.RecordFailure("cred-1")
	c.RecordSuccess("cred-2")

	success, fail := c.Totals("cred-1")
	assert.Equal(t, int64(2), success)
	assert.Equal(t, int64(1), fail)

	success, fail = c.Totals("cred-2")
	assert.Equal(t, int64(1), success)
	assert.Equal(t, int64(0), fail)

	success, fail = c.Totals("unknown")
	assert.Equal(t, int64(0), success)
	assert.Equal(t, int64(0), fail)
}

func TestEmptyIDIgnored(t *testing.T) {
	c := newTestCollector(t)

	c.RecordSuccess("")
	c.RecordFailure("")

	assert.Empty(t, c.Snapshot())
}

func TestSnapshotIsDeepCopy(t *testing.T) {
	c := newTestCollector(t)
	c.RecordSuccess("cred-1")

	snap := c.Snapshot()
	for _, perID := range snap {
		for _, day := range perID {
			day.Success = 999
		}
	}

	success, _ := c.Totals("cred-1")
	assert.Equal(t, int64(1), success)
}

func TestForget(t *testing.T) {
	c := newTestCollector(t)
	c.RecordSuccess("cred-1")
	c.RecordFailure("cred-2")

	c.Forget("cred-1")

	success, fail := c.Totals("cred-1")
	assert.Equal(t, int64(0), success)
	assert.Equal(t, int64(0), fail)

	_, fail = c.Totals("cred-2")
	assert.Equal(t, int64(1), fail)
}
