package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChannelRegistry(t *testing.T) *ChannelRegistry {
	t.Helper()
	r, err := NewChannelRegistry(memStore{}, testLogger())
	require.NoError(t, err)
	return r
}

func TestAddChannelValidation(t *testing.T) {
	r := newTestChannelRegistry(t)

	_, err := r.AddChannel(ChannelSpec{BaseURL: "http://localhost:11434"})
	assert.Error(t, err)

	_, err = r.AddChannel(ChannelSpec{Name: "local"})
	assert.Error(t, err)

	ch, err := r.AddChannel(ChannelSpec{Name: "local", BaseURL: "http://localhost:11434"})
	require.NoError(t, err)
	assert.True(t, ch.Enabled)
	assert.True(t, ch.Healthy)
	assert.Equal(t, 10, ch.Weight)
	assert.NotEmpty(t, ch.ID)
}

func TestCandidatesFiltering(t *testing.T) {
	r := newTestChannelRegistry(t)

	open, err := r.AddChannel(ChannelSpec{Name: "open", BaseURL: "http://a.local"})
	require.NoError(t, err)
	scoped, err := r.AddChannel(ChannelSpec{Name: "scoped", BaseURL: "http://b.local", Models: []string{"llama*"}})
	require.NoError(t, err)
	disabled, err := r.AddChannel(ChannelSpec{Name: "disabled", BaseURL: "http://c.local"})
	require.NoError(t, err)
	r.ToggleChannel(disabled.ID)
	quarantined, err := r.AddChannel(ChannelSpec{Name: "quarantined", BaseURL: "http://d.local"})
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		r.RecordFailure(quarantined.ID, "HTTP 502")
	}

	got := r.Candidates("llama3")
	ids := make([]string, 0, len(got))
	for _, ch := range got {
		ids = append(ids, ch.ID)
	}
	assert.ElementsMatch(t, []string{open.ID, scoped.ID}, ids)

	got = r.Candidates("mistral")
	require.Len(t, got, 1)
	assert.Equal(t, open.ID, got[0].ID)
}

func TestCandidatesRespectsCapacity(t *testing.T) {
	r := newTestChannelRegistry(t)

	ch, err := r.AddChannel(ChannelSpec{Name: "capped", BaseURL: "http://a.local", MaxConcurrent: 1})
	require.NoError(t, err)

	release := r.Acquire(ch.ID)
	assert.Empty(t, r.Candidates("llama3"))

	release()
	assert.Len(t, r.Candidates("llama3"), 1)
}

func TestNextKeyRotation(t *testing.T) {
	r := newTestChannelRegistry(t)

	ch, err := r.AddChannel(ChannelSpec{Name: "rotating", BaseURL: "http://a.local", Keys: []string{"k1", "k2"}})
	require.NoError(t, err)

	assert.Equal(t, "k1", r.NextKey(ch.ID))
	assert.Equal(t, "k2", r.NextKey(ch.ID))
	assert.Equal(t, "k1", r.NextKey(ch.ID))
}

func TestNextKeyEmpty(t *testing.T) {
	r := newTestChannelRegistry(t)

	ch, err := r.AddChannel(ChannelSpec{Name: "keyless", BaseURL: "http://a.local"})
	require.NoError(t, err)

	assert.Empty(t, r.NextKey(ch.ID))
	assert.Empty(t, r.NextKey("no-such-channel"))
}

func TestAcquireReleaseOnce(t *testing.T) {
	r := newTestChannelRegistry(t)

	ch, err := r.AddChannel(ChannelSpec{Name: "counted", BaseURL: "http://a.local"})
	require.NoError(t, err)

	release := r.Acquire(ch.ID)
	assert.Equal(t, int64(1), ch.CurrentConcurrent)

	release()
	release()
	assert.Equal(t, int64(0), ch.CurrentConcurrent)
}

func TestChannelQuarantineAndRecovery(t *testing.T) {
	r := newTestChannelRegistry(t)

	ch, err := r.AddChannel(ChannelSpec{Name: "flappy", BaseURL: "http://a.local"})
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		r.RecordFailure(ch.ID, "HTTP 502")
	}
	assert.False(t, r.GetChannel(ch.ID).Healthy)

	r.RecordSuccess(ch.ID)
	assert.True(t, r.GetChannel(ch.ID).Healthy)
	assert.Empty(t, r.GetChannel(ch.ID).LastError)
}

func TestUpdateChannel(t *testing.T) {
	r := newTestChannelRegistry(t)

	ch, err := r.AddChannel(ChannelSpec{Name: "before", BaseURL: "http://a.local", Keys: []string{"k1", "k2"}, Weight: 5})
	require.NoError(t, err)
	r.NextKey(ch.ID)

	updated, err := r.UpdateChannel(ch.ID, ChannelSpec{
		Name:         "after",
		Keys:         []string{"k3"},
		ModelMapping: map[string]string{"gpt-4": "llama3"},
		Priority:     2,
	})
	require.NoError(t, err)

	assert.Equal(t, "after", updated.Name)
	assert.Equal(t, "http://a.local", updated.BaseURL)
	assert.Equal(t, 2, updated.Priority)
	assert.Equal(t, 5, updated.Weight)
	assert.Equal(t, "llama3", updated.ResolveModel("gpt-4"))
	assert.Equal(t, "k3", r.NextKey(ch.ID))

	_, err = r.UpdateChannel("no-such-channel", ChannelSpec{})
	assert.Error(t, err)
}

func TestRemoveChannel(t *testing.T) {
	r := newTestChannelRegistry(t)

	ch, err := r.AddChannel(ChannelSpec{Name: "doomed", BaseURL: "http://a.local"})
	require.NoError(t, err)

	assert.True(t, r.RemoveChannel(ch.ID))
	assert.False(t, r.RemoveChannel(ch.ID))
	assert.Equal(t, 0, r.Count())
	assert.Nil(t, r.GetChannel(ch.ID))
}
