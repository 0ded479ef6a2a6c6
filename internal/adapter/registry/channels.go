package registry

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ollagate/ollagate/internal/core/domain"
	"github.com/ollagate/ollagate/internal/core/ports"
	"github.com/ollagate/ollagate/internal/logger"
	"github.com/ollagate/ollagate/internal/util"
)

const channelsFileName = "channels"

// ChannelsFile is the persisted shape of the channel list.
type ChannelsFile struct {
	Channels []*domain.Channel `json:"channels"`
}

// ChannelSpec carries the operator-supplied fields for create and update.
type ChannelSpec struct {
	Name          string            `json:"name"`
	BaseURL       string            `json:"baseUrl"`
	Keys          []string          `json:"keys"`
	Models        []string          `json:"models,omitempty"`
	ModelMapping  map[string]string `json:"modelMapping,omitempty"`
	Priority      int               `json:"priority"`
	Weight        int               `json:"weight"`
	MaxConcurrent int               `json:"maxConcurrent"`
}

// ChannelRegistry owns the channel groupings. When it is non-empty the
// selector routes over channels instead of the flat credential pool.
type ChannelRegistry struct {
	store  ports.StateStore
	logger *logger.StyledLogger

	mu       sync.RWMutex
	channels []*domain.Channel
	byID     map[string]*domain.Channel
}

func NewChannelRegistry(store ports.StateStore, styledLogger *logger.StyledLogger) (*ChannelRegistry, error) {
	r := &ChannelRegistry{
		store:  store,
		logger: styledLogger,
		byID:   make(map[string]*domain.Channel),
	}

	var persisted ChannelsFile
	found, err := store.Load(channelsFileName, &persisted)
	if err != nil {
		return nil, err
	}
	if found {
		r.channels = persisted.Channels
		for _, ch := range r.channels {
			ch.CurrentConcurrent = 0
			ch.Cursor = 0
			r.byID[ch.ID] = ch
		}
	}

	styledLogger.InfoWithCount("Loaded channels", len(r.channels))
	return r, nil
}

func (r *ChannelRegistry) AddChannel(spec ChannelSpec) (*domain.Channel, error) {
	if spec.Name == "" {
		return nil, fmt.Errorf("channel name is required")
	}
	if spec.BaseURL == "" {
		return nil, fmt.Errorf("channel baseUrl is required")
	}

	ch := &domain.Channel{
		ID:            uuid.NewString(),
		Name:          spec.Name,
		BaseURL:       util.NormalizeBaseURL(spec.BaseURL),
		Keys:          spec.Keys,
		Models:        spec.Models,
		ModelMapping:  spec.ModelMapping,
		Enabled:       true,
		Healthy:       true,
		Priority:      spec.Priority,
		Weight:        spec.Weight,
		MaxConcurrent: spec.MaxConcurrent,
		AddedAt:       domain.Now(),
	}
	if ch.Weight <= 0 {
		ch.Weight = domain.DefaultWeight
	}

	r.mu.Lock()
	r.channels = append(r.channels, ch)
	r.byID[ch.ID] = ch
	r.scheduleLocked()
	r.mu.Unlock()

	r.logger.InfoWithBackend("Added channel", ch.Name, "base_url", ch.BaseURL)
	return ch, nil
}

func (r *ChannelRegistry) UpdateChannel(id string, spec ChannelSpec) (*domain.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("unknown channel %q", id)
	}

	if spec.Name != "" {
		ch.Name = spec.Name
	}
	if spec.BaseURL != "" {
		ch.BaseURL = util.NormalizeBaseURL(spec.BaseURL)
	}
	if spec.Keys != nil {
		ch.Keys = spec.Keys
		ch.Cursor = 0
	}
	if spec.Models != nil {
		ch.Models = spec.Models
	}
	if spec.ModelMapping != nil {
		ch.ModelMapping = spec.ModelMapping
	}
	ch.Priority = spec.Priority
	if spec.Weight > 0 {
		ch.Weight = spec.Weight
	}
	ch.MaxConcurrent = spec.MaxConcurrent

	r.scheduleLocked()
	return ch, nil
}

func (r *ChannelRegistry) RemoveChannel(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, ch := range r.channels {
		if ch.ID == id {
			r.channels = append(r.channels[:i], r.channels[i+1:]...)
			delete(r.byID, id)
			r.scheduleLocked()
			return true
		}
	}
	return false
}

func (r *ChannelRegistry) ToggleChannel(id string) *domain.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.byID[id]
	if !ok {
		return nil
	}
	ch.Enabled = !ch.Enabled
	r.scheduleLocked()
	return ch
}

func (r *ChannelRegistry) GetChannel(id string) *domain.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byID[id]
}

// Candidates returns the channels able to serve a model right now: enabled,
// healthy, under their concurrency cap and model-permitted.
func (r *ChannelRegistry) Candidates(model string) []*domain.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Channel, 0, len(r.channels))
	for _, ch := range r.channels {
		if ch.Enabled && ch.Healthy && ch.HasCapacity() && ch.AllowsModel(model) {
			out = append(out, ch)
		}
	}
	return out
}

func (r *ChannelRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

func (r *ChannelRegistry) List() []*domain.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.Channel, len(r.channels))
	copy(out, r.channels)
	return out
}

// NextKey advances the channel's round-robin cursor and returns the picked
// key, empty when the channel has no keys of its own.
func (r *ChannelRegistry) NextKey(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.byID[id]
	if !ok || len(ch.Keys) == 0 {
		return ""
	}
	if ch.Cursor >= len(ch.Keys) {
		ch.Cursor = 0
	}
	key := ch.Keys[ch.Cursor]
	ch.Cursor++
	return key
}

// Acquire reserves one concurrency slot; the returned release func must be
// called exactly once.
func (r *ChannelRegistry) Acquire(id string) func() {
	r.mu.RLock()
	ch, ok := r.byID[id]
	r.mu.RUnlock()
	if !ok {
		return func() {}
	}

	atomic.AddInt64(&ch.CurrentConcurrent, 1)
	var released atomic.Bool
	return func() {
		if released.CompareAndSwap(false, true) {
			atomic.AddInt64(&ch.CurrentConcurrent, -1)
		}
	}
}

// RecordSuccess mirrors the credential bookkeeping at channel granularity.
func (r *ChannelRegistry) RecordSuccess(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.byID[id]
	if !ok {
		return
	}
	ch.TotalRequests++
	ch.LastUsed = domain.Now()
	ch.Healthy = true
	ch.LastError = ""
	r.scheduleLocked()
}

// RecordFailure counts a failure and auto-quarantines the channel once
// failures dominate.
func (r *ChannelRegistry) RecordFailure(id, errStr string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, ok := r.byID[id]
	if !ok {
		return
	}
	ch.TotalRequests++
	ch.FailedRequests++
	ch.LastUsed = domain.Now()
	ch.LastError = errStr

	if ch.FailedRequests > quarantineMinFailures &&
		float64(ch.FailedRequests)/float64(ch.TotalRequests) > quarantineFailureRatio {
		if ch.Healthy {
			r.logger.InfoHealthStatus("Channel quarantined after repeated failures", ch.Name, false)
		}
		ch.Healthy = false
	}
	r.scheduleLocked()
}

// ResetHealth clears quarantine on every channel.
func (r *ChannelRegistry) ResetHealth() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, ch := range r.channels {
		ch.Healthy = true
		ch.LastError = ""
	}
	r.scheduleLocked()
}

func (r *ChannelRegistry) scheduleLocked() {
	channels := make([]*domain.Channel, len(r.channels))
	for i, ch := range r.channels {
		copied := *ch
		channels[i] = &copied
	}
	snapshot := &ChannelsFile{Channels: channels}
	r.store.Schedule(channelsFileName, func() any { return snapshot })
}
