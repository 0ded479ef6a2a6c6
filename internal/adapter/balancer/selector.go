// Package balancer picks a backend for each request. Two regimes: when
// channels exist, selection runs priority -> weighted -> per-channel
// round-robin with model remapping; otherwise a flat round-robin over the
// credential pool.
package balancer

import (
	"context"
	"math/rand"

	"github.com/ollagate/ollagate/internal/adapter/registry"
	"github.com/ollagate/ollagate/internal/core/domain"
	"github.com/ollagate/ollagate/internal/core/ports"
)

// PoolSelector implements ports.BackendSelector over the two registries.
type PoolSelector struct {
	keys     *registry.KeyRegistry
	channels *registry.ChannelRegistry
}

func NewPoolSelector(keys *registry.KeyRegistry, channels *registry.ChannelRegistry) *PoolSelector {
	return &PoolSelector{keys: keys, channels: channels}
}

// Name returns the name of the selection strategy
func (s *PoolSelector) Name() string {
	return "pool"
}

// Select picks a backend for the requested model, channel regime first.
func (s *PoolSelector) Select(ctx context.Context, model string) (*ports.Selection, error) {
	if s.channels != nil && s.channels.Count() > 0 {
		return s.selectChannel(model)
	}
	return s.selectFlat(model)
}

func (s *PoolSelector) selectChannel(model string) (*ports.Selection, error) {
	candidates := s.channels.Candidates(model)
	if len(candidates) == 0 {
		return nil, domain.NewNoBackendsError()
	}

	// highest priority tier wins
	best := candidates[0].Priority
	for _, ch := range candidates[1:] {
		if ch.Priority > best {
			best = ch.Priority
		}
	}
	tier := make([]*domain.Channel, 0, len(candidates))
	for _, ch := range candidates {
		if ch.Priority == best {
			tier = append(tier, ch)
		}
	}

	chosen := tier[0]
	if len(tier) > 1 {
		chosen = weightedPick(tier)
	}

	key := s.channels.NextKey(chosen.ID)
	release := s.channels.Acquire(chosen.ID)

	return &ports.Selection{
		Channel: chosen,
		BaseURL: chosen.BaseURL,
		Key:     key,
		Model:   chosen.ResolveModel(model),
		Release: release,
	}, nil
}

// weightedPick samples r uniform in [0, sum of weights) and scans until the
// running sum passes it.
func weightedPick(tier []*domain.Channel) *domain.Channel {
	total := 0
	for _, ch := range tier {
		w := ch.Weight
		if w <= 0 {
			w = domain.DefaultWeight
		}
		total += w
	}

	r := rand.Intn(total)
	running := 0
	for _, ch := range tier {
		w := ch.Weight
		if w <= 0 {
			w = domain.DefaultWeight
		}
		running += w
		if r < running {
			return ch
		}
	}
	return tier[len(tier)-1]
}

func (s *PoolSelector) selectFlat(model string) (*ports.Selection, error) {
	cred := s.keys.GetNextKey()
	if cred == nil {
		return nil, domain.NewNoBackendsError()
	}

	return &ports.Selection{
		Credential: cred,
		BaseURL:    cred.BaseURL,
		Key:        cred.Key,
		Model:      model,
		Release:    func() {},
	}, nil
}
