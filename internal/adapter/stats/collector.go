// Package stats keeps the per-day success/failure ledger for each backend
// credential or channel.
package stats

import (
	"sync"
	"time"

	"github.com/ollagate/ollagate/internal/core/domain"
	"github.com/ollagate/ollagate/internal/core/ports"
	"github.com/ollagate/ollagate/internal/logger"
)

const statsFileName = "stats"

const dateLayout = "2006-01-02"

// StatsFile is the persisted shape of the daily ledger.
type StatsFile struct {
	Daily domain.DailyStats `json:"daily"`
}

// Collector implements ports.StatsRecorder with day-keyed counters and a
// bounded retention window.
type Collector struct {
	store         ports.StateStore
	logger        *logger.StyledLogger
	retentionDays int

	mu    sync.Mutex
	daily domain.DailyStats
}

func NewCollector(store ports.StateStore, retentionDays int, styledLogger *logger.StyledLogger) (*Collector, error) {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	c := &Collector{
		store:         store,
		logger:        styledLogger,
		retentionDays: retentionDays,
		daily:         make(domain.DailyStats),
	}

	var persisted StatsFile
	found, err := store.Load(statsFileName, &persisted)
	if err != nil {
		return nil, err
	}
	if found && persisted.Daily != nil {
		c.daily = persisted.Daily
	}

	c.mu.Lock()
	c.trimLocked(time.Now())
	c.mu.Unlock()

	return c, nil
}

func (c *Collector) RecordSuccess(id string) {
	c.record(id, true)
}

func (c *Collector) RecordFailure(id string) {
	c.record(id, false)
}

func (c *Collector) record(id string, success bool) {
	if id == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	date := now.UTC().Format(dateLayout)
	perID, ok := c.daily[date]
	if !ok {
		perID = make(map[string]*domain.DayStats)
		c.daily[date] = perID
		c.trimLocked(now)
	}
	day, ok := perID[id]
	if !ok {
		day = &domain.DayStats{}
		perID[id] = day
	}
	if success {
		day.Success++
	} else {
		day.Fail++
	}

	c.scheduleLocked()
}

// Snapshot deep-copies the ledger for read-only consumers.
func (c *Collector) Snapshot() domain.DailyStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.copyLocked()
}

// Totals sums the ledger for one backend across the retained window.
func (c *Collector) Totals(id string) (success, fail int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, perID := range c.daily {
		if day, ok := perID[id]; ok {
			success += day.Success
			fail += day.Fail
		}
	}
	return success, fail
}

// Forget drops a backend from the ledger, used when a credential or channel
// is removed.
func (c *Collector) Forget(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := false
	for date, perID := range c.daily {
		if _, ok := perID[id]; ok {
			delete(perID, id)
			changed = true
		}
		if len(perID) == 0 {
			delete(c.daily, date)
		}
	}
	if changed {
		c.scheduleLocked()
	}
}

func (c *Collector) trimLocked(now time.Time) {
	cutoff := now.UTC().AddDate(0, 0, -c.retentionDays).Format(dateLayout)
	for date := range c.daily {
		if date < cutoff {
			delete(c.daily, date)
		}
	}
}

func (c *Collector) copyLocked() domain.DailyStats {
	out := make(domain.DailyStats, len(c.daily))
	for date, perID := range c.daily {
		copied := make(map[string]*domain.DayStats, len(perID))
		for id, day := range perID {
			d := *day
			copied[id] = &d
		}
		out[date] = copied
	}
	return out
}

func (c *Collector) scheduleLocked() {
	snapshot := &StatsFile{Daily: c.copyLocked()}
	c.store.Schedule(statsFileName, func() any { return snapshot })
}
