package source

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SweepInterval is how often the manager scans for dead sources (spec §5
// Timers: "Source manager sweeper: every 3s").
const SweepInterval = 3 * time.Second

// SourceFactory constructs a fresh StreamSource for a URL not yet known to
// the manager.
type SourceFactory func(url string) *StreamSource

// SourceManager owns the URL→StreamSource map and reclaims dead sources on
// a periodic tick (spec §4.1, §5). It holds one strong reference per source;
// each consumer's owner is expected to hold its own.
type SourceManager struct {
	mu      sync.Mutex
	sources map[string]*StreamSource
	factory SourceFactory
	logger  *slog.Logger
}

func NewSourceManager(factory SourceFactory, logger *slog.Logger) *SourceManager {
	return &SourceManager{
		sources: make(map[string]*StreamSource),
		factory: factory,
		logger:  logger,
	}
}

// FetchOrCreate returns the existing source for url, or constructs and
// registers one via the factory. The object is inserted into the map before
// any further setup runs, matching the race-critical ordering of spec §4.1/§5.
func (m *SourceManager) FetchOrCreate(url string) *StreamSource {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.sources[url]; ok {
		return s
	}
	s := m.factory(url)
	m.sources[url] = s
	return s
}

// Fetch returns the source for url, if any.
func (m *SourceManager) Fetch(url string) (*StreamSource, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[url]
	return s, ok
}

// Remove unregisters url's source unconditionally; used by the sweeper once
// StreamIsDead() is true.
func (m *SourceManager) Remove(url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sources, url)
}

// URLs returns every URL currently registered, for status reporting.
func (m *SourceManager) URLs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sources))
	for url := range m.sources {
		out = append(out, url)
	}
	return out
}

// Sweep removes every source reporting StreamIsDead(), returning the removed
// URLs (spec §4.1 stream_is_dead, §5 sweeper).
func (m *SourceManager) Sweep() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var removed []string
	for url, s := range m.sources {
		if s.StreamIsDead() {
			delete(m.sources, url)
			removed = append(removed, url)
		}
	}
	return removed
}

// Run drives the periodic sweeper until ctx is cancelled (spec §5). This is
// the cooperative-tick equivalent of the teacher's ticker-driven
// statsLoop/monitorLoop goroutines in pkg/relay/relay.go.
func (m *SourceManager) Run(ctx context.Context) {
	ticker := time.NewTicker(SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed := m.Sweep()
			if m.logger != nil {
				for _, url := range removed {
					m.logger.Debug("source reclaimed", "url", url)
				}
			}
		}
	}
}
