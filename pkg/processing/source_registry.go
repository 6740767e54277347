package processing

import (
	"sort"
	"sync"

	customlog "github.com/open-teleop/kinsim/pkg/log"
)

// SourceInfo holds statistics for one command source (a transport or client)
type SourceInfo struct {
	Source       string `json:"source"`
	Accepted     int64  `json:"accepted"`
	Rejected     int64  `json:"rejected"`
	LastReceived int64  `json:"last_received_ns"`
	LastError    string `json:"last_error,omitempty"`
}

// SourceRegistry maintains statistics about command sources
type SourceRegistry struct {
	logger  customlog.Logger
	sources map[string]*SourceInfo
	mu      sync.RWMutex
}

// NewSourceRegistry creates a new source registry
func NewSourceRegistry(logger customlog.Logger) *SourceRegistry {
	return &SourceRegistry{
		logger:  logger,
		sources: make(map[string]*SourceInfo),
	}
}

// Record updates statistics for a source. err is the outcome of the command.
func (r *SourceRegistry) Record(source string, timestamp int64, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	info, exists := r.sources[source]
	if !exists {
		info = &SourceInfo{Source: source}
		r.sources[source] = info
		r.logger.Infof("New command source: %s", source)
	}

	info.LastReceived = timestamp
	if err != nil {
		info.Rejected++
		info.LastError = err.Error()
		return
	}
	info.Accepted++
}

// GetSourceInfo gets a copy of the statistics for a source
func (r *SourceRegistry) GetSourceInfo(source string) (SourceInfo, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	info, exists := r.sources[source]
	if !exists {
		return SourceInfo{}, false
	}
	return *info, true
}

// GetAllSources returns the sorted names of all sources seen so far
func (r *SourceRegistry) GetAllSources() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sources := make([]string, 0, len(r.sources))
	for source := range r.sources {
		sources = append(sources, source)
	}
	sort.Strings(sources)
	return sources
}

// GetSourceStats returns a copy of every source's statistics
func (r *SourceRegistry) GetSourceStats() []SourceInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make([]SourceInfo, 0, len(r.sources))
	for _, info := range r.sources {
		stats = append(stats, *info)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Source < stats[j].Source })
	return stats
}
