package decision

import (
	"sync"
	"time"
)

// Feedback is one recorded outcome report for a tracked decision.
type Feedback struct {
	DecisionID     string                 `json:"decision_id"`
	ActualOutcome  string                 `json:"actual_outcome"`
	QualityScore   *float64               `json:"quality_score,omitempty"`
	RelevanceScore *float64               `json:"relevance_score,omitempty"`
	Comments       string                 `json:"comments,omitempty"`
	Data           map[string]interface{} `json:"data,omitempty"`
	Timestamp      time.Time              `json:"timestamp"`
}

// FeedbackFilter narrows FeedbackProcessor.Query results.
type FeedbackFilter struct {
	DecisionID    string
	ActualOutcome string
}

// FeedbackProcessor records and summarizes outcome feedback against tracked
// decisions. It does not call Learner.Adjust itself: Pipeline.ProcessFeedback
// records feedback here and then drives one learning update.
type FeedbackProcessor struct {
	mu        sync.RWMutex
	byID      map[string][]Feedback
	all       []Feedback
	publisher Publisher

	offline OfflineStore
}

// FeedbackProcessorOption configures optional FeedbackProcessor
// construction parameters.
type FeedbackProcessorOption func(*FeedbackProcessor)

// WithFeedbackOfflineStore swaps the default in-memory offline buffer for
// a custom OfflineStore, e.g. RedisOfflineStore for durability across
// process restarts.
func WithFeedbackOfflineStore(store OfflineStore) FeedbackProcessorOption {
	return func(p *FeedbackProcessor) { p.offline = store }
}

func NewFeedbackProcessor(publisher Publisher, maxOfflineBuffer int, opts ...FeedbackProcessorOption) *FeedbackProcessor {
	if publisher == nil {
		publisher = NoOpPublisher{}
	}
	p := &FeedbackProcessor{
		byID:      make(map[string][]Feedback),
		publisher: publisher,
		offline:   newMemoryOfflineStore(maxOfflineBuffer),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Record stores fb against its decision, appends it to the global feed, and
// publishes a feedback_processed event (live or buffered offline).
func (p *FeedbackProcessor) Record(fb Feedback, offline bool) error {
	if fb.Timestamp.IsZero() {
		fb.Timestamp = time.Now()
	}

	p.mu.Lock()
	p.byID[fb.DecisionID] = append(p.byID[fb.DecisionID], fb)
	p.all = append(p.all, fb)
	p.mu.Unlock()

	event := newEvent("feedback_processed", map[string]interface{}{
		"decision_id":    fb.DecisionID,
		"actual_outcome": fb.ActualOutcome,
		"timestamp":      fb.Timestamp.Format(time.RFC3339),
	})
	if offline {
		return p.enqueueOffline(event)
	}
	return p.publisher.Publish(event)
}

// ForDecision returns every feedback entry recorded against id, oldest first.
func (p *FeedbackProcessor) ForDecision(id string) []Feedback {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Feedback, len(p.byID[id]))
	copy(out, p.byID[id])
	return out
}

// Query returns every recorded feedback entry matching filter, oldest first.
func (p *FeedbackProcessor) Query(filter *FeedbackFilter) []Feedback {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]Feedback, 0, len(p.all))
	for _, fb := range p.all {
		if filter != nil {
			if filter.DecisionID != "" && fb.DecisionID != filter.DecisionID {
				continue
			}
			if filter.ActualOutcome != "" && fb.ActualOutcome != filter.ActualOutcome {
				continue
			}
		}
		out = append(out, fb)
	}
	return out
}

// Summary aggregates recorded feedback for id: counts of each actual_outcome
// value and the mean of any present quality/relevance scores.
type Summary struct {
	DecisionID       string
	Count            int
	OutcomeCounts    map[string]int
	AverageQuality   float64
	AverageRelevance float64
}

// Summarize builds a Summary over every feedback entry recorded for id.
func (p *FeedbackProcessor) Summarize(id string) Summary {
	entries := p.ForDecision(id)
	summary := Summary{DecisionID: id, OutcomeCounts: make(map[string]int)}
	var qualitySum, relevanceSum float64
	var qualityN, relevanceN int
	for _, fb := range entries {
		summary.Count++
		summary.OutcomeCounts[fb.ActualOutcome]++
		if fb.QualityScore != nil {
			qualitySum += *fb.QualityScore
			qualityN++
		}
		if fb.RelevanceScore != nil {
			relevanceSum += *fb.RelevanceScore
			relevanceN++
		}
	}
	if qualityN > 0 {
		summary.AverageQuality = qualitySum / float64(qualityN)
	}
	if relevanceN > 0 {
		summary.AverageRelevance = relevanceSum / float64(relevanceN)
	}
	return summary
}

func (p *FeedbackProcessor) enqueueOffline(e Event) error {
	return p.offline.Append(e)
}

// SyncOfflineFeedback drains and republishes the offline queue in original
// order, same semantics as Tracker.SyncOfflineDecisions.
func (p *FeedbackProcessor) SyncOfflineFeedback() int {
	queued := p.offline.DrainAll()
	for _, e := range queued {
		_ = p.publisher.Publish(e)
	}
	return len(queued)
}
