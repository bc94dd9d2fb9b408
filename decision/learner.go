package decision

import "sync"

// FeedbackData is the translated payload a Pipeline hands to the Learner
// after a ProcessFeedback call. DeviceInfo fields are optional context the
// Pipeline forwards when present on the original feedback.
type FeedbackData struct {
	DecisionID    string
	DecisionType  Type
	Confidence    float64
	ActualOutcome string
	Quality       float64
	Relevance     float64
	BatteryLevel  *float64
	NetworkType   string
}

var baseAdjustment = map[string]float64{
	"success":         0.05,
	"partial_success": 0.02,
	"failure":         -0.05,
}

// Learner accumulates a per-decision-type confidence bias and weight from
// reported outcomes, which the Pipeline then injects into the Maker's
// context for every subsequent decision of that type.
type Learner struct {
	mu                  sync.RWMutex
	feedbackCount       int
	learningIterations  int
	confidenceAdjust    map[Type]float64
	typeWeights         map[Type]float64
	batteryEfficientUse bool
}

func NewLearner() *Learner {
	return &Learner{
		confidenceAdjust: make(map[Type]float64),
		typeWeights:      make(map[Type]float64),
	}
}

// Adjust applies the adjustment formula to data and accumulates the result
// into confidence_adjustments[decision_type] and decision_type_weights.
//
// base = {success: +0.05, partial_success: +0.02, failure: -0.05, else 0}.
// When batteryEfficient is true the quality/relevance terms are skipped and
// base is applied unclamped; otherwise
// adjustment = base + (quality-0.5)*0.02 + (relevance-0.5)*0.01, clamped to
// [-0.1, 0.1].
func (l *Learner) Adjust(data FeedbackData, batteryEfficient bool) float64 {
	base := baseAdjustment[data.ActualOutcome]

	var adjustment float64
	if batteryEfficient {
		adjustment = base
	} else {
		adjustment = base + (data.Quality-0.5)*0.02 + (data.Relevance-0.5)*0.01
		adjustment = clampRange(adjustment, -0.1, 0.1)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.feedbackCount++
	l.learningIterations++
	if batteryEfficient {
		l.batteryEfficientUse = true
	}
	l.confidenceAdjust[data.DecisionType] += adjustment

	weight := l.typeWeights[data.DecisionType]
	if weight == 0 {
		weight = 0.1
	}
	weight += data.Quality - 0.5
	if weight < 0.1 {
		weight = 0.1
	}
	l.typeWeights[data.DecisionType] = weight

	return adjustment
}

// GetConfidenceAdjustment returns the accumulated bias for t, 0 if none
// recorded yet.
func (l *Learner) GetConfidenceAdjustment(t Type) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.confidenceAdjust[t]
}

// GetTypeWeight returns the accumulated weight for t, with the 0.1 floor
// applied even before any feedback has been recorded.
func (l *Learner) GetTypeWeight(t Type) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if w, ok := l.typeWeights[t]; ok {
		return w
	}
	return 0.1
}

// ResetLearning clears every accumulated adjustment and weight, returning
// the Learner to its initial state.
func (l *Learner) ResetLearning() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.feedbackCount = 0
	l.learningIterations = 0
	l.batteryEfficientUse = false
	l.confidenceAdjust = make(map[Type]float64)
	l.typeWeights = make(map[Type]float64)
}

// Metrics summarizes the Learner's internal state for diagnostics.
type Metrics struct {
	FeedbackCount       int
	LearningIterations  int
	ConfidenceAdjust    map[Type]float64
	TypeWeights         map[Type]float64
	BatteryEfficientUse bool
}

// GetLearningMetrics returns a snapshot copy of the Learner's state.
func (l *Learner) GetLearningMetrics() Metrics {
	l.mu.RLock()
	defer l.mu.RUnlock()
	m := Metrics{
		FeedbackCount:       l.feedbackCount,
		LearningIterations:  l.learningIterations,
		BatteryEfficientUse: l.batteryEfficientUse,
		ConfidenceAdjust:    make(map[Type]float64, len(l.confidenceAdjust)),
		TypeWeights:         make(map[Type]float64, len(l.typeWeights)),
	}
	for k, v := range l.confidenceAdjust {
		m.ConfidenceAdjust[k] = v
	}
	for k, v := range l.typeWeights {
		m.TypeWeights[k] = v
	}
	return m
}

func clampRange(v, min, max float64) float64 {
	switch {
	case v < min:
		return min
	case v > max:
		return max
	default:
		return v
	}
}
