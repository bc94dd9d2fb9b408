package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLearnerAdjustSuccess(t *testing.T) {
	l := NewLearner()
	adj := l.Adjust(FeedbackData{DecisionType: TypeSelection, ActualOutcome: "success", Quality: 0.9, Relevance: 0.9}, false)
	assert.InDelta(t, 0.062, adj, 1e-9)
	assert.InDelta(t, 0.062, l.GetConfidenceAdjustment(TypeSelection), 1e-9)
}

func TestLearnerAccumulatesAcrossCalls(t *testing.T) {
	l := NewLearner()
	for i := 0; i < 3; i++ {
		l.Adjust(FeedbackData{DecisionType: TypeSelection, ActualOutcome: "success", Quality: 0.9, Relevance: 0.9}, false)
	}
	assert.GreaterOrEqual(t, l.GetConfidenceAdjustment(TypeSelection), 0.09)
}

func TestLearnerBatteryEfficientSkipsQualityRelevance(t *testing.T) {
	l := NewLearner()
	adj := l.Adjust(FeedbackData{DecisionType: TypeAction, ActualOutcome: "success", Quality: 0, Relevance: 0}, true)
	assert.Equal(t, 0.05, adj)
}

func TestLearnerClampsToRange(t *testing.T) {
	l := NewLearner()
	adj := l.Adjust(FeedbackData{DecisionType: TypeAction, ActualOutcome: "failure", Quality: 0, Relevance: 0}, false)
	assert.GreaterOrEqual(t, adj, -0.1)
}

func TestLearnerFailureStrictlyDecreasesAdjustment(t *testing.T) {
	l := NewLearner()
	before := l.GetConfidenceAdjustment(TypeAction)
	adj := l.Adjust(FeedbackData{DecisionType: TypeAction, ActualOutcome: "failure", Quality: 0, Relevance: 0}, false)
	after := l.GetConfidenceAdjustment(TypeAction)
	assert.Less(t, after, before)
	assert.GreaterOrEqual(t, adj, -0.1)
}

func TestLearnerWeightFloor(t *testing.T) {
	l := NewLearner()
	for i := 0; i < 20; i++ {
		l.Adjust(FeedbackData{DecisionType: TypeAction, ActualOutcome: "failure", Quality: 0, Relevance: 0}, false)
	}
	assert.GreaterOrEqual(t, l.GetTypeWeight(TypeAction), 0.1)
}

func TestLearnerResetLearning(t *testing.T) {
	l := NewLearner()
	l.Adjust(FeedbackData{DecisionType: TypeAction, ActualOutcome: "success", Quality: 0.8, Relevance: 0.8}, false)
	l.ResetLearning()
	assert.Equal(t, 0.0, l.GetConfidenceAdjustment(TypeAction))
	metrics := l.GetLearningMetrics()
	assert.Equal(t, 0, metrics.FeedbackCount)
}
