package decision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineMakeValidateExecute(t *testing.T) {
	p := NewPipeline(nil, 0)
	require.NoError(t, p.Validator().Register(MinimumConfidence(0.3)))

	opts := []Option{{ID: "a", Value: ptr(80)}}
	d, err := p.MakeDecision(nil, opts, nil, false)
	require.NoError(t, err)

	valid, messages, err := p.ValidateDecision(d)
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Empty(t, messages)

	got, err := p.GetDecision(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, got.Metadata.Status)

	require.NoError(t, p.ExecuteDecision(context.Background(), got, false, false))
	final, err := p.GetDecision(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, final.Metadata.Status)
}

func TestPipelineValidationFailureRejects(t *testing.T) {
	p := NewPipeline(nil, 0)
	require.NoError(t, p.Validator().Register(MinimumConfidence(0.99)))

	opts := []Option{{ID: "a", Value: ptr(10)}}
	d, err := p.MakeDecision(nil, opts, nil, false)
	require.NoError(t, err)

	valid, messages, err := p.ValidateDecision(d)
	require.NoError(t, err)
	assert.False(t, valid)
	assert.NotEmpty(t, messages)

	got, err := p.GetDecision(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, got.Metadata.Status)
}

func TestPipelineExecuteDecisionFailureMarksFailed(t *testing.T) {
	execErr := assert.AnError
	p := NewPipeline(nil, 0, WithExecutor(FuncExecutor(func(context.Context, *Decision) error {
		return execErr
	})))

	opts := []Option{{ID: "a", Value: ptr(80)}}
	d, err := p.MakeDecision(nil, opts, nil, false)
	require.NoError(t, err)
	require.NoError(t, transitionToApproved(p, d.ID))

	err = p.ExecuteDecision(context.Background(), d, false, false)
	require.Error(t, err)

	got, err := p.GetDecision(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, got.Metadata.Status)
}

func transitionToApproved(p *Pipeline, id string) error {
	if _, err := p.tracker.UpdateStatus(id, StatusValidating, false); err != nil {
		return err
	}
	_, err := p.tracker.UpdateStatus(id, StatusApproved, false)
	return err
}

func TestPipelineProcessFeedbackUnknownDecision(t *testing.T) {
	p := NewPipeline(nil, 0)
	_, err := p.ProcessFeedback("missing", Feedback{ActualOutcome: "success"}, false, false)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrDecisionNotFound))
}

func TestPipelineProcessFeedbackFeedsLearning(t *testing.T) {
	p := NewPipeline(nil, 0)
	opts := []Option{{ID: "a", Value: ptr(80)}}
	d, err := p.MakeDecision(nil, opts, nil, false)
	require.NoError(t, err)

	adj, err := p.ProcessFeedback(d.ID, Feedback{
		ActualOutcome:  "success",
		QualityScore:   ptr(0.9),
		RelevanceScore: ptr(0.9),
	}, false, false)
	require.NoError(t, err)
	assert.InDelta(t, 0.062, adj, 1e-9)

	metrics := p.GetLearningMetrics()
	assert.Equal(t, 1, metrics.FeedbackCount)
}

func TestPipelineProcessFeedbackForwardsDeviceInfoToLearner(t *testing.T) {
	p := NewPipeline(nil, 0)
	opts := []Option{{ID: "a", Value: ptr(80)}}
	d, err := p.MakeDecision(nil, opts, nil, false)
	require.NoError(t, err)

	adj, err := p.ProcessFeedback(d.ID, Feedback{
		ActualOutcome: "success",
		Data: map[string]interface{}{
			"battery_level": 0.15,
			"network_type":  "cellular",
		},
	}, false, true)
	require.NoError(t, err)
	assert.InDelta(t, baseAdjustment["success"], adj, 1e-9)
}

func TestPipelineLearningBiasesSubsequentDecisions(t *testing.T) {
	p := NewPipeline(nil, 0)
	opts := []Option{{ID: "a", Value: ptr(80)}}
	d, err := p.MakeDecision(nil, opts, nil, false)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := p.ProcessFeedback(d.ID, Feedback{
			ActualOutcome:  "success",
			QualityScore:   ptr(0.9),
			RelevanceScore: ptr(0.9),
		}, false, false)
		require.NoError(t, err)
	}

	second, err := p.MakeDecision(nil, opts, nil, false)
	require.NoError(t, err)
	adjustments := second.Context["learning_adjustments"].(map[string]interface{})
	assert.GreaterOrEqual(t, adjustments[string(TypeSelection)].(float64), 0.09)
}

func TestPipelineSyncOfflineDecisions(t *testing.T) {
	p := NewPipeline(nil, 0)
	opts := []Option{{ID: "a", Value: ptr(80)}}
	_, err := p.MakeDecision(nil, opts, nil, true)
	require.NoError(t, err)

	n, err := p.SyncOfflineDecisions()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
