package decision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatorMinimumConfidence(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Register(MinimumConfidence(0.7)))

	d := &Decision{Confidence: 0.5}
	valid, messages := v.Validate(d)
	assert.False(t, valid)
	require.Len(t, messages, 1)
	assert.Equal(t, "minimum_confidence: Confidence too low (0.50 < 0.70)", messages[0])
}

func TestValidatorPassesWhenAllRulesSatisfied(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Register(MinimumConfidence(0.5)))
	require.NoError(t, v.Register(RequiredReasoning(5)))

	d := &Decision{Confidence: 0.8, Reasoning: "sufficient reasoning"}
	valid, messages := v.Validate(d)
	assert.True(t, valid)
	assert.Empty(t, messages)
}

func TestValidatorDuplicateRuleRejected(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Register(MinimumConfidence(0.5)))
	err := v.Register(MinimumConfidence(0.9))
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrRuleExists))
}

func TestValidatorUnregisterUnknownRule(t *testing.T) {
	v := NewValidator()
	err := v.Unregister("does_not_exist")
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrUnknownRule))
}

func TestValidatorUnregisterRemovesRule(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Register(MinimumConfidence(0.9)))
	require.NoError(t, v.Unregister("minimum_confidence"))

	d := &Decision{Confidence: 0.1}
	valid, messages := v.Validate(d)
	assert.True(t, valid)
	assert.Empty(t, messages)
}

func TestAllowedDecisionTypes(t *testing.T) {
	rule := AllowedDecisionTypes(TypeSelection, TypeAction)
	ok, _ := rule.Fn(&Decision{Type: TypeSelection})
	assert.True(t, ok)
	ok, msg := rule.Fn(&Decision{Type: TypePrediction})
	assert.False(t, ok)
	assert.Contains(t, msg, "prediction")
}
