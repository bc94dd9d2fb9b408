// Package agents implements the specialist agents (Market, Content,
// Logistics, Automation) that the Executive coordinates. Each agent
// composes the capability interfaces in agentruntime rather than
// inheriting from a shared base type, and degrades to a fallback result
// on any downstream failure instead of returning an error, so a single
// slow marketplace or LLM call never cascade-fails orchestration.
package agents

import (
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/flipsync/flipsync/agentruntime"
)

// decodeRequest decodes a free-form content map into a typed request
// struct via mapstructure tags, the same typed-accessor-over-map pattern
// used for decision and approval metadata.
func decodeRequest(content map[string]interface{}, out interface{}) error {
	return mapstructure.Decode(content, out)
}

// degraded builds the *valid* reduced-confidence response the contract
// requires on a downstream failure: never an error, always explained.
func degraded(agentType string, start time.Time, cause error) agentruntime.AgentResponse {
	return agentruntime.AgentResponse{
		Content:      "unable to complete full analysis; returning a degraded result",
		AgentType:    agentType,
		Confidence:   0.3,
		Reasoning:    "fallback: true; downstream call failed: " + cause.Error(),
		ResponseTime: time.Since(start).Seconds(),
		Metadata:     map[string]interface{}{"fallback": true},
	}
}

func succeeded(agentType, content, reasoning string, confidence float64, start time.Time, metadata map[string]interface{}) agentruntime.AgentResponse {
	return agentruntime.AgentResponse{
		Content:      content,
		AgentType:    agentType,
		Confidence:   confidence,
		Reasoning:    reasoning,
		ResponseTime: time.Since(start).Seconds(),
		Metadata:     metadata,
	}
}
