// Package executive implements the Executive orchestrator: it owns the
// agent registry and performance metrics, runs strategic analysis through
// the LLM gateway with a deterministic fallback, dispatches inter-agent
// coordination messages, and reports system health.
package executive

import (
	"time"

	"github.com/flipsync/flipsync/agentruntime"
)

// StrategicRequest is the input to AnalyzeStrategicSituation.
type StrategicRequest struct {
	DecisionType    string                 `json:"decision_type"`
	BusinessContext map[string]interface{} `json:"business_context"`
	Objectives      []string               `json:"objectives"`
	Metrics         map[string]interface{} `json:"metrics"`
}

// ResourceAllocation is an objectives-driven budget/team/timeline split.
type ResourceAllocation struct {
	BudgetSplit   map[string]float64 `json:"budget_split"`
	TeamSplit     map[string]float64 `json:"team_split"`
	TimelineWeeks int                `json:"timeline_weeks"`
}

// RiskAssessment is the severity band derived from the request's budget,
// plus the risk factors surfaced by the LLM (or the fallback template).
type RiskAssessment struct {
	Severity string   `json:"severity"`
	Factors  []string `json:"factors"`
}

// StrategicAnalysis is the cached composite result of
// AnalyzeStrategicSituation.
type StrategicAnalysis struct {
	StrategicSummary      string                 `json:"strategic_summary"`
	Recommendations       []string               `json:"recommendations"`
	ImplementationPlan    []string               `json:"implementation_plan"`
	PerformanceMetrics    map[string]interface{} `json:"performance_metrics"`
	Confidence            float64                `json:"confidence"`
	RiskFactors           []string               `json:"risk_factors"`
	ResourceAllocation    ResourceAllocation     `json:"resource_allocation"`
	RiskAssessment        RiskAssessment         `json:"risk_assessment"`
	AgentCoordinationPlan map[string][]string    `json:"agent_coordination_plan"`
	Fallback              bool                   `json:"fallback"`
	FromCache              bool                   `json:"from_cache"`
}

// SystemHealthReport is the result of MonitorAgentPerformance.
type SystemHealthReport struct {
	OverallHealth          string    `json:"overall_health"`
	ActiveAgentsPercentage float64   `json:"active_agents_percentage"`
	AverageSuccessRate     float64   `json:"average_success_rate"`
	CoordinationMessages   int       `json:"coordination_messages"`
	Recommendations        []string  `json:"recommendations"`
	GeneratedAt            time.Time `json:"generated_at"`
}

// MarketIntelligenceProvider is the managed Market agent's side of
// AnalyzeStrategicSituation's business-intelligence gathering step. It is
// the same shape as agentruntime.Conversational, so any specialist agent
// can serve as the Executive's market data source without an adapter.
type MarketIntelligenceProvider = agentruntime.Conversational
