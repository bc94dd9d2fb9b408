package executive

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/flipsync/flipsync/agentruntime"
	"github.com/flipsync/flipsync/core"
	"github.com/flipsync/flipsync/llm"
)

const analysisCacheSize = 512

// Executive is the orchestrator: it updates agent status and performance
// metrics in the registry it is given; the Runtime registers the agents.
type Executive struct {
	registry    *agentruntime.Registry
	gateway     llm.Gateway
	marketAgent MarketIntelligenceProvider
	templates   []coordinationTemplate
	logger      core.Logger
	cache       *singleFlightCache

	historyMu sync.RWMutex
	history   []agentruntime.CoordinationMessage
}

// Option configures an Executive at construction time.
type Option func(*Executive)

func WithMarketAgent(agent MarketIntelligenceProvider) Option {
	return func(e *Executive) { e.marketAgent = agent }
}

func WithLogger(logger core.Logger) Option {
	return func(e *Executive) { e.logger = logger }
}

func WithCoordinationTemplates(yamlDoc string) Option {
	return func(e *Executive) {
		if templates, err := parseCoordinationTemplates(yamlDoc); err == nil {
			e.templates = templates
		}
	}
}

func NewExecutive(registry *agentruntime.Registry, gateway llm.Gateway, opts ...Option) *Executive {
	templates, _ := parseCoordinationTemplates(defaultCoordinationTemplatesYAML)
	e := &Executive{
		registry:  registry,
		gateway:   gateway,
		templates: templates,
		logger:    core.NoOpLogger{},
		cache:     newSingleFlightCache(analysisCacheSize),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// AnalyzeStrategicSituation gathers business intelligence, asks the LLM
// gateway for a structured recommendation (falling back to a deterministic
// template if the gateway is unavailable or its reply doesn't parse),
// and derives resource allocation, risk assessment, and a coordination
// plan. Results are cached for 30 minutes per (decision_type,
// business_context); concurrent callers sharing a key wait on the first.
func (e *Executive) AnalyzeStrategicSituation(ctx context.Context, req StrategicRequest) (StrategicAnalysis, error) {
	key := analysisCacheKey(req)
	return e.cache.do(key, func() (StrategicAnalysis, error) {
		intelligence := e.gatherBusinessIntelligence(ctx, req)

		analysis, err := e.runLLMAnalysis(ctx, req, intelligence)
		if err != nil {
			analysis = e.fallbackAnalysis(req, intelligence)
		}

		analysis.ResourceAllocation = deriveResourceAllocation(req)
		analysis.RiskAssessment = deriveRiskAssessment(req, analysis.RiskFactors)
		analysis.AgentCoordinationPlan = coordinationPlanFor(e.templates, req.Objectives)
		return analysis, nil
	})
}

func (e *Executive) gatherBusinessIntelligence(ctx context.Context, req StrategicRequest) map[string]interface{} {
	intelligence := make(map[string]interface{}, len(req.Metrics)+1)
	for k, v := range req.Metrics {
		intelligence[k] = v
	}
	if e.marketAgent == nil {
		return intelligence
	}
	resp, err := e.marketAgent.HandleMessage(ctx, map[string]interface{}{
		"request_type": "market_intelligence",
		"context":      req.BusinessContext,
	}, "", "")
	if err != nil {
		e.logger.WarnWithContext(ctx, "market intelligence unavailable for strategic analysis", map[string]interface{}{
			"error": err.Error(),
		})
		return intelligence
	}
	intelligence["market_data"] = resp.Content
	return intelligence
}

type llmAnalysisPayload struct {
	StrategicSummary   string   `json:"strategic_summary"`
	Recommendations    []string `json:"recommendations"`
	ImplementationPlan []string `json:"implementation_plan"`
	PerformanceMetrics map[string]interface{} `json:"performance_metrics"`
	Confidence         float64  `json:"confidence"`
	RiskFactors        []string `json:"risk_factors"`
}

func (e *Executive) runLLMAnalysis(ctx context.Context, req StrategicRequest, intelligence map[string]interface{}) (StrategicAnalysis, error) {
	if e.gateway == nil {
		return StrategicAnalysis{}, fmt.Errorf("llm gateway not configured")
	}

	intelligenceJSON, _ := json.Marshal(intelligence)
	prompt := fmt.Sprintf(
		"Business context: %v\nObjectives: %v\nBusiness intelligence: %s\n\n"+
			"Respond with ONLY a JSON object of this exact shape: "+
			`{"strategic_summary": string, "recommendations": [string], `+
			`"implementation_plan": [string], "performance_metrics": object, `+
			`"confidence": number between 0 and 1, "risk_factors": [string]}`,
		req.BusinessContext, req.Objectives, string(intelligenceJSON),
	)

	resp, err := e.gateway.Generate(ctx, llm.Request{
		Prompt:       prompt,
		SystemPrompt: "You are the strategic planning assistant for an e-commerce operations platform. Reply with raw JSON only, no prose and no markdown fences.",
	})
	if err != nil {
		return StrategicAnalysis{}, fmt.Errorf("llm generate: %w", err)
	}

	var payload llmAnalysisPayload
	if err := json.Unmarshal([]byte(strings.TrimSpace(resp.Content)), &payload); err != nil {
		return StrategicAnalysis{}, fmt.Errorf("parse llm response: %w", err)
	}

	return StrategicAnalysis{
		StrategicSummary:   payload.StrategicSummary,
		Recommendations:    payload.Recommendations,
		ImplementationPlan: payload.ImplementationPlan,
		PerformanceMetrics: payload.PerformanceMetrics,
		Confidence:         payload.Confidence,
		RiskFactors:        payload.RiskFactors,
	}, nil
}

// fallbackAnalysis is the deterministic template used when the LLM gateway
// is unavailable or its reply doesn't parse as the demanded JSON shape.
func (e *Executive) fallbackAnalysis(req StrategicRequest, intelligence map[string]interface{}) StrategicAnalysis {
	summary := fmt.Sprintf("Strategic analysis for objectives %v based on %d available business metrics.", req.Objectives, len(intelligence))
	recommendations := make([]string, 0, len(req.Objectives))
	for _, objective := range req.Objectives {
		recommendations = append(recommendations, fmt.Sprintf("Prioritize %s given current operational data.", objective))
	}
	return StrategicAnalysis{
		StrategicSummary:   summary,
		Recommendations:    recommendations,
		ImplementationPlan: []string{"Review current metrics", "Align specialist agents to objectives", "Re-evaluate in next analysis cycle"},
		PerformanceMetrics: intelligence,
		Confidence:         0.5,
		RiskFactors:        []string{"analysis generated without live LLM input"},
		Fallback:           true,
	}
}

func deriveResourceAllocation(req StrategicRequest) ResourceAllocation {
	objectives := req.Objectives
	if len(objectives) == 0 {
		return ResourceAllocation{BudgetSplit: map[string]float64{}, TeamSplit: map[string]float64{}, TimelineWeeks: 12}
	}

	budget := floatMetric(req.Metrics, "budget", 0)
	teamSize := floatMetric(req.Metrics, "team_size", 0)
	timelineWeeks := int(floatMetric(req.Metrics, "timeline_weeks", 12))

	share := 1.0 / float64(len(objectives))
	budgetSplit := make(map[string]float64, len(objectives))
	teamSplit := make(map[string]float64, len(objectives))
	for _, objective := range objectives {
		budgetSplit[objective] = budget * share
		teamSplit[objective] = teamSize * share
	}
	return ResourceAllocation{BudgetSplit: budgetSplit, TeamSplit: teamSplit, TimelineWeeks: timelineWeeks}
}

func deriveRiskAssessment(req StrategicRequest, factors []string) RiskAssessment {
	budget := floatMetric(req.Metrics, "budget", 0)
	severity := "low"
	switch {
	case budget >= 100000:
		severity = "high"
	case budget >= 10000:
		severity = "medium"
	}
	return RiskAssessment{Severity: severity, Factors: factors}
}

func floatMetric(metrics map[string]interface{}, key string, def float64) float64 {
	v, ok := metrics[key]
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

// CoordinateWithAgent dispatches one inter-agent message by message_type,
// appends it to the coordination history, and always closes by updating
// the source agent's performance metrics.
func (e *Executive) CoordinateWithAgent(ctx context.Context, msg agentruntime.CoordinationMessage) (agentruntime.AgentResponse, error) {
	e.historyMu.Lock()
	e.history = append(e.history, msg)
	e.historyMu.Unlock()

	var resp agentruntime.AgentResponse
	resp.AgentType = "executive"
	resp.Confidence = 1.0

	switch msg.MessageType {
	case agentruntime.MessageTaskAssignment:
		e.registry.SetStatus(msg.ToAgent, agentruntime.AgentBusy)
		taskID := contentHash(msg.Content) % 10000
		resp.Content = fmt.Sprintf("task %d assigned to %s", taskID, msg.ToAgent)
		resp.Metadata = map[string]interface{}{
			"task_id":              taskID,
			"estimated_completion": time.Now().Add(30 * time.Minute).Format(time.RFC3339),
		}

	case agentruntime.MessageStatusUpdate:
		status, _ := msg.Content["status"].(string)
		resp.Content = fmt.Sprintf("status update recorded: %s", status)

	case agentruntime.MessageCoordinationRequest:
		requestType, _ := msg.Content["request_type"].(string)
		if requestType == "market_intelligence" {
			resp.Content = "coordination_approved"
		} else {
			resp.Content = "coordination_pending"
		}

	case agentruntime.MessagePerformanceReport:
		e.mergePerformanceReport(msg.FromAgent, msg.Content)
		resp.Content = "performance_report_merged"

	default:
		resp.Content = "coordination_acknowledged"
	}

	outcome, _ := msg.Content["status"].(string)
	if outcome == "" {
		outcome = "success"
	}
	e.UpdateAgentPerformanceMetrics(msg.FromAgent, outcome)

	return resp, nil
}

func (e *Executive) mergePerformanceReport(agentID string, content map[string]interface{}) {
	completed := intField(content, "completed_delta")
	failed := intField(content, "failed_delta")
	avgResponse := time.Duration(floatMetric(content, "avg_response_time_ms", 0)) * time.Millisecond
	for i := 0; i < completed; i++ {
		e.registry.RecordOutcome(agentID, true, avgResponse)
	}
	for i := 0; i < failed; i++ {
		e.registry.RecordOutcome(agentID, false, avgResponse)
	}
}

func intField(content map[string]interface{}, key string) int {
	return int(floatMetric(content, key, 0))
}

// UpdateAgentPerformanceMetrics records one coordination outcome against
// agentID. A status beginning with "error" counts as a failure.
func (e *Executive) UpdateAgentPerformanceMetrics(agentID, status string) {
	if agentID == "" {
		return
	}
	success := !strings.HasPrefix(status, "error")
	e.registry.RecordOutcome(agentID, success, 0)
}

func contentHash(content map[string]interface{}) int {
	payload, _ := json.Marshal(content)
	h := fnv.New32a()
	_, _ = h.Write(payload)
	return int(h.Sum32())
}

const (
	healthThresholdGood = 0.8
	healthThresholdFair = 0.6
	slowResponseSeconds = 3.0
	historyQueueWarning = 100
)

// MonitorAgentPerformance snapshots the registry and metrics and computes
// overall system health plus per-agent recommendations.
func (e *Executive) MonitorAgentPerformance() SystemHealthReport {
	entries := e.registry.Snapshot()
	metrics := e.registry.MetricsSnapshot()

	var activeCount int
	var successSum float64
	var tracked int
	var recommendations []string

	for _, entry := range entries {
		if entry.Status != agentruntime.AgentError {
			activeCount++
		}
		m, ok := metrics[entry.AgentID]
		if !ok {
			continue
		}
		tracked++
		successSum += m.SuccessRate
		if m.SuccessRate < healthThresholdGood {
			recommendations = append(recommendations, fmt.Sprintf("%s: success_rate %.2f below target", entry.AgentID, m.SuccessRate))
		}
		if m.AvgResponseTime.Seconds() > slowResponseSeconds {
			recommendations = append(recommendations, fmt.Sprintf("%s: avg_response_time %s exceeds %.1fs", entry.AgentID, m.AvgResponseTime, slowResponseSeconds))
		}
	}

	averageSuccessRate := 0.0
	if tracked > 0 {
		averageSuccessRate = successSum / float64(tracked)
	}
	activePercentage := 0.0
	if len(entries) > 0 {
		activePercentage = float64(activeCount) / float64(len(entries)) * 100
	}

	health := "poor"
	switch {
	case averageSuccessRate >= healthThresholdGood:
		health = "good"
	case averageSuccessRate >= healthThresholdFair:
		health = "fair"
	}

	e.historyMu.RLock()
	historyLen := len(e.history)
	e.historyMu.RUnlock()
	if historyLen > historyQueueWarning {
		recommendations = append(recommendations, "coordination history exceeds 100 entries; queue capacity should be increased")
	}

	return SystemHealthReport{
		OverallHealth:          health,
		ActiveAgentsPercentage: activePercentage,
		AverageSuccessRate:     averageSuccessRate,
		CoordinationMessages:   historyLen,
		Recommendations:        recommendations,
		GeneratedAt:            time.Now(),
	}
}

// CoordinationHistory returns a copy of every coordination message handled
// so far.
func (e *Executive) CoordinationHistory() []agentruntime.CoordinationMessage {
	e.historyMu.RLock()
	defer e.historyMu.RUnlock()
	out := make([]agentruntime.CoordinationMessage, len(e.history))
	copy(out, e.history)
	return out
}
