// Package main wires every FlipSync component into a single runnable
// process: the Runtime owns construction order, lifecycle (start/stop of
// the background sync loops), and the default in-process wiring between
// the Decision Pipeline, Approval Router, Executive, and the marketplace
// adapters the Cross-Marketplace Sync & Order Engine polls.
package main

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-redis/redis/v8"

	"github.com/flipsync/flipsync/agentruntime"
	"github.com/flipsync/flipsync/agents"
	"github.com/flipsync/flipsync/approval"
	"github.com/flipsync/flipsync/core"
	"github.com/flipsync/flipsync/decision"
	"github.com/flipsync/flipsync/executive"
	"github.com/flipsync/flipsync/llm"
	"github.com/flipsync/flipsync/marketplace"
	"github.com/flipsync/flipsync/resilience"
	"github.com/flipsync/flipsync/syncengine"
	"github.com/flipsync/flipsync/telemetry"
)

// MarketplaceCredentials is one configured marketplace adapter's connection
// details. A deployment supplies one entry per marketplace it sells on.
type MarketplaceCredentials struct {
	Name    string
	BaseURL string
	APIKey  string
}

// Runtime is the process composition root: every long-lived component a
// FlipSync deployment needs, constructed once and started/stopped together.
type Runtime struct {
	cfg    *core.Config
	logger core.Logger

	telemetry   *telemetry.Provider
	costTracker *llm.CostTracker
	gateway     llm.Gateway

	adapters map[string]marketplace.Adapter

	registry  *agentruntime.Registry
	executive *executive.Executive

	marketAgent     *agents.MarketAgent
	contentAgent    *agents.ContentAgent
	logisticsAgent  *agents.LogisticsAgent
	automationAgent *agents.AutomationAgent

	pipeline *decision.Pipeline
	router   *approval.Router
	sync     *syncengine.Engine

	redisClient *redis.Client

	mu      sync.Mutex
	started bool
}

// Option customizes Runtime construction.
type Option func(*runtimeOptions)

type runtimeOptions struct {
	llmBaseURL, llmAPIKey string
	marketplaces          []MarketplaceCredentials
}

// WithLLMGateway points the Runtime's LLM gateway at a live endpoint.
// Without this option the Executive and specialist agents fall back to
// their deterministic, gateway-less analysis paths.
func WithLLMGateway(baseURL, apiKey string) Option {
	return func(o *runtimeOptions) { o.llmBaseURL, o.llmAPIKey = baseURL, apiKey }
}

// WithMarketplace registers one marketplace adapter's credentials.
func WithMarketplace(creds MarketplaceCredentials) Option {
	return func(o *runtimeOptions) { o.marketplaces = append(o.marketplaces, creds) }
}

// wellKnownAgentIDs are the fixed specialist-agent ids the Runtime always
// registers, used to look up any previously mirrored registry state on
// startup.
var wellKnownAgentIDs = []string{"market-agent", "content-agent", "logistics-agent", "automation-agent"}

// NewRuntime constructs every component and wires them together, but starts
// no background loops; call Start once the Runtime is ready to begin
// polling marketplaces.
func NewRuntime(cfg *core.Config, opts ...Option) (*Runtime, error) {
	var ro runtimeOptions
	for _, opt := range opts {
		opt(&ro)
	}

	logger := cfg.NewLogger()

	provider, err := telemetry.NewProvider(cfg.ServiceName, logger)
	if err != nil {
		return nil, fmt.Errorf("runtime: init telemetry: %w", err)
	}

	costTracker := llm.NewCostTracker(cfg.Executive.CostCeilingUSD, logger)
	var gateway llm.Gateway
	if ro.llmBaseURL != "" {
		gateway = llm.NewTrackedGateway(llm.NewHTTPGateway(ro.llmBaseURL, ro.llmAPIKey,
			llm.WithLogger(logger),
			llm.WithTelemetry(provider),
			llm.WithCircuitBreaker(resilience.New(resilience.DefaultConfig("llm_gateway"))),
		), costTracker)
	}

	adapters := make(map[string]marketplace.Adapter, len(ro.marketplaces))
	for _, mp := range ro.marketplaces {
		adapters[mp.Name] = marketplace.NewRESTAdapter(mp.Name, mp.BaseURL, mp.APIKey, logger)
	}

	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisOpts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("runtime: parse redis url: %w", err)
		}
		redisClient = redis.NewClient(redisOpts)
	}

	var registryOpts []agentruntime.RegistryOption
	if redisClient != nil {
		registryOpts = append(registryOpts, agentruntime.WithMirror(core.NewRedisMemory(redisClient, "flipsync:registry:")))
	}
	registry := agentruntime.NewRegistry(registryOpts...)
	if redisClient != nil {
		if err := registry.LoadFromMirror(context.Background(), wellKnownAgentIDs); err != nil {
			return nil, fmt.Errorf("runtime: restore registry from mirror: %w", err)
		}
	}

	marketAgent := agents.NewMarketAgent(gateway, logger)
	contentAgent := agents.NewContentAgent(gateway, logger)
	automationAgent := agents.NewAutomationAgent(registry, gateway, logger)

	var logisticsAdapter marketplace.Adapter
	for _, a := range adapters {
		logisticsAdapter = a
		break
	}
	logisticsAgent := agents.NewLogisticsAgent(logisticsAdapter, gateway, logger)

	registry.Register("market-agent", "market", []string{"market_analysis", "pricing_strategy"})
	registry.Register("content-agent", "content", []string{"content_generation", "listing_optimization"})
	registry.Register("logistics-agent", "logistics", []string{"shipping", "inventory", "fulfillment"})
	registry.Register("automation-agent", "automation", []string{"workflow_automation"})

	exec := executive.NewExecutive(registry, gateway,
		executive.WithMarketAgent(marketAgent),
		executive.WithLogger(logger),
	)

	publisher := newLoggingPublisher(logger, provider.Registry())

	trackerOpts, feedbackOpts := []decision.TrackerOption{}, []decision.FeedbackProcessorOption{}
	if redisClient != nil {
		trackerOpts = append(trackerOpts, decision.WithOfflineStore(
			decision.NewRedisOfflineStore(redisClient, "flipsync:decisions:offline", cfg.Decision.MaxOfflineBuffer)))
		feedbackOpts = append(feedbackOpts, decision.WithFeedbackOfflineStore(
			decision.NewRedisOfflineStore(redisClient, "flipsync:feedback:offline", cfg.Decision.MaxOfflineBuffer)))
	}

	tracker := decision.NewTracker(publisher, cfg.Decision.MaxOfflineBuffer, trackerOpts...)
	feedback := decision.NewFeedbackProcessor(publisher, cfg.Decision.MaxOfflineBuffer, feedbackOpts...)
	pipeline := decision.NewPipeline(publisher, cfg.Decision.MaxOfflineBuffer,
		decision.WithTracker(tracker),
		decision.WithFeedbackProcessor(feedback),
	)

	router := approval.NewRouter(approval.NewInMemoryRepository(), pipeline)
	router.SetPolicy("market", approval.Policy{AutoApproveThreshold: cfg.Approval.DefaultAutoApproveThreshold, EscalationThreshold: cfg.Approval.DefaultEscalationThreshold})

	engine := syncengine.NewEngine(adapters, cfg.ServiceName, cfg.Sync, cfg.Analytics, publisher, logger)

	return &Runtime{
		cfg:             cfg,
		logger:          logger,
		telemetry:       provider,
		costTracker:     costTracker,
		gateway:         gateway,
		adapters:        adapters,
		registry:        registry,
		executive:       exec,
		marketAgent:     marketAgent,
		contentAgent:    contentAgent,
		logisticsAgent:  logisticsAgent,
		automationAgent: automationAgent,
		pipeline:        pipeline,
		router:          router,
		sync:            engine,
		redisClient:     redisClient,
	}, nil
}

// Executive exposes the wired Executive Orchestrator.
func (rt *Runtime) Executive() *executive.Executive { return rt.executive }

// Router exposes the wired Approval Router.
func (rt *Runtime) Router() *approval.Router { return rt.router }

// Pipeline exposes the wired Decision Pipeline.
func (rt *Runtime) Pipeline() *decision.Pipeline { return rt.pipeline }

// Start begins the Sync & Order Engine's background inventory, order,
// analytics, and alerting loops. It is idempotent: calling Start twice
// without an intervening Stop is a no-op.
func (rt *Runtime) Start(ctx context.Context) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.started {
		return nil
	}
	if err := rt.sync.StartInventoryManager(ctx); err != nil {
		return fmt.Errorf("runtime: start inventory manager: %w", err)
	}
	if err := rt.sync.StartOrderManager(ctx); err != nil {
		_ = rt.sync.StopInventoryManager()
		return fmt.Errorf("runtime: start order manager: %w", err)
	}
	if err := rt.sync.StartAnalyticsEngine(ctx); err != nil {
		_ = rt.sync.StopOrderManager()
		_ = rt.sync.StopInventoryManager()
		return fmt.Errorf("runtime: start analytics engine: %w", err)
	}
	if err := rt.sync.StartAlertingSystem(ctx); err != nil {
		_ = rt.sync.StopAnalyticsEngine()
		_ = rt.sync.StopOrderManager()
		_ = rt.sync.StopInventoryManager()
		return fmt.Errorf("runtime: start alerting system: %w", err)
	}
	rt.started = true
	rt.logger.Info("flipsync runtime started", map[string]interface{}{
		"marketplaces": len(rt.adapters),
		"service":      rt.cfg.ServiceName,
	})
	return nil
}

// Stop halts the background loops and releases the telemetry provider and
// Redis client, if any. Safe to call more than once.
func (rt *Runtime) Stop(ctx context.Context) error {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if !rt.started {
		return nil
	}
	var errs []error
	if err := rt.sync.StopAlertingSystem(); err != nil {
		errs = append(errs, err)
	}
	if err := rt.sync.StopAnalyticsEngine(); err != nil {
		errs = append(errs, err)
	}
	if err := rt.sync.StopOrderManager(); err != nil {
		errs = append(errs, err)
	}
	if err := rt.sync.StopInventoryManager(); err != nil {
		errs = append(errs, err)
	}
	if err := rt.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if rt.redisClient != nil {
		if err := rt.redisClient.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.started = false
	if len(errs) > 0 {
		return fmt.Errorf("runtime: stop encountered %d error(s): %v", len(errs), errs)
	}
	rt.logger.Info("flipsync runtime stopped", nil)
	return nil
}
