package decision

import (
	"context"
	"fmt"
)

// DecisionError is the stable-code error every Pipeline operation returns
// on failure, wrapping whatever underlying *Error or execution failure
// triggered it.
type DecisionError struct {
	Op      string
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Err     error
}

func (e *DecisionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

func (e *DecisionError) Unwrap() error { return e.Err }

func wrapErr(op string, code ErrorCode, err error) *DecisionError {
	de := &DecisionError{Op: op, Code: code, Err: err}
	if inner, ok := err.(*Error); ok {
		de.Code = inner.Code
		de.Message = inner.Message
		de.Details = inner.Details
	} else if err != nil {
		de.Message = err.Error()
	}
	return de
}

// Pipeline composes the Maker, Validator, Tracker, Feedback Processor,
// Learning Engine and Executor into the decision lifecycle: make, validate,
// execute, collect feedback, and learn from it.
type Pipeline struct {
	maker     *Maker
	validator *Validator
	tracker   *Tracker
	feedback  *FeedbackProcessor
	learner   *Learner
	executor  Executor
}

// PipelineOption configures a Pipeline at construction time.
type PipelineOption func(*Pipeline)

// WithExecutor overrides the default PassthroughExecutor.
func WithExecutor(e Executor) PipelineOption {
	return func(p *Pipeline) { p.executor = e }
}

// WithTracker overrides the default in-memory-buffered Tracker, e.g. with
// one constructed via NewTracker(publisher, cap, WithOfflineStore(...))
// for durable offline buffering.
func WithTracker(t *Tracker) PipelineOption {
	return func(p *Pipeline) { p.tracker = t }
}

// WithFeedbackProcessor overrides the default in-memory-buffered
// FeedbackProcessor, e.g. one constructed with WithFeedbackOfflineStore.
func WithFeedbackProcessor(f *FeedbackProcessor) PipelineOption {
	return func(p *Pipeline) { p.feedback = f }
}

// NewPipeline wires a Pipeline around publisher and an offline buffer cap
// shared by the Tracker and Feedback Processor.
func NewPipeline(publisher Publisher, maxOfflineBuffer int, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		maker:     NewMaker(),
		validator: NewValidator(),
		tracker:   NewTracker(publisher, maxOfflineBuffer),
		feedback:  NewFeedbackProcessor(publisher, maxOfflineBuffer),
		learner:   NewLearner(),
		executor:  PassthroughExecutor{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Validator exposes the Pipeline's rule registry so callers can
// Register/Unregister validation rules.
func (p *Pipeline) Validator() *Validator { return p.validator }

// MakeDecision enriches ctx with the Learner's accumulated per-type bias,
// delegates to the Maker, and tracks the resulting Decision.
func (p *Pipeline) MakeDecision(ctx map[string]interface{}, opts []Option, constraints *Constraints, offline bool) (*Decision, error) {
	enriched := p.enrichWithLearning(ctx)
	d, err := p.maker.Make(enriched, opts, constraints)
	if err != nil {
		return nil, wrapErr("MakeDecision", ErrDecisionMakingError, err)
	}
	if err := p.tracker.Track(d, offline); err != nil {
		return nil, wrapErr("MakeDecision", ErrDecisionMakingError, err)
	}
	return d, nil
}

func (p *Pipeline) enrichWithLearning(ctx map[string]interface{}) map[string]interface{} {
	enriched := DeepCopyContext(ctx)
	adjustments := make(map[string]interface{})
	for _, t := range allTypes {
		if adj := p.learner.GetConfidenceAdjustment(t); adj != 0 {
			adjustments[string(t)] = adj
		}
	}
	if len(adjustments) > 0 {
		enriched["learning_adjustments"] = adjustments
	}
	return enriched
}

var allTypes = []Type{
	TypeAction, TypeRecommendation, TypeOptimization, TypeAllocation,
	TypePrioritization, TypeScheduling, TypeSelection, TypeClassification,
	TypePrediction, TypeCustom,
}

// ValidateDecision runs the Validator against d and advances its tracked
// status to APPROVED or REJECTED accordingly.
func (p *Pipeline) ValidateDecision(d *Decision) (bool, []string, error) {
	valid, messages := p.validator.Validate(d)
	newStatus := StatusApproved
	if !valid {
		newStatus = StatusRejected
	}
	if _, err := p.tracker.UpdateStatus(d.ID, StatusValidating, false); err != nil {
		return false, nil, wrapErr("ValidateDecision", ErrDecisionValidationFailed, err)
	}
	if _, err := p.tracker.UpdateStatus(d.ID, newStatus, false); err != nil {
		return false, nil, wrapErr("ValidateDecision", ErrDecisionValidationFailed, err)
	}
	return valid, messages, nil
}

// ExecuteDecision optionally re-validates d, advances it through EXECUTING
// to COMPLETED/FAILED, and runs the configured Executor.
func (p *Pipeline) ExecuteDecision(ctx context.Context, d *Decision, validate bool, offline bool) error {
	if validate {
		valid, messages, err := p.ValidateDecision(d)
		if err != nil {
			return err
		}
		if !valid {
			return wrapErr("ExecuteDecision", ErrDecisionValidationFailed,
				NewError(ErrDecisionValidationFailed, "decision failed validation", map[string]interface{}{
					"messages": messages,
				}))
		}
	}

	if _, err := p.tracker.UpdateStatus(d.ID, StatusExecuting, offline); err != nil {
		return wrapErr("ExecuteDecision", ErrDecisionExecutionError, err)
	}

	execErr := p.executor.Execute(ctx, d)

	finalStatus := StatusCompleted
	if execErr != nil {
		finalStatus = StatusFailed
	}
	if _, err := p.tracker.UpdateStatus(d.ID, finalStatus, offline); err != nil {
		return wrapErr("ExecuteDecision", ErrDecisionExecutionError, err)
	}
	if execErr != nil {
		return wrapErr("ExecuteDecision", ErrDecisionExecutionError, execErr)
	}

	if !offline {
		_ = p.tracker.publisher.Publish(newEvent("decision_executed", map[string]interface{}{
			"decision_id": d.ID,
		}))
	}
	return nil
}

// ProcessFeedback looks up the decision, records the feedback, and drives
// exactly one Learner.Adjust call from its translated payload.
func (p *Pipeline) ProcessFeedback(decisionID string, fb Feedback, offline bool, batteryEfficient bool) (float64, error) {
	d, err := p.tracker.Get(decisionID)
	if err != nil {
		return 0, wrapErr("ProcessFeedback", ErrDecisionNotFound, err)
	}
	fb.DecisionID = decisionID

	if err := p.feedback.Record(fb, offline); err != nil {
		return 0, wrapErr("ProcessFeedback", ErrFeedbackProcessingError, err)
	}

	quality, relevance := 0.0, 0.0
	if fb.QualityScore != nil {
		quality = *fb.QualityScore
	}
	if fb.RelevanceScore != nil {
		relevance = *fb.RelevanceScore
	}

	var batteryLevel *float64
	var networkType string
	if fb.Data != nil {
		if v, ok := fb.Data["battery_level"].(float64); ok {
			batteryLevel = &v
		}
		if v, ok := fb.Data["network_type"].(string); ok {
			networkType = v
		}
	}

	adjustment := p.learner.Adjust(FeedbackData{
		DecisionID:    decisionID,
		DecisionType:  d.Type,
		Confidence:    d.Confidence,
		ActualOutcome: fb.ActualOutcome,
		Quality:       quality,
		Relevance:     relevance,
		BatteryLevel:  batteryLevel,
		NetworkType:   networkType,
	}, batteryEfficient)

	if !offline {
		_ = p.tracker.publisher.Publish(newEvent("learning_completed", map[string]interface{}{
			"decision_id":  decisionID,
			"decision_type": string(d.Type),
			"adjustment":   adjustment,
		}))
	}
	return adjustment, nil
}

// ResetLearning clears the Learner's accumulated state and publishes a
// learning_reset event.
func (p *Pipeline) ResetLearning() {
	p.learner.ResetLearning()
	_ = p.tracker.publisher.Publish(newEvent("learning_reset", nil))
}

// GetDecision returns a tracked decision by id.
func (p *Pipeline) GetDecision(id string) (*Decision, error) {
	d, err := p.tracker.Get(id)
	if err != nil {
		return nil, wrapErr("GetDecision", ErrDecisionRetrievalError, err)
	}
	return d, nil
}

// GetDecisionHistory returns the tracked history, optionally filtered.
func (p *Pipeline) GetDecisionHistory(filter *HistoryFilter) []HistoryEntry {
	return p.tracker.History(filter)
}

// Aggregates returns the Tracker's running aggregates.
func (p *Pipeline) Aggregates() Aggregates { return p.tracker.Aggregates() }

// GetLearningMetrics returns the Learner's current state.
func (p *Pipeline) GetLearningMetrics() Metrics { return p.learner.GetLearningMetrics() }

// SyncOfflineDecisions drains both the decision and feedback offline queues.
func (p *Pipeline) SyncOfflineDecisions() (int, error) {
	n, err := p.tracker.SyncOfflineDecisions()
	if err != nil {
		return n, wrapErr("SyncOfflineDecisions", ErrDecisionHistoryError, err)
	}
	n += p.feedback.SyncOfflineFeedback()
	return n, nil
}
