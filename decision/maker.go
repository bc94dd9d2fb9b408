package decision

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Maker implements the MakeDecision algorithm: filter options by
// constraints, score survivors with a battery/network-aware weighting, and
// select the maximum-scoring option.
type Maker struct{}

func NewMaker() *Maker { return &Maker{} }

// Make filters and scores options and returns a PENDING, TypeSelection
// Decision, or a structured *Error for NO_OPTIONS / NO_VALID_OPTIONS.
func (m *Maker) Make(ctx map[string]interface{}, options []Option, constraints *Constraints) (*Decision, error) {
	if len(options) == 0 {
		return nil, NewError(ErrNoOptions, "no options provided", nil)
	}

	survivors := make([]Option, 0, len(options))
	for _, opt := range options {
		if constraints.Satisfies(opt) {
			survivors = append(survivors, opt)
		}
	}
	if len(survivors) == 0 {
		return nil, NewError(ErrNoValidOptions, "no options satisfy constraints", map[string]interface{}{
			"option_count": len(options),
		})
	}

	device := deviceInfoFromContext(ctx)
	batteryEfficient := device.BatteryLevel != nil && *device.BatteryLevel < 0.3
	networkEfficient := device.NetworkType == "cellular"

	type scored struct {
		opt   Option
		score float64
	}
	scores := make([]scored, len(survivors))
	bestIdx := 0
	for i, opt := range survivors {
		score := 0.5
		if opt.Value != nil {
			score = *opt.Value / 100
		}
		if batteryEfficient && opt.BatteryCost != nil {
			score = 0.5*score + 0.5*(1-*opt.BatteryCost)
		}
		if networkEfficient && opt.NetworkCost != nil {
			score = 0.7*score + 0.3*(1-*opt.NetworkCost)
		}
		score = clamp01(score)
		scores[i] = scored{opt: opt, score: score}
		if score > scores[bestIdx].score {
			bestIdx = i
		}
	}

	best := scores[bestIdx]
	alternatives := make([]string, 0, len(survivors)-1)
	for i, s := range scores {
		if i != bestIdx {
			alternatives = append(alternatives, s.opt.ID)
		}
	}

	reasoning := buildReasoning(best.opt, best.score, scenarioFromContext(ctx), batteryEfficient, networkEfficient)

	d := &Decision{
		ID:               uuid.New().String(),
		Type:             TypeSelection,
		Action:           best.opt.ID,
		Confidence:       best.score,
		Reasoning:        reasoning,
		Alternatives:     alternatives,
		Context:          DeepCopyContext(ctx),
		BatteryEfficient: batteryEfficient,
		NetworkEfficient: networkEfficient,
		Metadata: Metadata{
			Status:     StatusPending,
			MaxRetries: 3,
		},
	}
	return d, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func buildReasoning(opt Option, confidence float64, scenario string, batteryEfficient, networkEfficient bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Selected %q", opt.ID)
	if opt.Value != nil {
		fmt.Fprintf(&b, " (value=%.2f)", *opt.Value)
	}
	fmt.Fprintf(&b, " with confidence %.2f", confidence)
	if scenario != "" {
		fmt.Fprintf(&b, " for scenario %q", scenario)
	}
	if batteryEfficient {
		b.WriteString("; optimized for low battery")
	}
	if networkEfficient {
		b.WriteString("; optimized for cellular network")
	}
	return b.String()
}
