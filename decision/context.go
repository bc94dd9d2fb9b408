package decision

import "github.com/go-viper/mapstructure/v2"

// DeviceInfo is the well-known `device_info` key of a Maker's context map.
// Unknown sibling keys in the context map are untouched: decoding only
// ever reads a copy, never replaces the caller's map.
type DeviceInfo struct {
	BatteryLevel *float64 `mapstructure:"battery_level"`
	NetworkType  string   `mapstructure:"network_type"`
}

// deviceInfoFromContext extracts device_info from a decision context map,
// returning the zero value (no battery/network signal) if absent or
// malformed rather than failing the whole MakeDecision call — device
// hinting is an optimization, not a precondition.
func deviceInfoFromContext(ctx map[string]interface{}) DeviceInfo {
	raw, ok := ctx["device_info"]
	if !ok {
		return DeviceInfo{}
	}
	var info DeviceInfo
	_ = mapstructure.Decode(raw, &info)
	return info
}

// scenarioFromContext extracts the free-text `scenario` hint used when
// building the Maker's reasoning string.
func scenarioFromContext(ctx map[string]interface{}) string {
	if v, ok := ctx["scenario"].(string); ok {
		return v
	}
	return ""
}

// learningAdjustment reads the per-type bias the Pipeline injects under
// learning_adjustments.<type> before each MakeDecision call.
func learningAdjustment(ctx map[string]interface{}, decisionType Type) float64 {
	raw, ok := ctx["learning_adjustments"]
	if !ok {
		return 0
	}
	adjustments, ok := raw.(map[string]interface{})
	if !ok {
		return 0
	}
	switch v := adjustments[string(decisionType)].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

// DeepCopyContext returns a new map with the same keys/values as ctx,
// including a deep copy of nested map[string]interface{} values one level
// down (enough for device_info/learning_adjustments), so the Pipeline can
// enrich a context it passes to the Maker without mutating the caller's map.
func DeepCopyContext(ctx map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(ctx))
	for k, v := range ctx {
		if nested, ok := v.(map[string]interface{}); ok {
			inner := make(map[string]interface{}, len(nested))
			for nk, nv := range nested {
				inner[nk] = nv
			}
			out[k] = inner
			continue
		}
		out[k] = v
	}
	return out
}
