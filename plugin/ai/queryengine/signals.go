// Package queryengine translates a user's persona/signal profile into
// retrieval queries and wraps index search into ranked, deduplicated
// context bundles.
package queryengine

// Signals is a nested feature map: category -> metric -> value. Values
// come from an upstream profile provider and are consumed read-only.
type Signals map[string]map[string]any

// Float reads a numeric metric. Returns false when the category or
// metric is absent or not numeric.
func (s Signals) Float(category, metric string) (float64, bool) {
	m, ok := s[category]
	if !ok {
		return 0, false
	}
	switch v := m[metric].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}

// String reads a string metric.
func (s Signals) String(category, metric string) (string, bool) {
	m, ok := s[category]
	if !ok {
		return "", false
	}
	v, ok := m[metric].(string)
	return v, ok
}

// floatSignal reads a metric from the 30-day window, falling back to the
// 180-day window when the short window lacks it.
func floatSignal(signals30, signals180 Signals, category, metric string) (float64, bool) {
	if v, ok := signals30.Float(category, metric); ok {
		return v, true
	}
	return signals180.Float(category, metric)
}

func stringSignal(signals30, signals180 Signals, category, metric string) (string, bool) {
	if v, ok := signals30.String(category, metric); ok {
		return v, true
	}
	return signals180.String(category, metric)
}
