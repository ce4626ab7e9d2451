// Package trust converts numeric confidence signals into categorical
// levels. A concept is only as trustworthy as its weakest signal, so
// the combined level is the minimum across all of them.
package trust

// Level is an ordered trust level. Higher is better.
type Level int

const (
	VeryLow Level = iota
	Low
	Medium
	High
	VeryHigh
)

func (l Level) String() string {
	switch l {
	case VeryLow:
		return "very_low"
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	case VeryHigh:
		return "very_high"
	default:
		return "unknown"
	}
}

// Signal names the four inputs the validator understands.
type Signal string

const (
	SignalEngagement      Signal = "engagement"
	SignalProblemValidity Signal = "problem_validity"
	SignalDiscussion      Signal = "discussion_quality"
	SignalModelConfidence Signal = "model_confidence"
)

// converter maps a 0-100 score through fixed bucket boundaries at
// 20/40/60/80 and labels the bucket with a signal-specific name.
type converter struct {
	labels [5]string
}

var converters = map[Signal]converter{
	SignalEngagement: {labels: [5]string{
		"crickets", "quiet", "active", "busy", "viral",
	}},
	SignalProblemValidity: {labels: [5]string{
		"speculative", "anecdotal", "plausible", "validated", "proven",
	}},
	SignalDiscussion: {labels: [5]string{
		"noise", "shallow", "substantive", "detailed", "expert",
	}},
	SignalModelConfidence: {labels: [5]string{
		"guessing", "uncertain", "moderate", "confident", "certain",
	}},
}

// Classify maps a 0-100 score to its level. Boundaries sit at
// 20/40/60/80; scores outside the scale clamp to the nearest bucket.
func Classify(score float64) Level {
	switch {
	case score < 20:
		return VeryLow
	case score < 40:
		return Low
	case score < 60:
		return Medium
	case score < 80:
		return High
	default:
		return VeryHigh
	}
}

// BucketLabel returns the signal-specific name of a score's bucket.
// Unknown signals get the level's generic name.
func BucketLabel(signal Signal, score float64) string {
	c, ok := converters[signal]
	if !ok {
		return Classify(score).String()
	}
	return c.labels[Classify(score)]
}

// ConvertAll applies every defined converter to the numeric signals
// present in the input, adding categorical fields alongside the
// originals. Input keys are never discarded; unknown keys pass
// through untouched.
func ConvertAll(signals map[string]float64) map[string]any {
	out := make(map[string]any, len(signals)*2)
	for k, v := range signals {
		out[k] = v
		if _, ok := converters[Signal(k)]; ok {
			out[k+"_level"] = BucketLabel(Signal(k), v)
		}
	}
	return out
}

// Combine returns the most conservative of the given levels.
func Combine(levels ...Level) Level {
	if len(levels) == 0 {
		return VeryLow
	}
	combined := levels[0]
	for _, l := range levels[1:] {
		if l < combined {
			combined = l
		}
	}
	return combined
}

// Overall classifies each of the four signals and combines them into
// the single trust level exposed on the opportunity record.
func Overall(engagement, problemValidity, discussion, modelConfidence float64) Level {
	return Combine(
		Classify(engagement),
		Classify(problemValidity),
		Classify(discussion),
		Classify(modelConfidence),
	)
}

// Publishable reports whether a combined level clears the publishing
// bar. very_low concepts are kept out of reports and the dashboard.
func Publishable(l Level) bool {
	return l > VeryLow
}

// ParseLevel maps a stored level string back to its Level. Unknown
// strings map to VeryLow so malformed rows never become publishable.
func ParseLevel(s string) Level {
	switch s {
	case "very_high":
		return VeryHigh
	case "high":
		return High
	case "medium":
		return Medium
	case "low":
		return Low
	default:
		return VeryLow
	}
}
