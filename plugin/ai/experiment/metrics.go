package experiment

// VariantMetrics aggregates one arm's tracked outcomes. All rates are 0
// when the sample size is 0; no denominator is ever divided by zero.
type VariantMetrics struct {
	Variant            string  `json:"variant"`
	SampleSize         int     `json:"sample_size"`
	SuccessfulCount    int     `json:"successful_count"`
	SuccessRate        float64 `json:"success_rate"`
	AvgLatencyMs       float64 `json:"avg_latency_ms"`
	AvgRecommendations float64 `json:"avg_recommendations"`
	AvgCitationRate    float64 `json:"avg_citation_rate"`
	FeedbackCount      int     `json:"feedback_count"`
	AvgRating          float64 `json:"avg_rating"`
	HelpfulRate        float64 `json:"helpful_rate"`
}

// Comparison contrasts a treatment arm against control. Significant is a
// documented heuristic — both arms at sample size >= 30 and an absolute
// rating delta >= 0.3 — not a formal hypothesis test.
type Comparison struct {
	Variant          string  `json:"variant"`
	SpeedImprovement float64 `json:"speed_improvement"`
	RatingDelta      float64 `json:"rating_delta"`
	HelpfulDelta     float64 `json:"helpful_delta"`
	Significant      bool    `json:"significant"`
}

// ExperimentMetrics is the full per-variant aggregate view.
type ExperimentMetrics struct {
	Variants   map[string]*VariantMetrics `json:"variants"`
	Comparison *Comparison                `json:"comparison,omitempty"`
}

const (
	significanceMinSamples  = 30
	significanceRatingDelta = 0.3
)

// Metrics aggregates all tracked rows per variant and, when both control
// and a treatment arm have data, computes the comparison.
func (c *Coordinator) Metrics() *ExperimentMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	variants := map[string]*VariantMetrics{ControlVariant: {Variant: ControlVariant}}
	for _, name := range c.config.Variants {
		variants[name] = &VariantMetrics{Variant: name}
	}

	type accumulator struct {
		latencySum  int64
		recSum      int
		citationSum float64
		ratingSum   float64
		helpfulN    int
	}
	acc := map[string]*accumulator{}
	for name := range variants {
		acc[name] = &accumulator{}
	}

	for _, row := range c.rows {
		m, ok := variants[row.variant]
		if !ok {
			continue
		}
		a := acc[row.variant]

		m.SampleSize++
		if row.success {
			m.SuccessfulCount++
		}
		a.latencySum += row.latencyMs
		a.recSum += row.recCount
		a.citationSum += row.citationRate

		for _, fb := range row.feedback {
			m.FeedbackCount++
			a.ratingSum += fb.rating
			if fb.helpful {
				a.helpfulN++
			}
		}
	}

	for name, m := range variants {
		a := acc[name]
		if m.SampleSize > 0 {
			m.SuccessRate = float64(m.SuccessfulCount) / float64(m.SampleSize)
			m.AvgLatencyMs = float64(a.latencySum) / float64(m.SampleSize)
			m.AvgRecommendations = float64(a.recSum) / float64(m.SampleSize)
			m.AvgCitationRate = a.citationSum / float64(m.SampleSize)
		}
		if m.FeedbackCount > 0 {
			m.AvgRating = a.ratingSum / float64(m.FeedbackCount)
			m.HelpfulRate = float64(a.helpfulN) / float64(m.FeedbackCount)
		}
	}

	metrics := &ExperimentMetrics{Variants: variants}

	control := variants[ControlVariant]
	for _, name := range c.config.Variants {
		treatment := variants[name]
		if control.SampleSize > 0 && treatment.SampleSize > 0 {
			metrics.Comparison = compare(control, treatment)
			break
		}
	}

	return metrics
}

func compare(control, treatment *VariantMetrics) *Comparison {
	comparison := &Comparison{
		Variant:      treatment.Variant,
		RatingDelta:  treatment.AvgRating - control.AvgRating,
		HelpfulDelta: treatment.HelpfulRate - control.HelpfulRate,
	}
	if control.AvgLatencyMs > 0 {
		comparison.SpeedImprovement = (control.AvgLatencyMs - treatment.AvgLatencyMs) / control.AvgLatencyMs
	}
	comparison.Significant = control.SampleSize >= significanceMinSamples &&
		treatment.SampleSize >= significanceMinSamples &&
		abs(comparison.RatingDelta) >= significanceRatingDelta
	return comparison
}

// Rollout recommendations mapped from the comparison output.
const (
	RecommendNeedsMoreData   = "needs-more-data"
	RecommendRollout         = "rollout"
	RecommendCautiousRollout = "cautious-rollout"
	RecommendDoNotRollout    = "do-not-rollout"
)

// Recommendation maps the comparison onto a rollout decision with fixed
// thresholds.
func (c *Coordinator) Recommendation() string {
	metrics := c.Metrics()
	comparison := metrics.Comparison
	if comparison == nil {
		return RecommendNeedsMoreData
	}
	if !comparison.Significant {
		if comparison.RatingDelta > 0 || comparison.HelpfulDelta > 0 {
			return RecommendCautiousRollout
		}
		return RecommendNeedsMoreData
	}
	if comparison.RatingDelta > 0 {
		return RecommendRollout
	}
	return RecommendDoNotRollout
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
