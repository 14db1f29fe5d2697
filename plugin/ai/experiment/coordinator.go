// Package experiment implements the controlled experiment comparing the
// retrieval-augmented generation path against the catalog baseline:
// deterministic sticky variant assignment, outcome tracking, and a
// heuristic comparison of the arms.
package experiment

import (
	"fmt"
	"hash/fnv"
	"sync"
	"time"
)

// ControlVariant is the arm outside the experiment rollout.
const ControlVariant = "control"

// Config declares the experiment.
type Config struct {
	Enabled           bool
	RolloutPercentage float64  // 0–1 fraction of users in the experiment
	Variants          []string // treatment arms, e.g. ["rag"]
}

// GenerationOutcome is the tracked result of one generation call.
type GenerationOutcome struct {
	Success             bool
	LatencyMs           int64
	RecommendationCount int
	Rationales          []string
}

type feedback struct {
	recommendationID string
	rating           float64
	helpful          bool
}

type generationRow struct {
	userID       string
	variant      string
	success      bool
	latencyMs    int64
	recCount     int
	citationRate float64
	trackedAt    time.Time
	feedback     []feedback
}

// Coordinator assigns users to variants and tracks per-variant outcomes.
// It is an explicitly constructed, injectable service: tests get fresh
// isolated instances instead of hidden global state. Assignments are
// process-lifetime only; persistence across restarts is a product
// decision left to the caller.
type Coordinator struct {
	config Config

	mu          sync.RWMutex
	assignments map[string]string
	rows        []*generationRow
}

// NewCoordinator creates an experiment coordinator. An empty variant
// list gets the default single "rag" treatment arm.
func NewCoordinator(config Config) *Coordinator {
	if len(config.Variants) == 0 {
		config.Variants = []string{"rag"}
	}
	if config.RolloutPercentage < 0 {
		config.RolloutPercentage = 0
	}
	if config.RolloutPercentage > 1 {
		config.RolloutPercentage = 1
	}
	return &Coordinator{
		config:      config,
		assignments: map[string]string{},
	}
}

// AssignVariant returns the variant for a user. The assignment is a pure
// deterministic function of user id and configuration, cached on first
// computation; repeated calls always return the cached value. Sticky
// assignment is a correctness invariant, not an optimization.
func (c *Coordinator) AssignVariant(userID string) string {
	if !c.config.Enabled {
		return ControlVariant
	}

	c.mu.RLock()
	if variant, ok := c.assignments[userID]; ok {
		c.mu.RUnlock()
		return variant
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if variant, ok := c.assignments[userID]; ok {
		return variant
	}

	variant := c.computeVariant(userID)
	c.assignments[userID] = variant
	return variant
}

// computeVariant hashes the user id with FNV-1a. Stage 1 decides in or
// out of the experiment from the low two decimal digits; stage 2 picks
// the arm from a different slice of the hash so the two decisions are
// not correlated.
func (c *Coordinator) computeVariant(userID string) string {
	h := fnv.New64a()
	h.Write([]byte(userID))
	sum := h.Sum64()

	if float64(sum%100)/100.0 >= c.config.RolloutPercentage {
		return ControlVariant
	}
	return c.config.Variants[(sum/100)%uint64(len(c.config.Variants))]
}

// TrackGeneration appends a metric row for one generation. Citation rate
// — the fraction of recommendations whose rationale contains at least
// one digit — is only computed for treatment arms; the catalog control
// has nothing to cite.
func (c *Coordinator) TrackGeneration(userID, variant string, outcome *GenerationOutcome) {
	row := &generationRow{
		userID:    userID,
		variant:   variant,
		success:   outcome.Success,
		latencyMs: outcome.LatencyMs,
		recCount:  outcome.RecommendationCount,
		trackedAt: time.Now(),
	}
	if variant != ControlVariant {
		row.citationRate = citationRate(outcome.Rationales)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = append(c.rows, row)
}

// TrackFeedback appends feedback to the most recent generation row for
// the user and variant. Feedback without a matching row is dropped.
func (c *Coordinator) TrackFeedback(userID, variant, recommendationID string, rating float64, helpful bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := len(c.rows) - 1; i >= 0; i-- {
		row := c.rows[i]
		if row.userID == userID && row.variant == variant {
			row.feedback = append(row.feedback, feedback{
				recommendationID: recommendationID,
				rating:           rating,
				helpful:          helpful,
			})
			return
		}
	}
}

func citationRate(rationales []string) float64 {
	if len(rationales) == 0 {
		return 0
	}
	cited := 0
	for _, rationale := range rationales {
		for _, r := range rationale {
			if r >= '0' && r <= '9' {
				cited++
				break
			}
		}
	}
	return float64(cited) / float64(len(rationales))
}

// AssignmentCount reports how many users have been assigned, for
// operator stats.
func (c *Coordinator) AssignmentCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.assignments)
}

// Describe returns the active configuration.
func (c *Coordinator) Describe() string {
	return fmt.Sprintf("enabled=%t rollout=%.2f variants=%v", c.config.Enabled, c.config.RolloutPercentage, c.config.Variants)
}
