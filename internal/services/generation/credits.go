package generation

import (
	"fmt"
	"math"

	"github.com/ternarybob/longform/internal/common"
	"github.com/ternarybob/longform/internal/models"
)

// CreditCalculator prices a generation from duration and model tier only
type CreditCalculator struct {
	cfg     *common.CreditsConfig
	planner *Planner
}

// NewCreditCalculator creates a credit calculator
func NewCreditCalculator(cfg *common.CreditsConfig, planner *Planner) *CreditCalculator {
	return &CreditCalculator{cfg: cfg, planner: planner}
}

// Estimate returns the deterministic cost of a generation.
// An empty tier is priced as balanced.
func (c *CreditCalculator) Estimate(durationSeconds int, tier models.ModelTier) (models.CreditCost, error) {
	if tier == "" {
		tier = models.TierBalanced
	}
	if !tier.Valid() {
		return models.CreditCost{}, InputError("model_tier", "unknown model tier", fmt.Sprintf("tier %q is not one of fast, balanced, premium", tier))
	}

	multiplier, ok := c.cfg.TierMultipliers[string(tier)]
	if !ok {
		return models.CreditCost{}, ConfigError(fmt.Sprintf("no credit multiplier configured for tier %q", tier), nil)
	}

	minutes := c.planner.TotalMinutes(durationSeconds)
	chunked := c.planner.NeedsChunking(durationSeconds)

	overhead := 1.0
	if chunked {
		overhead = c.cfg.ChunkOverhead
	}

	credits := int(math.Round(float64(minutes) * c.cfg.BaseRate * multiplier * overhead))
	if credits < 1 {
		credits = 1
	}

	return models.CreditCost{
		Credits:    credits,
		Minutes:    minutes,
		Tier:       tier,
		Chunked:    chunked,
		Multiplier: multiplier,
		Overhead:   overhead,
	}, nil
}
