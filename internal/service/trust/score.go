// Package trust derives NPC organization trust scores from quest history.
package trust

import (
	"math"

	"github.com/tavern-guild/tavern/internal/models"
)

// Base score before completion and cancellation adjustments.
const (
	baseScore          = 50
	completionWeight   = 0.4
	cancellationWeight = 2
)

// Tier summaries.
const (
	summaryHigh   = "Highly trusted quest giver with a strong completion record."
	summaryMedium = "Established quest giver with a moderate track record."
	summaryLow    = "Limited or poor track record; proceed with caution."
	flaggedNotice = " This organization has been flagged for review by the guild."
)

// Report is the trust breakdown of an organization.
type Report struct {
	OrganizationID string           `json:"organizationId"`
	TotalQuests    int              `json:"totalQuests"`
	Completed      int              `json:"completed"`
	Cancelled      int              `json:"cancelled"`
	CompletionRate float64          `json:"completionRate"`
	TotalGoldSpent int64            `json:"totalGoldSpent"`
	DisputeRate    float64          `json:"disputeRate"`
	TrustScore     int              `json:"trustScore"`
	TrustTier      models.TrustTier `json:"trustTier"`
	IsFlagged      bool             `json:"isFlagged"`
	Summary        string           `json:"summary"`
}

// Calculate computes the report for a set of quests created by one organization.
// Cancellations are penalized per quest, not as a rate.
func Calculate(quests []models.Quest, flagged bool) Report {
	r := Report{TotalQuests: len(quests), IsFlagged: flagged}

	for _, q := range quests {
		switch q.Status {
		case models.QuestCompleted:
			r.Completed++
			r.TotalGoldSpent += q.RewardGold
		case models.QuestCancelled:
			r.Cancelled++
		}
	}

	if finished := r.Completed + r.Cancelled; finished > 0 {
		r.CompletionRate = round2(float64(r.Completed) / float64(finished) * 100)
	}

	raw := baseScore + r.CompletionRate*completionWeight - float64(r.Cancelled*cancellationWeight)
	r.TrustScore = clamp(int(math.Round(raw)), 0, 100)
	r.TrustTier = models.TierFor(r.TrustScore)
	r.Summary = Summary(r.TrustTier, flagged)
	return r
}

// Summary returns the human-readable description of a tier.
func Summary(tier models.TrustTier, flagged bool) string {
	var s string
	switch tier {
	case models.TrustHigh:
		s = summaryHigh
	case models.TrustMedium:
		s = summaryMedium
	default:
		s = summaryLow
	}
	if flagged {
		s += flaggedNotice
	}
	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
