// Package spotadvisor implements SpotAdvisor: ranking EC2 instance types by
// interruption risk, AWS placement score, and spot price volatility, with
// disk-cached upstream data and strict data-quality gating.
package spotadvisor

import "github.com/varadharajaan/aws-infra-orchestrator/internal/model"

const (
	weightInterruption = 0.45
	weightPlacement    = 0.40
	weightVolatility   = 0.15
)

// volatility bucket thresholds, as percentages.
const (
	volatilityBucket1 = 5.0
	volatilityBucket2 = 10.0
	volatilityBucket3 = 20.0
	volatilityBucket4 = 30.0
)

// confidenceScore computes the weighted confidence in [0,100] for a
// candidate instance type: interruption 45%, placement 40%, volatility 15%.
func confidenceScore(interruptionBand int, placementScore, volatilityPct float64) float64 {
	interruptionComponent := interruptionComponent(interruptionBand) * weightInterruption
	placementComponent := (placementScore / 10.0 * 100.0) * weightPlacement
	volatilityComponent := volatilityComponent(volatilityPct) * weightVolatility
	score := interruptionComponent + placementComponent + volatilityComponent
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// interruptionComponent maps an interruption band (0 best, 5 = unknown) to
// a [0,100] score; unknown scores zero since it carries no positive signal.
func interruptionComponent(band int) float64 {
	if band < 0 || band > 5 {
		band = 5
	}
	return float64(5-band) / 5.0 * 100.0
}

// volatilityComponent buckets a volatility percentage by the thresholds
// named in the specification: <5% best, then <10%, <20%, <30%, else worst.
func volatilityComponent(volatilityPct float64) float64 {
	switch {
	case volatilityPct < volatilityBucket1:
		return 100
	case volatilityPct < volatilityBucket2:
		return 75
	case volatilityPct < volatilityBucket3:
		return 50
	case volatilityPct < volatilityBucket4:
		return 25
	default:
		return 0
	}
}

// rankCandidates sorts analyses by confidence descending, breaking ties by
// current price ascending (cheaper wins).
func rankCandidates(analyses []model.SpotAnalysis) []model.SpotAnalysis {
	out := make([]model.SpotAnalysis, len(analyses))
	copy(out, analyses)

	// Simple insertion sort: the list holds one entry per catalogue type
	// that passed Analyze's filters, and a stable, dependency-free sort
	// keeps the tie-break rule easy to read.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

func less(a, b model.SpotAnalysis) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.CurrentPrice < b.CurrentPrice
}
