package spotadvisor

import (
	"context"
	"fmt"
	"time"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

const (
	placementCacheTTL = 24 * time.Hour
	advisorCacheTTL   = 24 * time.Hour
	priceCacheTTL      = 1 * time.Hour
	placementBatchSize = 10
)

// WorkloadClass is a coarse instance-family grouping used to scope
// candidate generation.
type WorkloadClass string

const (
	WorkloadGeneral     WorkloadClass = "general"
	WorkloadCompute     WorkloadClass = "compute"
	WorkloadMemory      WorkloadClass = "memory"
	WorkloadStorage     WorkloadClass = "storage"
	WorkloadAccelerated WorkloadClass = "accelerated"
	WorkloadMixed       WorkloadClass = "mixed"
)

// Filters narrows the candidate instance type list passed to Analyze.
type Filters struct {
	VCPUMin, VCPUMax     int
	MemoryGBMin, MemoryGBMax float64
	Families             []WorkloadClass
	TargetCapacityVCPU    int
}

// InstanceCatalogueEntry describes one instance type's static shape, used
// to apply Filters before any AWS call is made.
type InstanceCatalogueEntry struct {
	InstanceType string
	VCPUs        int
	MemoryGB     float64
	Family       WorkloadClass
}

// PriceSource fetches spot price history for a set of instance types,
// paginated and AZ-aware, normally backed by ec2:DescribeSpotPriceHistory.
type PriceSource func(ctx context.Context, region string, types []string, days int) (map[string]PriceSummary, error)

// PlacementSource fetches AWS spot placement scores for a batch of
// instance types, normally backed by ec2:GetSpotPlacementScore.
type PlacementSource func(ctx context.Context, region string, types []string, targetCapacityVCPU int) (map[string]float64, error)

// AdvisorSource fetches the interruption-band dataset, normally backed by
// the public Spot Instance Advisor JSON feed fetched over HTTPS.
type AdvisorSource func(ctx context.Context, region string, types []string) (map[string]int, error)

// PriceSummary is the per-AZ-and-region-rollup price data PriceSource
// returns for one instance type.
type PriceSummary struct {
	Avg, Min, Max  float64
	VolatilityPct  float64
	SampleCount    int
	BestAzVolPct   float64
	MedianAzVolPct float64
}

// Policy controls SpotAdvisor's gating behavior.
type Policy struct {
	FailFast bool // when true, gate out types with missing advisor/placement data
}

// Advisor is the SpotAdvisor component.
type Advisor struct {
	cache     *diskCache
	catalogue []InstanceCatalogueEntry
	prices    PriceSource
	placement PlacementSource
	advisor   AdvisorSource
	policy    Policy
}

// New constructs an Advisor. catalogue provides the static instance-type
// shape data used for filtering; prices/placement/advisor are the upstream
// data sources, injectable for testing.
func New(cacheDir string, catalogue []InstanceCatalogueEntry, prices PriceSource, placement PlacementSource, advisor AdvisorSource, policy Policy) *Advisor {
	return &Advisor{
		cache:     newDiskCache(cacheDir),
		catalogue: catalogue,
		prices:    prices,
		placement: placement,
		advisor:   advisor,
		policy:    policy,
	}
}

// candidateTypes filters the static catalogue by vCPU/memory/family bounds.
func (a *Advisor) candidateTypes(f Filters) []InstanceCatalogueEntry {
	var out []InstanceCatalogueEntry
	familyAllowed := func(fam WorkloadClass) bool {
		if len(f.Families) == 0 {
			return true
		}
		for _, want := range f.Families {
			if want == fam || want == WorkloadMixed {
				return true
			}
		}
		return false
	}

	for _, entry := range a.catalogue {
		if f.VCPUMin > 0 && entry.VCPUs < f.VCPUMin {
			continue
		}
		if f.VCPUMax > 0 && entry.VCPUs > f.VCPUMax {
			continue
		}
		if f.MemoryGBMin > 0 && entry.MemoryGB < f.MemoryGBMin {
			continue
		}
		if f.MemoryGBMax > 0 && entry.MemoryGB > f.MemoryGBMax {
			continue
		}
		if !familyAllowed(entry.Family) {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// bands fetches (with 24h disk caching) the interruption-band dataset for
// the given instance types in region. Band 5 means "unknown".
func (a *Advisor) bands(ctx context.Context, region string, types []string) (map[string]int, error) {
	key := "advisor-" + stableHash(region, types, 0)
	var cached map[string]int
	if hit, _ := a.cache.Get(key, advisorCacheTTL, &cached); hit {
		return cached, nil
	}

	bands, err := a.advisor(ctx, region, types)
	if err != nil {
		return nil, err
	}
	_ = a.cache.Put(key, bands)
	return bands, nil
}

// placementScores batches calls at most placementBatchSize types at a time,
// caching the combined result for 24h keyed by a stable hash of the inputs.
func (a *Advisor) placementScores(ctx context.Context, region string, types []string, targetVcpu int) (map[string]float64, error) {
	key := "placement-" + stableHash(region, types, targetVcpu)
	var cached map[string]float64
	if hit, _ := a.cache.Get(key, placementCacheTTL, &cached); hit {
		return cached, nil
	}

	combined := make(map[string]float64, len(types))
	for start := 0; start < len(types); start += placementBatchSize {
		end := start + placementBatchSize
		if end > len(types) {
			end = len(types)
		}
		batch := types[start:end]
		scores, err := a.placement(ctx, region, batch, targetVcpu)
		if err != nil {
			return nil, err
		}
		for k, v := range scores {
			combined[k] = v
		}
	}

	_ = a.cache.Put(key, combined)
	return combined, nil
}

// priceHistory fetches per-AZ price summaries, cached for 1h.
func (a *Advisor) priceHistory(ctx context.Context, region string, types []string, days int) (map[string]PriceSummary, error) {
	key := "price-" + stableHash(region, types, days)
	var cached map[string]PriceSummary
	if hit, _ := a.cache.Get(key, priceCacheTTL, &cached); hit {
		return cached, nil
	}

	prices, err := a.prices(ctx, region, types, days)
	if err != nil {
		return nil, err
	}
	_ = a.cache.Put(key, prices)
	return prices, nil
}

// Analyze returns ranked SpotAnalysis candidates for region, gated and
// scored per the policy and scoring rules.
func (a *Advisor) Analyze(ctx context.Context, region string, workloadClass WorkloadClass, filters Filters) ([]model.SpotAnalysis, error) {
	catalogue := a.candidateTypes(filters)
	if len(catalogue) == 0 {
		return nil, nil
	}
	types := make([]string, len(catalogue))
	for i, c := range catalogue {
		types[i] = c.InstanceType
	}

	bands, bandsErr := a.bands(ctx, region, types)
	placements, placementErr := a.placementScores(ctx, region, types, filters.TargetCapacityVCPU)
	prices, priceErr := a.priceHistory(ctx, region, types, 7)

	// A degraded-mode retry: if either upstream failed, retry once with
	// just the first half of the candidate list before surfacing degraded
	// results, mirroring the source project's narrower-retry behavior.
	if (bandsErr != nil || placementErr != nil) && len(types) > 1 {
		half := types[:(len(types)+1)/2]
		if bandsErr != nil {
			if b, err := a.bands(ctx, region, half); err == nil {
				bands = b
				bandsErr = nil
			}
		}
		if placementErr != nil {
			if p, err := a.placementScores(ctx, region, half, filters.TargetCapacityVCPU); err == nil {
				placements = p
				placementErr = nil
			}
		}
	}

	if bandsErr != nil && a.policy.FailFast {
		return nil, nil
	}
	if placementErr != nil && a.policy.FailFast {
		return nil, nil
	}

	var out []model.SpotAnalysis
	for _, entry := range catalogue {
		dq := model.DataQuality{Advisor: "ok", Placement: "ok", Price: "ok"}

		band, ok := bands[entry.InstanceType]
		if !ok {
			dq.Advisor = "missing"
			band = 5
		}
		placement, ok := placements[entry.InstanceType]
		if !ok {
			dq.Placement = "missing"
			placement = 0
		}
		price, ok := prices[entry.InstanceType]
		if !ok {
			dq.Price = "missing"
		}

		if a.policy.FailFast && (dq.Advisor == "missing" || dq.Placement == "missing") {
			continue
		}

		degraded := dq.Advisor == "missing" || dq.Placement == "missing" || priceErr != nil

		out = append(out, model.SpotAnalysis{
			InstanceType:     entry.InstanceType,
			CurrentPrice:     price.Avg,
			AvgPrice:         price.Avg,
			VolatilityPct:    price.VolatilityPct,
			InterruptionBand: band,
			PlacementScore:   placement,
			Confidence:       confidenceScore(band, placement, price.VolatilityPct),
			VCPUs:            entry.VCPUs,
			MemoryGB:         entry.MemoryGB,
			DataQuality:      dq,
			Degraded:         degraded,
		})
	}

	return rankCandidates(out), nil
}

// ErrNoAdvisorData is returned by an AdvisorSource implementation when the
// upstream feed cannot be reached at all (as distinct from a per-type miss).
type ErrNoAdvisorData struct{ Region string }

func (e *ErrNoAdvisorData) Error() string {
	return fmt.Sprintf("no spot advisor data available for region %s", e.Region)
}
