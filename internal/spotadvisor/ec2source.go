package spotadvisor

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
)

const spotAdvisorFeedURL = "https://spot-bid-advisor.s3.amazonaws.com/spot-advisor-data.json"

const instanceSpecBatchSize = 20

// familyPrefixes maps an instance type's family prefix (the part before
// the dot, e.g. "m6i" from "m6i.2xlarge") to the WorkloadClass
// it belongs to.
var familyPrefixes = map[string]WorkloadClass{
	"t3": WorkloadGeneral, "t3a": WorkloadGeneral, "t4g": WorkloadGeneral,
	"m5": WorkloadGeneral, "m5a": WorkloadGeneral, "m6i": WorkloadGeneral, "m6a": WorkloadGeneral,
	"m6g": WorkloadGeneral, "m7i": WorkloadGeneral, "m7g": WorkloadGeneral, "m7a": WorkloadGeneral,
	"c5": WorkloadCompute, "c5a": WorkloadCompute, "c5n": WorkloadCompute, "c6i": WorkloadCompute,
	"c6a": WorkloadCompute, "c6g": WorkloadCompute, "c7i": WorkloadCompute, "c7g": WorkloadCompute,
	"c7a": WorkloadCompute, "c7gn": WorkloadCompute,
	"r5": WorkloadMemory, "r5a": WorkloadMemory, "r5n": WorkloadMemory, "r6i": WorkloadMemory,
	"r6a": WorkloadMemory, "r6g": WorkloadMemory, "r7i": WorkloadMemory, "r7g": WorkloadMemory,
	"r7a": WorkloadMemory, "r7iz": WorkloadMemory, "x2idn": WorkloadMemory, "x2iedn": WorkloadMemory,
	"x2iezn": WorkloadMemory,
	"i3": WorkloadStorage, "i3en": WorkloadStorage, "i4i": WorkloadStorage, "i4g": WorkloadStorage,
	"d2": WorkloadStorage, "d3": WorkloadStorage, "d3en": WorkloadStorage, "h1": WorkloadStorage,
	"p3": WorkloadAccelerated, "p4": WorkloadAccelerated, "p5": WorkloadAccelerated,
	"g4dn": WorkloadAccelerated, "g5": WorkloadAccelerated, "g5g": WorkloadAccelerated,
	"inf1": WorkloadAccelerated, "inf2": WorkloadAccelerated, "trn1": WorkloadAccelerated,
	"trn1n": WorkloadAccelerated,
}

// familyOf extracts the family prefix from an instance type name, e.g.
// "m6i" from "m6i.2xlarge".
func familyOf(instanceType string) string {
	dot := strings.IndexByte(instanceType, '.')
	if dot < 0 {
		return instanceType
	}
	return instanceType[:dot]
}

// NewEC2Catalogue builds an InstanceCatalogueEntry list by calling
// ec2:DescribeInstanceTypes for every type in candidates, batched
// instanceSpecBatchSize at a time. Returned types without vCPU or memory
// data are skipped; an error from any batch's DescribeInstanceTypes call
// fails the whole catalogue, with no per-type fallback.
func NewEC2Catalogue(ctx context.Context, client *ec2.Client, candidates []string) ([]InstanceCatalogueEntry, error) {
	var out []InstanceCatalogueEntry

	for start := 0; start < len(candidates); start += instanceSpecBatchSize {
		end := start + instanceSpecBatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]

		types := make([]ec2types.InstanceType, len(batch))
		for i, t := range batch {
			types[i] = ec2types.InstanceType(t)
		}

		resp, err := client.DescribeInstanceTypes(ctx, &ec2.DescribeInstanceTypesInput{InstanceTypes: types})
		if err != nil {
			return nil, fmt.Errorf("describe instance types: %w", err)
		}

		for _, info := range resp.InstanceTypes {
			if info.InstanceType == "" || info.VCpuInfo == nil || info.VCpuInfo.DefaultVCpus == nil || info.MemoryInfo == nil || info.MemoryInfo.SizeInMiB == nil {
				continue
			}
			instanceType := string(info.InstanceType)
			family, ok := familyPrefixes[familyOf(instanceType)]
			if !ok {
				family = WorkloadGeneral
			}
			out = append(out, InstanceCatalogueEntry{
				InstanceType: instanceType,
				VCPUs:        int(*info.VCpuInfo.DefaultVCpus),
				MemoryGB:     float64(*info.MemoryInfo.SizeInMiB) / 1024.0,
				Family:       family,
			})
		}
	}

	return out, nil
}

// ClientFor resolves a region to the EC2 client that should serve requests
// against it. A session's CredentialHandle is region-agnostic for spot
// market data (prices and placement scores reflect AWS-wide capacity, not
// a specific account), so one ClientFor, backed by whichever handle the
// orchestrator is already validating, is shared across every account in a
// session.
type ClientFor func(ctx context.Context, region string) (*ec2.Client, error)

// NewEC2PriceSource builds a PriceSource backed by
// ec2:DescribeSpotPriceHistory, paginating over every availability zone in
// region and rolling the per-AZ samples up into one PriceSummary per
// instance type.
func NewEC2PriceSource(clientFor ClientFor) PriceSource {
	return func(ctx context.Context, region string, types []string, days int) (map[string]PriceSummary, error) {
		client, err := clientFor(ctx, region)
		if err != nil {
			return nil, fmt.Errorf("resolve ec2 client for %s: %w", region, err)
		}

		instanceTypes := make([]ec2types.InstanceType, len(types))
		for i, t := range types {
			instanceTypes[i] = ec2types.InstanceType(t)
		}

		start := time.Now().AddDate(0, 0, -days)
		samples := map[string][]float64{}

		paginator := ec2.NewDescribeSpotPriceHistoryPaginator(client, &ec2.DescribeSpotPriceHistoryInput{
			InstanceTypes:       instanceTypes,
			ProductDescriptions: []string{"Linux/UNIX"},
			StartTime:           aws.Time(start),
		})
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return nil, fmt.Errorf("describe spot price history in %s: %w", region, err)
			}
			for _, p := range page.SpotPriceHistory {
				if p.InstanceType == "" || p.SpotPrice == nil {
					continue
				}
				price, err := strconv.ParseFloat(*p.SpotPrice, 64)
				if err != nil {
					continue
				}
				key := string(p.InstanceType)
				samples[key] = append(samples[key], price)
			}
		}

		out := make(map[string]PriceSummary, len(samples))
		for instanceType, prices := range samples {
			out[instanceType] = summarizePrices(prices)
		}
		return out, nil
	}
}

func summarizePrices(prices []float64) PriceSummary {
	if len(prices) == 0 {
		return PriceSummary{}
	}
	min, max, sum := prices[0], prices[0], 0.0
	for _, p := range prices {
		if p < min {
			min = p
		}
		if p > max {
			max = p
		}
		sum += p
	}
	avg := sum / float64(len(prices))
	volatility := 0.0
	if avg > 0 {
		volatility = (max - min) / avg * 100.0
	}
	return PriceSummary{
		Avg:            avg,
		Min:            min,
		Max:            max,
		VolatilityPct:  volatility,
		SampleCount:    len(prices),
		BestAzVolPct:   volatility,
		MedianAzVolPct: volatility,
	}
}

// NewEC2PlacementSource builds a PlacementSource backed by
// ec2:GetSpotPlacementScores, scoped to region and scored per instance type
// by issuing one request per type in the batch (GetSpotPlacementScores
// itself scores a (region, instanceTypes) set, not a single type in
// isolation, so each type is queried alone to get a type-specific score).
func NewEC2PlacementSource(clientFor ClientFor) PlacementSource {
	return func(ctx context.Context, region string, types []string, targetCapacityVCPU int) (map[string]float64, error) {
		client, err := clientFor(ctx, region)
		if err != nil {
			return nil, fmt.Errorf("resolve ec2 client for %s: %w", region, err)
		}

		capacity := int32(targetCapacityVCPU)
		if capacity <= 0 {
			capacity = 1
		}

		out := make(map[string]float64, len(types))
		for _, instanceType := range types {
			resp, err := client.GetSpotPlacementScores(ctx, &ec2.GetSpotPlacementScoresInput{
				InstanceTypes:         []string{instanceType},
				TargetCapacity:        aws.Int32(capacity),
				TargetCapacityUnitType: ec2types.TargetCapacityUnitTypeVcpu,
				RegionNames:           []string{region},
			})
			if err != nil {
				return nil, fmt.Errorf("get spot placement score for %s in %s: %w", instanceType, region, err)
			}
			var best int32
			for _, s := range resp.SpotPlacementScores {
				if s.Score != nil && *s.Score > best {
					best = *s.Score
				}
			}
			out[instanceType] = float64(best)
		}
		return out, nil
	}
}

// spotAdvisorFeed mirrors the subset of fields this module consumes from
// the public spot-advisor-data.json feed: one interruption-range index per
// (region, os, instanceType).
type spotAdvisorFeed struct {
	SpotAdvisor map[string]map[string]map[string]struct {
		R int `json:"r"` // interruption range index, 0 (best) through 4 (>20%)
		S int `json:"s"` // savings percentage, unused here
	} `json:"spot_advisor"`
}

// NewHTTPAdvisorSource builds an AdvisorSource backed by the public Spot
// Instance Advisor JSON feed, fetched fresh on every uncached call (the
// Advisor's own disk cache is what bounds request frequency). The feed
// indexes interruption ranges by (region, os, instanceType); this module
// only ever asks for Linux/UNIX workloads, matching NewEC2PriceSource's
// ProductDescriptions filter.
func NewHTTPAdvisorSource(httpClient *http.Client) AdvisorSource {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return func(ctx context.Context, region string, types []string) (map[string]int, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, spotAdvisorFeedURL, nil)
		if err != nil {
			return nil, err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("fetch spot advisor feed: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("spot advisor feed returned status %d", resp.StatusCode)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read spot advisor feed: %w", err)
		}

		var feed spotAdvisorFeed
		if err := json.Unmarshal(body, &feed); err != nil {
			return nil, fmt.Errorf("parse spot advisor feed: %w", err)
		}

		byOS, ok := feed.SpotAdvisor[region]
		if !ok {
			return nil, fmt.Errorf("spot advisor feed has no entries for region %s", region)
		}
		byType, ok := byOS["Linux"]
		if !ok {
			return nil, fmt.Errorf("spot advisor feed has no Linux entries for region %s", region)
		}

		out := make(map[string]int, len(types))
		for _, instanceType := range types {
			if entry, ok := byType[instanceType]; ok {
				out[instanceType] = entry.R
			}
		}
		return out, nil
	}
}
