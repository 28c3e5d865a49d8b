package spotadvisor

import (
	"context"
	"errors"
	"testing"
)

func testCatalogue() []InstanceCatalogueEntry {
	return []InstanceCatalogueEntry{
		{InstanceType: "m5.xlarge", VCPUs: 4, MemoryGB: 16, Family: WorkloadGeneral},
		{InstanceType: "m6i.xlarge", VCPUs: 4, MemoryGB: 16, Family: WorkloadGeneral},
		{InstanceType: "c5.xlarge", VCPUs: 4, MemoryGB: 8, Family: WorkloadCompute},
	}
}

func TestAnalyzeHappyPath(t *testing.T) {
	dir := t.TempDir()
	advisor := New(dir, testCatalogue(),
		func(ctx context.Context, region string, types []string, days int) (map[string]PriceSummary, error) {
			return map[string]PriceSummary{
				"m5.xlarge":  {Avg: 0.10, VolatilityPct: 4},
				"m6i.xlarge": {Avg: 0.11, VolatilityPct: 8},
				"c5.xlarge":  {Avg: 0.09, VolatilityPct: 15},
			}, nil
		},
		func(ctx context.Context, region string, types []string, targetVcpu int) (map[string]float64, error) {
			return map[string]float64{"m5.xlarge": 8.0, "m6i.xlarge": 7.5, "c5.xlarge": 6.0}, nil
		},
		func(ctx context.Context, region string, types []string) (map[string]int, error) {
			return map[string]int{"m5.xlarge": 0, "m6i.xlarge": 1, "c5.xlarge": 2}, nil
		},
		Policy{FailFast: true},
	)

	results, err := advisor.Analyze(context.Background(), "ap-south-1", WorkloadMixed, Filters{TargetCapacityVCPU: 16})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].InstanceType != "m5.xlarge" || results[1].InstanceType != "m6i.xlarge" || results[2].InstanceType != "c5.xlarge" {
		t.Errorf("unexpected ranking: %v", []string{results[0].InstanceType, results[1].InstanceType, results[2].InstanceType})
	}
}

func TestAnalyzeFailFastReturnsEmptyOnTotalFailure(t *testing.T) {
	dir := t.TempDir()
	advisor := New(dir, testCatalogue(),
		func(ctx context.Context, region string, types []string, days int) (map[string]PriceSummary, error) {
			return nil, errors.New("spot price API rejected request")
		},
		func(ctx context.Context, region string, types []string, targetVcpu int) (map[string]float64, error) {
			return nil, errors.New("placement score API rejected request")
		},
		func(ctx context.Context, region string, types []string) (map[string]int, error) {
			return nil, errors.New("advisor feed unreachable")
		},
		Policy{FailFast: true},
	)

	results, err := advisor.Analyze(context.Background(), "us-east-1", WorkloadGeneral, Filters{})
	if err != nil {
		t.Fatalf("unexpected error (failFast should return empty, not error): %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result under failFast with total upstream failure, got %d", len(results))
	}
}

func TestAnalyzeDegradedWhenNotFailFast(t *testing.T) {
	dir := t.TempDir()
	advisor := New(dir, testCatalogue(),
		func(ctx context.Context, region string, types []string, days int) (map[string]PriceSummary, error) {
			return map[string]PriceSummary{}, nil
		},
		func(ctx context.Context, region string, types []string, targetVcpu int) (map[string]float64, error) {
			return nil, errors.New("placement score API rejected request")
		},
		func(ctx context.Context, region string, types []string) (map[string]int, error) {
			return nil, errors.New("advisor feed unreachable")
		},
		Policy{FailFast: false},
	)

	results, err := advisor.Analyze(context.Background(), "us-east-1", WorkloadGeneral, Filters{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("expected degraded best-effort results, got none")
	}
	for _, r := range results {
		if !r.Degraded {
			t.Errorf("expected all results flagged degraded, %s was not", r.InstanceType)
		}
	}
}

func TestDiskCacheRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cache := newDiskCache(dir)

	type payload struct{ Value int }
	if err := cache.Put("key1", payload{Value: 42}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var got payload
	hit, err := cache.Get("key1", 24*60*60*1e9, &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !hit {
		t.Fatal("expected cache hit")
	}
	if got.Value != 42 {
		t.Errorf("expected 42, got %d", got.Value)
	}
}
