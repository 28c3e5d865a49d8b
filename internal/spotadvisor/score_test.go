package spotadvisor

import (
	"testing"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

func TestConfidenceScoreRanking(t *testing.T) {
	// Concrete scenario: region ap-south-1, workload mixed, targetVcpu=16.
	m5 := confidenceScore(0, 8.0, 4)
	m6i := confidenceScore(1, 7.5, 8)
	c5 := confidenceScore(2, 6.0, 15)

	if !(m5 > m6i && m6i > c5) {
		t.Errorf("expected m5 > m6i > c5, got m5=%.2f m6i=%.2f c5=%.2f", m5, m6i, c5)
	}
}

func TestRankCandidatesTieBreaksOnPrice(t *testing.T) {
	analyses := []model.SpotAnalysis{
		{InstanceType: "b", Confidence: 90, CurrentPrice: 0.10},
		{InstanceType: "a", Confidence: 90, CurrentPrice: 0.05},
		{InstanceType: "c", Confidence: 95, CurrentPrice: 1.00},
	}

	ranked := rankCandidates(analyses)
	if ranked[0].InstanceType != "c" {
		t.Fatalf("expected highest confidence first, got %s", ranked[0].InstanceType)
	}
	if ranked[1].InstanceType != "a" || ranked[2].InstanceType != "b" {
		t.Errorf("expected tie broken by price ascending, got order %v", []string{ranked[0].InstanceType, ranked[1].InstanceType, ranked[2].InstanceType})
	}
}

func TestInterruptionComponentUnknownBandScoresZero(t *testing.T) {
	if got := interruptionComponent(5); got != 0 {
		t.Errorf("expected unknown band to score 0, got %v", got)
	}
	if got := interruptionComponent(0); got != 100 {
		t.Errorf("expected band 0 to score 100, got %v", got)
	}
}

func TestVolatilityComponentBuckets(t *testing.T) {
	cases := []struct {
		pct  float64
		want float64
	}{
		{pct: 4, want: 100},
		{pct: 8, want: 75},
		{pct: 15, want: 50},
		{pct: 25, want: 25},
		{pct: 40, want: 0},
	}
	for _, c := range cases {
		if got := volatilityComponent(c.pct); got != c.want {
			t.Errorf("volatilityComponent(%v) = %v, want %v", c.pct, got, c.want)
		}
	}
}
