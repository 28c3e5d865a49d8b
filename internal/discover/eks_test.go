package discover

import "testing"

func TestClassifyClusterCreator(t *testing.T) {
	cases := map[string]string{
		"eks-cluster-account03_clouduser01-us-east-1-diox": "iam",
		"eks-cluster-root-account03-us-east-1-diox":        "root",
		"eks-cluster-accountroot-us-east-1":                "iam",
	}
	for name, want := range cases {
		if got := classifyClusterCreator(name); got != want {
			t.Errorf("classifyClusterCreator(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestContainsRootMarker(t *testing.T) {
	if !containsRootMarker("eks-cluster-root-account03") {
		t.Error("expected '-root-' marker to be detected")
	}
	if containsRootMarker("eks-cluster-account03_clouduser01") {
		t.Error("did not expect '-root-' marker in IAM-created cluster name")
	}
}
