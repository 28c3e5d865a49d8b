package credentials

import (
	"reflect"
	"testing"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

func TestParseSelection(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		n       int
		want    []int
		wantErr bool
	}{
		{name: "mixed list and range", expr: "1,3-5,7", n: 10, want: []int{1, 3, 4, 5, 7}},
		{name: "single-element range", expr: "2-2", n: 10, want: []int{2}},
		{name: "all literal", expr: "all", n: 10, want: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
		{name: "empty means all", expr: "", n: 10, want: []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}},
		{name: "reversed range", expr: "5-3", n: 10, wantErr: true},
		{name: "out of range index", expr: "11", n: 10, wantErr: true},
		{name: "non-numeric token", expr: "abc", n: 10, wantErr: true},
		{name: "duplicates collapse", expr: "1,1,2", n: 10, want: []int{1, 2}},
		{name: "single index", expr: "4", n: 10, want: []int{4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSelection(tt.expr, tt.n)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil and result %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseSelection(%q, %d) = %v, want %v", tt.expr, tt.n, got, tt.want)
			}
		})
	}
}

func TestParseSelectionReversedRangeIsInvalidRange(t *testing.T) {
	_, err := ParseSelection("5-3", 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*model.ErrInvalidRange); !ok {
		t.Errorf("expected *model.ErrInvalidRange, got %T (%v)", err, err)
	}
}

func TestParseSelectionNonNumericIsInvalidSelection(t *testing.T) {
	_, err := ParseSelection("abc", 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*model.ErrInvalidSelection); !ok {
		t.Errorf("expected *model.ErrInvalidSelection, got %T (%v)", err, err)
	}
}
