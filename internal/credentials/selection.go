package credentials

import (
	"sort"
	"strconv"
	"strings"

	"github.com/varadharajaan/aws-infra-orchestrator/internal/model"
)

// ParseSelection parses a selection expression against n available items
// (1-indexed) and returns the selected indices, sorted ascending with no
// duplicates.
//
// Supported forms: a single index "1", a comma-joined list "1,3,5", an
// inclusive range "1-5", a mix "1,3-5,7", the literal "all", or the empty
// string (meaning "all"). Any out-of-range index, reversed range, or
// non-numeric token fails the whole parse — there is no partial result.
func ParseSelection(expr string, n int) ([]int, error) {
	trimmed := strings.TrimSpace(strings.ToLower(expr))
	if trimmed == "" || trimmed == "all" {
		return sequence(1, n), nil
	}

	seen := make(map[int]bool)
	var out []int

	for _, rawPart := range strings.Split(trimmed, ",") {
		part := strings.TrimSpace(rawPart)
		if part == "" {
			return nil, &model.ErrInvalidSelection{Expression: expr, Reason: "empty token"}
		}

		if strings.Contains(part, "-") {
			start, end, err := parseRange(part)
			if err != nil {
				return nil, err
			}
			if start < 1 || end > n || start > end {
				return nil, &model.ErrInvalidRange{Token: part}
			}
			for i := start; i <= end; i++ {
				if !seen[i] {
					seen[i] = true
					out = append(out, i)
				}
			}
			continue
		}

		num, err := strconv.Atoi(part)
		if err != nil {
			return nil, &model.ErrInvalidSelection{Expression: expr, Reason: "non-numeric token " + strconv.Quote(part)}
		}
		if num < 1 || num > n {
			return nil, &model.ErrInvalidSelection{Expression: expr, Reason: "index out of range: " + strconv.Itoa(num)}
		}
		if !seen[num] {
			seen[num] = true
			out = append(out, num)
		}
	}

	sort.Ints(out)
	return out, nil
}

func parseRange(part string) (start, end int, err error) {
	halves := strings.SplitN(part, "-", 2)
	if len(halves) != 2 {
		return 0, 0, &model.ErrInvalidRange{Token: part}
	}
	start, errStart := strconv.Atoi(strings.TrimSpace(halves[0]))
	end, errEnd := strconv.Atoi(strings.TrimSpace(halves[1]))
	if errStart != nil || errEnd != nil {
		return 0, 0, &model.ErrInvalidRange{Token: part}
	}
	return start, end, nil
}

func sequence(start, end int) []int {
	if end < start {
		return nil
	}
	out := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		out = append(out, i)
	}
	return out
}
