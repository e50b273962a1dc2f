package acs

import (
	"context"
	"fmt"

	"github.com/KaramelBytes/census-cli/internal/census"
)

// Plan splits the catalog into requests of at most maxVars variables, the
// name column included. A field's source codes always travel together.
// maxVars <= 0 means MaxVars.
func Plan(cat *census.Catalog, scope string, maxVars int) ([]Request, error) {
	if maxVars <= 0 || maxVars > MaxVars {
		maxVars = MaxVars
	}
	budget := maxVars - 1
	if budget < 1 {
		return nil, fmt.Errorf("plan: max vars %d leaves no room beside the name column", maxVars)
	}
	var plan []Request
	var cur []string
	for _, s := range cat.Specs() {
		n := len(s.SourceCodes)
		if n > budget {
			return nil, fmt.Errorf("plan: field %s needs %d variables, limit is %d", s.Field, n, budget)
		}
		if len(cur)+n > budget {
			plan = append(plan, Request{NameCode: cat.NameCode, Codes: cur, Scope: scope})
			cur = nil
		}
		cur = append(cur, s.SourceCodes...)
	}
	if len(cur) > 0 || len(plan) == 0 {
		plan = append(plan, Request{NameCode: cat.NameCode, Codes: cur, Scope: scope})
	}
	return plan, nil
}

// Fetcher retrieves one table.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (census.Extract, error)
}

// FetchAll runs the plan in order and stops at the first failure.
func FetchAll(ctx context.Context, f Fetcher, plan []Request) ([]census.Extract, error) {
	out := make([]census.Extract, 0, len(plan))
	for i, req := range plan {
		x, err := f.Fetch(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("request %d/%d: %w", i+1, len(plan), err)
		}
		out = append(out, x)
	}
	return out, nil
}
