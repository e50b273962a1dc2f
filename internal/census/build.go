package census

import "fmt"

// DefaultNationalName is the national row's sentinel name.
const DefaultNationalName = "United States"

// Options configures Build.
type Options struct {
	// Threshold is the cumulative share of Primary to cover; 0 means DefaultThreshold.
	Threshold float64
	// Primary is the count field regions are ranked and selected by.
	Primary Field
	// NationalName names the synthetic aggregate row.
	NationalName string
}

// DefaultOptions ranks by Hispanic population and covers 80% of it.
func DefaultOptions() Options {
	return Options{
		Threshold:    DefaultThreshold,
		Primary:      HispanicPop,
		NationalName: DefaultNationalName,
	}
}

// Build runs ingest, merge, derive and selection over the extracts.
// Extracts may arrive in any order; the dataset is the same.
func Build(extracts []Extract, cat *Catalog, opt Options) (Dataset, error) {
	if opt.Threshold <= 0 {
		opt.Threshold = DefaultThreshold
	}
	if opt.NationalName == "" {
		opt.NationalName = DefaultNationalName
	}
	if s, ok := cat.Spec(opt.Primary); !ok || s.Kind != KindCount {
		return Dataset{}, fmt.Errorf("build: primary field %s is not a fetched count", opt.Primary)
	}
	sets := make([][]Record, 0, len(extracts))
	for i, x := range extracts {
		recs, err := Ingest(x, cat)
		if err != nil {
			return Dataset{}, fmt.Errorf("extract %d: %w", i, err)
		}
		sets = append(sets, recs)
	}
	regions := Merge(sets...)
	// A provider row carrying the sentinel name would double count.
	filtered := regions[:0]
	for _, r := range regions {
		if r.Name != opt.NationalName {
			filtered = append(filtered, r)
		}
	}
	regions = filtered
	for i := range regions {
		Derive(&regions[i])
	}
	nat := National(regions, cat, opt.NationalName)
	return Assemble(nat, SelectCumulative(regions, opt.Primary, opt.Threshold)), nil
}
