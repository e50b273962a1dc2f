// Package census turns raw ACS extracts into a ranked regional dataset:
// field-mapped ingestion, outer-join merge, derived shares, a synthetic
// national row, and cumulative-threshold region selection.
package census

import "fmt"

// Kind classifies how a field is parsed and aggregated nationally.
type Kind int

const (
	// KindIdentifier is the region name column, copied verbatim.
	KindIdentifier Kind = iota
	// KindCount values are summed into the national row.
	KindCount
	// KindRate values are weight-averaged into the national row.
	KindRate
	// KindDerived values are computed after merging, never fetched.
	KindDerived
)

func (k Kind) String() string {
	switch k {
	case KindIdentifier:
		return "identifier"
	case KindCount:
		return "count"
	case KindRate:
		return "rate"
	case KindDerived:
		return "derived"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Field is a logical numeric slot of a Record.
type Field int

const (
	HispanicPop Field = iota
	TotalPop
	SpanishPop
	TotalHouseholds
	Spanish18to64
	Pop18to64
	Hispanic18to64
	MedianIncome
	AvgHouseholdSize
	HispanicMedianIncome
	HispanicHHSize
	HispanicPct
	SpanishPct
	NonHispanicPct
	Pop18to64Pct
	Hispanic18to64Pct
	HispanicShare18to64
	Spanish18to64Pct
	CumulativeShare

	numFields
)

var fieldNames = [numFields]string{
	HispanicPop:          "Hispanic_Pop",
	TotalPop:             "Total_Pop",
	SpanishPop:           "Spanish_Pop",
	TotalHouseholds:      "Total_Households",
	Spanish18to64:        "Spanish_18_64",
	Pop18to64:            "Pop_18_64",
	Hispanic18to64:       "USH_18_64",
	MedianIncome:         "Median_Income",
	AvgHouseholdSize:     "Avg_Household_Size",
	HispanicMedianIncome: "Hispanic_Median_Income",
	HispanicHHSize:       "Hispanic_HH_Size",
	HispanicPct:          "Hispanic_%",
	SpanishPct:           "Spanish_%",
	NonHispanicPct:       "Total_%",
	Pop18to64Pct:         "Pop_18_64_%",
	Hispanic18to64Pct:    "USH_18_64_%",
	HispanicShare18to64:  "USH_share",
	Spanish18to64Pct:     "Spanish_18_64_%",
	CumulativeShare:      "Cumulative_Hisp_%",
}

// NameField is the logical name of the identifier column.
const NameField = "NAME"

// String returns the logical name used in JSON and exports.
func (f Field) String() string {
	if f < 0 || f >= numFields {
		return fmt.Sprintf("field(%d)", int(f))
	}
	return fieldNames[f]
}

// Fields returns every numeric field in declaration order.
func Fields() []Field {
	out := make([]Field, numFields)
	for i := range out {
		out[i] = Field(i)
	}
	return out
}

// FieldByName resolves a logical name such as "Hispanic_Pop".
func FieldByName(name string) (Field, bool) {
	for i, n := range fieldNames {
		if n == name {
			return Field(i), true
		}
	}
	return 0, false
}

// FieldSpec binds a logical field to the provider columns it is read from.
// A spec with more than one source code is a summed aggregate.
type FieldSpec struct {
	Field       Field
	SourceCodes []string
	Kind        Kind
	// Weight is the field a rate is weighted by nationally.
	Weight Field
}

// Aggregate reports whether the field is summed from several columns.
func (s FieldSpec) Aggregate() bool { return len(s.SourceCodes) > 1 }

// Catalog is the ordered, immutable set of fetched fields.
type Catalog struct {
	NameCode string
	specs    []FieldSpec
}

// NewCatalog validates specs and returns a catalog. Logical fields and
// source codes must each be unique.
func NewCatalog(nameCode string, specs ...FieldSpec) (*Catalog, error) {
	if nameCode == "" {
		return nil, fmt.Errorf("catalog: empty name code")
	}
	seenField := map[Field]bool{}
	seenCode := map[string]bool{nameCode: true}
	for _, s := range specs {
		if s.Field < 0 || s.Field >= numFields {
			return nil, fmt.Errorf("catalog: unknown field %d", int(s.Field))
		}
		if s.Kind != KindCount && s.Kind != KindRate {
			return nil, fmt.Errorf("catalog: field %s must be count or rate, got %s", s.Field, s.Kind)
		}
		if s.Aggregate() && s.Kind != KindCount {
			return nil, fmt.Errorf("catalog: aggregate field %s must be a count", s.Field)
		}
		if len(s.SourceCodes) == 0 {
			return nil, fmt.Errorf("catalog: field %s has no source codes", s.Field)
		}
		if seenField[s.Field] {
			return nil, fmt.Errorf("catalog: duplicate field %s", s.Field)
		}
		seenField[s.Field] = true
		for _, c := range s.SourceCodes {
			if seenCode[c] {
				return nil, fmt.Errorf("catalog: duplicate source code %s", c)
			}
			seenCode[c] = true
		}
	}
	for _, s := range specs {
		if s.Kind == KindRate && !seenField[s.Weight] {
			return nil, fmt.Errorf("catalog: rate %s weighted by %s which is not fetched", s.Field, s.Weight)
		}
	}
	cp := make([]FieldSpec, len(specs))
	copy(cp, specs)
	return &Catalog{NameCode: nameCode, specs: cp}, nil
}

// Specs returns the catalog entries in order.
func (c *Catalog) Specs() []FieldSpec {
	out := make([]FieldSpec, len(c.specs))
	copy(out, c.specs)
	return out
}

// Spec returns the entry for f, if fetched.
func (c *Catalog) Spec(f Field) (FieldSpec, bool) {
	for _, s := range c.specs {
		if s.Field == f {
			return s, true
		}
	}
	return FieldSpec{}, false
}

// SourceCodes returns every provider code except the name column.
func (c *Catalog) SourceCodes() []string {
	var out []string
	for _, s := range c.specs {
		out = append(out, s.SourceCodes...)
	}
	return out
}

// DefaultCatalog is the ACS 1-year field set: basic demographics, income,
// and the 18–64 age buckets for the total and Hispanic populations.
func DefaultCatalog() *Catalog {
	c, err := NewCatalog(NameField,
		FieldSpec{Field: HispanicPop, SourceCodes: []string{"B03001_003E"}, Kind: KindCount},
		FieldSpec{Field: TotalPop, SourceCodes: []string{"B01003_001E"}, Kind: KindCount},
		FieldSpec{Field: SpanishPop, SourceCodes: []string{"C16001_003E"}, Kind: KindCount},
		FieldSpec{Field: MedianIncome, SourceCodes: []string{"B19013_001E"}, Kind: KindRate, Weight: TotalHouseholds},
		FieldSpec{Field: AvgHouseholdSize, SourceCodes: []string{"B25010_001E"}, Kind: KindRate, Weight: TotalHouseholds},
		FieldSpec{Field: TotalHouseholds, SourceCodes: []string{"B11001_001E"}, Kind: KindCount},
		FieldSpec{Field: HispanicMedianIncome, SourceCodes: []string{"B19013I_001E"}, Kind: KindRate, Weight: HispanicPop},
		FieldSpec{Field: HispanicHHSize, SourceCodes: []string{"B25010I_001E"}, Kind: KindRate, Weight: HispanicPop},
		FieldSpec{Field: Pop18to64, SourceCodes: ageCodes("B01001", 7, 19, 31, 43), Kind: KindCount},
		FieldSpec{Field: Hispanic18to64, SourceCodes: ageCodes("B01001I", 7, 13, 22, 28), Kind: KindCount},
		FieldSpec{Field: Spanish18to64, SourceCodes: []string{"B16004_026E"}, Kind: KindCount},
	)
	if err != nil {
		panic(err)
	}
	return c
}

// ageCodes expands the male and female bucket ranges of a sex-by-age table.
func ageCodes(table string, maleFrom, maleTo, femaleFrom, femaleTo int) []string {
	var out []string
	for i := maleFrom; i <= maleTo; i++ {
		out = append(out, fmt.Sprintf("%s_%03dE", table, i))
	}
	for i := femaleFrom; i <= femaleTo; i++ {
		out = append(out, fmt.Sprintf("%s_%03dE", table, i))
	}
	return out
}
