package census

import (
	"encoding/json"
	"math"
	"strings"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func nums(vals ...any) []Num {
	out := make([]Num, len(vals))
	for i, v := range vals {
		switch x := v.(type) {
		case nil:
			out[i] = Null
		case int:
			out[i] = Some(float64(x))
		case float64:
			out[i] = Some(x)
		}
	}
	return out
}

func TestDefaultCatalogFitsOneRequest(t *testing.T) {
	c := DefaultCatalog()
	codes := c.SourceCodes()
	if len(codes)+1 != 50 {
		t.Fatalf("expected 49 codes plus NAME, got %d", len(codes))
	}
	s, ok := c.Spec(Pop18to64)
	if !ok || !s.Aggregate() || len(s.SourceCodes) != 26 {
		t.Fatalf("unexpected Pop18to64 spec: %+v", s)
	}
	if s.SourceCodes[0] != "B01001_007E" || s.SourceCodes[25] != "B01001_043E" {
		t.Fatalf("unexpected bucket codes: %v", s.SourceCodes)
	}
	s, _ = c.Spec(Hispanic18to64)
	if len(s.SourceCodes) != 14 || s.SourceCodes[7] != "B01001I_022E" {
		t.Fatalf("unexpected Hispanic18to64 codes: %v", s.SourceCodes)
	}
}

func TestNewCatalogRejectsDuplicates(t *testing.T) {
	if _, err := NewCatalog("NAME",
		FieldSpec{Field: TotalPop, SourceCodes: []string{"A"}, Kind: KindCount},
		FieldSpec{Field: HispanicPop, SourceCodes: []string{"A"}, Kind: KindCount},
	); err == nil {
		t.Fatalf("expected duplicate source code error")
	}
	if _, err := NewCatalog("NAME",
		FieldSpec{Field: TotalPop, SourceCodes: []string{"A"}, Kind: KindCount},
		FieldSpec{Field: TotalPop, SourceCodes: []string{"B"}, Kind: KindCount},
	); err == nil {
		t.Fatalf("expected duplicate field error")
	}
	if _, err := NewCatalog("NAME",
		FieldSpec{Field: MedianIncome, SourceCodes: []string{"A"}, Kind: KindRate, Weight: TotalHouseholds},
	); err == nil {
		t.Fatalf("expected missing weight error")
	}
}

func TestParseNum(t *testing.T) {
	tests := []struct {
		in   string
		want Num
	}{
		{"42", Some(42)},
		{" 3.5 ", Some(3.5)},
		{"", Null},
		{"N/A", Null},
		{"NaN", Null},
		{"Inf", Null},
		// provider sentinels that parse are kept as observations
		{"-666666666", Some(-666666666)},
	}
	for _, tt := range tests {
		if got := ParseNum(tt.in); got != tt.want {
			t.Fatalf("ParseNum(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIngestMatchesColumnsByName(t *testing.T) {
	cat, err := NewCatalog("NAME",
		FieldSpec{Field: TotalPop, SourceCodes: []string{"POP"}, Kind: KindCount},
		FieldSpec{Field: HispanicPop, SourceCodes: []string{"HISP"}, Kind: KindCount},
		FieldSpec{Field: Pop18to64, SourceCodes: []string{"A1", "A2", "A3"}, Kind: KindCount},
	)
	if err != nil {
		t.Fatal(err)
	}
	x := Extract{
		Columns: []string{"A2", "HISP", "NAME", "A1", "POP", "A3", "state"},
		Rows: [][]string{
			{"10", "5", "Alpha", "20", "100", "x", "01"},
			{"", "oops", "Beta", "1", "50", "2", "02"},
			{"1", "2", "Gamma"},
		},
	}
	recs, err := Ingest(x, cat)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	a := recs[0]
	if a.Name != "Alpha" || a.Get(TotalPop) != Some(100) || a.Get(HispanicPop) != Some(5) {
		t.Fatalf("unexpected Alpha: %+v", a)
	}
	// unparseable contributing cell counts as zero in the sum
	if a.Get(Pop18to64) != Some(30) {
		t.Fatalf("expected aggregate 30, got %v", a.Get(Pop18to64))
	}
	b := recs[1]
	if b.Get(HispanicPop).Valid {
		t.Fatalf("expected null for unparseable cell, got %v", b.Get(HispanicPop))
	}
	if b.Get(Pop18to64) != Some(3) {
		t.Fatalf("expected aggregate 3, got %v", b.Get(Pop18to64))
	}
	// short rows read missing cells as empty
	g := recs[2]
	if g.Get(TotalPop).Valid || g.Get(Pop18to64) != Some(1) {
		t.Fatalf("unexpected Gamma: pop=%v agg=%v", g.Get(TotalPop), g.Get(Pop18to64))
	}
}

func TestIngestMissingNameColumn(t *testing.T) {
	_, err := Ingest(Extract{Columns: []string{"B01003_001E"}}, DefaultCatalog())
	if err == nil || !strings.Contains(err.Error(), "name column") {
		t.Fatalf("expected name column error, got %v", err)
	}
}

func TestIngestLeavesAbsentColumnsNull(t *testing.T) {
	recs, err := Ingest(Extract{Columns: []string{"NAME", "B01003_001E"}, Rows: [][]string{{"Alpha", "7"}}}, DefaultCatalog())
	if err != nil {
		t.Fatal(err)
	}
	r := recs[0]
	if r.Get(TotalPop) != Some(7) {
		t.Fatalf("expected TotalPop 7, got %v", r.Get(TotalPop))
	}
	if r.Get(Pop18to64).Valid || r.Get(HispanicPop).Valid {
		t.Fatalf("expected fields without columns to stay null")
	}
}

func TestMergeIsFullOuterJoin(t *testing.T) {
	a := NewRecord("Alpha")
	a.Set(TotalPop, Some(100))
	b := NewRecord("Beta")
	b.Set(TotalPop, Some(50))
	a2 := NewRecord("Alpha")
	a2.Set(Pop18to64, Some(60))
	c := NewRecord("Gamma")
	c.Set(Pop18to64, Some(10))

	merged := Merge([]Record{b, a}, []Record{c, a2})
	if len(merged) != 3 {
		t.Fatalf("expected 3 regions, got %d", len(merged))
	}
	if merged[0].Name != "Alpha" || merged[1].Name != "Beta" || merged[2].Name != "Gamma" {
		t.Fatalf("unexpected order: %s %s %s", merged[0].Name, merged[1].Name, merged[2].Name)
	}
	if merged[0].Get(TotalPop) != Some(100) || merged[0].Get(Pop18to64) != Some(60) {
		t.Fatalf("Alpha not merged: %+v", merged[0])
	}
	if merged[1].Get(Pop18to64).Valid {
		t.Fatalf("Beta missing from second set should have null Pop18to64")
	}
	if merged[2].Get(TotalPop).Valid {
		t.Fatalf("Gamma missing from first set should have null TotalPop")
	}

	swapped := Merge([]Record{c, a2}, []Record{b, a})
	for i := range merged {
		if merged[i] != swapped[i] {
			t.Fatalf("merge depends on set order at %d: %+v vs %+v", i, merged[i], swapped[i])
		}
	}
}

func TestPercentAndComplement(t *testing.T) {
	if got := Percent(Some(25), Some(200)); !got.Valid || !approx(got.Value, 12.5) {
		t.Fatalf("Percent = %v", got)
	}
	if got := Percent(Some(25), Some(0)); got.Valid {
		t.Fatalf("zero denominator should be null, got %v", got)
	}
	if got := Percent(Some(25), Null); got.Valid {
		t.Fatalf("null denominator should be null, got %v", got)
	}
	if got := Percent(Null, Some(10)); got.Valid {
		t.Fatalf("null numerator should be null, got %v", got)
	}
	if got := Percent(Some(0), Some(10)); got != Some(0) {
		t.Fatalf("zero numerator should be 0, got %v", got)
	}
	if got := Complement(Some(12.5)); got != Some(87.5) {
		t.Fatalf("Complement = %v", got)
	}
	if Complement(Null).Valid {
		t.Fatalf("Complement(null) should be null")
	}
}

func TestDeriveUsesSubgroupDenominators(t *testing.T) {
	r := NewRecord("Alpha")
	r.Set(TotalPop, Some(1000))
	r.Set(HispanicPop, Some(200))
	r.Set(SpanishPop, Some(150))
	r.Set(Pop18to64, Some(600))
	r.Set(Hispanic18to64, Some(120))
	r.Set(Spanish18to64, Some(90))
	Derive(&r)

	want := map[Field]float64{
		HispanicPct:         20,
		SpanishPct:          15,
		NonHispanicPct:      80,
		Pop18to64Pct:        60,
		Hispanic18to64Pct:   60,
		HispanicShare18to64: 20,
		Spanish18to64Pct:    15,
	}
	for f, w := range want {
		got := r.Get(f)
		if !got.Valid || !approx(got.Value, w) {
			t.Fatalf("%s = %v, want %v", f, got, w)
		}
	}
	if got := r.Get(HispanicPct).Value + r.Get(NonHispanicPct).Value; !approx(got, 100) {
		t.Fatalf("primary plus complement = %v", got)
	}

	z := NewRecord("Zero")
	z.Set(TotalPop, Some(10))
	z.Set(HispanicPop, Some(0))
	z.Set(Hispanic18to64, Some(0))
	Derive(&z)
	if z.Get(Hispanic18to64Pct).Valid {
		t.Fatalf("zero subgroup count should leave share null")
	}
	if z.Get(HispanicShare18to64).Valid {
		t.Fatalf("null Pop18to64 should leave share null")
	}
	if z.Get(HispanicPct) != Some(0) || z.Get(NonHispanicPct) != Some(100) {
		t.Fatalf("unexpected shares: %v %v", z.Get(HispanicPct), z.Get(NonHispanicPct))
	}
}

func TestWeightedAverageSkipsIncompletePairs(t *testing.T) {
	values := nums(10, nil, 30, 40, 50)
	weights := nums(1, 100, nil, 3, 0)
	got := WeightedAverage(values, weights)
	// only (10,1), (40,3), (50,0) contribute
	want := (10*1 + 40*3 + 50*0) / 4.0
	if !got.Valid || !approx(got.Value, want) {
		t.Fatalf("WeightedAverage = %v, want %v", got, want)
	}
	if got := WeightedAverage(nums(10, 20), nums(nil, 0)); got.Valid {
		t.Fatalf("expected null for zero total weight, got %v", got)
	}
	if got := WeightedAverage(nums(nil), nums(5)); got.Valid {
		t.Fatalf("expected null when no pair is complete, got %v", got)
	}
}

func TestNationalAggregates(t *testing.T) {
	cat := DefaultCatalog()
	a := NewRecord("Alpha")
	a.Set(TotalPop, Some(1000))
	a.Set(HispanicPop, Some(300))
	a.Set(TotalHouseholds, Some(400))
	a.Set(MedianIncome, Some(50000))
	a.Set(HispanicMedianIncome, Some(40000))
	b := NewRecord("Beta")
	b.Set(TotalPop, Some(3000))
	b.Set(HispanicPop, Null)
	b.Set(TotalHouseholds, Some(600))
	b.Set(MedianIncome, Some(70000))
	b.Set(HispanicMedianIncome, Some(99999))

	nat := National([]Record{a, b}, cat, "United States")
	if nat.Name != "United States" {
		t.Fatalf("unexpected name %q", nat.Name)
	}
	if nat.Get(TotalPop) != Some(4000) || nat.Get(HispanicPop) != Some(300) {
		t.Fatalf("unexpected counts: %v %v", nat.Get(TotalPop), nat.Get(HispanicPop))
	}
	if got := nat.Get(MedianIncome); !approx(got.Value, (50000*400+70000*600)/1000.0) {
		t.Fatalf("MedianIncome = %v", got)
	}
	// Beta has no Hispanic weight so its income is excluded, not zeroed
	if got := nat.Get(HispanicMedianIncome); got != Some(40000) {
		t.Fatalf("HispanicMedianIncome = %v", got)
	}
	if got := nat.Get(HispanicPct); !approx(got.Value, 7.5) {
		t.Fatalf("HispanicPct = %v", got)
	}
	if nat.Get(AvgHouseholdSize).Valid {
		t.Fatalf("rate with no values should be null")
	}
	// counts with no values at all sum to zero
	if nat.Get(Spanish18to64) != Some(0) {
		t.Fatalf("Spanish18to64 = %v", nat.Get(Spanish18to64))
	}
}

func regionsWith(counts ...float64) []Record {
	out := make([]Record, len(counts))
	for i, c := range counts {
		out[i] = NewRecord(string(rune('A' + i)))
		out[i].Set(HispanicPop, Some(c))
	}
	return out
}

func TestSelectCumulativeChecksBeforeAdding(t *testing.T) {
	// deliberately unsorted input
	regions := regionsWith(150, 500, 50, 300)
	sel := SelectCumulative(regions, HispanicPop, 0.80)
	if len(sel) != 3 {
		t.Fatalf("expected 3 regions, got %d", len(sel))
	}
	wantNames := []string{"B", "D", "A"}
	wantShares := []float64{0.5, 0.8, 0.95}
	for i := range sel {
		if sel[i].Name != wantNames[i] {
			t.Fatalf("position %d: got %s want %s", i, sel[i].Name, wantNames[i])
		}
		if got := sel[i].Get(CumulativeShare); !approx(got.Value, wantShares[i]) {
			t.Fatalf("position %d: share %v want %v", i, got, wantShares[i])
		}
	}
	// input is not mutated
	if regions[0].Get(CumulativeShare).Valid {
		t.Fatalf("SelectCumulative mutated its input")
	}
}

func TestSelectCumulativeStopsAtFirstOverflow(t *testing.T) {
	// after 900 of 1000 the check fails; the small tail is never admitted
	sel := SelectCumulative(regionsWith(900, 60, 40), HispanicPop, 0.80)
	if len(sel) != 1 || sel[0].Name != "A" {
		t.Fatalf("expected only A, got %d regions", len(sel))
	}
}

func TestRankIsStableAndNullAsZero(t *testing.T) {
	regions := regionsWith(5, 10, 5, 0)
	regions[3].Set(HispanicPop, Null)
	ranked := Rank(regions, HispanicPop)
	got := ""
	for _, r := range ranked {
		got += r.Name
	}
	if got != "BACD" {
		t.Fatalf("unexpected rank order %s", got)
	}
}

func TestSelectCumulativeZeroTotal(t *testing.T) {
	regions := regionsWith(0, 0)
	regions[1].Set(HispanicPop, Null)
	if sel := SelectCumulative(regions, HispanicPop, 0.8); len(sel) != 0 {
		t.Fatalf("expected empty selection, got %d", len(sel))
	}
	ds := Assemble(National(regions, DefaultCatalog(), "United States"), nil)
	if len(ds.Rows) != 1 || ds.Rows[0].Name != "United States" {
		t.Fatalf("expected national row only, got %+v", ds.Rows)
	}
}

func TestRecordJSONUsesNullForAbsent(t *testing.T) {
	r := NewRecord("Alpha")
	r.Set(TotalPop, Some(12))
	b, err := json.Marshal(r)
	if err != nil {
		t.Fatal(err)
	}
	s := string(b)
	if !strings.HasPrefix(s, `{"NAME":"Alpha","Hispanic_Pop":null,"Total_Pop":12`) {
		t.Fatalf("unexpected JSON prefix: %s", s)
	}
	var back Record
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatal(err)
	}
	if back != r {
		t.Fatalf("decoded record differs: %+v", back)
	}
}

func TestNegativesReportsProviderCodes(t *testing.T) {
	a := NewRecord("Alpha")
	a.Set(MedianIncome, Some(-666666666))
	a.Set(TotalPop, Some(10))
	b := NewRecord("Beta")
	b.Set(TotalPop, Some(0))
	got := Negatives([]Record{a, b})
	if len(got) != 1 || got[0] != "Alpha/Median_Income" {
		t.Fatalf("unexpected negatives: %v", got)
	}
	if a.Get(MedianIncome).Value != -666666666 {
		t.Fatalf("value must be kept")
	}
}
