package census

// share is one derived percentage: Num/Den × 100.
type share struct {
	out, num, den Field
}

// Share fields in evaluation order. The 18–64 sub-group shares divide by
// the sub-group count rather than the regional total.
var shares = []share{
	{HispanicPct, HispanicPop, TotalPop},
	{SpanishPct, SpanishPop, TotalPop},
	{Pop18to64Pct, Pop18to64, TotalPop},
	{Hispanic18to64Pct, Hispanic18to64, HispanicPop},
	{HispanicShare18to64, Hispanic18to64, Pop18to64},
	{Spanish18to64Pct, Spanish18to64, Pop18to64},
}

// Percent returns num/den × 100, or absent unless both are present and
// den > 0.
func Percent(num, den Num) Num {
	if !num.Valid || !den.Valid || den.Value <= 0 {
		return Null
	}
	return Some(num.Value / den.Value * 100)
}

// Complement returns 100 − p, or absent when p is.
func Complement(p Num) Num {
	if !p.Valid {
		return Null
	}
	return Some(100 - p.Value)
}

// Derive fills the percentage fields of r from its counts.
func Derive(r *Record) {
	for _, s := range shares {
		r.Set(s.out, Percent(r.Get(s.num), r.Get(s.den)))
	}
	r.Set(NonHispanicPct, Complement(r.Get(HispanicPct)))
}

// WeightedAverage returns Σ(v·w)/Σw over the pairs where both are present.
// Pairs missing either side are skipped, not zeroed. The result is absent
// when the total weight is not positive.
func WeightedAverage(values, weights []Num) Num {
	var sum, total float64
	for i, v := range values {
		if i >= len(weights) {
			break
		}
		w := weights[i]
		if !v.Valid || !w.Valid {
			continue
		}
		sum += v.Value * w.Value
		total += w.Value
	}
	if total <= 0 {
		return Null
	}
	return Some(sum / total)
}

// Sum adds every present value; absent values count as zero.
func Sum(values []Num) Num {
	total := 0.0
	for _, v := range values {
		total += v.Or(0)
	}
	return Some(total)
}

// National builds the synthetic aggregate row over regions: counts are
// summed, rates are weight-averaged by their catalog weight, and the
// percentages are derived from the national counts.
func National(regions []Record, cat *Catalog, name string) Record {
	nat := NewRecord(name)
	for _, s := range cat.specs {
		switch s.Kind {
		case KindCount:
			nat.Set(s.Field, Sum(column(regions, s.Field)))
		case KindRate:
			nat.Set(s.Field, WeightedAverage(column(regions, s.Field), column(regions, s.Weight)))
		}
	}
	Derive(&nat)
	return nat
}

// Negatives lists "region/field" pairs holding a negative value. The
// provider encodes missing data as large negative numbers; they are kept
// as observations and only reported.
func Negatives(records []Record) []string {
	var out []string
	for _, r := range records {
		for f := Field(0); f < numFields; f++ {
			if v := r.values[f]; v.Valid && v.Value < 0 {
				out = append(out, r.Name+"/"+f.String())
			}
		}
	}
	return out
}
