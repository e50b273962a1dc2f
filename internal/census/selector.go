package census

import "sort"

// DefaultThreshold is the cumulative share of the primary count covered by
// the selection.
const DefaultThreshold = 0.80

// Rank returns a copy of regions sorted by f descending, absent as zero.
// Ties keep their input order.
func Rank(regions []Record, f Field) []Record {
	out := make([]Record, len(regions))
	copy(out, regions)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Get(f).Or(0) > out[j].Get(f).Or(0)
	})
	return out
}

// SelectCumulative ranks regions by f and admits them in order while the
// running total accumulated before each region is still within threshold
// of the grand total. The admitted region's own count is added afterwards,
// so the last admitted region may push the recorded share past threshold.
// Each admitted record carries its post-addition share in CumulativeShare.
// A total that is not positive admits nothing.
func SelectCumulative(regions []Record, f Field, threshold float64) []Record {
	ranked := Rank(regions, f)
	total := Sum(column(ranked, f)).Value
	if total <= 0 {
		return nil
	}
	var out []Record
	cumulative := 0.0
	for _, r := range ranked {
		if cumulative/total > threshold {
			break
		}
		cumulative += r.Get(f).Or(0)
		r.Set(CumulativeShare, Some(cumulative/total))
		out = append(out, r)
	}
	return out
}

// Assemble returns the dataset with national first, then the selection.
func Assemble(national Record, selected []Record) Dataset {
	national.Set(CumulativeShare, Null)
	rows := make([]Record, 0, len(selected)+1)
	rows = append(rows, national)
	rows = append(rows, selected...)
	return Dataset{Rows: rows}
}

func column(records []Record, f Field) []Num {
	out := make([]Num, len(records))
	for i, r := range records {
		out[i] = r.Get(f)
	}
	return out
}
