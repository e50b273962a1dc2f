package census

import "sort"

// Merge outer-joins record sets on the region name. Every name seen in any
// set appears exactly once; fields no set asserted for a region stay
// absent. When two sets assert the same field for a region, the first
// present value in argument order wins. The result is ordered by name so it
// does not depend on the order the sets were fetched in.
func Merge(sets ...[]Record) []Record {
	byName := map[string]*Record{}
	var names []string
	for _, set := range sets {
		for _, in := range set {
			cur, ok := byName[in.Name]
			if !ok {
				r := NewRecord(in.Name)
				cur = &r
				byName[in.Name] = cur
				names = append(names, in.Name)
			}
			for f := Field(0); f < numFields; f++ {
				if v := in.values[f]; v.Valid && !cur.values[f].Valid {
					cur.values[f] = v
				}
			}
		}
	}
	sort.Strings(names)
	out := make([]Record, 0, len(names))
	for _, n := range names {
		out = append(out, *byName[n])
	}
	return out
}
