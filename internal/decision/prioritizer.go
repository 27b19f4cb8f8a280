package decision

import "sort"

// Prioritize orders decisions for grabbing. Download-allowed decisions are
// grouped by artist in order of first appearance and each group is sorted best
// first; the remaining decisions follow in their original order. Nothing is
// dropped or duplicated.
func (c *Comparator) Prioritize(decisions []*ReleaseDecision) []*ReleaseDecision {
	groups := make(map[int64][]*ReleaseDecision)
	var order []int64
	var rest []*ReleaseDecision
	for _, d := range decisions {
		if d.Subject == nil || !d.Subject.DownloadAllowed || d.Subject.Artist == nil {
			rest = append(rest, d)
			continue
		}
		id := d.Subject.Artist.ID
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], d)
	}

	out := make([]*ReleaseDecision, 0, len(decisions))
	for _, id := range order {
		group := groups[id]
		sort.SliceStable(group, func(i, j int) bool {
			return c.Compare(group[i].Subject, group[j].Subject) > 0
		})
		out = append(out, group...)
	}
	return append(out, rest...)
}
