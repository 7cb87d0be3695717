package response

import "github.com/ervnjmsdnts/ojt/core/template"

// ComputeAggregate sums the ratings of r. ok is false for fixed-choice responses, which have no aggregate.
func ComputeAggregate(r Response) (total int, ok bool) {
	if r.Kind.Style() != template.StyleRating {
		return 0, false
	}
	for _, a := range r.Answers {
		total += a.Rating
	}
	return total, true
}

// ComputeCategoryTotals sums the ratings of r per category, in answer order.
func ComputeCategoryTotals(r Response) []CategoryTotal {
	if r.Kind.Style() != template.StyleRating {
		return nil
	}
	var totals []CategoryTotal
	idx := make(map[string]int)
	for _, a := range r.Answers {
		i, ok := idx[a.CategoryID]
		if !ok {
			i = len(totals)
			idx[a.CategoryID] = i
			totals = append(totals, CategoryTotal{CategoryID: a.CategoryID})
		}
		totals[i].Total += a.Rating
	}
	return totals
}

func newAggregate(r Response, snap template.Snapshot) *Aggregate {
	total, ok := ComputeAggregate(r)
	if !ok {
		return nil
	}
	agg := &Aggregate{Total: total, Categories: ComputeCategoryTotals(r)}
	for i, ct := range agg.Categories {
		if cat, _, found := snap.Category(ct.CategoryID); found {
			agg.Categories[i].Name = cat.Name
		}
	}
	return agg
}
