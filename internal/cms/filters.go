package cms

import (
	"strings"
	"time"
)

// DateRange bounds createdAt inclusively. A zero Start or End leaves that side open.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Filters narrows a List call. All set filters must match.
type Filters struct {
	Status     Status
	Category   string
	DateRange  *DateRange
	SearchTerm string
}

// searchFields are the candidate text fields for SearchTerm. The first one
// present on a record is the only one searched for that record.
var searchFields = []string{"title", "name", "description", "clientName", "reviewText"}

// ApplyFilters returns the items matching f, in their original order.
// Filters run in a fixed order: status, category, date range, search term.
func ApplyFilters(items []Item, f *Filters) []Item {
	if f == nil {
		return items
	}

	out := items
	if f.Status != "" {
		out = keep(out, func(it Item) bool { return it.Status() == f.Status })
	}
	if f.Category != "" {
		out = keep(out, func(it Item) bool {
			v, ok := it[FieldCategory]
			if !ok {
				return true
			}
			s, _ := v.(string)
			return s == f.Category
		})
	}
	if f.DateRange != nil {
		out = keep(out, func(it Item) bool { return f.DateRange.contains(it.CreatedAt()) })
	}
	if term := strings.ToLower(f.SearchTerm); term != "" {
		out = keep(out, func(it Item) bool {
			text, ok := searchText(it)
			return ok && strings.Contains(strings.ToLower(text), term)
		})
	}
	return out
}

func (r *DateRange) contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && t.After(r.End) {
		return false
	}
	return true
}

func searchText(it Item) (string, bool) {
	for _, field := range searchFields {
		if v, ok := it[field]; ok {
			s, isString := v.(string)
			return s, isString
		}
	}
	return "", false
}

func keep(items []Item, pred func(Item) bool) []Item {
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}
