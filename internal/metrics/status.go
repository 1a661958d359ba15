package metrics

import "sort"

// StatusRow is the aggregated count for one HTTP status code.
type StatusRow struct {
	Code  int
	Count int64
}

// FlattenStatusCodes converts a status-code count map into rows sorted by
// descending count, then ascending code for stability.
func FlattenStatusCodes(codes map[int]int64) []StatusRow {
	if len(codes) == 0 {
		return nil
	}
	rows := make([]StatusRow, 0, len(codes))
	for code, count := range codes {
		rows = append(rows, StatusRow{Code: code, Count: count})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Code < rows[j].Code
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
