package store

import "sort"

// sortEntries orders a view slice: purely local records first, newest
// first among themselves, then server-listed records in server order.
func sortEntries(matched []*entry) {
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if (a.serverOrder < 0) != (b.serverOrder < 0) {
			return a.serverOrder < 0
		}
		if a.serverOrder != b.serverOrder {
			return a.serverOrder < b.serverOrder
		}
		if !a.confirmedAt.Equal(b.confirmedAt) {
			return a.confirmedAt.After(b.confirmedAt)
		}
		return a.node.Name < b.node.Name
	})
}
