package aggregate

import "github.com/ppiankov/snpscope/internal/model"

// MergePapers concatenates paper lists in the given order and drops every
// paper whose normalized title was already seen. The first occurrence wins,
// so callers pass lists in source priority order. Merging a merged list
// returns it unchanged.
func MergePapers(lists ...[]model.PaperRecord) []model.PaperRecord {
	total := 0
	for _, l := range lists {
		total += len(l)
	}

	seen := make(map[string]bool, total)
	out := make([]model.PaperRecord, 0, total)
	for _, l := range lists {
		for _, p := range l {
			key := p.TitleKey()
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, p)
		}
	}
	return out
}

// capAssociations truncates the association list to at most n entries
func capAssociations(list []model.AssociationRecord, n int) []model.AssociationRecord {
	if n >= 0 && len(list) > n {
		return list[:n]
	}
	return list
}
