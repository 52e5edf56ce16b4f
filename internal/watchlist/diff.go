package watchlist

// Diff は旧リストと新リストのシンボル差分を返す。
// addedは新リストの順序、removedは旧リストの順序を保つ。大文字小文字は区別する。
func Diff(oldSymbols, newSymbols []string) (added, removed []string) {
	oldSet := toSet(oldSymbols)
	newSet := toSet(newSymbols)

	added = []string{}
	for _, s := range newSymbols {
		if _, ok := oldSet[s]; !ok {
			added = append(added, s)
			oldSet[s] = struct{}{}
		}
	}

	removed = []string{}
	for _, s := range oldSymbols {
		if _, ok := newSet[s]; !ok {
			removed = append(removed, s)
			newSet[s] = struct{}{}
		}
	}
	return added, removed
}

func toSet(in []string) map[string]struct{} {
	set := make(map[string]struct{}, len(in))
	for _, s := range in {
		set[s] = struct{}{}
	}
	return set
}
