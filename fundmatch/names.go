package fundmatch

// NameIndex maps exact fund names to scheme codes. It is immutable after
// BuildNameIndex returns and safe for concurrent reads.
type NameIndex struct {
	codes      map[string]int64
	duplicates []string
}

// BuildNameIndex inserts every record in order. When a name appears more than
// once the last record wins; the overwritten names are kept for reporting.
func BuildNameIndex(records []FundRecord) *NameIndex {
	idx := &NameIndex{codes: make(map[string]int64, len(records))}
	seen := make(map[string]struct{})
	for _, r := range records {
		if _, ok := idx.codes[r.Name]; ok {
			if _, reported := seen[r.Name]; !reported {
				seen[r.Name] = struct{}{}
				idx.duplicates = append(idx.duplicates, r.Name)
			}
		}
		idx.codes[r.Name] = r.Code
	}
	return idx
}

// Lookup is a case-sensitive exact match. No trimming or normalization is applied.
func (idx *NameIndex) Lookup(name string) (int64, bool) {
	if idx == nil {
		return 0, false
	}
	code, ok := idx.codes[name]
	return code, ok
}

// Len returns the number of distinct names.
func (idx *NameIndex) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.codes)
}

// Duplicates lists names that occurred more than once, in first-seen order.
func (idx *NameIndex) Duplicates() []string {
	if idx == nil {
		return nil
	}
	return cloneStrings(idx.duplicates)
}

func cloneStrings(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, len(values))
	copy(out, values)
	return out
}
