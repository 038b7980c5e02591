package normalize

import "strings"

// DefaultIncomeGroup is assigned when no identifier maps to a band.
const DefaultIncomeGroup = "All"

// IncomeTagger maps source identifiers (dataset ids, table ids) to
// income-group labels. The portals reassign identifiers across
// revisions, so the table is injected from configuration rather than
// derived from identifier structure. Keys are lowercase; build with
// NewIncomeTagger rather than a map literal holding mixed-case ids.
type IncomeTagger map[string]string

// NewIncomeTagger builds a tagger with case-insensitive identifier
// matching. Configuration map keys arrive with inconsistent casing
// (viper lowercases file-sourced keys but not defaults), so lookups
// must not depend on the portals' id casing.
func NewIncomeTagger(groups map[string]string) IncomeTagger {
	t := make(IncomeTagger, len(groups))
	for id, group := range groups {
		t[strings.ToLower(id)] = group
	}
	return t
}

// Tag returns the income group for the first mapped identifier, or
// DefaultIncomeGroup when none of them is known.
func (m IncomeTagger) Tag(ids []string) string {
	for _, id := range ids {
		if group, ok := m[strings.ToLower(id)]; ok {
			return group
		}
	}
	return DefaultIncomeGroup
}
