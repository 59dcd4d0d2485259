package template

// Kind is the evaluation strategy selected by a template's kind class.
type Kind int

const (
	KindSearch Kind = iota
	KindSearchSet
	KindNotSearch
	KindFilter
	KindNotFilter
	KindGenerate
	KindWait
	KindFixedStrategySearch
)

var kindNames = [...]string{
	KindSearch:              "search",
	KindSearchSet:           "search_set",
	KindNotSearch:           "not_search",
	KindFilter:              "filter",
	KindNotFilter:           "not_filter",
	KindGenerate:            "generate",
	KindWait:                "wait",
	KindFixedStrategySearch: "fixed_strategy",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind maps a kind name back to its Kind.
func ParseKind(name string) (Kind, bool) {
	for k, n := range kindNames {
		if n == name {
			return Kind(k), true
		}
	}
	return 0, false
}

// strategyFor returns the evaluation strategy of a kind. Search-set
// templates evaluate like searches; the flag only matters to the fixed
// strategy that composes them.
func strategyFor(k Kind) strategy {
	switch k {
	case KindNotSearch:
		return notSearchStrategy{}
	case KindFilter:
		return filterStrategy{}
	case KindNotFilter:
		return notFilterStrategy{}
	case KindGenerate:
		return generateStrategy{}
	case KindWait:
		return waitStrategy{}
	case KindFixedStrategySearch:
		return fixedStrategy{}
	default:
		return searchStrategy{}
	}
}
